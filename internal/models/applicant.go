package models

import "time"

// ApplicantStatus is the locally tracked lifecycle status of an applicant.
type ApplicantStatus string

const (
	ApplicantStatusCreated  ApplicantStatus = "created"
	ApplicantStatusPending  ApplicantStatus = "pending"
	ApplicantStatusApproved ApplicantStatus = "approved"
	ApplicantStatusRejected ApplicantStatus = "rejected"
	ApplicantStatusExpired  ApplicantStatus = "expired"
)

// Applicant is the local record of a person undergoing verification.
// The ID is assigned by the verification provider and immutable once set;
// ExternalUserID is assigned by the caller and unique.
type Applicant struct {
	ID             string          `json:"id"`
	ExternalUserID string          `json:"externalUserId"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone,omitempty"`
	FirstName      string          `json:"firstName"`
	LastName       string          `json:"lastName"`
	Country        string          `json:"country,omitempty"`
	Status         ApplicantStatus `json:"status"`

	// Review fields are opaque provider strings, synced from webhooks
	// or explicit status fetches.
	ReviewStatus string `json:"reviewStatus,omitempty"`
	ReviewResult string `json:"reviewResult,omitempty"`

	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	ProviderCreatedAt *time.Time `json:"providerCreatedAt,omitempty"`
}
