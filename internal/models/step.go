package models

import "time"

// StepKind identifies one stage of the fixed verification pipeline.
type StepKind string

const (
	StepFaceLiveness         StepKind = "face_liveness"
	StepKYCVerification      StepKind = "kyc_verification"
	StepIDScan               StepKind = "id_scan"
	StepSelfie               StepKind = "selfie"
	StepVerificationComplete StepKind = "verification_complete"
)

// StepOrder is the total order of the pipeline. Iteration and display
// always follow this slice, never map or declaration order.
var StepOrder = []StepKind{
	StepFaceLiveness,
	StepKYCVerification,
	StepIDScan,
	StepSelfie,
	StepVerificationComplete,
}

// IsValidStepKind reports whether k is a member of the closed step set.
func IsValidStepKind(k StepKind) bool {
	for _, s := range StepOrder {
		if s == k {
			return true
		}
	}
	return false
}

// StepStatus is the state of a single verification step.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusFailed     StepStatus = "failed"
)

// Step is one row per (applicant, step-kind) pair. All five rows are
// created together when the applicant is created, initialized to PENDING.
// Version is bumped on every transition and used for optimistic locking.
type Step struct {
	ID           int64      `json:"id"`
	ApplicantID  string     `json:"applicantId"`
	Kind         StepKind   `json:"step"`
	Status       StepStatus `json:"status"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	Version      int        `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}
