package provider

// Applicant is the provider's applicant resource, trimmed to the fields
// the orchestrator reads.
type Applicant struct {
	ID              string  `json:"id"`
	ExternalUserID  string  `json:"externalUserId"`
	Email           string  `json:"email,omitempty"`
	ApplicantStatus string  `json:"applicantStatus,omitempty"`
	ReviewStatus    string  `json:"reviewStatus,omitempty"`
	Review          *Review `json:"review,omitempty"`
	CreatedAt       string  `json:"createdAt,omitempty"`
}

type Review struct {
	ReviewStatus string        `json:"reviewStatus,omitempty"`
	ReviewResult *ReviewResult `json:"reviewResult,omitempty"`
}

type ReviewResult struct {
	ReviewAnswer string `json:"reviewAnswer,omitempty"`
}

// StatusSummary is the flattened status view extracted from a full
// applicant fetch.
type StatusSummary struct {
	ApplicantID     string `json:"applicantId"`
	ApplicantStatus string `json:"applicantStatus"`
	ReviewStatus    string `json:"reviewStatus"`
	ReviewResult    string `json:"reviewResult,omitempty"`
	CreatedAt       string `json:"createdAt,omitempty"`
}

// ApplicantProfile is the optional personal info attached at creation.
type ApplicantProfile struct {
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Country   string `json:"country,omitempty"`
}

// LivenessResult is the provider's face liveness response.
type LivenessResult struct {
	IsAlive    bool    `json:"isAlive"`
	Confidence float64 `json:"confidence"`
}

// DocumentResult echoes the metadata the provider stored for an upload.
type DocumentResult struct {
	IDDocType string `json:"idDocType,omitempty"`
	Country   string `json:"country,omitempty"`
}

// SDKTokenResult carries the short-lived SDK credential.
type SDKTokenResult struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

type createApplicantRequest struct {
	ExternalUserID string               `json:"externalUserId"`
	Info           *createApplicantInfo `json:"info,omitempty"`
}

type createApplicantInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type sdkTokenRequest struct {
	ApplicantIdentifiers map[string]string `json:"applicantIdentifiers"`
	TTLInSecs            int               `json:"ttlInSecs"`
	UserID               string            `json:"userId"`
	LevelName            string            `json:"levelName"`
}

type documentMetadata struct {
	IDDocType string `json:"idDocType"`
	Country   string `json:"country"`
}
