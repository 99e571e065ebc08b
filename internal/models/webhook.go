package models

import "time"

// WebhookPayload is the provider callback body. Only the raw bytes are
// trusted for signature verification; these fields are read afterwards.
type WebhookPayload struct {
	ApplicantID     string                 `json:"applicantId"`
	ApplicantStatus string                 `json:"applicantStatus"`
	ReviewStatus    string                 `json:"reviewStatus"`
	ReviewResult    string                 `json:"reviewResult,omitempty"`
	EventType       string                 `json:"type,omitempty"`
	Data            map[string]interface{} `json:"data,omitempty"`
}

// WebhookEvent is the append-only audit record of an accepted webhook
// delivery. It is never mutated except to flip Processed once handled.
type WebhookEvent struct {
	ID              int64      `json:"id"`
	ApplicantID     string     `json:"applicantId"`
	EventType       string     `json:"eventType"`
	ApplicantStatus string     `json:"applicantStatus,omitempty"`
	ReviewStatus    string     `json:"reviewStatus,omitempty"`
	ReviewResult    string     `json:"reviewResult,omitempty"`
	Payload         string     `json:"payload,omitempty"`
	ReceivedAt      time.Time  `json:"receivedAt"`
	Processed       bool       `json:"processed"`
	ProcessedAt     *time.Time `json:"processedAt,omitempty"`
}
