package models

import "time"

// Document records a file submitted to the provider for an applicant.
type Document struct {
	ID           int64     `json:"id"`
	ApplicantID  string    `json:"applicantId"`
	DocumentType string    `json:"documentType"` // IDENTITY, SELFIE, ...
	FileName     string    `json:"fileName"`
	FileSize     int64     `json:"fileSize,omitempty"`
	MimeType     string    `json:"mimeType,omitempty"`
	UploadStatus string    `json:"uploadStatus"`
	UploadedAt   time.Time `json:"uploadedAt"`
}
