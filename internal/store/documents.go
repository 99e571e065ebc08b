package store

import (
	"context"
	"fmt"

	"kyc-orchestrator/internal/common/database"
	"kyc-orchestrator/internal/common/logger"
	"kyc-orchestrator/internal/models"
)

type DocumentStore struct {
	db     *database.PostgresClient
	logger logger.Logger
}

func NewDocumentStore(db *database.PostgresClient, log logger.Logger) *DocumentStore {
	return &DocumentStore{db: db, logger: log}
}

func (s *DocumentStore) Insert(ctx context.Context, doc *models.Document) error {
	query := `INSERT INTO documents (applicant_id, document_type, file_name, file_size, mime_type, upload_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, uploaded_at`

	err := s.db.QueryRow(ctx, query,
		doc.ApplicantID, doc.DocumentType, doc.FileName, doc.FileSize, doc.MimeType, doc.UploadStatus,
	).Scan(&doc.ID, &doc.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert document for applicant %s: %w", doc.ApplicantID, err)
	}

	s.logger.Debug("document recorded", map[string]interface{}{
		"applicant_id":  doc.ApplicantID,
		"document_type": doc.DocumentType,
		"file_size":     doc.FileSize,
	})
	return nil
}

func (s *DocumentStore) ListByApplicant(ctx context.Context, applicantID string) ([]models.Document, error) {
	query := `SELECT id, applicant_id, document_type, file_name, file_size, mime_type, upload_status, uploaded_at
		FROM documents WHERE applicant_id = $1 ORDER BY uploaded_at`

	rows, err := s.db.Query(ctx, query, applicantID)
	if err != nil {
		return nil, fmt.Errorf("list documents for applicant %s: %w", applicantID, err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.ApplicantID, &doc.DocumentType, &doc.FileName,
			&doc.FileSize, &doc.MimeType, &doc.UploadStatus, &doc.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document rows: %w", err)
	}
	return docs, nil
}
