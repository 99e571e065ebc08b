package store

import (
	"context"
	"fmt"
	"time"

	"kyc-orchestrator/internal/common/database"
	"kyc-orchestrator/internal/common/logger"
	"kyc-orchestrator/internal/models"
)

// WebhookEventStore persists every authenticated webhook delivery as an
// audit row, whether or not processing succeeds.
type WebhookEventStore struct {
	db     *database.PostgresClient
	logger logger.Logger
}

func NewWebhookEventStore(db *database.PostgresClient, log logger.Logger) *WebhookEventStore {
	return &WebhookEventStore{db: db, logger: log}
}

func (s *WebhookEventStore) Insert(ctx context.Context, event *models.WebhookEvent) error {
	query := `INSERT INTO webhook_events
		(applicant_id, event_type, applicant_status, review_status, review_result, payload, processed)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		RETURNING id, received_at`

	err := s.db.QueryRow(ctx, query,
		event.ApplicantID, event.EventType,
		nullIfEmpty(event.ApplicantStatus), nullIfEmpty(event.ReviewStatus), nullIfEmpty(event.ReviewResult),
		event.Payload,
	).Scan(&event.ID, &event.ReceivedAt)
	if err != nil {
		return fmt.Errorf("insert webhook event: %w", err)
	}
	return nil
}

func (s *WebhookEventStore) MarkProcessed(ctx context.Context, id int64) error {
	query := `UPDATE webhook_events SET processed = TRUE, processed_at = $2 WHERE id = $1`

	if _, err := s.db.Exec(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark webhook event %d processed: %w", id, err)
	}
	return nil
}
