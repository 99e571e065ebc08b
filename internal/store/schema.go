package store

import (
	"context"
	"fmt"

	"kyc-orchestrator/internal/common/database"
)

// schemaStatements create the persistence tables. Idempotent so the
// server can run them on every boot.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS applicants (
		id TEXT PRIMARY KEY,
		external_user_id TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL,
		phone TEXT,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		country TEXT,
		status TEXT NOT NULL DEFAULT 'created',
		review_status TEXT,
		review_result TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		provider_created_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS verification_steps (
		id BIGSERIAL PRIMARY KEY,
		applicant_id TEXT NOT NULL REFERENCES applicants(id) ON DELETE CASCADE,
		step TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		started_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		error_message TEXT,
		version INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (applicant_id, step)
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id BIGSERIAL PRIMARY KEY,
		applicant_id TEXT NOT NULL REFERENCES applicants(id) ON DELETE CASCADE,
		document_type TEXT NOT NULL,
		file_name TEXT NOT NULL,
		file_size BIGINT NOT NULL,
		mime_type TEXT,
		upload_status TEXT NOT NULL DEFAULT 'uploaded',
		uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS webhook_events (
		id BIGSERIAL PRIMARY KEY,
		applicant_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		applicant_status TEXT,
		review_status TEXT,
		review_result TEXT,
		payload TEXT NOT NULL,
		received_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		processed BOOLEAN NOT NULL DEFAULT FALSE,
		processed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_steps_applicant ON verification_steps (applicant_id)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_applicant ON documents (applicant_id)`,
}

// EnsureSchema creates any missing tables and indexes.
func EnsureSchema(ctx context.Context, db *database.PostgresClient) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
