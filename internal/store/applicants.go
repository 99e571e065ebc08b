// Package store holds the Postgres persistence layer. Each store wraps
// the shared client and maps database rows to domain models.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kyc-orchestrator/internal/common/database"
	apperrors "kyc-orchestrator/internal/common/errors"
	"kyc-orchestrator/internal/common/logger"
	"kyc-orchestrator/internal/models"
)

type ApplicantStore struct {
	db     *database.PostgresClient
	logger logger.Logger
}

func NewApplicantStore(db *database.PostgresClient, log logger.Logger) *ApplicantStore {
	return &ApplicantStore{db: db, logger: log}
}

const applicantColumns = `id, external_user_id, email, phone, first_name, last_name, country,
	status, review_status, review_result, created_at, updated_at, provider_created_at`

func (s *ApplicantStore) Create(ctx context.Context, a *models.Applicant) error {
	query := `INSERT INTO applicants
		(id, external_user_id, email, phone, first_name, last_name, country, status, provider_created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.Exec(ctx, query,
		a.ID, a.ExternalUserID, a.Email, nullIfEmpty(a.Phone),
		a.FirstName, a.LastName, nullIfEmpty(a.Country),
		string(a.Status), a.ProviderCreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert applicant %s: %w", a.ID, err)
	}

	s.logger.Info("applicant persisted", map[string]interface{}{
		"applicant_id":     a.ID,
		"external_user_id": a.ExternalUserID,
	})
	return nil
}

func (s *ApplicantStore) GetByID(ctx context.Context, id string) (*models.Applicant, error) {
	query := `SELECT ` + applicantColumns + ` FROM applicants WHERE id = $1`
	return s.scanOne(s.db.QueryRow(ctx, query, id), id)
}

func (s *ApplicantStore) GetByExternalUserID(ctx context.Context, externalUserID string) (*models.Applicant, error) {
	query := `SELECT ` + applicantColumns + ` FROM applicants WHERE external_user_id = $1`
	return s.scanOne(s.db.QueryRow(ctx, query, externalUserID), externalUserID)
}

func (s *ApplicantStore) UpdateStatus(ctx context.Context, id string, status models.ApplicantStatus) error {
	query := `UPDATE applicants SET status = $2, updated_at = now() WHERE id = $1`

	result, err := s.db.Exec(ctx, query, id, string(status))
	if err != nil {
		return fmt.Errorf("update applicant %s status: %w", id, err)
	}
	return s.requireOneRow(result, id)
}

// UpdateReview persists provider review state alongside the derived
// local status in a single statement.
func (s *ApplicantStore) UpdateReview(ctx context.Context, id string, status models.ApplicantStatus, reviewStatus, reviewResult string) error {
	query := `UPDATE applicants
		SET status = $2, review_status = $3, review_result = $4, updated_at = now()
		WHERE id = $1`

	result, err := s.db.Exec(ctx, query, id, string(status),
		nullIfEmpty(reviewStatus), nullIfEmpty(reviewResult))
	if err != nil {
		return fmt.Errorf("update applicant %s review: %w", id, err)
	}
	return s.requireOneRow(result, id)
}

func (s *ApplicantStore) scanOne(row *sql.Row, key string) (*models.Applicant, error) {
	var (
		a                          models.Applicant
		phone, country             sql.NullString
		reviewStatus, reviewResult sql.NullString
		providerCreatedAt          sql.NullTime
	)

	err := row.Scan(&a.ID, &a.ExternalUserID, &a.Email, &phone, &a.FirstName, &a.LastName,
		&country, &a.Status, &reviewStatus, &reviewResult,
		&a.CreatedAt, &a.UpdatedAt, &providerCreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewApplicantNotFoundError(key)
	}
	if err != nil {
		return nil, fmt.Errorf("scan applicant %s: %w", key, err)
	}

	a.Phone = phone.String
	a.Country = country.String
	a.ReviewStatus = reviewStatus.String
	a.ReviewResult = reviewResult.String
	if providerCreatedAt.Valid {
		t := providerCreatedAt.Time
		a.ProviderCreatedAt = &t
	}
	return &a, nil
}

func (s *ApplicantStore) requireOneRow(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for applicant %s: %w", id, err)
	}
	if affected == 0 {
		return apperrors.NewApplicantNotFoundError(id)
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
