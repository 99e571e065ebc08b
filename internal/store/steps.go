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

type StepStore struct {
	db     *database.PostgresClient
	logger logger.Logger
}

func NewStepStore(db *database.PostgresClient, log logger.Logger) *StepStore {
	return &StepStore{db: db, logger: log}
}

const stepColumns = `id, applicant_id, step, status, started_at, completed_at,
	error_message, version, created_at, updated_at`

// InitSteps creates the full pipeline for a new applicant in a single
// transaction: one PENDING row per step kind. All rows exist or none do.
func (s *StepStore) InitSteps(ctx context.Context, applicantID string) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin init steps tx: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO verification_steps (applicant_id, step, status) VALUES ($1, $2, $3)`
	for _, kind := range models.StepOrder {
		if _, err := tx.ExecContext(ctx, query, applicantID, string(kind), string(models.StepStatusPending)); err != nil {
			return fmt.Errorf("insert step %s for applicant %s: %w", kind, applicantID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit init steps: %w", err)
	}

	s.logger.Info("verification steps initialized", map[string]interface{}{
		"applicant_id": applicantID,
		"steps":        len(models.StepOrder),
	})
	return nil
}

func (s *StepStore) Get(ctx context.Context, applicantID string, kind models.StepKind) (*models.Step, error) {
	query := `SELECT ` + stepColumns + ` FROM verification_steps WHERE applicant_id = $1 AND step = $2`

	step, err := scanStep(s.db.QueryRow(ctx, query, applicantID, string(kind)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewStepNotFoundError(applicantID, string(kind))
	}
	if err != nil {
		return nil, fmt.Errorf("scan step %s/%s: %w", applicantID, kind, err)
	}
	return step, nil
}

// List returns the applicant's steps in pipeline order. The ordering is
// pushed into SQL so callers never see map or insertion order.
func (s *StepStore) List(ctx context.Context, applicantID string) ([]models.Step, error) {
	query := `SELECT ` + stepColumns + ` FROM verification_steps
		WHERE applicant_id = $1
		ORDER BY CASE step
			WHEN 'face_liveness' THEN 1
			WHEN 'kyc_verification' THEN 2
			WHEN 'id_scan' THEN 3
			WHEN 'selfie' THEN 4
			WHEN 'verification_complete' THEN 5
			ELSE 6 END`

	rows, err := s.db.Query(ctx, query, applicantID)
	if err != nil {
		return nil, fmt.Errorf("list steps for applicant %s: %w", applicantID, err)
	}
	defer rows.Close()

	steps := make([]models.Step, 0, len(models.StepOrder))
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("scan step row: %w", err)
		}
		steps = append(steps, *step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate step rows: %w", err)
	}
	return steps, nil
}

// CompareAndUpdate writes the step's mutable fields guarded by the
// version the caller read. Returns false with no error when another
// writer got there first; the caller decides whether to re-read and
// retry.
func (s *StepStore) CompareAndUpdate(ctx context.Context, step *models.Step) (bool, error) {
	query := `UPDATE verification_steps
		SET status = $3, started_at = $4, completed_at = $5, error_message = $6,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2`

	result, err := s.db.Exec(ctx, query,
		step.ID, step.Version,
		string(step.Status), step.StartedAt, step.CompletedAt, nullIfEmpty(step.ErrorMessage),
	)
	if err != nil {
		return false, fmt.Errorf("update step %d: %w", step.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected for step %d: %w", step.ID, err)
	}
	if affected == 0 {
		s.logger.Warn("step update lost version race", map[string]interface{}{
			"step_id": step.ID,
			"version": step.Version,
		})
		return false, nil
	}

	step.Version++
	return true, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStep(row rowScanner) (*models.Step, error) {
	var (
		step                   models.Step
		startedAt, completedAt sql.NullTime
		errorMessage           sql.NullString
	)

	err := row.Scan(&step.ID, &step.ApplicantID, &step.Kind, &step.Status,
		&startedAt, &completedAt, &errorMessage, &step.Version,
		&step.CreatedAt, &step.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if startedAt.Valid {
		t := startedAt.Time
		step.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		step.CompletedAt = &t
	}
	step.ErrorMessage = errorMessage.String
	return &step, nil
}
