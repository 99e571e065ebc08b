// Package steps implements the verification step state machine. All
// step mutation funnels through Transition so timestamp side effects
// and concurrency control live in one place.
package steps

import (
	"context"
	"time"

	apperrors "kyc-orchestrator/internal/common/errors"
	"kyc-orchestrator/internal/common/logger"
	"kyc-orchestrator/internal/common/metrics"
	"kyc-orchestrator/internal/models"
)

// StepRepository is the persistence surface the machine needs.
type StepRepository interface {
	Get(ctx context.Context, applicantID string, kind models.StepKind) (*models.Step, error)
	CompareAndUpdate(ctx context.Context, step *models.Step) (bool, error)
}

type Machine struct {
	repo   StepRepository
	logger logger.Logger
	now    func() time.Time
}

func NewMachine(repo StepRepository, log logger.Logger) *Machine {
	return &Machine{repo: repo, logger: log, now: time.Now}
}

var validStatuses = map[models.StepStatus]bool{
	models.StepStatusPending:    true,
	models.StepStatusInProgress: true,
	models.StepStatusCompleted:  true,
	models.StepStatusFailed:     true,
}

// Transition moves the applicant's step to status and applies the
// status-specific side effects. A transition that loses the version
// race is retried once against a fresh read; a second loss surfaces as
// a conflict for the caller to handle.
func (m *Machine) Transition(ctx context.Context, applicantID string, kind models.StepKind, status models.StepStatus, errorMessage string) (*models.Step, error) {
	if !models.IsValidStepKind(kind) {
		return nil, apperrors.NewValidationError("invalid verification step", string(kind))
	}
	if !validStatuses[status] {
		return nil, apperrors.NewValidationError("invalid step status", string(status))
	}

	for attempt := 0; attempt < 2; attempt++ {
		step, err := m.repo.Get(ctx, applicantID, kind)
		if err != nil {
			return nil, err
		}

		m.apply(step, status, errorMessage)

		updated, err := m.repo.CompareAndUpdate(ctx, step)
		if err != nil {
			return nil, err
		}
		if updated {
			metrics.StepTransitionsTotal.WithLabelValues(string(kind), string(status)).Inc()
			m.logger.Info("step transitioned", map[string]interface{}{
				"applicant_id": applicantID,
				"step":         string(kind),
				"status":       string(status),
			})
			return step, nil
		}
	}

	return nil, apperrors.NewConflictError(applicantID, string(kind))
}

// Start, Complete and Fail are the three transitions the orchestrator
// uses to bracket provider calls.
func (m *Machine) Start(ctx context.Context, applicantID string, kind models.StepKind) (*models.Step, error) {
	return m.Transition(ctx, applicantID, kind, models.StepStatusInProgress, "")
}

func (m *Machine) Complete(ctx context.Context, applicantID string, kind models.StepKind) (*models.Step, error) {
	return m.Transition(ctx, applicantID, kind, models.StepStatusCompleted, "")
}

func (m *Machine) Fail(ctx context.Context, applicantID string, kind models.StepKind, errorMessage string) (*models.Step, error) {
	return m.Transition(ctx, applicantID, kind, models.StepStatusFailed, errorMessage)
}

func (m *Machine) apply(step *models.Step, status models.StepStatus, errorMessage string) {
	switch status {
	case models.StepStatusInProgress:
		now := m.now().UTC()
		step.StartedAt = &now
	case models.StepStatusCompleted:
		now := m.now().UTC()
		step.CompletedAt = &now
		step.ErrorMessage = ""
	case models.StepStatusFailed:
		step.ErrorMessage = errorMessage
	case models.StepStatusPending:
		// Explicit reset keeps no residue from a previous run.
		step.StartedAt = nil
		step.CompletedAt = nil
		step.ErrorMessage = ""
	}
	step.Status = status
}

// AllCompleted reports whether every step before verification_complete
// has finished.
func AllCompleted(steps []models.Step) bool {
	for _, s := range steps {
		if s.Kind == models.StepVerificationComplete {
			continue
		}
		if s.Status != models.StepStatusCompleted {
			return false
		}
	}
	return true
}
