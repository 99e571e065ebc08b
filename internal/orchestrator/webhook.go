package orchestrator

import (
	"context"
	"encoding/json"

	apperrors "kyc-orchestrator/internal/common/errors"
	"kyc-orchestrator/internal/common/metrics"
	"kyc-orchestrator/internal/common/validation"
	"kyc-orchestrator/internal/models"
	"kyc-orchestrator/internal/webhook"
)

// WebhookAck is returned to the provider after a delivery is accepted.
type WebhookAck struct {
	Status      string `json:"status"`
	ApplicantID string `json:"applicant_id"`
}

// ProcessWebhook authenticates and applies a provider callback. The
// signature check runs over the raw bytes before anything else; an
// unauthenticated delivery mutates nothing. Every authenticated
// delivery is recorded as an audit event, processed or not.
func (s *Service) ProcessWebhook(ctx context.Context, rawBody []byte, signature string) (*WebhookAck, error) {
	if !webhook.VerifySignature(rawBody, signature, s.webhookSecret) {
		metrics.WebhooksReceivedTotal.WithLabelValues("unauthorized").Inc()
		s.logger.Warn("webhook signature verification failed", map[string]interface{}{
			"body_size": len(rawBody),
		})
		return nil, apperrors.NewAuthenticationError("invalid webhook signature")
	}

	if err := validation.ValidateWebhookPayload(rawBody); err != nil {
		metrics.WebhooksReceivedTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		metrics.WebhooksReceivedTotal.WithLabelValues("invalid").Inc()
		return nil, apperrors.NewValidationError("malformed webhook payload", err.Error())
	}

	event := &models.WebhookEvent{
		ApplicantID:     payload.ApplicantID,
		EventType:       orDefault(payload.EventType, "verification.update"),
		ApplicantStatus: payload.ApplicantStatus,
		ReviewStatus:    payload.ReviewStatus,
		ReviewResult:    payload.ReviewResult,
		Payload:         string(rawBody),
	}
	if err := s.events.Insert(ctx, event); err != nil {
		metrics.WebhooksReceivedTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	s.indexAuditEvent(ctx, event)

	if payload.ReviewStatus == "completed" {
		if err := s.applyReviewCompletion(ctx, event, &payload); err != nil {
			metrics.WebhooksReceivedTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.WebhooksReceivedTotal.WithLabelValues("processed").Inc()
	} else {
		s.recordInterimReview(ctx, &payload)
		metrics.WebhooksReceivedTotal.WithLabelValues("ignored").Inc()
	}

	s.invalidateStatusCache(ctx, payload.ApplicantID)

	s.logger.Info("webhook received", map[string]interface{}{
		"applicant_id":  payload.ApplicantID,
		"status":        payload.ApplicantStatus,
		"review_status": payload.ReviewStatus,
	})
	return &WebhookAck{Status: "received", ApplicantID: payload.ApplicantID}, nil
}

// applyReviewCompletion finishes the pipeline for a completed review:
// verification_complete goes COMPLETED, the applicant record absorbs
// the review outcome, and the applicant is notified.
func (s *Service) applyReviewCompletion(ctx context.Context, event *models.WebhookEvent, payload *models.WebhookPayload) error {
	if _, err := s.machine.Complete(ctx, payload.ApplicantID, models.StepVerificationComplete); err != nil {
		return err
	}

	status := reviewOutcomeStatus(payload.ReviewResult)
	if err := s.applicants.UpdateReview(ctx, payload.ApplicantID, status, payload.ReviewStatus, payload.ReviewResult); err != nil {
		return err
	}

	if err := s.events.MarkProcessed(ctx, event.ID); err != nil {
		s.logger.Error("failed to mark webhook event processed", map[string]interface{}{
			"event_id": event.ID,
			"error":    err.Error(),
		})
	}

	s.notifyReviewOutcome(ctx, payload)
	return nil
}

// recordInterimReview persists non-final review state onto the
// applicant. Failures here are logged only; the delivery is still
// acknowledged so the provider does not retry indefinitely.
func (s *Service) recordInterimReview(ctx context.Context, payload *models.WebhookPayload) {
	if payload.ReviewStatus == "" && payload.ReviewResult == "" {
		return
	}
	err := s.applicants.UpdateReview(ctx, payload.ApplicantID, models.ApplicantStatusPending, payload.ReviewStatus, payload.ReviewResult)
	if err != nil {
		s.logger.Warn("failed to record interim review state", map[string]interface{}{
			"applicant_id": payload.ApplicantID,
			"error":        err.Error(),
		})
	}
}

func (s *Service) notifyReviewOutcome(ctx context.Context, payload *models.WebhookPayload) {
	if s.notifier == nil {
		return
	}
	applicant, err := s.applicants.GetByID(ctx, payload.ApplicantID)
	if err != nil {
		s.logger.Warn("cannot notify unknown applicant", map[string]interface{}{
			"applicant_id": payload.ApplicantID,
		})
		return
	}
	if err := s.notifier.NotifyReviewOutcome(ctx, applicant, payload.ReviewStatus, payload.ReviewResult); err != nil {
		s.logger.Error("review notification failed", map[string]interface{}{
			"applicant_id": payload.ApplicantID,
			"error":        err.Error(),
		})
	}
}

func (s *Service) indexAuditEvent(ctx context.Context, event *models.WebhookEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.IndexWebhookEvent(ctx, event); err != nil {
		s.logger.Warn("audit indexing failed", map[string]interface{}{
			"event_id": event.ID,
			"error":    err.Error(),
		})
	}
}

// reviewOutcomeStatus maps the provider's review answer onto the local
// applicant lifecycle. Anything other than a clear answer stays pending.
func reviewOutcomeStatus(reviewResult string) models.ApplicantStatus {
	switch reviewResult {
	case "GREEN":
		return models.ApplicantStatusApproved
	case "RED":
		return models.ApplicantStatusRejected
	default:
		return models.ApplicantStatusPending
	}
}
