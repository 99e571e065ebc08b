// Package orchestrator coordinates the verification flow: provider
// calls bracketed by step transitions, webhook processing, status
// aggregation and SDK token issuance. All collaborators are injected.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"kyc-orchestrator/internal/common/database"
	"kyc-orchestrator/internal/common/logger"
	"kyc-orchestrator/internal/models"
	"kyc-orchestrator/internal/provider"
	"kyc-orchestrator/internal/steps"
)

// VerificationProvider is the outbound surface of the provider client.
type VerificationProvider interface {
	CreateApplicant(ctx context.Context, externalUserID string, profile *provider.ApplicantProfile) (*provider.Applicant, error)
	GetApplicantStatus(ctx context.Context, applicantID string) (*provider.StatusSummary, error)
	UploadDocument(ctx context.Context, applicantID, idDocType, country, fileName string, content []byte) (*provider.DocumentResult, error)
	UploadSelfie(ctx context.Context, applicantID, country, fileName string, content []byte) (*provider.DocumentResult, error)
	CheckLiveness(ctx context.Context, applicantID, fileName string, video []byte) (*provider.LivenessResult, error)
	CreateSDKToken(ctx context.Context, userID, email, phone string) (*provider.SDKTokenResult, error)
	SubmitForReview(ctx context.Context, applicantID string) error
	SDKTokenTTL() int
}

// StepMachine drives step state transitions.
type StepMachine interface {
	Start(ctx context.Context, applicantID string, kind models.StepKind) (*models.Step, error)
	Complete(ctx context.Context, applicantID string, kind models.StepKind) (*models.Step, error)
	Fail(ctx context.Context, applicantID string, kind models.StepKind, errorMessage string) (*models.Step, error)
}

type ApplicantRepository interface {
	Create(ctx context.Context, a *models.Applicant) error
	GetByID(ctx context.Context, id string) (*models.Applicant, error)
	UpdateStatus(ctx context.Context, id string, status models.ApplicantStatus) error
	UpdateReview(ctx context.Context, id string, status models.ApplicantStatus, reviewStatus, reviewResult string) error
}

type StepRepository interface {
	InitSteps(ctx context.Context, applicantID string) error
	List(ctx context.Context, applicantID string) ([]models.Step, error)
}

type DocumentRepository interface {
	Insert(ctx context.Context, doc *models.Document) error
	ListByApplicant(ctx context.Context, applicantID string) ([]models.Document, error)
}

type WebhookEventRepository interface {
	Insert(ctx context.Context, event *models.WebhookEvent) error
	MarkProcessed(ctx context.Context, id int64) error
}

type ReviewNotifier interface {
	NotifyReviewOutcome(ctx context.Context, applicant *models.Applicant, reviewStatus, reviewResult string) error
}

type AuditIndexer interface {
	IndexWebhookEvent(ctx context.Context, event *models.WebhookEvent) error
}

const (
	statusCacheTTL      = 30 * time.Second
	statusCachePrefix   = "applicant_status:"
	sdkTokenCachePrefix = "sdk_token:"
	// sdkTokenCacheMargin keeps cached tokens from being handed out
	// right before they expire.
	sdkTokenCacheMargin = 60 * time.Second
)

type Service struct {
	provider      VerificationProvider
	machine       StepMachine
	applicants    ApplicantRepository
	steps         StepRepository
	documents     DocumentRepository
	events        WebhookEventRepository
	cache         *database.RedisClient
	notifier      ReviewNotifier
	audit         AuditIndexer
	webhookSecret string
	logger        logger.Logger
}

type Deps struct {
	Provider      VerificationProvider
	Machine       StepMachine
	Applicants    ApplicantRepository
	Steps         StepRepository
	Documents     DocumentRepository
	Events        WebhookEventRepository
	Cache         *database.RedisClient
	Notifier      ReviewNotifier
	Audit         AuditIndexer
	WebhookSecret string
	Logger        logger.Logger
}

func NewService(deps Deps) *Service {
	return &Service{
		provider:      deps.Provider,
		machine:       deps.Machine,
		applicants:    deps.Applicants,
		steps:         deps.Steps,
		documents:     deps.Documents,
		events:        deps.Events,
		cache:         deps.Cache,
		notifier:      deps.Notifier,
		audit:         deps.Audit,
		webhookSecret: deps.WebhookSecret,
		logger:        deps.Logger,
	}
}

// CreateApplicantRequest is the caller-facing creation payload.
type CreateApplicantRequest struct {
	ExternalUserID string `json:"externalUserId"`
	Email          string `json:"email"`
	Phone          string `json:"phone,omitempty"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Country        string `json:"country,omitempty"`
}

// CreateApplicant registers the applicant with the provider, persists
// the local record and initializes the full step pipeline.
func (s *Service) CreateApplicant(ctx context.Context, req CreateApplicantRequest) (*models.Applicant, error) {
	created, err := s.provider.CreateApplicant(ctx, req.ExternalUserID, &provider.ApplicantProfile{
		Email:     req.Email,
		Phone:     req.Phone,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Country:   req.Country,
	})
	if err != nil {
		return nil, err
	}

	applicant := &models.Applicant{
		ID:                created.ID,
		ExternalUserID:    req.ExternalUserID,
		Email:             req.Email,
		Phone:             req.Phone,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Country:           req.Country,
		Status:            models.ApplicantStatusCreated,
		ProviderCreatedAt: parseProviderTime(created.CreatedAt),
	}

	if err := s.applicants.Create(ctx, applicant); err != nil {
		return nil, err
	}
	if err := s.steps.InitSteps(ctx, applicant.ID); err != nil {
		return nil, err
	}

	s.logger.Info("applicant onboarded", map[string]interface{}{
		"applicant_id":     applicant.ID,
		"external_user_id": applicant.ExternalUserID,
	})
	return applicant, nil
}

// GetApplicant returns the locally persisted record.
func (s *Service) GetApplicant(ctx context.Context, applicantID string) (*models.Applicant, error) {
	return s.applicants.GetByID(ctx, applicantID)
}

// VerificationStatus merges the provider's review state with the local
// step pipeline.
type VerificationStatus struct {
	ApplicantID   string        `json:"applicantId"`
	Status        string        `json:"status"`
	ReviewStatus  string        `json:"reviewStatus"`
	ReviewResult  string        `json:"reviewResult,omitempty"`
	Steps         []models.Step `json:"steps"`
	CurrentStep   string        `json:"currentStep,omitempty"`
	OverallStatus string        `json:"overallStatus"`
}

// GetStatus fetches the provider status (short-TTL cached) and derives
// the overall pipeline position from the local steps.
func (s *Service) GetStatus(ctx context.Context, applicantID string) (*VerificationStatus, error) {
	summary, err := s.providerStatus(ctx, applicantID)
	if err != nil {
		return nil, err
	}

	stepList, err := s.steps.List(ctx, applicantID)
	if err != nil {
		return nil, err
	}

	status := &VerificationStatus{
		ApplicantID:   applicantID,
		Status:        orDefault(summary.ApplicantStatus, "pending"),
		ReviewStatus:  orDefault(summary.ReviewStatus, "pending"),
		ReviewResult:  summary.ReviewResult,
		Steps:         stepList,
		OverallStatus: "approved",
	}

	for _, step := range stepList {
		if step.Status == models.StepStatusPending || step.Status == models.StepStatusInProgress {
			status.OverallStatus = "pending"
			status.CurrentStep = string(step.Kind)
			break
		}
		if step.Status == models.StepStatusFailed {
			status.OverallStatus = "failed"
			status.CurrentStep = string(step.Kind)
			break
		}
	}
	return status, nil
}

// StepsSummary is the ordered pipeline with progress counters.
type StepsSummary struct {
	ApplicantID    string        `json:"applicantId"`
	Steps          []models.Step `json:"steps"`
	TotalSteps     int           `json:"totalSteps"`
	CompletedSteps int           `json:"completedSteps"`
	FailedSteps    int           `json:"failedSteps"`
}

func (s *Service) ListSteps(ctx context.Context, applicantID string) (*StepsSummary, error) {
	stepList, err := s.steps.List(ctx, applicantID)
	if err != nil {
		return nil, err
	}

	summary := &StepsSummary{
		ApplicantID: applicantID,
		Steps:       stepList,
		TotalSteps:  len(stepList),
	}
	for _, step := range stepList {
		switch step.Status {
		case models.StepStatusCompleted:
			summary.CompletedSteps++
		case models.StepStatusFailed:
			summary.FailedSteps++
		}
	}
	return summary, nil
}

func (s *Service) ListDocuments(ctx context.Context, applicantID string) ([]models.Document, error) {
	return s.documents.ListByApplicant(ctx, applicantID)
}

// IssueSDKToken returns a provider SDK token for the external user,
// served from cache while a previously issued token is still fresh.
func (s *Service) IssueSDKToken(ctx context.Context, externalUserID, email, phone string) (*provider.SDKTokenResult, error) {
	cacheKey := sdkTokenCachePrefix + externalUserID

	if cached := s.cacheGet(ctx, cacheKey); cached != "" {
		var result provider.SDKTokenResult
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			s.logger.Debug("sdk token served from cache", map[string]interface{}{
				"external_user_id": externalUserID,
			})
			return &result, nil
		}
	}

	result, err := s.provider.CreateSDKToken(ctx, externalUserID, email, phone)
	if err != nil {
		return nil, err
	}

	ttl := time.Duration(s.provider.SDKTokenTTL())*time.Second - sdkTokenCacheMargin
	if ttl > 0 {
		if encoded, err := json.Marshal(result); err == nil {
			s.cacheSet(ctx, cacheKey, string(encoded), ttl)
		}
	}
	return result, nil
}

// SubmitForReview finalizes the pipeline and hands the applicant to the
// provider's review queue. The final step is completed unconditionally;
// incomplete earlier steps are surfaced as a warning, not an error.
func (s *Service) SubmitForReview(ctx context.Context, applicantID string) error {
	stepList, err := s.steps.List(ctx, applicantID)
	if err != nil {
		return err
	}
	if !steps.AllCompleted(stepList) {
		s.logger.Warn("submitting for review with incomplete steps", map[string]interface{}{
			"applicant_id": applicantID,
		})
	}

	if _, err := s.machine.Complete(ctx, applicantID, models.StepVerificationComplete); err != nil {
		return err
	}
	if err := s.provider.SubmitForReview(ctx, applicantID); err != nil {
		return err
	}

	// The provider has the applicant now; a local bookkeeping failure
	// must not undo an accepted submission.
	if err := s.applicants.UpdateStatus(ctx, applicantID, models.ApplicantStatusPending); err != nil {
		s.logger.Error("failed to mark applicant pending after submission", map[string]interface{}{
			"applicant_id": applicantID,
			"error":        err.Error(),
		})
	}

	s.invalidateStatusCache(ctx, applicantID)
	return nil
}

func (s *Service) providerStatus(ctx context.Context, applicantID string) (*provider.StatusSummary, error) {
	cacheKey := statusCachePrefix + applicantID

	if cached := s.cacheGet(ctx, cacheKey); cached != "" {
		var summary provider.StatusSummary
		if err := json.Unmarshal([]byte(cached), &summary); err == nil {
			return &summary, nil
		}
	}

	summary, err := s.provider.GetApplicantStatus(ctx, applicantID)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(summary); err == nil {
		s.cacheSet(ctx, cacheKey, string(encoded), statusCacheTTL)
	}
	return summary, nil
}

// Cache access is soft: a Redis outage degrades to direct provider
// calls instead of failing requests.
func (s *Service) cacheGet(ctx context.Context, key string) string {
	if s.cache == nil {
		return ""
	}
	value, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("cache read failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
		return ""
	}
	return value
}

func (s *Service) cacheSet(ctx context.Context, key, value string, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

func (s *Service) invalidateStatusCache(ctx context.Context, applicantID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statusCachePrefix+applicantID); err != nil {
		s.logger.Warn("cache invalidation failed", map[string]interface{}{
			"applicant_id": applicantID,
			"error":        err.Error(),
		})
	}
}

// parseProviderTime tolerates the provider's timestamp formats; an
// unparseable value is dropped rather than failing the operation.
func parseProviderTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
