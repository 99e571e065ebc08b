package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"kyc-orchestrator/internal/common/config"
	apperrors "kyc-orchestrator/internal/common/errors"
	"kyc-orchestrator/internal/common/logger"
	"kyc-orchestrator/internal/models"
	"kyc-orchestrator/internal/orchestrator"
	"kyc-orchestrator/internal/provider"
	"kyc-orchestrator/internal/webhook"
)

type mockOrchestrator struct {
	mock.Mock
}

func (m *mockOrchestrator) CreateApplicant(ctx context.Context, req orchestrator.CreateApplicantRequest) (*models.Applicant, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Applicant), args.Error(1)
}

func (m *mockOrchestrator) GetApplicant(ctx context.Context, applicantID string) (*models.Applicant, error) {
	args := m.Called(ctx, applicantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Applicant), args.Error(1)
}

func (m *mockOrchestrator) CheckLiveness(ctx context.Context, applicantID, fileName string, video []byte) (*provider.LivenessResult, error) {
	args := m.Called(ctx, applicantID, fileName, video)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.LivenessResult), args.Error(1)
}

func (m *mockOrchestrator) VerifyKYC(ctx context.Context, applicantID string) (*models.Step, error) {
	args := m.Called(ctx, applicantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Step), args.Error(1)
}

func (m *mockOrchestrator) UploadIDDocument(ctx context.Context, applicantID, idDocType, country, fileName, mimeType string, content []byte) (*provider.DocumentResult, error) {
	args := m.Called(ctx, applicantID, idDocType, country, fileName, mimeType, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.DocumentResult), args.Error(1)
}

func (m *mockOrchestrator) UploadSelfie(ctx context.Context, applicantID, country, fileName, mimeType string, content []byte) (*provider.DocumentResult, error) {
	args := m.Called(ctx, applicantID, country, fileName, mimeType, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.DocumentResult), args.Error(1)
}

func (m *mockOrchestrator) GetStatus(ctx context.Context, applicantID string) (*orchestrator.VerificationStatus, error) {
	args := m.Called(ctx, applicantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orchestrator.VerificationStatus), args.Error(1)
}

func (m *mockOrchestrator) ListSteps(ctx context.Context, applicantID string) (*orchestrator.StepsSummary, error) {
	args := m.Called(ctx, applicantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orchestrator.StepsSummary), args.Error(1)
}

func (m *mockOrchestrator) ListDocuments(ctx context.Context, applicantID string) ([]models.Document, error) {
	args := m.Called(ctx, applicantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Document), args.Error(1)
}

func (m *mockOrchestrator) IssueSDKToken(ctx context.Context, externalUserID, email, phone string) (*provider.SDKTokenResult, error) {
	args := m.Called(ctx, externalUserID, email, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.SDKTokenResult), args.Error(1)
}

func (m *mockOrchestrator) SubmitForReview(ctx context.Context, applicantID string) error {
	return m.Called(ctx, applicantID).Error(0)
}

func (m *mockOrchestrator) ProcessWebhook(ctx context.Context, rawBody []byte, signature string) (*orchestrator.WebhookAck, error) {
	args := m.Called(ctx, rawBody, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orchestrator.WebhookAck), args.Error(1)
}

func newTestServer(t *testing.T) (*Server, *mockOrchestrator) {
	t.Helper()
	svc := new(mockOrchestrator)
	srv := New(
		config.ServerConfig{Port: 8080},
		config.ProviderConfig{APIKey: "sbx:abcdefgh", Environment: "sandbox", SDKTokenTTL: 600},
		svc,
		logger.NewNoOpLogger(),
	)
	return srv, svc
}

func doRequest(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthReportsEnvironment(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["is_sandbox"])
	assert.Equal(t, "Sandbox", body["environment"])
}

func TestCreateApplicant(t *testing.T) {
	srv, svc := newTestServer(t)

	svc.On("CreateApplicant", mock.Anything, orchestrator.CreateApplicantRequest{
		ExternalUserID: "user-1",
		Email:          "ada@example.com",
		FirstName:      "Ada",
		LastName:       "Lovelace",
	}).Return(&models.Applicant{ID: "app-1", ExternalUserID: "user-1", Status: models.ApplicantStatusCreated}, nil)

	payload := `{"externalUserId":"user-1","email":"ada@example.com","firstName":"Ada","lastName":"Lovelace"}`
	req := httptest.NewRequest(http.MethodPost, "/api/kyc/applicants", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	rec := doRequest(srv, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "app-1", decodeBody(t, rec)["id"])
}

func TestCreateApplicantRejectsIncompletePayload(t *testing.T) {
	srv, svc := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/kyc/applicants", strings.NewReader(`{"email":"x@y.z"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := doRequest(srv, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, string(apperrors.ErrCodeValidation), body["error"])
	svc.AssertNotCalled(t, "CreateApplicant")
}

func TestGetApplicantNotFound(t *testing.T) {
	srv, svc := newTestServer(t)

	svc.On("GetApplicant", mock.Anything, "missing").
		Return(nil, apperrors.NewApplicantNotFoundError("missing"))

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/kyc/applicants/missing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(apperrors.ErrCodeNotFound), decodeBody(t, rec)["error"])
}

func TestCheckLivenessWithoutVideo(t *testing.T) {
	srv, svc := newTestServer(t)

	svc.On("CheckLiveness", mock.Anything, "app-1", "", []byte(nil)).
		Return(&provider.LivenessResult{IsAlive: true, Confidence: 0.9}, nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodPost, "/api/kyc/applicants/app-1/liveness/check", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["is_alive"])
}

func TestUploadIDDocumentDefaultsAndFile(t *testing.T) {
	srv, svc := newTestServer(t)
	fileContent := []byte("jpeg-bytes")

	svc.On("UploadIDDocument", mock.Anything, "app-1", "PASSPORT", "BD", "passport.jpg", mock.Anything, fileContent).
		Return(&provider.DocumentResult{IDDocType: "PASSPORT", Country: "BD"}, nil)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "passport.jpg")
	require.NoError(t, err)
	_, err = part.Write(fileContent)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/kyc/applicants/app-1/documents/id", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rec := doRequest(srv, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PASSPORT", decodeBody(t, rec)["idDocType"])
	svc.AssertExpectations(t)
}

func TestUploadIDDocumentRequiresFile(t *testing.T) {
	srv, svc := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/kyc/applicants/app-1/documents/id", nil)
	rec := doRequest(srv, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	svc.AssertNotCalled(t, "UploadIDDocument")
}

func TestGetStatus(t *testing.T) {
	srv, svc := newTestServer(t)

	svc.On("GetStatus", mock.Anything, "app-1").Return(&orchestrator.VerificationStatus{
		ApplicantID:   "app-1",
		Status:        "pending",
		ReviewStatus:  "pending",
		OverallStatus: "pending",
		CurrentStep:   "face_liveness",
	}, nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/kyc/applicants/app-1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "pending", body["overallStatus"])
	assert.Equal(t, "face_liveness", body["currentStep"])
}

func TestSDKTokenRequiresExternalUserID(t *testing.T) {
	srv, svc := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/kyc/applicants/app-1/sdk-token", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	rec := doRequest(srv, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	svc.AssertNotCalled(t, "IssueSDKToken")
}

func TestSDKTokenResponseIncludesTTL(t *testing.T) {
	srv, svc := newTestServer(t)

	svc.On("IssueSDKToken", mock.Anything, "user-1", "", "").
		Return(&provider.SDKTokenResult{Token: "tok", UserID: "user-1"}, nil)

	payload := `{"externalUserId":"user-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/kyc/applicants/app-1/sdk-token", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	rec := doRequest(srv, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "tok", body["token"])
	assert.Equal(t, float64(600), body["ttlInSecs"])
}

func TestSubmitForReview(t *testing.T) {
	srv, svc := newTestServer(t)

	svc.On("SubmitForReview", mock.Anything, "app-1").Return(nil)

	rec := doRequest(srv, httptest.NewRequest(http.MethodPost, "/api/kyc/applicants/app-1/status/pending", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "submitted_for_review", decodeBody(t, rec)["status"])
}

func TestWebhookPassesRawBodyAndSignature(t *testing.T) {
	srv, svc := newTestServer(t)
	raw := []byte(`{"applicantId":"app-1","reviewStatus":"completed"}`)

	svc.On("ProcessWebhook", mock.Anything, raw, "sig-value").
		Return(&orchestrator.WebhookAck{Status: "received", ApplicantID: "app-1"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/kyc/webhooks/verification", bytes.NewReader(raw))
	req.Header.Set(webhook.SignatureHeader, "sig-value")

	rec := doRequest(srv, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "received", decodeBody(t, rec)["status"])
	svc.AssertExpectations(t)
}

func TestWebhookUnauthorized(t *testing.T) {
	srv, svc := newTestServer(t)

	svc.On("ProcessWebhook", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, apperrors.NewAuthenticationError("invalid webhook signature"))

	req := httptest.NewRequest(http.MethodPost, "/api/kyc/webhooks/verification", strings.NewReader(`{}`))
	rec := doRequest(srv, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(apperrors.ErrCodeAuthentication), decodeBody(t, rec)["error"])
}
