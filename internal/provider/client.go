// Package provider is the signed REST client for the external
// verification service. Every request carries the HMAC authentication
// headers; the client maps transport and HTTP failures to standard
// errors and records call metrics, but never retries on its own.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"kyc-orchestrator/internal/common/config"
	apperrors "kyc-orchestrator/internal/common/errors"
	"kyc-orchestrator/internal/common/logger"
	"kyc-orchestrator/internal/common/metrics"
	"kyc-orchestrator/internal/signer"
)

type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	levelName  string
	tokenTTL   int
	httpClient *http.Client
	logger     logger.Logger
	now        func() time.Time
}

func NewClient(cfg config.ProviderConfig, log logger.Logger) *Client {
	return &Client{
		baseURL:   cfg.GetBaseURL(),
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		levelName: cfg.LevelName,
		tokenTTL:  cfg.SDKTokenTTL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Millisecond,
		},
		logger: log,
		now:    time.Now,
	}
}

// LevelName is the verification level applicants are created under.
func (c *Client) LevelName() string {
	return c.levelName
}

// SDKTokenTTL is the configured token lifetime in seconds.
func (c *Client) SDKTokenTTL() int {
	return c.tokenTTL
}

// CreateApplicant registers an applicant under the configured level.
// The profile is optional; when present its name and email are attached
// to the applicant record.
func (c *Client) CreateApplicant(ctx context.Context, externalUserID string, profile *ApplicantProfile) (*Applicant, error) {
	payload := createApplicantRequest{ExternalUserID: externalUserID}
	if profile != nil {
		payload.Info = &createApplicantInfo{
			FirstName: profile.FirstName,
			LastName:  profile.LastName,
			Email:     profile.Email,
		}
	}

	path := "/resources/applicants?levelName=" + url.QueryEscape(c.levelName)

	var applicant Applicant
	if err := c.doJSON(ctx, "create_applicant", http.MethodPost, path, payload, &applicant); err != nil {
		return nil, err
	}

	c.logger.Info("applicant created with provider", map[string]interface{}{
		"provider_applicant_id": applicant.ID,
		"external_user_id":      externalUserID,
	})

	return &applicant, nil
}

// GetApplicant fetches the full applicant resource. A 404 from the
// provider maps to APPLICANT_NOT_FOUND.
func (c *Client) GetApplicant(ctx context.Context, applicantID string) (*Applicant, error) {
	path := "/resources/applicants/" + url.PathEscape(applicantID)

	var applicant Applicant
	if err := c.doJSON(ctx, "get_applicant", http.MethodGet, path, nil, &applicant); err != nil {
		if std := apperrors.AsStandard(err); std != nil {
			if status, ok := std.Metadata["providerStatus"].(int); ok && status == http.StatusNotFound {
				return nil, apperrors.NewApplicantNotFoundError(applicantID)
			}
		}
		return nil, err
	}
	return &applicant, nil
}

// GetApplicantStatus fetches the applicant and flattens the review
// fields into a status summary.
func (c *Client) GetApplicantStatus(ctx context.Context, applicantID string) (*StatusSummary, error) {
	applicant, err := c.GetApplicant(ctx, applicantID)
	if err != nil {
		return nil, err
	}

	summary := &StatusSummary{
		ApplicantID:     applicant.ID,
		ApplicantStatus: applicant.ApplicantStatus,
		ReviewStatus:    applicant.ReviewStatus,
		CreatedAt:       applicant.CreatedAt,
	}
	if applicant.Review != nil {
		if summary.ReviewStatus == "" {
			summary.ReviewStatus = applicant.Review.ReviewStatus
		}
		if applicant.Review.ReviewResult != nil {
			summary.ReviewResult = applicant.Review.ReviewResult.ReviewAnswer
		}
	}
	return summary, nil
}

// UploadDocument sends an identity document as a multipart request with
// a metadata part describing the document and a content part holding
// the file bytes.
func (c *Client) UploadDocument(ctx context.Context, applicantID, idDocType, country, fileName string, content []byte) (*DocumentResult, error) {
	path := "/resources/applicants/" + url.PathEscape(applicantID) + "/info/idDoc"

	meta := documentMetadata{IDDocType: idDocType, Country: country}
	body, contentType, err := buildMultipart(&meta, fileName, content)
	if err != nil {
		return nil, apperrors.NewUploadError("failed to encode document upload", err.Error())
	}

	var result DocumentResult
	if err := c.doMultipart(ctx, "upload_document", path, body, contentType, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadSelfie sends a selfie image under the SELFIE document type.
func (c *Client) UploadSelfie(ctx context.Context, applicantID, country, fileName string, content []byte) (*DocumentResult, error) {
	return c.UploadDocument(ctx, applicantID, "SELFIE", country, fileName, content)
}

// CheckLiveness triggers the provider's face liveness check. Video
// content is optional; when nil the provider evaluates previously
// uploaded media.
func (c *Client) CheckLiveness(ctx context.Context, applicantID, fileName string, video []byte) (*LivenessResult, error) {
	path := "/resources/applicants/" + url.PathEscape(applicantID) + "/info/faceLiveness"

	var body *bytes.Buffer
	contentType := ""
	if len(video) > 0 {
		var err error
		body, contentType, err = buildMultipart(nil, fileName, video)
		if err != nil {
			return nil, apperrors.NewUploadError("failed to encode liveness video", err.Error())
		}
	} else {
		body = &bytes.Buffer{}
	}

	var result LivenessResult
	if err := c.doMultipart(ctx, "check_liveness", path, body, contentType, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateSDKToken issues a short-lived token for the provider's client
// SDK. Identifiers are attached only when supplied.
func (c *Client) CreateSDKToken(ctx context.Context, userID, email, phone string) (*SDKTokenResult, error) {
	payload := sdkTokenRequest{
		ApplicantIdentifiers: map[string]string{},
		TTLInSecs:            c.tokenTTL,
		UserID:               userID,
		LevelName:            c.levelName,
	}
	if email != "" {
		payload.ApplicantIdentifiers["email"] = email
	}
	if phone != "" {
		payload.ApplicantIdentifiers["phone"] = phone
	}

	var result SDKTokenResult
	if err := c.doJSON(ctx, "create_sdk_token", http.MethodPost, "/resources/accessTokens/sdk", payload, &result); err != nil {
		return nil, err
	}
	if result.UserID == "" {
		result.UserID = userID
	}
	return &result, nil
}

// SubmitForReview moves the applicant into the provider's pending
// review queue.
func (c *Client) SubmitForReview(ctx context.Context, applicantID string) error {
	path := "/resources/applicants/" + url.PathEscape(applicantID) + "/status/pending"
	return c.doJSON(ctx, "submit_for_review", http.MethodPost, path, nil, nil)
}

// doJSON executes a signed JSON request. The signature covers the
// exact serialized body, so the same bytes must be marshaled once and
// used for both signing and transmission.
func (c *Client) doJSON(ctx context.Context, operation, method, path string, payload, out interface{}) error {
	var bodyBytes []byte
	if payload != nil {
		var err error
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return apperrors.NewInternalError(fmt.Errorf("marshal %s payload: %w", operation, err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("build %s request: %w", operation, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.applyAuthHeaders(req, method, path, string(bodyBytes))

	return c.execute(req, operation, out)
}

// doMultipart executes a signed multipart POST. The provider signs an
// empty body for uploads, so the signature is computed over "" even
// though the request body carries the multipart payload.
func (c *Client) doMultipart(ctx context.Context, operation, path string, body *bytes.Buffer, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("build %s request: %w", operation, err))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	c.applyAuthHeaders(req, http.MethodPost, path, "")

	return c.execute(req, operation, out)
}

func (c *Client) applyAuthHeaders(req *http.Request, method, path, body string) {
	for name, value := range signer.Headers(method, path, body, c.now().Unix(), c.apiKey, c.apiSecret) {
		req.Header.Set(name, value)
	}
}

func (c *Client) execute(req *http.Request, operation string, out interface{}) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ProviderCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ProviderCallsTotal.WithLabelValues(operation, "transport_error").Inc()
		c.logger.Error("provider request failed", map[string]interface{}{
			"operation": operation,
			"error":     err.Error(),
		})
		return apperrors.NewTransportError(operation, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ProviderCallsTotal.WithLabelValues(operation, "transport_error").Inc()
		return apperrors.NewTransportError(operation, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		metrics.ProviderCallsTotal.WithLabelValues(operation, "provider_error").Inc()
		c.logger.Error("provider returned error status", map[string]interface{}{
			"operation": operation,
			"status":    resp.StatusCode,
			"body":      string(respBody),
		})
		return apperrors.NewProviderError(operation, resp.StatusCode, string(respBody))
	}

	metrics.ProviderCallsTotal.WithLabelValues(operation, "success").Inc()

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return apperrors.NewInternalError(fmt.Errorf("unmarshal %s response: %w", operation, err))
		}
	}
	return nil
}

// buildMultipart assembles the provider's upload layout: an optional
// "metadata" part with the document descriptor JSON followed by a
// "content" part with the file bytes.
func buildMultipart(meta *documentMetadata, fileName string, content []byte) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if meta != nil {
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return nil, "", err
		}
		if err := writer.WriteField("metadata", string(metaJSON)); err != nil {
			return nil, "", err
		}
	}

	part, err := writer.CreateFormFile("content", fileName)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", err
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}
