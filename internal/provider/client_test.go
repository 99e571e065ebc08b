package provider

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyc-orchestrator/internal/common/config"
	apperrors "kyc-orchestrator/internal/common/errors"
	"kyc-orchestrator/internal/common/logger"
	"kyc-orchestrator/internal/signer"
)

const (
	testAPIKey    = "test-app-token"
	testAPISecret = "test-app-secret"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(config.ProviderConfig{
		APIKey:      testAPIKey,
		APISecret:   testAPISecret,
		LevelName:   "basic-kyc-level",
		BaseURL:     server.URL,
		Timeout:     5000,
		SDKTokenTTL: 600,
	}, logger.NewNoOpLogger())

	return client, server
}

// requireValidSignature recomputes the digest over the signed body and
// compares it against the transmitted headers.
func requireValidSignature(t *testing.T, r *http.Request, signedBody string) {
	t.Helper()

	require.Equal(t, testAPIKey, r.Header.Get(signer.HeaderAppToken))

	ts, err := strconv.ParseInt(r.Header.Get(signer.HeaderAccessTs), 10, 64)
	require.NoError(t, err, "timestamp header must be decimal unix seconds")

	expected := signer.Sign(r.Method, r.URL.RequestURI(), signedBody, ts, testAPISecret)
	require.Equal(t, expected, r.Header.Get(signer.HeaderAccessSig))
}

func TestCreateApplicantSignsAndDecodes(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/resources/applicants", r.URL.Path)
		assert.Equal(t, "basic-kyc-level", r.URL.Query().Get("levelName"))
		requireValidSignature(t, r, string(body))

		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "user-42", payload["externalUserId"])
		info, ok := payload["info"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "Ada", info["firstName"])

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"app-1","externalUserId":"user-42","applicantStatus":"created"}`))
	})

	applicant, err := client.CreateApplicant(t.Context(), "user-42", &ApplicantProfile{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "app-1", applicant.ID)
	assert.Equal(t, "created", applicant.ApplicantStatus)
}

func TestCreateApplicantOmitsInfoWithoutProfile(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &payload))
		_, hasInfo := payload["info"]
		assert.False(t, hasInfo)

		w.Write([]byte(`{"id":"app-2","externalUserId":"user-43"}`))
	})

	applicant, err := client.CreateApplicant(t.Context(), "user-43", nil)
	require.NoError(t, err)
	assert.Equal(t, "app-2", applicant.ID)
}

func TestGetApplicantNotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"description":"Applicant not found"}`))
	})

	_, err := client.GetApplicant(t.Context(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestGetApplicantProviderError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"description":"boom"}`))
	})

	_, err := client.GetApplicant(t.Context(), "app-1")
	require.Error(t, err)

	std := apperrors.AsStandard(err)
	require.NotNil(t, std)
	assert.Equal(t, apperrors.ErrCodeProvider, std.Code)
	assert.True(t, std.Retryable)
	assert.Contains(t, std.Details, "boom")
	assert.Equal(t, http.StatusInternalServerError, std.Metadata["providerStatus"])
}

func TestGetApplicantStatusFlattensReview(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"id": "app-1",
			"applicantStatus": "pending",
			"createdAt": "2026-08-01 10:00:00",
			"review": {"reviewStatus": "completed", "reviewResult": {"reviewAnswer": "GREEN"}}
		}`))
	})

	summary, err := client.GetApplicantStatus(t.Context(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, "app-1", summary.ApplicantID)
	assert.Equal(t, "completed", summary.ReviewStatus)
	assert.Equal(t, "GREEN", summary.ReviewResult)
}

func TestUploadDocumentMultipartLayout(t *testing.T) {
	fileBytes := []byte("fake-image-bytes")

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Uploads sign an empty body regardless of the multipart payload.
		requireValidSignature(t, r, "")

		require.NoError(t, r.ParseMultipartForm(1<<20))

		var meta documentMetadata
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("metadata")), &meta))
		assert.Equal(t, "PASSPORT", meta.IDDocType)
		assert.Equal(t, "USA", meta.Country)

		file, header, err := r.FormFile("content")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "passport.jpg", header.Filename)

		got, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, fileBytes, got)

		w.Write([]byte(`{"idDocType":"PASSPORT","country":"USA"}`))
	})

	result, err := client.UploadDocument(t.Context(), "app-1", "PASSPORT", "USA", "passport.jpg", fileBytes)
	require.NoError(t, err)
	assert.Equal(t, "PASSPORT", result.IDDocType)
}

func TestCheckLivenessWithoutVideo(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requireValidSignature(t, r, "")
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)

		w.Write([]byte(`{"isAlive":true,"confidence":0.97}`))
	})

	result, err := client.CheckLiveness(t.Context(), "app-1", "", nil)
	require.NoError(t, err)
	assert.True(t, result.IsAlive)
	assert.InDelta(t, 0.97, result.Confidence, 0.0001)
}

func TestCreateSDKTokenIdentifiersOnlyWhenSupplied(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requireValidSignature(t, r, string(body))

		var payload sdkTokenRequest
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "user-42", payload.UserID)
		assert.Equal(t, "basic-kyc-level", payload.LevelName)
		assert.Equal(t, 600, payload.TTLInSecs)
		assert.Equal(t, map[string]string{"email": "ada@example.com"}, payload.ApplicantIdentifiers)

		w.Write([]byte(`{"token":"sdk-token-abc"}`))
	})

	result, err := client.CreateSDKToken(t.Context(), "user-42", "ada@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "sdk-token-abc", result.Token)
	assert.Equal(t, "user-42", result.UserID)
}

func TestSubmitForReview(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"ok":true}`))
	})

	require.NoError(t, client.SubmitForReview(t.Context(), "app-1"))
	assert.Equal(t, "/resources/applicants/app-1/status/pending", gotPath)
}

func TestTransportErrorOnUnreachableProvider(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	_, err := client.GetApplicant(t.Context(), "app-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTransport))

	std := apperrors.AsStandard(err)
	require.NotNil(t, std)
	assert.True(t, std.Retryable)
}
