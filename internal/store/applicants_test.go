package store

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyc-orchestrator/internal/common/database"
	apperrors "kyc-orchestrator/internal/common/errors"
	"kyc-orchestrator/internal/common/logger"
	"kyc-orchestrator/internal/models"
)

func newMockDB(t *testing.T) (*database.PostgresClient, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &database.PostgresClient{DB: db}, mock
}

func applicantRows(a *models.Applicant) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "external_user_id", "email", "phone", "first_name", "last_name", "country",
		"status", "review_status", "review_result", "created_at", "updated_at", "provider_created_at",
	}).AddRow(
		a.ID, a.ExternalUserID, a.Email, a.Phone, a.FirstName, a.LastName, a.Country,
		string(a.Status), a.ReviewStatus, a.ReviewResult, a.CreatedAt, a.UpdatedAt, nil,
	)
}

func TestApplicantStoreCreate(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewApplicantStore(db, logger.NewNoOpLogger())

	mock.ExpectExec("INSERT INTO applicants").
		WithArgs("app-1", "user-1", "ada@example.com", nil, "Ada", "Lovelace", "GBR", "created", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Create(t.Context(), &models.Applicant{
		ID:             "app-1",
		ExternalUserID: "user-1",
		Email:          "ada@example.com",
		FirstName:      "Ada",
		LastName:       "Lovelace",
		Country:        "GBR",
		Status:         models.ApplicantStatusCreated,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicantStoreGetByID(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewApplicantStore(db, logger.NewNoOpLogger())

	now := time.Now()
	want := &models.Applicant{
		ID:             "app-1",
		ExternalUserID: "user-1",
		Email:          "ada@example.com",
		FirstName:      "Ada",
		LastName:       "Lovelace",
		Status:         models.ApplicantStatusPending,
		ReviewStatus:   "completed",
		ReviewResult:   "GREEN",
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	mock.ExpectQuery("SELECT (.+) FROM applicants WHERE id").
		WithArgs("app-1").
		WillReturnRows(applicantRows(want))

	got, err := s.GetByID(t.Context(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, models.ApplicantStatusPending, got.Status)
	assert.Equal(t, "GREEN", got.ReviewResult)
	assert.Nil(t, got.ProviderCreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicantStoreGetByExternalUserID(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewApplicantStore(db, logger.NewNoOpLogger())

	now := time.Now()
	want := &models.Applicant{
		ID:             "app-1",
		ExternalUserID: "user-1",
		Email:          "ada@example.com",
		FirstName:      "Ada",
		LastName:       "Lovelace",
		Status:         models.ApplicantStatusCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	mock.ExpectQuery("SELECT (.+) FROM applicants WHERE external_user_id").
		WithArgs("user-1").
		WillReturnRows(applicantRows(want))

	got, err := s.GetByExternalUserID(t.Context(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "app-1", got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicantStoreGetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewApplicantStore(db, logger.NewNoOpLogger())

	mock.ExpectQuery("SELECT (.+) FROM applicants WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetByID(t.Context(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestApplicantStoreUpdateReview(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewApplicantStore(db, logger.NewNoOpLogger())

	mock.ExpectExec("UPDATE applicants").
		WithArgs("app-1", "approved", "completed", "GREEN").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpdateReview(t.Context(), "app-1", models.ApplicantStatusApproved, "completed", "GREEN")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicantStoreUpdateStatusMissingRow(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewApplicantStore(db, logger.NewNoOpLogger())

	mock.ExpectExec("UPDATE applicants").
		WithArgs("missing", "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateStatus(t.Context(), "missing", models.ApplicantStatusPending)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}
