package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "kyc-orchestrator/internal/common/errors"
	"kyc-orchestrator/internal/common/validation"
	"kyc-orchestrator/internal/orchestrator"
	"kyc-orchestrator/internal/webhook"
)

const (
	defaultIDDocType = "PASSPORT"
	defaultCountry   = "BD"
)

func (s *Server) handleCreateApplicant(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.errors.Respond(c, apperrors.NewValidationError("unreadable request body", err.Error()))
		return
	}
	if err := validation.ValidateCreateApplicant(raw); err != nil {
		s.errors.Respond(c, err)
		return
	}

	var req orchestrator.CreateApplicantRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.errors.Respond(c, apperrors.NewValidationError("malformed request body", err.Error()))
		return
	}

	applicant, err := s.service.CreateApplicant(c.Request.Context(), req)
	if err != nil {
		s.errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, applicant)
}

func (s *Server) handleGetApplicant(c *gin.Context) {
	applicant, err := s.service.GetApplicant(c.Request.Context(), c.Param("applicantId"))
	if err != nil {
		s.errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, applicant)
}

// handleCheckLiveness accepts an optional multipart video. Without one
// the provider evaluates media it already holds.
func (s *Server) handleCheckLiveness(c *gin.Context) {
	fileName, video, err := s.optionalUpload(c)
	if err != nil {
		s.errors.Respond(c, err)
		return
	}

	result, err := s.service.CheckLiveness(c.Request.Context(), c.Param("applicantId"), fileName, video)
	if err != nil {
		s.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"applicant_id": c.Param("applicantId"),
		"is_alive":     result.IsAlive,
		"confidence":   result.Confidence,
		"message":      "Liveness check completed successfully",
	})
}

func (s *Server) handleVerifyKYC(c *gin.Context) {
	step, err := s.service.VerifyKYC(c.Request.Context(), c.Param("applicantId"))
	if err != nil {
		s.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"applicant_id": c.Param("applicantId"),
		"step":         step.Kind,
		"status":       step.Status,
		"message":      "KYC verification completed",
	})
}

func (s *Server) handleUploadIDDocument(c *gin.Context) {
	fileName, mimeType, content, err := s.requiredUpload(c)
	if err != nil {
		s.errors.Respond(c, err)
		return
	}

	idDocType := c.DefaultPostForm("idDocType", defaultIDDocType)
	country := c.DefaultPostForm("country", defaultCountry)

	result, err := s.service.UploadIDDocument(c.Request.Context(), c.Param("applicantId"),
		idDocType, country, fileName, mimeType, content)
	if err != nil {
		s.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"applicant_id": c.Param("applicantId"),
		"idDocType":    result.IDDocType,
		"country":      result.Country,
		"message":      "Document uploaded successfully",
	})
}

func (s *Server) handleUploadSelfie(c *gin.Context) {
	fileName, mimeType, content, err := s.requiredUpload(c)
	if err != nil {
		s.errors.Respond(c, err)
		return
	}

	country := c.DefaultPostForm("country", defaultCountry)

	if _, err := s.service.UploadSelfie(c.Request.Context(), c.Param("applicantId"),
		country, fileName, mimeType, content); err != nil {
		s.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"applicant_id": c.Param("applicantId"),
		"message":      "Selfie uploaded successfully",
	})
}

func (s *Server) handleListDocuments(c *gin.Context) {
	docs, err := s.service.ListDocuments(c.Request.Context(), c.Param("applicantId"))
	if err != nil {
		s.errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"applicant_id": c.Param("applicantId"),
		"documents":    docs,
	})
}

func (s *Server) handleGetStatus(c *gin.Context) {
	status, err := s.service.GetStatus(c.Request.Context(), c.Param("applicantId"))
	if err != nil {
		s.errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleListSteps(c *gin.Context) {
	summary, err := s.service.ListSteps(c.Request.Context(), c.Param("applicantId"))
	if err != nil {
		s.errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type sdkTokenRequest struct {
	ExternalUserID string `json:"externalUserId" binding:"required"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
}

func (s *Server) handleSDKToken(c *gin.Context) {
	var req sdkTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.errors.Respond(c, apperrors.NewValidationError("externalUserId is required", err.Error()))
		return
	}

	result, err := s.service.IssueSDKToken(c.Request.Context(), req.ExternalUserID, req.Email, req.Phone)
	if err != nil {
		s.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     result.Token,
		"userId":    result.UserID,
		"ttlInSecs": s.tokenTTL,
	})
}

func (s *Server) handleSubmitForReview(c *gin.Context) {
	applicantID := c.Param("applicantId")
	if err := s.service.SubmitForReview(c.Request.Context(), applicantID); err != nil {
		s.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"applicant_id": applicantID,
		"status":       "submitted_for_review",
		"message":      "Applicant submitted for final review",
	})
}

// handleWebhook hands the exact raw bytes to the orchestrator; any
// re-serialization before signature verification would break the HMAC.
func (s *Server) handleWebhook(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		s.errors.Respond(c, apperrors.NewValidationError("unreadable webhook body", err.Error()))
		return
	}

	ack, err := s.service.ProcessWebhook(c.Request.Context(), raw, c.GetHeader(webhook.SignatureHeader))
	if err != nil {
		s.errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, ack)
}

func (s *Server) requiredUpload(c *gin.Context) (fileName, mimeType string, content []byte, err error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return "", "", nil, apperrors.NewValidationError("file is required", err.Error())
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", "", nil, apperrors.NewUploadError("cannot open uploaded file", err.Error())
	}
	defer file.Close()

	content, err = io.ReadAll(file)
	if err != nil {
		return "", "", nil, apperrors.NewUploadError("cannot read uploaded file", err.Error())
	}
	return fileHeader.Filename, fileHeader.Header.Get("Content-Type"), content, nil
}

func (s *Server) optionalUpload(c *gin.Context) (fileName string, content []byte, err error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		// No file attached is a valid request here.
		return "", nil, nil
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", nil, apperrors.NewUploadError("cannot open uploaded file", err.Error())
	}
	defer file.Close()

	content, err = io.ReadAll(file)
	if err != nil {
		return "", nil, apperrors.NewUploadError("cannot read uploaded file", err.Error())
	}
	return fileHeader.Filename, content, nil
}
