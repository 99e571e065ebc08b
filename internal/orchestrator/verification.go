package orchestrator

import (
	"context"

	"kyc-orchestrator/internal/models"
	"kyc-orchestrator/internal/provider"
)

// CheckLiveness brackets the provider's face liveness call with the
// face_liveness step: IN_PROGRESS before the call, COMPLETED on
// success, FAILED with the error message otherwise.
func (s *Service) CheckLiveness(ctx context.Context, applicantID, fileName string, video []byte) (*provider.LivenessResult, error) {
	if _, err := s.machine.Start(ctx, applicantID, models.StepFaceLiveness); err != nil {
		return nil, err
	}

	result, err := s.provider.CheckLiveness(ctx, applicantID, fileName, video)
	if err != nil {
		s.failStep(ctx, applicantID, models.StepFaceLiveness, err)
		return nil, err
	}

	if _, err := s.machine.Complete(ctx, applicantID, models.StepFaceLiveness); err != nil {
		return nil, err
	}
	return result, nil
}

// VerifyKYC completes the kyc_verification step. The provider has no
// discrete endpoint for this stage; its checks run as part of document
// review, so the step is a local milestone.
func (s *Service) VerifyKYC(ctx context.Context, applicantID string) (*models.Step, error) {
	if _, err := s.machine.Start(ctx, applicantID, models.StepKYCVerification); err != nil {
		return nil, err
	}
	return s.machine.Complete(ctx, applicantID, models.StepKYCVerification)
}

// UploadIDDocument uploads an identity document, bracketed by the
// id_scan step, and records the file locally.
func (s *Service) UploadIDDocument(ctx context.Context, applicantID, idDocType, country, fileName, mimeType string, content []byte) (*provider.DocumentResult, error) {
	if _, err := s.machine.Start(ctx, applicantID, models.StepIDScan); err != nil {
		return nil, err
	}

	result, err := s.provider.UploadDocument(ctx, applicantID, idDocType, country, fileName, content)
	if err != nil {
		s.failStep(ctx, applicantID, models.StepIDScan, err)
		return nil, err
	}

	s.recordDocument(ctx, applicantID, idDocType, fileName, mimeType, len(content))

	if _, err := s.machine.Complete(ctx, applicantID, models.StepIDScan); err != nil {
		return nil, err
	}
	return result, nil
}

// UploadSelfie uploads a selfie image, bracketed by the selfie step.
func (s *Service) UploadSelfie(ctx context.Context, applicantID, country, fileName, mimeType string, content []byte) (*provider.DocumentResult, error) {
	if _, err := s.machine.Start(ctx, applicantID, models.StepSelfie); err != nil {
		return nil, err
	}

	result, err := s.provider.UploadSelfie(ctx, applicantID, country, fileName, content)
	if err != nil {
		s.failStep(ctx, applicantID, models.StepSelfie, err)
		return nil, err
	}

	s.recordDocument(ctx, applicantID, "SELFIE", fileName, mimeType, len(content))

	if _, err := s.machine.Complete(ctx, applicantID, models.StepSelfie); err != nil {
		return nil, err
	}
	return result, nil
}

// failStep marks the step FAILED with the causing error. The original
// failure is what callers see; a bookkeeping error here is only logged.
func (s *Service) failStep(ctx context.Context, applicantID string, kind models.StepKind, cause error) {
	if _, err := s.machine.Fail(ctx, applicantID, kind, cause.Error()); err != nil {
		s.logger.Error("failed to record step failure", map[string]interface{}{
			"applicant_id": applicantID,
			"step":         string(kind),
			"error":        err.Error(),
		})
	}
}

func (s *Service) recordDocument(ctx context.Context, applicantID, documentType, fileName, mimeType string, size int) {
	doc := &models.Document{
		ApplicantID:  applicantID,
		DocumentType: documentType,
		FileName:     fileName,
		FileSize:     int64(size),
		MimeType:     mimeType,
		UploadStatus: "uploaded",
	}
	if err := s.documents.Insert(ctx, doc); err != nil {
		s.logger.Error("failed to record document", map[string]interface{}{
			"applicant_id": applicantID,
			"file_name":    fileName,
			"error":        err.Error(),
		})
	}
}
