// Package validation validates inbound JSON payloads against embedded
// JSON Schemas before they reach the orchestrator.
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperrors "kyc-orchestrator/internal/common/errors"
)

const webhookPayloadSchema = `{
	"type": "object",
	"properties": {
		"applicantId":     {"type": "string", "minLength": 1},
		"applicantStatus": {"type": "string"},
		"reviewStatus":    {"type": "string"},
		"reviewResult":    {"type": "string"},
		"type":            {"type": "string"},
		"data":            {"type": "object"}
	},
	"required": ["applicantId"]
}`

const createApplicantSchema = `{
	"type": "object",
	"properties": {
		"externalUserId": {"type": "string", "minLength": 1, "maxLength": 255},
		"email":          {"type": "string", "format": "email"},
		"phone":          {"type": "string", "maxLength": 20},
		"firstName":      {"type": "string", "minLength": 1, "maxLength": 255},
		"lastName":       {"type": "string", "minLength": 1, "maxLength": 255},
		"country":        {"type": "string", "maxLength": 10}
	},
	"required": ["externalUserId", "email", "firstName", "lastName"]
}`

var (
	webhookSchema   = gojsonschema.NewStringLoader(webhookPayloadSchema)
	applicantSchema = gojsonschema.NewStringLoader(createApplicantSchema)
)

// ValidateWebhookPayload checks the decoded webhook body shape. The
// signature must already have been verified against the raw bytes.
func ValidateWebhookPayload(raw []byte) error {
	return validate(webhookSchema, gojsonschema.NewBytesLoader(raw), "webhook payload")
}

// ValidateCreateApplicant checks the applicant creation request body.
func ValidateCreateApplicant(raw []byte) error {
	return validate(applicantSchema, gojsonschema.NewBytesLoader(raw), "create applicant request")
}

func validate(schema, document gojsonschema.JSONLoader, what string) error {
	result, err := gojsonschema.Validate(schema, document)
	if err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("Malformed %s", what), err.Error())
	}
	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return apperrors.NewValidationError(
		fmt.Sprintf("Invalid %s", what),
		strings.Join(details, "; "),
	)
}
