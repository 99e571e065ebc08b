package errors

import (
	"github.com/gin-gonic/gin"
)

// ErrorHandler renders StandardErrors as HTTP responses.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Respond writes the error as a JSON envelope and logs it. Callers get a
// stable error code, a human-readable message, and structured details;
// never a stack trace.
func (h *ErrorHandler) Respond(c *gin.Context, err error) {
	stdErr := AsStandard(err)

	h.logger.Error("request failed", map[string]interface{}{
		"path":      c.FullPath(),
		"method":    c.Request.Method,
		"errorCode": string(stdErr.Code),
		"message":   stdErr.Message,
		"details":   stdErr.Details,
		"retryable": stdErr.Retryable,
	})

	body := gin.H{
		"success": false,
		"error":   string(stdErr.Code),
		"message": stdErr.Message,
	}
	if stdErr.Details != "" {
		body["details"] = stdErr.Details
	}
	if len(stdErr.Metadata) > 0 {
		body["metadata"] = stdErr.Metadata
	}

	c.AbortWithStatusJSON(stdErr.HTTPStatus, body)
}
