package errorhandler

import (
	"context"
	"net/http"

	"github.com/parallax/parallax-api/internal/pkg/logger"
	"github.com/parallax/parallax-api/internal/pkg/response"
)

// Internal logs err with the operation name and sends a generic 500.
func Internal(ctx context.Context, w http.ResponseWriter, op string, err error) {
	logger.FromContext(ctx).Error().
		Err(err).
		Str("operation", op).
		Msg("Request failed")

	response.InternalError(w)
}

// HandleError logs err and sends an error response with the given code.
func HandleError(ctx context.Context, w http.ResponseWriter, status int, code, message string, err error) {
	event := logger.FromContext(ctx).Error()
	if status < http.StatusInternalServerError {
		event = logger.FromContext(ctx).Warn()
	}
	event.
		Err(err).
		Str("error_code", code).
		Int("status_code", status).
		Msg(message)

	response.Error(w, status, code, message)
}

// LogExternalServiceError logs errors from external service calls
func LogExternalServiceError(ctx context.Context, service string, endpoint string, statusCode int, err error, body string) {
	logger.FromContext(ctx).Error().
		Str("external_service", service).
		Str("endpoint", endpoint).
		Int("status_code", statusCode).
		Err(err).
		Str("response_body", truncateString(body, 1000)).
		Msg("External service error")
}

func truncateString(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "...<truncated>"
	}
	return s
}
