package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"confess.share/internal/service"
)

// Error codes carried in every error body.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeUnsupportedType = "UNSUPPORTED_MEDIA_TYPE"
	CodeTooLarge        = "REQUEST_TOO_LARGE"
	CodeRateLimited     = "RATE_LIMITED"
	CodeInternalError   = "INTERNAL_ERROR"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// handleError maps service errors to responses. Anything unrecognized is
// logged and reported as a generic internal error.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error, resource string) {
	switch {
	case errors.Is(err, service.ErrInvalidID):
		writeError(w, r, http.StatusBadRequest, CodeValidationError, "Invalid "+resource+" ID format")
	case errors.Is(err, service.ErrEmptyMessage):
		writeError(w, r, http.StatusBadRequest, CodeValidationError, "Message is required")
	case errors.Is(err, service.ErrMessageTooLong):
		writeError(w, r, http.StatusBadRequest, CodeValidationError, "Message is too long")
	case errors.Is(err, service.ErrPasswordTooLong):
		writeError(w, r, http.StatusBadRequest, CodeValidationError, "Password is too long")
	case errors.Is(err, service.ErrPasswordRequired):
		writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "Password required")
	case errors.Is(err, service.ErrIncorrectPassword):
		writeError(w, r, http.StatusForbidden, CodeForbidden, "Incorrect password")
	case errors.Is(err, service.ErrNotFound):
		msg := "Confession not found"
		if resource == resourceSecret {
			msg = "Message not found or already viewed"
		}
		writeError(w, r, http.StatusNotFound, CodeNotFound, msg)
	case errors.Is(err, service.ErrMisconfigured):
		writeError(w, r, http.StatusInternalServerError, CodeInternalError, "Server configuration error")
	default:
		h.logger.WithContext(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, r, http.StatusInternalServerError, CodeInternalError, "Internal server error")
	}
}
