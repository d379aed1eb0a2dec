package helpers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"bouncer/internal/domain"
)

// Error codes for API error responses. Use these with WriteJSONError.
const (
	ErrCodeBadRequest        = "bad_request"
	ErrCodeUnauthorized      = "unauthorized"
	ErrCodeForbidden         = "forbidden"
	ErrCodeNotFound          = "not_found"
	ErrCodeDuplicateRSVP     = "duplicate_rsvp"
	ErrCodeTicketUnavailable = "ticket_unavailable"
	ErrCodeRSVPCreation      = "rsvp_creation_failed"
	ErrCodeReauthorize       = "reauthorize"
	ErrCodeMailNotConnected  = "gmail_not_connected"
	ErrCodeUpstream          = "upstream_error"
	ErrCodeTooManyRequests   = "too_many_requests"
	ErrCodeInternalError     = "internal_error"
)

// ErrorResponse is the body of every non-2xx API response.
// swagger:model ErrorResponse
type ErrorResponse struct {
	Error       string                  `json:"error"`
	Code        string                  `json:"code"`
	Details     string                  `json:"details,omitempty"`
	Reauthorize bool                    `json:"reauthorize,omitempty"`
	Results     *domain.BulkEmailResult `json:"results,omitempty"`
}

// SuccessResponse is returned by endpoints that only acknowledge an action.
// swagger:model SuccessResponse
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// WriteJSON sets Content-Type to application/json, writes statusCode and encodes v.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteJSONError writes an ErrorResponse with the given code and message.
func WriteJSONError(w http.ResponseWriter, statusCode int, code, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// WriteJSONErrorDetails writes an ErrorResponse carrying details.
func WriteJSONErrorDetails(w http.ResponseWriter, statusCode int, code, message, details string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code, Details: details})
}

// WriteServiceError maps a service error to a status code and body. Unexpected errors are
// logged and reported as 500 without their text.
func WriteServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	// A cascade wraps the failing stage's error; the stage matters more than its cause.
	var cascade *domain.CascadeError
	if errors.As(err, &cascade) {
		logger.ErrorContext(r.Context(), "delete cascade stopped", "path", r.URL.Path, "stage", cascade.Stage, "err", cascade.Err)
		WriteJSONErrorDetails(w, http.StatusInternalServerError, ErrCodeInternalError, "delete incomplete", "stopped at stage: "+cascade.Stage)
		return
	}
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		WriteJSONErrorDetails(w, http.StatusBadRequest, ErrCodeBadRequest, "validation failed", err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		WriteJSONError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		WriteJSONError(w, http.StatusForbidden, ErrCodeForbidden, "forbidden")
	case errors.Is(err, domain.ErrNotFound):
		WriteJSONError(w, http.StatusNotFound, ErrCodeNotFound, "not found")
	case errors.Is(err, domain.ErrDuplicateRSVP):
		WriteJSONError(w, http.StatusConflict, ErrCodeDuplicateRSVP, "you have already RSVP'd to this event")
	case errors.Is(err, domain.ErrTicketUnavailable):
		WriteJSONError(w, http.StatusConflict, ErrCodeTicketUnavailable, "ticket is no longer available")
	case errors.Is(err, domain.ErrRSVPCreation):
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		WriteJSONError(w, http.StatusInternalServerError, ErrCodeRSVPCreation, "failed to create rsvp")
	case errors.Is(err, domain.ErrMailGrantRevoked):
		WriteReauthorize(w, nil)
	case errors.Is(err, domain.ErrMailNotConnected):
		WriteJSONErrorDetails(w, http.StatusBadRequest, ErrCodeMailNotConnected, "gmail account not connected", "connect Gmail before sending emails")
	case errors.Is(err, domain.ErrUpstream):
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		WriteJSONError(w, http.StatusBadGateway, ErrCodeUpstream, "upstream service error")
	default:
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		WriteJSONError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
	}
}

// WriteReauthorize tells the client to reconnect Gmail. results carries whatever a bulk send
// delivered before the grant was rejected and may be nil.
func WriteReauthorize(w http.ResponseWriter, results *domain.BulkEmailResult) {
	WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
		Error:       "gmail authorization expired or was revoked",
		Code:        ErrCodeReauthorize,
		Details:     "reconnect your Gmail account and try again",
		Reauthorize: true,
		Results:     results,
	})
}
