package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/avermeer/droidgate/internal/runtime"
)

// Error codes surfaced in the JSON error envelope.
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeInvalidJSON       = "INVALID_JSON"
	ErrCodeRequestTooLarge   = "REQUEST_TOO_LARGE"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeCommandFailed     = "COMMAND_FAILED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// ErrorBody is the inner error object of the response envelope.
type ErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Timestamp string         `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// ErrorResponse is the JSON error envelope returned on every failure.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeErrorDetails(w, status, code, message, nil)
}

// writeErrorDetails writes a structured error response with extra details.
func writeErrorDetails(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorBody{
			Code:      code,
			Message:   message,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Details:   details,
		},
	})
}

// writeInvalidInput writes a 400 validation error naming the offending field.
func writeInvalidInput(w http.ResponseWriter, field, message string) {
	writeErrorDetails(w, http.StatusBadRequest, ErrCodeInvalidInput, message,
		map[string]any{"field": field})
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeRateLimited writes a 429 error response with the retry-after hint in
// both the header and the envelope details.
func writeRateLimited(w http.ResponseWriter, retryAfterSeconds int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	writeErrorDetails(w, http.StatusTooManyRequests, ErrCodeRateLimitExceeded,
		"rate limit exceeded",
		map[string]any{"retry_after": retryAfterSeconds})
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeRuntimeError maps a runtime command failure onto the error envelope:
// deadline overruns become TIMEOUT, nonzero exits become COMMAND_FAILED with
// the adapter's stderr and exit code in the details, anything else is
// INTERNAL_ERROR.
func (s *Server) writeRuntimeError(w http.ResponseWriter, operation string, err error) {
	if errors.Is(err, runtime.ErrTimeout) {
		s.logger.Warn("runtime command timed out", "operation", operation)
		writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout, operation+" timed out")
		return
	}

	var cmdErr *runtime.CommandError
	if errors.As(err, &cmdErr) {
		s.logger.Warn("runtime command failed",
			"operation", operation,
			"exit_code", cmdErr.ExitCode,
			"stderr", cmdErr.Stderr,
		)
		writeErrorDetails(w, http.StatusBadGateway, ErrCodeCommandFailed,
			operation+" failed",
			map[string]any{
				"exit_code": cmdErr.ExitCode,
				"stderr":    cmdErr.Stderr,
			})
		return
	}

	s.logger.Error("runtime command error", "operation", operation, "error", err)
	writeInternalError(w, operation+" failed")
}
