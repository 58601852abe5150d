package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/taskledger/internal/auth"
	"github.com/nerrad567/taskledger/internal/task"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeForbidden      = "forbidden"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeMessage writes a {"message": ...} success body.
func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeValidationError writes a 400 response for rejected input values.
func writeValidationError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeValidation, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeConflict writes a 409 error response.
func writeConflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, ErrCodeConflict, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// Client-facing messages for service failures.
const (
	msgLoginFailed    = "User not found. Please Sign Up first."
	msgAuthRequired   = "authentication required"
	msgSelfDelete     = "you cannot delete your own account"
	msgUsernameTaken  = "username already exists"
	msgInternalFailed = "internal server error"
)

// isValidationError reports whether err is a rejected input value.
func isValidationError(err error) bool {
	return errors.Is(err, auth.ErrInvalidUsername) ||
		errors.Is(err, auth.ErrPasswordRequired) ||
		errors.Is(err, auth.ErrPasswordTooLong) ||
		errors.Is(err, auth.ErrNoChanges) ||
		errors.Is(err, task.ErrInvalidName)
}

// writeServiceError maps a service error to its HTTP response. notFound is
// the message used for a missing (or not owned) resource. Unclassified
// errors are logged with their cause and answered with a generic 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeUnauthorized(w, msgLoginFailed)
	case auth.IsAuthError(err):
		writeUnauthorized(w, msgAuthRequired)
	case errors.Is(err, task.ErrTaskNotFound), errors.Is(err, auth.ErrAccountNotFound):
		writeNotFound(w, notFound)
	case errors.Is(err, auth.ErrForbidden):
		writeForbidden(w, msgSelfDelete)
	case errors.Is(err, auth.ErrUsernameExists):
		writeConflict(w, msgUsernameTaken)
	case isValidationError(err):
		writeValidationError(w, err.Error())
	default:
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeInternalError(w, msgInternalFailed)
	}
}

// decodeJSON decodes the request body into v, answering 400 on failure.
// It reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}
