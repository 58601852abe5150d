package api

import (
	"errors"
	"net/http"

	"github.com/nerrad567/taskledger/internal/audit"
	"github.com/nerrad567/taskledger/internal/auth"
	"github.com/nerrad567/taskledger/internal/events"
)

// Success messages for the auth endpoints.
const (
	msgSignupOK = "Sign Up Successful!"
	msgLoginOK  = "Login Success!"
	msgLogoutOK = "Logout Success!"
)

// Auth attempt outcomes reported to metrics and telemetry.
const (
	outcomeSuccess            = "success"
	outcomeInvalidCredentials = "invalid_credentials"
	outcomeConflict           = "conflict"
	outcomeInvalidRequest     = "invalid_request"
	outcomeError              = "error"
)

// credentialsRequest is the body of POST /auth/signup and /auth/login.
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleSignup creates an account. It does not log the caller in.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := s.auth.Signup(r.Context(), req.Username, req.Password)
	s.recordAuthAttempt(audit.ActionSignup, err)
	if err != nil {
		s.writeServiceError(w, r, err, msgUserNotFound)
		return
	}

	s.logger.Info("account created", "account_id", account.ID, "username", account.Username)
	s.auditLog(audit.ActionSignup, audit.EntityAccount, account.ID, account.ID, map[string]any{
		"username": account.Username,
	})
	s.publish(r, events.New(events.EntityAccount, events.ActionSignup, account.ID, account.ID, nil))

	writeMessage(w, http.StatusCreated, msgSignupOK)
}

// handleLogin verifies credentials and sets the session cookie. Unknown
// usernames and wrong passwords get the same 401 and no cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, token, err := s.auth.Login(r.Context(), req.Username, req.Password)
	s.recordAuthAttempt(audit.ActionLogin, err)
	if err != nil {
		s.writeServiceError(w, r, err, msgLoginFailed)
		return
	}

	http.SetCookie(w, s.sessions.IssueCookie(token))

	s.logger.Info("login succeeded", "account_id", account.ID)
	s.auditLog(audit.ActionLogin, audit.EntityAccount, account.ID, account.ID, nil)
	s.publish(r, events.New(events.EntityAccount, events.ActionLogin, account.ID, account.ID, nil))

	writeMessage(w, http.StatusOK, msgLoginOK)
}

// handleLogout clears the session cookie. It succeeds with or without a
// valid session; a valid one is attributed in the audit trail.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, s.sessions.ClearCookie())

	if id, err := s.sessions.Resolve(r); err == nil {
		s.auditLog(audit.ActionLogout, audit.EntityAccount, id.AccountID, id.AccountID, nil)
		s.publish(r, events.New(events.EntityAccount, events.ActionLogout, id.AccountID, id.AccountID, nil))
	}

	writeMessage(w, http.StatusOK, msgLogoutOK)
}

// recordAuthAttempt reports a signup or login outcome to Prometheus and,
// when configured, InfluxDB.
func (s *Server) recordAuthAttempt(action string, err error) {
	outcome := authOutcome(err)
	s.metrics.ObserveAuthAttempt(action, outcome)
	if s.telemetry != nil {
		s.telemetry.WriteAuthAttempt(action, outcome)
	}
}

func authOutcome(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, auth.ErrInvalidCredentials):
		return outcomeInvalidCredentials
	case errors.Is(err, auth.ErrUsernameExists):
		return outcomeConflict
	case isValidationError(err):
		return outcomeInvalidRequest
	default:
		return outcomeError
	}
}

// publish hands e to the configured event sinks.
func (s *Server) publish(r *http.Request, e events.Event) {
	s.events.Publish(r.Context(), e)
}

// identity returns the caller resolved by authMiddleware.
func identity(r *http.Request) auth.Identity {
	id, _ := auth.IdentityFromContext(r.Context()) //nolint:errcheck // zero identity is rejected by the services
	return id
}
