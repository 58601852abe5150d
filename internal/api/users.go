package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/taskledger/internal/audit"
	"github.com/nerrad567/taskledger/internal/events"
)

// Messages for the account endpoints.
const (
	msgUserUpdated  = "User updated successfully."
	msgUserRemoved  = "User removed successfully."
	msgUserNotFound = "User not found."
)

// updateUserRequest is the body of PUT /users/update. Empty fields are
// left unchanged.
type updateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleListUsers returns every account. Password hashes are never serialised.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.auth.ListAccounts(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, msgUserNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": accounts,
		"count": len(accounts),
	})
}

// handleCurrentUser returns the caller's own account.
func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	account, err := s.auth.CurrentAccount(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, msgUserNotFound)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// handleUpdateCurrentUser changes the caller's own username and/or password.
func (s *Server) handleUpdateCurrentUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := s.auth.UpdateAccount(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err, msgUserNotFound)
		return
	}

	changed := map[string]any{
		"username_changed": req.Username != "",
		"password_changed": req.Password != "",
	}
	s.logger.Info("account updated", "account_id", account.ID)
	s.auditLog(audit.ActionUpdate, audit.EntityAccount, account.ID, account.ID, changed)
	s.publish(r, events.New(events.EntityAccount, events.ActionUpdate, account.ID, account.ID, changed))

	writeJSON(w, http.StatusOK, map[string]any{
		"message": msgUserUpdated,
		"user":    account,
	})
}

// handleDeleteUser removes another account and, by cascade, its tasks.
// Callers cannot delete themselves.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")
	caller := identity(r)

	if err := s.auth.DeleteAccount(r.Context(), targetID); err != nil {
		s.writeServiceError(w, r, err, msgUserNotFound)
		return
	}

	s.logger.Info("account removed", "account_id", targetID, "removed_by", caller.AccountID)
	s.auditLog(audit.ActionDelete, audit.EntityAccount, targetID, caller.AccountID, nil)
	s.publish(r, events.New(events.EntityAccount, events.ActionDelete, caller.AccountID, targetID, nil))
	s.hub.Disconnect(targetID)

	writeMessage(w, http.StatusOK, msgUserRemoved)
}
