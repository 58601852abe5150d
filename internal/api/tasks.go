package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/taskledger/internal/audit"
	"github.com/nerrad567/taskledger/internal/events"
	"github.com/nerrad567/taskledger/internal/task"
)

// Messages for the task endpoints.
const (
	msgTaskCreated        = "Task created successfully!"
	msgTaskUpdated        = "Task updated successfully!"
	msgTaskDeleted        = "Task deleted successfully!"
	msgTaskUpdateNotFound = "Task not found. Failed to update."
	msgTaskDeleteNotFound = "Task not found. Deletion failed."
	msgTaskNotFound       = "Task not found."
)

// ─── Request Types ─────────────────────────────────────────────────

type createTaskRequest struct {
	Name string `json:"task_name"`
}

type updateTaskRequest struct {
	ID         string `json:"task_id"`
	Name       string `json:"task_name"`
	IsComplete bool   `json:"task_is_complete"`
}

type deleteTaskRequest struct {
	Name string `json:"task_name"`
}

// ─── Handlers ──────────────────────────────────────────────────────

// handleListTasks returns the caller's tasks.
//
// Query parameters:
//   - done: true or false to filter by completion
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	var filter task.ListFilter
	if v := r.URL.Query().Get("done"); v != "" {
		done, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "done must be true or false")
			return
		}
		filter.Done = &done
	}

	tasks, err := s.tasks.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err, msgTaskNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// handleListDoneTasks returns the caller's completed tasks.
func (s *Server) handleListDoneTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.ListDone(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, msgTaskNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// handleGetTask returns one of the caller's tasks.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err, msgTaskNotFound)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// handleCreateTask creates a task owned by the caller.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := s.tasks.Create(r.Context(), req.Name)
	if err != nil {
		s.writeServiceError(w, r, err, msgTaskNotFound)
		return
	}

	s.taskChanged(r, events.ActionCreate, t)

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": msgTaskCreated,
		"task":    t,
	})
}

// handleUpdateTask renames and/or completes one of the caller's tasks.
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req updateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := s.tasks.Update(r.Context(), req.ID, req.Name, req.IsComplete)
	if err != nil {
		s.writeServiceError(w, r, err, msgTaskUpdateNotFound)
		return
	}

	s.taskChanged(r, events.ActionUpdate, t)

	writeJSON(w, http.StatusOK, map[string]any{
		"message": msgTaskUpdated,
		"task":    t,
	})
}

// handleDeleteTask deletes every task of the caller with the given name.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	var req deleteTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	deleted, err := s.tasks.DeleteByName(r.Context(), req.Name)
	if err != nil {
		s.writeServiceError(w, r, err, msgTaskDeleteNotFound)
		return
	}

	for i := range deleted {
		s.taskChanged(r, events.ActionDelete, &deleted[i])
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": msgTaskDeleted,
		"deleted": len(deleted),
	})
}

// taskChanged records a task mutation in the audit trail and the event sinks.
func (s *Server) taskChanged(r *http.Request, action string, t *task.Task) {
	details := map[string]any{
		"task_name":        t.Name,
		"task_is_complete": t.IsComplete,
	}
	s.auditLog(action, audit.EntityTask, t.ID, t.OwnerID, details)
	s.publish(r, events.New(events.EntityTask, action, t.OwnerID, t.ID, details))
}
