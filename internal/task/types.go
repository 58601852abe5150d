package task

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// maxNameLength is the maximum task name length in characters.
const maxNameLength = 255

// Task is a single to-do item owned by one account.
type Task struct {
	ID         string    `json:"task_id"`
	OwnerID    string    `json:"owner_id"`
	Name       string    `json:"task_name"`
	IsComplete bool      `json:"task_is_complete"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ListFilter narrows a task listing. A nil Done returns every task.
type ListFilter struct {
	Done *bool
}

// Sentinel errors for task operations.
var (
	// ErrTaskNotFound is returned both for missing tasks and for tasks
	// owned by another account.
	ErrTaskNotFound = errors.New("task not found")

	ErrInvalidName = errors.New("task name must be 1-255 characters")
)

// normaliseName trims surrounding whitespace and validates length.
func normaliseName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return "", ErrInvalidName
	}
	return name, nil
}
