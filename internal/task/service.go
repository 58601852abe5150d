package task

import (
	"context"

	"github.com/nerrad567/taskledger/internal/auth"
)

// Service applies the authorization filter to every task operation before
// it reaches the repository.
type Service struct {
	repo   Repository
	filter auth.Filter
}

// NewService creates a task service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, filter: auth.NewFilter()}
}

// List returns the caller's tasks, optionally filtered by completion.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Task, error) {
	id, err := s.filter.Identify(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, s.filter.Owned(id), filter)
}

// ListDone returns the caller's completed tasks.
func (s *Service) ListDone(ctx context.Context) ([]Task, error) {
	done := true
	return s.List(ctx, ListFilter{Done: &done})
}

// Get returns one of the caller's tasks.
func (s *Service) Get(ctx context.Context, taskID string) (*Task, error) {
	id, err := s.filter.Identify(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, s.filter.Owned(id), taskID)
}

// Create adds a task owned by the caller. The owner always comes from the
// caller's identity.
func (s *Service) Create(ctx context.Context, name string) (*Task, error) {
	id, err := s.filter.Identify(ctx)
	if err != nil {
		return nil, err
	}
	name, err = normaliseName(name)
	if err != nil {
		return nil, err
	}

	t := &Task{OwnerID: s.filter.AssignOwner(id), Name: name}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Update sets the name and completion flag of the caller's task taskID.
// A task that is missing or owned by someone else returns ErrTaskNotFound.
func (s *Service) Update(ctx context.Context, taskID, name string, isComplete bool) (*Task, error) {
	id, err := s.filter.Identify(ctx)
	if err != nil {
		return nil, err
	}
	name, err = normaliseName(name)
	if err != nil {
		return nil, err
	}
	if taskID == "" {
		return nil, ErrTaskNotFound
	}

	owner := s.filter.Owned(id)
	t := &Task{ID: taskID, OwnerID: owner.OwnerID, Name: name, IsComplete: isComplete}
	if err := s.repo.Update(ctx, owner, t); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, owner, taskID)
}

// DeleteByName removes every task of the caller named name and returns
// them. No match, including a match owned by someone else, returns
// ErrTaskNotFound.
func (s *Service) DeleteByName(ctx context.Context, name string) ([]Task, error) {
	id, err := s.filter.Identify(ctx)
	if err != nil {
		return nil, err
	}
	name, err = normaliseName(name)
	if err != nil {
		return nil, err
	}
	return s.repo.DeleteByName(ctx, s.filter.Owned(id), name)
}
