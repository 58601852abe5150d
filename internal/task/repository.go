package task

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/nerrad567/taskledger/internal/auth"
	"github.com/nerrad567/taskledger/internal/infrastructure/database"
)

// Repository persists tasks. Every method that touches existing rows
// takes the owner predicate and never matches rows outside it.
type Repository interface {
	List(ctx context.Context, owner auth.OwnerPredicate, filter ListFilter) ([]Task, error)
	Get(ctx context.Context, owner auth.OwnerPredicate, id string) (*Task, error)
	Create(ctx context.Context, t *Task) error
	Update(ctx context.Context, owner auth.OwnerPredicate, t *Task) error
	DeleteByName(ctx context.Context, owner auth.OwnerPredicate, name string) ([]Task, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB

	// entropy is a monotonic ULID source so IDs created in the same
	// millisecond still sort by creation order.
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewSQLiteRepository creates a new task repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:      db,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

const taskColumns = "id, owner_id, name, is_complete, created_at, updated_at"

// newID returns a "tsk-" prefixed ULID.
func (r *SQLiteRepository) newID(now time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(now), r.entropy)
	if err != nil {
		return "", fmt.Errorf("generating task id: %w", err)
	}
	return "tsk-" + id.String(), nil
}

// List returns the owner's tasks, oldest first.
func (r *SQLiteRepository) List(ctx context.Context, owner auth.OwnerPredicate, filter ListFilter) ([]Task, error) {
	conditions := []string{owner.Clause()}
	args := owner.Args()

	if filter.Done != nil {
		conditions = append(conditions, "is_complete = ?")
		args = append(args, boolToInt(*filter.Done))
	}

	query := "SELECT " + taskColumns + " FROM tasks WHERE " + //nolint:gosec // conditions are fixed strings with ? placeholders
		strings.Join(conditions, " AND ") + " ORDER BY created_at ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// Get returns one of the owner's tasks by ID.
func (r *SQLiteRepository) Get(ctx context.Context, owner auth.OwnerPredicate, id string) (*Task, error) {
	args := append([]any{id}, owner.Args()...)
	row := r.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ? AND "+owner.Clause(), args...)

	t, err := scanTask(row)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Create inserts t, generating its ID and timestamps. An owner that no
// longer exists returns an error wrapping auth.ErrUnauthenticated.
func (r *SQLiteRepository) Create(ctx context.Context, t *Task) error {
	now := time.Now().UTC().Truncate(time.Second)
	if t.ID == "" {
		id, err := r.newID(now)
		if err != nil {
			return err
		}
		t.ID = id
	}
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, owner_id, name, is_complete, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.Name, boolToInt(t.IsComplete),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			// Token outlived its account.
			return fmt.Errorf("%w: owner account no longer exists", auth.ErrUnauthenticated)
		}
		return fmt.Errorf("creating task: %w", err)
	}
	return nil
}

// Update writes name and completion for t.ID, matching both the ID and
// the owner. Zero matched rows returns ErrTaskNotFound.
func (r *SQLiteRepository) Update(ctx context.Context, owner auth.OwnerPredicate, t *Task) error {
	now := time.Now().UTC().Truncate(time.Second)

	args := append([]any{t.Name, boolToInt(t.IsComplete), now.Format(time.RFC3339), t.ID}, owner.Args()...)
	result, err := r.db.ExecContext(ctx,
		"UPDATE tasks SET name = ?, is_complete = ?, updated_at = ? WHERE id = ? AND "+owner.Clause(),
		args...,
	)
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking updated rows: %w", err)
	}
	if n == 0 {
		return ErrTaskNotFound
	}
	t.UpdatedAt = now
	return nil
}

// DeleteByName removes every task of the owner with exactly this name and
// returns the removed tasks. No match returns ErrTaskNotFound.
func (r *SQLiteRepository) DeleteByName(ctx context.Context, owner auth.OwnerPredicate, name string) ([]Task, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	args := append([]any{name}, owner.Args()...)
	rows, err := tx.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE name = ? AND "+owner.Clause(), args...)
	if err != nil {
		return nil, fmt.Errorf("selecting tasks to delete: %w", err)
	}
	deleted, err := collectTasks(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(deleted) == 0 {
		return nil, ErrTaskNotFound
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM tasks WHERE name = ? AND "+owner.Clause(), args...,
	); err != nil {
		return nil, fmt.Errorf("deleting tasks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing delete: %w", err)
	}
	return deleted, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*Task, error) {
	var t Task
	var isComplete int
	var createdAt, updatedAt string

	if err := s.Scan(&t.ID, &t.OwnerID, &t.Name, &isComplete, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("scanning task: %w", err)
	}

	t.IsComplete = isComplete != 0
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled
	return &t, nil
}

func collectTasks(rows *sql.Rows) ([]Task, error) {
	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
