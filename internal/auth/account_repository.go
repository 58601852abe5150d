package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/taskledger/internal/infrastructure/database"
)

// AccountRepository defines the interface for account persistence.
type AccountRepository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	List(ctx context.Context) ([]Account, error)
	Update(ctx context.Context, account *Account) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// SQLiteAccountRepository implements AccountRepository using SQLite.
type SQLiteAccountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a new SQLite-backed account repository.
func NewAccountRepository(db *sql.DB) *SQLiteAccountRepository {
	return &SQLiteAccountRepository{db: db}
}

const accountColumns = "id, username, password_hash, created_at, updated_at"

// maxIDAttempts bounds regeneration of a colliding generated ID.
const maxIDAttempts = 3

// Create inserts a new account. The ID is generated if empty and
// regenerated on collision. A taken username returns ErrUsernameExists;
// a caller-supplied ID that is already in use returns ErrAccountIDExists.
func (r *SQLiteAccountRepository) Create(ctx context.Context, account *Account) error {
	generated := account.ID == ""

	now := time.Now().UTC().Truncate(time.Second)
	account.CreatedAt = now
	account.UpdatedAt = now

	for attempt := 1; ; attempt++ {
		if generated {
			account.ID = newAccountID()
		}

		_, err := r.db.ExecContext(ctx,
			`INSERT INTO accounts (id, username, password_hash, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			account.ID, account.Username, account.PasswordHash,
			now.Format(time.RFC3339), now.Format(time.RFC3339),
		)
		switch {
		case err == nil:
			return nil
		case database.IsUniqueViolation(err):
			return ErrUsernameExists
		case database.IsPrimaryKeyViolation(err):
			if !generated {
				return ErrAccountIDExists
			}
			if attempt >= maxIDAttempts {
				return fmt.Errorf("creating account: %w", ErrAccountIDExists)
			}
		default:
			return fmt.Errorf("creating account: %w", err)
		}
	}
}

var newAccountID = func() string {
	return "usr-" + uuid.NewString()
}

// GetByID retrieves an account by ID.
func (r *SQLiteAccountRepository) GetByID(ctx context.Context, id string) (*Account, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)
	return scanAccount(row)
}

// GetByUsername retrieves an account by username.
func (r *SQLiteAccountRepository) GetByUsername(ctx context.Context, username string) (*Account, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE username = ?", username)
	return scanAccount(row)
}

// List returns all accounts ordered by creation date.
func (r *SQLiteAccountRepository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM accounts ORDER BY created_at ASC, username ASC")
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	accounts := []Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}
	return accounts, nil
}

// Update writes username and password hash for account.ID.
func (r *SQLiteAccountRepository) Update(ctx context.Context, account *Account) error {
	now := time.Now().UTC().Truncate(time.Second)

	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET username = ?, password_hash = ?, updated_at = ? WHERE id = ?`,
		account.Username, account.PasswordHash, now.Format(time.RFC3339), account.ID,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrUsernameExists
		}
		return fmt.Errorf("updating account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking updated rows: %w", err)
	}
	if rows == 0 {
		return ErrAccountNotFound
	}
	account.UpdatedAt = now
	return nil
}

// Delete removes an account. Its tasks go with it (ON DELETE CASCADE).
func (r *SQLiteAccountRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking deleted rows: %w", err)
	}
	if rows == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Count returns the total number of accounts.
func (r *SQLiteAccountRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting accounts: %w", err)
	}
	return count, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*Account, error) {
	var a Account
	var createdAt, updatedAt string

	if err := s.Scan(&a.ID, &a.Username, &a.PasswordHash, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("scanning account: %w", err)
	}

	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled
	return &a, nil
}
