package auth

import (
	"errors"
	"regexp"
	"time"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// maxUsernameLength is the maximum allowed username length.
const maxUsernameLength = 64

// IsValidUsername checks if a username meets format requirements.
// Usernames must be 1-64 characters, alphanumeric with dots, hyphens, underscores.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// Account is a registered user. Every task belongs to exactly one account.
type Account struct {
	ID           string    `json:"user_id"`
	Username     string    `json:"user_name"`
	PasswordHash string    `json:"-"` // never serialised
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity is the verified subject of one request, reconstructed from a
// session token. It is passed by value and never persisted.
type Identity struct {
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
}

// IsZero reports whether the identity is empty.
func (id Identity) IsZero() bool {
	return id.AccountID == ""
}

// IdentityOf returns the identity for an account.
func IdentityOf(a *Account) Identity {
	return Identity{AccountID: a.ID, Username: a.Username}
}

// Sentinel errors for auth operations.
var (
	// ErrInvalidCredentials covers both an unknown username and a wrong
	// password so callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrUnauthenticated  = errors.New("authentication required")
	ErrInvalidToken     = errors.New("invalid token")
	ErrAccountNotFound  = errors.New("account not found")
	ErrForbidden        = errors.New("operation not permitted")
	ErrUsernameExists   = errors.New("username already exists")
	ErrAccountIDExists  = errors.New("account id already exists")
	ErrInvalidUsername  = errors.New("username must be 1-64 characters: letters, digits, '.', '_' or '-'")
	ErrPasswordRequired = errors.New("password is required")
	ErrPasswordTooLong  = errors.New("password must be at most 72 bytes")
	ErrNoChanges        = errors.New("nothing to update")
)
