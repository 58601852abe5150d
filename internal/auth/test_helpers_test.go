package auth

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nerrad567/taskledger/internal/infrastructure/database"
	_ "github.com/nerrad567/taskledger/migrations" // registers the schema
)

const testSecret = "test-secret-key-for-jwt-signing-32b"

// testSettings returns fast settings: minimum bcrypt cost, one-hour TTL.
func testSettings() Settings {
	return Settings{
		Secret:              []byte(testSecret),
		TokenTTL:            time.Hour,
		CookieName:          DefaultCookieName,
		PasswordAlgorithm:   "bcrypt",
		BcryptCost:          bcrypt.MinCost,
		MaxConcurrentHashes: 2,
	}
}

// testDB opens a migrated SQLite database in a temp directory.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{
		Path:        filepath.Join(t.TempDir(), "auth-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	require.NoError(t, db.Migrate(context.Background()))
	return db.DB
}

// testService wires a Service against a fresh database.
func testService(t *testing.T) (*Service, *SQLiteAccountRepository) {
	t.Helper()

	repo := NewAccountRepository(testDB(t))
	codec, err := NewTokenCodec(testSettings())
	require.NoError(t, err)
	return NewService(repo, NewCredentialManager(testSettings()), codec), repo
}

// seedAccount creates an account with password "test-password".
func seedAccount(t *testing.T, svc *Service, username string) *Account {
	t.Helper()

	acct, err := svc.Signup(context.Background(), username, "test-password")
	require.NoError(t, err)
	return acct
}

// as returns a context carrying the identity of a.
func as(a *Account) context.Context {
	return WithIdentity(context.Background(), IdentityOf(a))
}
