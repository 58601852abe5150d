package task

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/taskledger/internal/auth"
	"github.com/nerrad567/taskledger/internal/infrastructure/database"
	_ "github.com/nerrad567/taskledger/migrations" // registers the schema
)

// testDB opens a migrated SQLite database seeded with accounts alice and bob.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{
		Path:        filepath.Join(t.TempDir(), "task-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	require.NoError(t, db.Migrate(context.Background()))

	_, err = db.Exec(`
		INSERT INTO accounts (id, username, password_hash, created_at, updated_at) VALUES
			('usr-alice', 'alice', 'x', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z'),
			('usr-bob',   'bob',   'x', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z');
	`)
	require.NoError(t, err)
	return db.DB
}

var (
	alice = auth.Identity{AccountID: "usr-alice", Username: "alice"}
	bob   = auth.Identity{AccountID: "usr-bob", Username: "bob"}
)

func as(id auth.Identity) context.Context {
	return auth.WithIdentity(context.Background(), id)
}

func owned(id auth.Identity) auth.OwnerPredicate {
	return auth.NewFilter().Owned(id)
}

func names(tasks []Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Name)
	}
	return out
}
