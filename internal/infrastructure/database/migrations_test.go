package database

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"
)

// testMigrations is a two-step schema used by the migration tests.
var testMigrations = fstest.MapFS{
	"sql/20260118_120000_create_test_users.up.sql": {Data: []byte(
		"CREATE TABLE test_users (id TEXT PRIMARY KEY, name TEXT NOT NULL);",
	)},
	"sql/20260118_120000_create_test_users.down.sql": {Data: []byte(
		"DROP TABLE test_users;",
	)},
	"sql/20260119_090000_add_email.up.sql": {Data: []byte(
		"ALTER TABLE test_users ADD COLUMN email TEXT;",
	)},
	"sql/README.md": {Data: []byte("ignored")},
}

// useMigrations registers fsys for the duration of the test.
func useMigrations(t *testing.T, fsys fs.FS, dir string) {
	t.Helper()
	RegisterMigrations(fsys, dir)
	t.Cleanup(func() { RegisterMigrations(nil, ".") })
}

func TestMigrate(t *testing.T) {
	useMigrations(t, testMigrations, "sql")
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	if _, err := db.ExecContext(ctx,
		"INSERT INTO test_users (id, name, email) VALUES ('u1', 'alice', 'a@example.com')",
	); err != nil {
		t.Fatalf("insert after migrate: %v", err)
	}

	// Second run is a no-op.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	status, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(status.Applied) != 2 {
		t.Errorf("applied = %d, want 2", len(status.Applied))
	}
	if len(status.Pending) != 0 {
		t.Errorf("pending = %d, want 0", len(status.Pending))
	}
	if status.Applied[0].AppliedAt.IsZero() {
		t.Error("AppliedAt should be parsed")
	}
}

func TestMigrate_FailureStopsAtBadVersion(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20260101_000000_good.up.sql":  {Data: []byte("CREATE TABLE good (id INTEGER);")},
		"20260102_000000_bad.up.sql":   {Data: []byte("THIS IS NOT SQL;")},
		"20260103_000000_later.up.sql": {Data: []byte("CREATE TABLE later (id INTEGER);")},
	}, ".")
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err == nil {
		t.Fatal("Migrate() should fail on invalid SQL")
	}

	status, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(status.Applied) != 1 || status.Applied[0].Version != "20260101_000000" {
		t.Errorf("applied = %+v, want only 20260101_000000", status.Applied)
	}
	if len(status.Pending) != 2 {
		t.Errorf("pending = %d, want 2", len(status.Pending))
	}
}

func TestMigrateDown(t *testing.T) {
	useMigrations(t, testMigrations, "sql")
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	// Latest migration has no down file.
	err := db.MigrateDown(ctx)
	if !errors.Is(err, ErrNoDownMigration) {
		t.Fatalf("MigrateDown() error = %v, want ErrNoDownMigration", err)
	}
}

func TestMigrateDown_RemovesLatest(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20260118_120000_create_test_users.up.sql":   testMigrations["sql/20260118_120000_create_test_users.up.sql"],
		"20260118_120000_create_test_users.down.sql": testMigrations["sql/20260118_120000_create_test_users.down.sql"],
	}, ".")
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	var name string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='test_users'",
	).Scan(&name)
	if err == nil {
		t.Error("test_users should be dropped after MigrateDown")
	}

	status, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(status.Applied) != 0 || len(status.Pending) != 1 {
		t.Errorf("status = %d applied / %d pending, want 0 / 1", len(status.Applied), len(status.Pending))
	}

	// Nothing applied: no-op.
	if err := db.MigrateDown(ctx); err != nil {
		t.Errorf("MigrateDown() on empty history error = %v", err)
	}
}

func TestMigrate_NoSource(t *testing.T) {
	useMigrations(t, nil, ".")
	db := openTestDB(t)

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() without source error = %v", err)
	}
}

func TestMigrate_DownWithoutUp(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20260101_000000_orphan.down.sql": {Data: []byte("DROP TABLE x;")},
	}, ".")
	db := openTestDB(t)

	if err := db.Migrate(context.Background()); err == nil {
		t.Fatal("Migrate() should reject a down file without an up file")
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantUp      bool
		wantOK      bool
	}{
		{"20260118_120000_initial_schema.up.sql", "20260118_120000", "initial_schema", true, true},
		{"20260118_120000_initial_schema.down.sql", "20260118_120000", "initial_schema", false, true},
		{"20260118_120000.up.sql", "20260118_120000", "20260118_120000", true, true},
		{"20260118_120000_add_owner_index.up.sql", "20260118_120000", "add_owner_index", true, true},
		{"20260118.up.sql", "", "", false, false},
		{"20260118_120000_schema.sql", "", "", false, false},
		{"README.md", "", "", false, false},
		{"_120000_x.up.sql", "", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("parseMigrationFilename(%q) ok = %v, want %v", tt.filename, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got.version != tt.wantVersion {
				t.Errorf("version = %q, want %q", got.version, tt.wantVersion)
			}
			if got.name != tt.wantName {
				t.Errorf("name = %q, want %q", got.name, tt.wantName)
			}
			if got.up != tt.wantUp {
				t.Errorf("up = %v, want %v", got.up, tt.wantUp)
			}
		})
	}
}
