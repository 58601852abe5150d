package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"
	"time"
)

// migrationSuffixUp and migrationSuffixDown mark the direction of a file.
// Files are named YYYYMMDD_HHMMSS_description.{up,down}.sql.
const (
	migrationSuffixUp   = ".up.sql"
	migrationSuffixDown = ".down.sql"
)

// ErrNoDownMigration is returned by MigrateDown when the latest applied
// migration has no .down.sql file.
var ErrNoDownMigration = errors.New("migration has no down SQL")

// source is the registered migration filesystem.
var (
	sourceMu  sync.RWMutex
	sourceFS  fs.FS
	sourceDir = "."
)

// RegisterMigrations sets the filesystem Migrate reads from.
// The migrations package calls it from init with its embedded files.
//
//	//go:embed *.sql
//	var files embed.FS
//
//	func init() { database.RegisterMigrations(files, ".") }
func RegisterMigrations(fsys fs.FS, dir string) {
	sourceMu.Lock()
	defer sourceMu.Unlock()
	sourceFS = fsys
	if dir == "" {
		dir = "."
	}
	sourceDir = dir
}

// Migration is one versioned schema change.
type Migration struct {
	// Version is the YYYYMMDD_HHMMSS prefix of the filename.
	Version string

	// Name is the description part of the filename.
	Name string

	UpSQL   string
	DownSQL string
}

// MigrationRecord is a row in the schema_migrations table.
type MigrationRecord struct {
	Version   string
	AppliedAt time.Time
}

// MigrationStatus summarises which migrations are applied and pending.
type MigrationStatus struct {
	Applied []MigrationRecord
	Pending []Migration
}

// Migrate applies every pending migration in version order.
//
// Each migration runs in its own transaction. If one fails, earlier ones
// stay committed and later ones are not attempted; re-running Migrate
// after a fix resumes from the failed version.
func (db *DB) Migrate(ctx context.Context) error {
	if err := db.ensureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	status, err := db.MigrationStatus(ctx)
	if err != nil {
		return err
	}

	for _, m := range status.Pending {
		if err := db.WithTx(ctx, func(tx *sql.Tx) error {
			return applyMigration(ctx, tx, m)
		}); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// MigrateDown rolls back the most recently applied migration.
// It is a no-op when nothing has been applied.
func (db *DB) MigrateDown(ctx context.Context) error {
	if err := db.ensureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return nil
	}
	latest := applied[len(applied)-1]

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	idx := slices.IndexFunc(migrations, func(m Migration) bool { return m.Version == latest.Version })
	if idx < 0 {
		return fmt.Errorf("migration %s not found in filesystem", latest.Version)
	}
	m := migrations[idx]
	if m.DownSQL == "" {
		return fmt.Errorf("%w: %s", ErrNoDownMigration, m.Version)
	}

	return db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, m.DownSQL); err != nil {
			return fmt.Errorf("executing down SQL: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM schema_migrations WHERE version = ?", m.Version,
		); err != nil {
			return fmt.Errorf("removing migration record: %w", err)
		}
		return nil
	})
}

// MigrationStatus reports applied and pending migrations.
// The operator CLI prints it for "migrate status".
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - MigrationStatus: Applied records and pending migrations, oldest first
//   - error: If the migration table or files cannot be read
func (db *DB) MigrationStatus(ctx context.Context) (MigrationStatus, error) {
	if err := db.ensureMigrationsTable(ctx); err != nil {
		return MigrationStatus{}, fmt.Errorf("creating migrations table: %w", err)
	}

	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return MigrationStatus{}, err
	}

	migrations, err := loadMigrations()
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("loading migrations: %w", err)
	}

	done := make(map[string]struct{}, len(applied))
	for _, r := range applied {
		done[r.Version] = struct{}{}
	}

	status := MigrationStatus{Applied: applied}
	for _, m := range migrations {
		if _, ok := done[m.Version]; !ok {
			status.Pending = append(status.Pending, m)
		}
	}
	return status, nil
}

func (db *DB) ensureMigrationsTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

func (db *DB) appliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT version, applied_at FROM schema_migrations ORDER BY version",
	)
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var r MigrationRecord
		var appliedAt string
		if err := rows.Scan(&r.Version, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		r.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt) //nolint:errcheck // written by applyMigration
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating migrations: %w", err)
	}
	return records, nil
}

func applyMigration(ctx context.Context, tx *sql.Tx, m Migration) error {
	if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.Version,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return nil
}

// loadMigrations reads the registered filesystem and returns migrations
// sorted oldest first. An unregistered source yields no migrations.
func loadMigrations() ([]Migration, error) {
	sourceMu.RLock()
	fsys, dir := sourceFS, sourceDir
	sourceMu.RUnlock()

	if fsys == nil {
		return nil, nil
	}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations dir %q: %w", dir, err)
	}

	byVersion := make(map[string]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		file, ok := parseMigrationFilename(entry.Name())
		if !ok {
			continue
		}

		body, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		m, exists := byVersion[file.version]
		if !exists {
			m = &Migration{Version: file.version, Name: file.name}
			byVersion[file.version] = m
		}
		if file.up {
			m.UpSQL = string(body)
		} else {
			m.DownSQL = string(body)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" {
			return nil, fmt.Errorf("migration %s has a down file but no up file", m.Version)
		}
		migrations = append(migrations, *m)
	}
	slices.SortFunc(migrations, func(a, b Migration) int {
		return strings.Compare(a.Version, b.Version)
	})
	return migrations, nil
}

// migrationFile is a parsed migration filename.
type migrationFile struct {
	version string
	name    string
	up      bool
}

// parseMigrationFilename splits "20260118_120000_initial_schema.up.sql" into
// version "20260118_120000", name "initial_schema" and direction up.
func parseMigrationFilename(filename string) (migrationFile, bool) {
	var f migrationFile
	var base string
	switch {
	case strings.HasSuffix(filename, migrationSuffixUp):
		f.up = true
		base = strings.TrimSuffix(filename, migrationSuffixUp)
	case strings.HasSuffix(filename, migrationSuffixDown):
		base = strings.TrimSuffix(filename, migrationSuffixDown)
	default:
		return migrationFile{}, false
	}

	date, rest, ok := strings.Cut(base, "_")
	if !ok || date == "" {
		return migrationFile{}, false
	}
	clock, name, _ := strings.Cut(rest, "_")
	if clock == "" {
		return migrationFile{}, false
	}

	f.version = date + "_" + clock
	f.name = name
	if f.name == "" {
		f.name = f.version
	}
	return f, true
}
