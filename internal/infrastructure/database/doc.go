// Package database provides SQLite connectivity for taskledger.
//
// This package manages:
//   - Connection setup with WAL mode, busy timeout and foreign keys
//   - Versioned schema migrations registered from an fs.FS
//   - Transaction helpers and constraint error classification
//
// Security Considerations:
//   - All queries use parameterised statements
//   - The database file is restricted to 0600
//   - Password hashes are stored, never plaintext
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. The migrations package embeds them and
// registers them with RegisterMigrations at init.
package database
