// Package logging provides structured logging for taskledger.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("signup", "account_id", acct.ID)
//	logger.Error("failed to list tasks", "error", err)
//
// # Security
//
// Never log passwords, password hashes, session tokens or the JWT secret.
// Log account IDs rather than usernames where possible.
package logging
