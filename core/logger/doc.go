// Package logger provides a structured logging facility based on Zap.
//
// It offers a configured logger instance that supports different environments
// (development vs production).
//
// # Configuration
//
// The package supports configuration for:
//   - Level: debug, info, warn, error
//   - Format: json or console
//
// The debug level selects Zap's development configuration (ISO8601 timestamps,
// caller info); every other level uses the production configuration.
//
// # Usage
//
//	log, _ := logger.New(&logger.Config{Level: "info"})
//	log.Info("Sync started")
//
//	// Scope entries to a table:
//	l := logger.WithTable(log, "users", "id")
//	l.Error("Sync failed", zap.Error(err))
package logger
