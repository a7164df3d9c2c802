// Package database provides SQLite database connectivity for Facegate Core.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Embedded, versioned schema migrations
//   - Connection lifecycle and health checks
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// The jobs table managed through this connection is the single source of
// truth between the schedule expander, job dispatcher, and failure requeuer;
// no in-memory job state is shared between those loops.
package database
