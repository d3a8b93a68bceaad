// Package database opens the SQLite file backing the transaction
// journal.
//
// This package manages:
//   - Opening the journal database with WAL mode and busy timeout
//   - A single pinned connection (the journal is an append log with
//     one writer)
//   - Corruption-aware health checks via PRAGMA quick_check
//
// The journal bootstraps its own table on startup, so there is no
// migration machinery here.
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
package database
