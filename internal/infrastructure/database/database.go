package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	// dirPermissions restricts the database directory to owner and group.
	dirPermissions = 0750

	// filePermissions restricts the database file to the owner.
	filePermissions = 0600

	// openTimeout bounds the connectivity probe during Open.
	openTimeout = 5 * time.Second

	// msPerSecond converts the configured busy timeout to the
	// millisecond unit the driver expects.
	msPerSecond = 1000
)

// DB is the SQLite connection backing the transaction journal. The
// journal is the only schema on this database and its writes are
// serialised through a single connection.
type DB struct {
	*sql.DB
	path string
}

// Config mirrors the database section of config.yaml.
type Config struct {
	// Path is the SQLite file. Its directory is created on first open.
	Path string

	// WALMode switches the journal file to write-ahead logging, which
	// keeps reads (Recent queries) open while a transaction is being
	// recorded.
	WALMode bool

	// BusyTimeout is how long a statement waits for a lock, in seconds.
	BusyTimeout int
}

// dsn renders the driver connection string for cfg.
// See https://github.com/mattn/go-sqlite3#connection-string for the
// pragma parameters.
func dsn(cfg Config) string {
	s := fmt.Sprintf("file:%s?_busy_timeout=%d", cfg.Path, cfg.BusyTimeout*msPerSecond)
	if cfg.WALMode {
		s += "&_journal_mode=WAL&_synchronous=NORMAL"
	}
	return s
}

// Open opens (creating if necessary) the journal database.
//
// The connection pool is pinned to a single connection: the journal is
// a low-volume append log and SQLite allows only one writer anyway, so
// a pool would just move lock contention into the driver.
//
// Parameters:
//   - cfg: Database configuration
//
// Returns:
//   - *DB: Verified connection, file mode 0600
//   - error: If the directory cannot be created or the probe fails
func Open(cfg Config) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite3", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0) // one connection for the process lifetime

	db := &DB{DB: sqlDB, path: cfg.Path}

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // best effort on the error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	// The ping above materialised the file; lock it down to the owner.
	if err := os.Chmod(cfg.Path, filePermissions); err != nil {
		sqlDB.Close() //nolint:errcheck // best effort on the error path
		return nil, fmt.Errorf("restricting database file permissions: %w", err)
	}

	return db, nil
}

// Path returns the database file location.
func (db *DB) Path() string {
	return db.path
}

// Close releases the connection. Safe on a zero DB.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// HealthCheck verifies the journal database is readable and not
// corrupted, using SQLite's own quick_check.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (db *DB) HealthCheck(ctx context.Context) error {
	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database health check failed: quick_check reported %q", result)
	}
	return nil
}
