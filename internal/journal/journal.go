// Package journal persists committed recipe transactions to SQLite.
// The journal is an audit trail, not a source of truth: the recipe
// store on disk stays authoritative, and a journal write failure never
// rolls a transaction back.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mineichen/rigcore/internal/recipe"
	"github.com/mineichen/rigcore/internal/rig"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

// schema bootstraps the journal table. Applied on every startup;
// CREATE IF NOT EXISTS keeps it idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS transaction_journal (
	key         TEXT PRIMARY KEY,
	operation   TEXT NOT NULL,
	recipe_id   TEXT NOT NULL,
	device_id   TEXT NOT NULL DEFAULT '',
	occurred_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_journal_occurred ON transaction_journal (occurred_at DESC);
`

// SQLiteJournal implements recipe.Journal backed by SQLite.
type SQLiteJournal struct {
	db *sql.DB
}

// Open prepares the journal over an existing SQLite connection,
// bootstrapping the schema.
//
// Parameters:
//   - ctx: Context for the schema bootstrap
//   - db: Open SQLite connection used for all statements
//
// Returns:
//   - *SQLiteJournal: Journal ready for use
//   - error: If the schema cannot be applied
func Open(ctx context.Context, db *sql.DB) (*SQLiteJournal, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("bootstrapping journal schema: %w", err)
	}
	return &SQLiteJournal{db: db}, nil
}

// Record implements recipe.Journal.
func (j *SQLiteJournal) Record(ctx context.Context, rec recipe.TransactionRecord) error {
	deviceID := ""
	if !rec.DeviceID.IsZero() {
		deviceID = rec.DeviceID.String()
	}
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO transaction_journal (key, operation, recipe_id, device_id, occurred_at) VALUES (?, ?, ?, ?, ?)",
		rec.Key.String(),
		rec.Operation,
		rec.RecipeID.String(),
		deviceID,
		rec.Occurred.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

// Recent returns the newest journal entries, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - limit: Maximum entries to return (default 50, max 500)
//
// Returns:
//   - []recipe.TransactionRecord: Entries ordered by occurred_at DESC
//   - error: nil on success, otherwise the underlying query error
func (j *SQLiteJournal) Recent(ctx context.Context, limit int) ([]recipe.TransactionRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT key, operation, recipe_id, device_id, occurred_at
		 FROM transaction_journal
		 ORDER BY occurred_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	entries := make([]recipe.TransactionRecord, 0, limit)
	for rows.Next() {
		var key, recipeID, deviceID, occurred string
		var rec recipe.TransactionRecord
		if err := rows.Scan(&key, &rec.Operation, &recipeID, &deviceID, &occurred); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		if rec.Key, err = uuid.Parse(key); err != nil {
			return nil, fmt.Errorf("parsing journal key: %w", err)
		}
		if rec.RecipeID, err = rig.ParseRecipeID(recipeID); err != nil {
			return nil, fmt.Errorf("parsing journal recipe id: %w", err)
		}
		if deviceID != "" {
			if rec.DeviceID, err = rig.ParseDeviceID(deviceID); err != nil {
				return nil, fmt.Errorf("parsing journal device id: %w", err)
			}
		}
		if rec.Occurred, err = time.Parse(time.RFC3339Nano, occurred); err != nil {
			return nil, fmt.Errorf("parsing journal timestamp: %w", err)
		}
		entries = append(entries, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal: %w", err)
	}
	return entries, nil
}
