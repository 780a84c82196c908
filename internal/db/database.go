// Package db implements the sqlite store for rooms, reservations,
// productions, closures and recurring series.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps sql.DB for the scheduler.
type DB struct {
	*sql.DB
}

// NewDB opens the database at path and runs migrations. Transactions
// take the write lock up front (_txlock=immediate) so a conflict check
// and the insert it guards cannot interleave with another writer.
func NewDB(path string) (*DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_fk=1&_busy_timeout=5000&_txlock=immediate"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx so overlap queries
// can run standalone or inside the insert transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Practice spaces
		`CREATE TABLE IF NOT EXISTS rooms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			description TEXT,
			is_active BOOLEAN DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Recurring series
		`CREATE TABLE IF NOT EXISTS recurring_series (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id INTEGER NOT NULL,
			band_id INTEGER NOT NULL,
			recurable_type TEXT NOT NULL DEFAULT 'rehearsal_reservation',
			frequency TEXT NOT NULL,
			interval INTEGER NOT NULL DEFAULT 1,
			weekdays TEXT NOT NULL,
			occurrence_count INTEGER,
			start_clock TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			start_date DATETIME NOT NULL,
			end_date DATETIME,
			last_generated_through DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (room_id) REFERENCES rooms(id)
		)`,

		// Rehearsal reservations; series instances carry series_id +
		// occurrence_date
		`CREATE TABLE IF NOT EXISTS reservations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id INTEGER NOT NULL,
			band_id INTEGER NOT NULL,
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			comment TEXT,
			series_id INTEGER,
			occurrence_date DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (room_id) REFERENCES rooms(id),
			FOREIGN KEY (series_id) REFERENCES recurring_series(id)
		)`,

		// Scheduled productions
		`CREATE TABLE IF NOT EXISTS productions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL,
			status TEXT NOT NULL DEFAULT 'scheduled',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (room_id) REFERENCES rooms(id)
		)`,

		// Space closures; room_id NULL blocks the whole facility
		`CREATE TABLE IF NOT EXISTS space_closures (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id INTEGER,
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL,
			kind TEXT NOT NULL DEFAULT 'other',
			label TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (room_id) REFERENCES rooms(id)
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_reservations_times ON reservations(room_id, start_time, end_time)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_reservations_series_date ON reservations(series_id, occurrence_date) WHERE series_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_productions_times ON productions(room_id, start_time, end_time)`,
		`CREATE INDEX IF NOT EXISTS idx_closures_times ON space_closures(start_time, end_time)`,
		`CREATE INDEX IF NOT EXISTS idx_series_status ON recurring_series(status)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
