// Package db persists supervisor lifecycle events to a local SQLite
// database so state transitions survive across CLI invocations.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection and provides event logging.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens or creates the SQLite database at the specified path.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL keeps concurrent readers from blocking event writes.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db := &DB{conn: conn, path: path}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	-- Daemon and runner lifecycle transitions
	CREATE TABLE IF NOT EXISTS lifecycle_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		state TEXT NOT NULL,
		pid INTEGER,
		detail TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_lifecycle_events_timestamp ON lifecycle_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_lifecycle_events_kind ON lifecycle_events(kind);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Event represents one recorded lifecycle transition.
type Event struct {
	ID        int64
	Kind      string // "daemon" or "runner"
	State     string
	PID       int
	Detail    string
	Timestamp time.Time
}

// LogEvent appends a lifecycle transition for the given supervisor kind.
func (db *DB) LogEvent(kind, state string, pid int, detail string) error {
	_, err := db.conn.Exec(
		`INSERT INTO lifecycle_events (kind, state, pid, detail, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		kind, state, pid, detail, time.Now(),
	)
	return err
}

// RecentEvents retrieves the most recent events for a kind, newest first.
// An empty kind matches all kinds.
func (db *DB) RecentEvents(kind string, limit int) ([]Event, error) {
	query := `SELECT id, kind, state, pid, detail, timestamp
		 FROM lifecycle_events`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Kind, &e.State, &e.PID, &e.Detail, &e.Timestamp); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
