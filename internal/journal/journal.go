// Package journal records the durable history of sprint runs: every
// subprocess invocation, run event, and agent handoff, in a project-local
// SQLite database, plus a human-readable rotating log file.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the project-local journal database.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.Mutex
}

// Path returns the journal database location under the state root.
func Path(stateRoot string) string {
	return filepath.Join(stateRoot, "journal.db")
}

// Open opens (or creates) the journal database and applies migrations.
// WAL mode is enabled for concurrent reads.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	db := &DB{conn: conn, path: path}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// migrate applies pending schema migrations in order.
func (db *DB) migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var current int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Events},
		{2, migrationV2Invocations},
		{3, migrationV3Handoffs},
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}
	return nil
}

const migrationV1Events = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sprint_id TEXT NOT NULL,
	task_id TEXT,
	agent TEXT,
	type TEXT NOT NULL,
	message TEXT,
	occurred_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_sprint ON events(sprint_id);
`

const migrationV2Invocations = `
CREATE TABLE IF NOT EXISTS invocations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sprint_id TEXT NOT NULL,
	task_id TEXT NOT NULL,
	command TEXT NOT NULL,
	exit_code INTEGER NOT NULL,
	output TEXT,
	duration_ms INTEGER NOT NULL,
	occurred_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_invocations_task ON invocations(task_id);
`

const migrationV3Handoffs = `
CREATE TABLE IF NOT EXISTS handoffs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sprint_id TEXT NOT NULL,
	from_agent TEXT NOT NULL,
	to_agent TEXT NOT NULL,
	reason TEXT,
	occurred_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_handoffs_sprint ON handoffs(sprint_id);
`

// EventRecord is one stored run event.
type EventRecord struct {
	SprintID   string
	TaskID     string
	Agent      string
	Type       string
	Message    string
	OccurredAt time.Time
}

// InvocationRecord is one stored subprocess call.
type InvocationRecord struct {
	SprintID   string
	TaskID     string
	Command    string
	ExitCode   int
	Output     string
	Duration   time.Duration
	OccurredAt time.Time
}

// HandoffRecord is one stored agent transition.
type HandoffRecord struct {
	SprintID   string
	FromAgent  string
	ToAgent    string
	Reason     string
	OccurredAt time.Time
}

// AppendEvent stores one run event.
func (db *DB) AppendEvent(r EventRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, err := db.conn.Exec(
		"INSERT INTO events (sprint_id, task_id, agent, type, message, occurred_at) VALUES (?, ?, ?, ?, ?, ?)",
		r.SprintID, r.TaskID, r.Agent, r.Type, r.Message, r.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// AppendInvocation stores one subprocess record.
func (db *DB) AppendInvocation(r InvocationRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, err := db.conn.Exec(
		"INSERT INTO invocations (sprint_id, task_id, command, exit_code, output, duration_ms, occurred_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		r.SprintID, r.TaskID, r.Command, r.ExitCode, r.Output, r.Duration.Milliseconds(), r.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("append invocation: %w", err)
	}
	return nil
}

// AppendHandoff stores one agent transition.
func (db *DB) AppendHandoff(r HandoffRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, err := db.conn.Exec(
		"INSERT INTO handoffs (sprint_id, from_agent, to_agent, reason, occurred_at) VALUES (?, ?, ?, ?, ?)",
		r.SprintID, r.FromAgent, r.ToAgent, r.Reason, r.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("append handoff: %w", err)
	}
	return nil
}

// Events returns all stored events for a sprint in insertion order.
func (db *DB) Events(sprintID string) ([]EventRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(
		"SELECT sprint_id, COALESCE(task_id, ''), COALESCE(agent, ''), type, COALESCE(message, ''), occurred_at FROM events WHERE sprint_id = ? ORDER BY id",
		sprintID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var r EventRecord
		if err := rows.Scan(&r.SprintID, &r.TaskID, &r.Agent, &r.Type, &r.Message, &r.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Invocations returns all stored subprocess records for a task.
func (db *DB) Invocations(taskID string) ([]InvocationRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(
		"SELECT sprint_id, task_id, command, exit_code, COALESCE(output, ''), duration_ms, occurred_at FROM invocations WHERE task_id = ? ORDER BY id",
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	var out []InvocationRecord
	for rows.Next() {
		var r InvocationRecord
		var ms int64
		if err := rows.Scan(&r.SprintID, &r.TaskID, &r.Command, &r.ExitCode, &r.Output, &ms, &r.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// Handoffs returns all stored agent transitions for a sprint.
func (db *DB) Handoffs(sprintID string) ([]HandoffRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(
		"SELECT sprint_id, from_agent, to_agent, COALESCE(reason, ''), occurred_at FROM handoffs WHERE sprint_id = ? ORDER BY id",
		sprintID,
	)
	if err != nil {
		return nil, fmt.Errorf("query handoffs: %w", err)
	}
	defer rows.Close()

	var out []HandoffRecord
	for rows.Next() {
		var r HandoffRecord
		if err := rows.Scan(&r.SprintID, &r.FromAgent, &r.ToAgent, &r.Reason, &r.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan handoff: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
