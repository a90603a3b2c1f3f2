// Package eventlog persists a best-effort diagnostic history of
// membership state transitions to sqlite. It never participates in
// rebuilding membership at startup — that is still reconstructed purely
// from seeds — and writes are asynchronous so a slow or failing disk
// never stalls the event loop that feeds it.
package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Migrations returns the schema statements applied, in order, against a
// freshly opened database. Every statement is idempotent so re-running
// them against an already-migrated database is harmless.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS transitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			address TEXT NOT NULL,
			previous_state TEXT NOT NULL,
			next_state TEXT NOT NULL,
			observed_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_observed_at ON transitions(observed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_address ON transitions(address)`,
	}
}

// Event is one recorded state transition.
type Event struct {
	ID         int64
	Address    string
	Previous   string
	Next       string
	ObservedAt time.Time
}

// Log is an async-write handle onto the transitions table. RecordTransition never
// blocks on disk I/O: it hands the event to a buffered channel drained by
// a single background goroutine, and drops the event (logging a warning)
// if that buffer is ever full rather than applying backpressure to the
// caller.
type Log struct {
	db     *sql.DB
	events chan Event
	done   chan struct{}
}

// Open opens (creating if necessary) the sqlite database at path, applies
// migrations, and starts the background drain goroutine.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: one writer at a time

	for _, stmt := range Migrations() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("eventlog: migrate: %w", err)
		}
	}

	l := &Log{db: db, events: make(chan Event, 256), done: make(chan struct{})}
	go l.drain()
	return l, nil
}

func (l *Log) drain() {
	defer close(l.done)
	for ev := range l.events {
		_, err := l.db.Exec(
			`INSERT INTO transitions (address, previous_state, next_state, observed_at) VALUES (?, ?, ?, ?)`,
			ev.Address, ev.Previous, ev.Next, ev.ObservedAt,
		)
		if err != nil {
			fmt.Printf("[eventlog] write failed, dropping event for %s: %v\n", ev.Address, err)
		}
	}
}

// RecordTransition enqueues a transition for asynchronous persistence.
// If the internal buffer is full the event is dropped; the diagnostic
// history is best-effort and must never stall the caller.
func (l *Log) RecordTransition(addr, prev, next string, at time.Time) {
	ev := Event{Address: addr, Previous: prev, Next: next, ObservedAt: at}
	select {
	case l.events <- ev:
	default:
		fmt.Printf("[eventlog] buffer full, dropping event for %s\n", addr)
	}
}

// Recent returns up to limit most recent transitions, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, address, previous_state, next_state, observed_at FROM transitions ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("eventlog: query recent: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.Address, &ev.Previous, &ev.Next, &ev.ObservedAt); err != nil {
			return nil, fmt.Errorf("eventlog: scan: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Close stops accepting new events, waits for the drain goroutine to
// finish flushing whatever is already queued, and closes the database.
func (l *Log) Close() error {
	close(l.events)
	<-l.done
	return l.db.Close()
}
