package eventlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestRecordAndRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	l.RecordTransition("127.0.0.1:7001", "ACTIVE", "SUSPECT", now)
	l.RecordTransition("127.0.0.1:7001", "SUSPECT", "DEAD", now.Add(time.Second))

	// Close waits for the drain goroutine, so after it returns the
	// writes are guaranteed visible to a fresh reader.
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	l2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l2.Close()

	events, err := l2.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	// newest first
	if events[0].Next != "DEAD" {
		t.Errorf("events[0].Next = %q, want DEAD", events[0].Next)
	}
	if events[1].Next != "SUSPECT" {
		t.Errorf("events[1].Next = %q, want SUSPECT", events[1].Next)
	}
}

func TestRecent_DefaultLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	events, err := l.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("len(events) = %d, want 0 on an empty log", len(events))
	}
}

func TestMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	l.Close()

	// Re-opening the same file re-applies CREATE TABLE IF NOT EXISTS
	// without error.
	l2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	l2.Close()
}
