package sqlite

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/taskmasterd/taskmasterd/internal/history"
)

func TestSQLiteSink_Integration(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := tempDir + "/test.db"

	sink, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
		_ = os.Remove(dbPath)
	}()

	ctx := context.Background()
	rec := history.Record{Job: "test-job", Instance: 0, SpawnID: "spawn-1", PID: 12345, State: "running", StartedAt: time.Now().Add(-time.Minute).UTC()}

	if err := sink.Send(ctx, history.Event{Type: history.EventSpawn, OccurredAt: time.Now().UTC(), Record: rec}); err != nil {
		t.Fatalf("Failed to send spawn event: %v", err)
	}

	rec.State = "stopped"
	rec.StoppedAt.Time = time.Now().UTC()
	rec.StoppedAt.Valid = true
	if err := sink.Send(ctx, history.Event{Type: history.EventStop, OccurredAt: time.Now().UTC(), Record: rec}); err != nil {
		t.Fatalf("Failed to send stop event: %v", err)
	}
}

func TestSQLiteSink_InMemory(t *testing.T) {
	sink, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	rec := history.Record{Job: "mem-job", Instance: 0, SpawnID: "spawn-2", PID: 54321, State: "running", StartedAt: time.Now().UTC()}
	event := history.Event{Type: history.EventSpawn, OccurredAt: time.Now().UTC(), Record: rec}
	if err := sink.Send(context.Background(), event); err != nil {
		t.Fatalf("Failed to send event: %v", err)
	}
}

func TestSQLiteSink_ContextCancellation(t *testing.T) {
	sink, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := history.Record{Job: "cancelled-job", Instance: 0, SpawnID: "spawn-3", PID: 99999, State: "running", StartedAt: time.Now().UTC()}
	event := history.Event{Type: history.EventSpawn, OccurredAt: time.Now().UTC(), Record: rec}
	if err := sink.Send(ctx, event); err != nil {
		t.Logf("expected error with cancelled context: %v", err)
	}
}
