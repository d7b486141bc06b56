package clickhouse

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/taskmasterd/taskmasterd/internal/history"
)

// TestClickHouseSink_Integration only runs against a real server named by
// TASKMASTERD_TEST_CLICKHOUSE_ADDR; it is skipped otherwise.
func TestClickHouseSink_Integration(t *testing.T) {
	addr := os.Getenv("TASKMASTERD_TEST_CLICKHOUSE_ADDR")
	if addr == "" {
		t.Skip("TASKMASTERD_TEST_CLICKHOUSE_ADDR not set")
	}

	sink, err := New(addr, "instance_history")
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	ctx := context.Background()
	rec := history.Record{Job: "test-job", Instance: 0, SpawnID: "spawn-1", PID: 12345, State: "running", StartedAt: time.Now().UTC()}
	if err := sink.Send(ctx, history.Event{Type: history.EventSpawn, OccurredAt: time.Now().UTC(), Record: rec}); err != nil {
		t.Fatalf("send spawn event: %v", err)
	}

	rec.State = "stopped"
	rec.StoppedAt.Time = time.Now().UTC()
	rec.StoppedAt.Valid = true
	if err := sink.Send(ctx, history.Event{Type: history.EventStop, OccurredAt: time.Now().UTC(), Record: rec}); err != nil {
		t.Fatalf("send stop event: %v", err)
	}
}

func TestNewRejectsUnreachableAddr(t *testing.T) {
	if _, err := New("127.0.0.1:1", "instance_history"); err == nil {
		t.Fatal("expected error connecting to unreachable address")
	}
}
