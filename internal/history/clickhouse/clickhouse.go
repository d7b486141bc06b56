package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/taskmasterd/taskmasterd/internal/history"
)

// Sink sends audit events to ClickHouse using the official Go client, an
// analytics-oriented destination for the transition stream.
type Sink struct {
	conn  driver.Conn
	table string
}

func New(addr, table string) (*Sink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: "default",
			Username: "default",
			Password: "",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}
	return &Sink{conn: conn, table: table}, nil
}

func (s *Sink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	query := fmt.Sprintf(`INSERT INTO %s (type, occurred_at, job, instance, spawn_id, pid, state, started_at, stopped_at, exit_err) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)

	var stoppedAt, exitErr string
	if e.Record.StoppedAt.Valid {
		stoppedAt = e.Record.StoppedAt.Time.UTC().String()
	}
	if e.Record.ExitErr.Valid {
		exitErr = e.Record.ExitErr.String
	}

	err := s.conn.Exec(ctx, query,
		string(e.Type),
		e.OccurredAt,
		e.Record.Job,
		e.Record.Instance,
		e.Record.SpawnID,
		e.Record.PID,
		e.Record.State,
		e.Record.StartedAt,
		stoppedAt,
		exitErr,
	)
	if err != nil {
		return fmt.Errorf("insert event into clickhouse: %w", err)
	}
	return nil
}
