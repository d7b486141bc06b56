package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/taskmasterd/taskmasterd/internal/config"
	"github.com/taskmasterd/taskmasterd/internal/control"
	"github.com/taskmasterd/taskmasterd/internal/history"
	"github.com/taskmasterd/taskmasterd/internal/history/factory"
	"github.com/taskmasterd/taskmasterd/internal/introspect"
	"github.com/taskmasterd/taskmasterd/internal/job"
	"github.com/taskmasterd/taskmasterd/internal/jobtable"
	"github.com/taskmasterd/taskmasterd/internal/logger"
	"github.com/taskmasterd/taskmasterd/internal/metrics"
	"github.com/taskmasterd/taskmasterd/internal/supervisor"
	"github.com/taskmasterd/taskmasterd/pkg/client"
)

// command decouples cobra's RunE closures from the actual supervisor
// wiring, matching the teacher's cmd/provisr `command` struct convention
// (a small receiver holding shared state, methods doing the real work).
type command struct {
	log *slog.Logger
}

// runSupervisor builds the Job Table, control listener, optional history
// sink/metrics/introspect HTTP server, and runs the Supervisor Loop until
// the process receives an interrupt (spec.md §4.4; §1's excluded "CLI
// argument handling and hangup-signal wiring" is handled right here).
func (c *command) runSupervisor(f RunFlags) error {
	if f.ConfigPath == "" {
		return fmt.Errorf("--config is required")
	}

	specs, err := config.Load(f.ConfigPath)
	if err != nil {
		// spec.md §7: "configuration errors at startup are fatal".
		return fmt.Errorf("initial config load: %w", err)
	}

	histSink, err := openHistorySink(f.HistoryDSN)
	if err != nil {
		return fmt.Errorf("history sink %q: %w", f.HistoryDSN, err)
	}

	table := jobtable.New(c.log, histSink)
	if f.LogDir != "" {
		table.SetProcLogConfig(&logger.Config{
			Slog: logger.SlogConfig{Level: logger.LogLevel(logFlags.Level)},
			File: logger.FileConfig{Dir: f.LogDir},
		})
	}
	table.Reconcile(specs)
	c.log.Info("initial config loaded", "jobs", len(specs))

	addr := f.ControlAddr
	if addr == "" {
		addr = client.DefaultConfig().Addr
	}
	listener, err := control.Listen(addr)
	if err != nil {
		return fmt.Errorf("control listener: %w", err)
	}
	defer func() { _ = listener.Close() }()
	c.log.Info("control channel listening", "addr", listener.Addr())

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		c.log.Warn("metrics registration failed", "error", err)
	}
	if f.MetricsListen != "" {
		srv := introspect.NewServer(f.MetricsListen, table)
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				c.log.Warn("introspect server stopped", "error", err)
			}
		}()
		c.log.Info("introspect server listening", "addr", f.MetricsListen)
	}

	loop := supervisor.New(table, listener, func() (map[string]job.Spec, error) {
		return config.Load(f.ConfigPath)
	}, c.log)

	installHangupHandler(loop, c.log)
	installInterruptHandler(loop, c.log)

	loop.Run()
	return nil
}

// openHistorySink returns a nil Sink (no audit trail) when dsn is empty,
// matching the teacher's "only wire what's configured" convention.
func openHistorySink(dsn string) (history.Sink, error) {
	if dsn == "" {
		return nil, nil
	}
	return factory.NewSinkFromDSN(dsn)
}

// The control subcommands are thin wrappers around pkg/client: they dial
// the running supervisor's control channel, send one request line, and
// print the reply (spec.md §6's operator-facing protocol).

func (c *command) controlStart(f ControlFlags) (string, error) {
	return newClient(f.Addr).Start(f.Job, f.Index)
}

func (c *command) controlStop(f ControlFlags) (string, error) {
	return newClient(f.Addr).Stop(f.Job, f.Index)
}

func (c *command) controlRestart(f ControlFlags) (string, error) {
	return newClient(f.Addr).Restart(f.Job, f.Index)
}

func (c *command) controlStatus(f ControlFlags) (string, error) {
	if f.Job == "" {
		return newClient(f.Addr).Status()
	}
	return newClient(f.Addr).StatusJob(f.Job, f.Index)
}

func newClient(addr string) *client.Client {
	cfg := client.DefaultConfig()
	if addr != "" {
		cfg.Addr = addr
	}
	return client.New(cfg)
}

func printLine(s string) {
	_, _ = fmt.Fprintln(os.Stdout, s)
}
