// Package supervisor implements the Supervisor Loop (C4): a single
// goroutine that ticks every Job, applies pending config reloads, and
// dispatches at most one control-channel command per iteration, never
// blocking on children or the channel (spec.md §4.4/§5).
package supervisor

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/taskmasterd/taskmasterd/internal/control"
	"github.com/taskmasterd/taskmasterd/internal/job"
	"github.com/taskmasterd/taskmasterd/internal/jobtable"
	"github.com/taskmasterd/taskmasterd/internal/metrics"
)

// ConfigLoader produces a freshly parsed, already-validated spec set from
// the known config path. It is the Spec Parser (C5) seen from the loop's
// side: by the time Reload gets a result, parsing and validation are both
// done, so a failure here never mutates the Job Table (spec.md §4.3).
type ConfigLoader func() (map[string]job.Spec, error)

const idleSleep = 100 * time.Millisecond

// Loop is the Supervisor Loop. ReloadRequested is the single-word atomic
// flag a SIGHUP handler may set through RequestReload, which only stores
// true (spec.md §9's re-architected reload flag).
type Loop struct {
	Table           *jobtable.Table
	Listener        *control.Listener
	LoadConfig      ConfigLoader
	ReloadRequested atomic.Bool
	log             *slog.Logger

	stop chan struct{}
}

// New builds a Loop around an existing Job Table and control listener.
func New(table *jobtable.Table, listener *control.Listener, loader ConfigLoader, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{Table: table, Listener: listener, LoadConfig: loader, log: log, stop: make(chan struct{})}
}

// RequestReload is called by the SIGHUP handler. It performs no
// allocation, no locking, and never blocks.
func (l *Loop) RequestReload() { l.ReloadRequested.Store(true) }

// Stop asks Run to return after its current iteration.
func (l *Loop) Stop() { close(l.stop) }

// Run executes the loop until Stop is called. Each iteration: (1) applies
// a pending reload, (2) ticks every Job, (3) accepts and dispatches at
// most one control-channel command, then sleeps briefly if nothing
// happened.
func (l *Loop) Run() {
	for {
		select {
		case <-l.stop:
			l.Table.StopAll()
			return
		default:
		}

		l.reloadIfRequested()

		tickStart := time.Now()
		l.Table.Tick()
		metrics.ObserveTick(time.Since(tickStart).Seconds())

		handled := l.dispatchOneCommand()
		if !handled {
			time.Sleep(idleSleep)
		}
	}
}

func (l *Loop) reloadIfRequested() {
	if !l.ReloadRequested.CompareAndSwap(true, false) {
		return
	}
	specs, err := l.LoadConfig()
	if err != nil {
		l.log.Error("config reload failed, keeping current jobs", "error", err)
		return
	}
	l.Table.Reconcile(specs)
	l.log.Info("config reloaded", "jobs", len(specs))
}

// dispatchOneCommand performs the bounded control-channel read of spec.md
// §4.4 step 3. It returns true if a connection was accepted (whether or
// not the command itself succeeded), so Run can skip the idle sleep.
func (l *Loop) dispatchOneCommand() bool {
	if l.Listener == nil {
		return false
	}
	conn, ok, err := l.Listener.TryAccept(10 * time.Millisecond)
	if err != nil {
		l.log.Warn("control accept failed", "error", err)
		return false
	}
	if !ok {
		return false
	}
	defer func() { _ = conn.Close() }()

	line, err := control.ReadLine(conn, time.Second)
	if err != nil {
		l.log.Warn("control read failed", "error", err)
		return true
	}

	reply := l.handle(line)
	if err := control.WriteReply(conn, reply); err != nil {
		l.log.Warn("control write failed", "error", err)
	}
	return true
}

func (l *Loop) handle(line string) string {
	req, err := control.Parse(line)
	if err != nil {
		return "error: " + err.Error()
	}

	if req.Cmd == control.CmdStatus && req.Job == "" {
		return l.statusAll()
	}

	j, ok := l.Table.Get(req.Job)
	if !ok {
		return fmt.Sprintf("error: unknown job %q", req.Job)
	}

	target := job.AllInstances()
	if req.Index >= 0 {
		target = job.OneInstance(req.Index)
	}

	switch req.Cmd {
	case control.CmdStart:
		if err := j.Start(target); err != nil {
			return "error: " + err.Error()
		}
		return "ok"
	case control.CmdStop:
		if err := j.Stop(target); err != nil {
			return "error: " + err.Error()
		}
		return "ok"
	case control.CmdRestart:
		if err := j.Restart(target); err != nil {
			return "error: " + err.Error()
		}
		return "ok"
	case control.CmdStatus:
		lines, err := j.Status(target)
		if err != nil {
			return "error: " + err.Error()
		}
		return joinLines(lines)
	default:
		return "error: unknown command"
	}
}

func (l *Loop) statusAll() string {
	var lines []string
	for _, j := range l.Table.All() {
		jl, _ := j.Status(job.AllInstances())
		lines = append(lines, jl...)
	}
	if len(lines) == 0 {
		return "no jobs"
	}
	return joinLines(lines)
}

func joinLines(lines []string) string {
	out := lines[0]
	for _, line := range lines[1:] {
		out += "\n" + line
	}
	return out
}

// ParseSignalIndex is a tiny helper CLI/config code can use to validate a
// decimal instance index string before constructing a control.Request by
// hand (e.g. cmd/taskmasterd's "<job>:<index>" operand parsing).
func ParseSignalIndex(s string) (int, error) {
	idx, err := strconv.Atoi(s)
	if err != nil || idx < 0 {
		return 0, fmt.Errorf("%w: %q", control.ErrBadIndex, s)
	}
	return idx, nil
}
