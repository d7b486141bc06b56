// Package instance implements the Process Instance: one child handle, its
// observable state, and the transition timestamps/counters the Job state
// machine advances.
package instance

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
)

// SpawnConfig carries everything an Instance needs to exec a child, without
// coupling this package to the Job Spec type that owns those fields.
type SpawnConfig struct {
	Command    string
	Args       []string
	Env        []string
	WorkDir    string
	Umask      int
	HasUmask   bool
	StdoutFile string
	StderrFile string
}

// Instance is one of a Job's N concurrent children. State mutation happens
// only from the supervisor goroutine; the monitor goroutine started by Spawn
// only records the wait result and closes waitDone, it never touches state
// itself.
type Instance struct {
	Index int

	state          State
	stateChangedAt time.Time
	retries        int

	cmd        *exec.Cmd
	waitDone   chan struct{}
	waitResult waitResult
	spawnID    string

	outCloser io.Closer
	errCloser io.Closer
}

type waitResult struct {
	err error
}

// New creates an instance in its initial Stopped state, as required when a
// Job is inserted into the Job Table.
func New(index int) *Instance {
	return &Instance{Index: index, state: Stopped, stateChangedAt: time.Now()}
}

func (in *Instance) State() State                { return in.state }
func (in *Instance) StateChangedAt() time.Time    { return in.stateChangedAt }
func (in *Instance) Retries() int                 { return in.retries }
func (in *Instance) SpawnID() string              { return in.spawnID }
func (in *Instance) CanStart() bool               { return in.state.CanStart() }
func (in *Instance) CanStop() bool                { return in.state.CanStop() }
func (in *Instance) Pid() int {
	if in.cmd != nil && in.cmd.Process != nil {
		return in.cmd.Process.Pid
	}
	return 0
}

// setState writes the new state and timestamp together (invariant 4), and
// resets retries on the transitions invariant 3 names.
func (in *Instance) setState(s State, now time.Time) {
	in.state = s
	in.stateChangedAt = now
	if s == Running || s == Fatal {
		in.retries = 0
	}
}

// Spawn execs the configured command, places the child in its own process
// group (so Signal/Kill can target the whole group), and starts a monitor
// goroutine that performs the only blocking Wait() in the system off the
// supervisor thread. Every call counts as one attempt against
// start_retries, whether or not the child starts; resetRetries instead
// resets the count to 1 (the Fatal->start transition). A failed attempt
// leaves the instance in Backoff with no handle.
func (in *Instance) Spawn(cfg SpawnConfig, now time.Time, resetRetries bool) (err error) {
	if resetRetries {
		in.retries = 1
	} else {
		in.retries++
	}
	defer func() {
		if err != nil {
			in.setState(Backoff, now)
		}
	}()

	cmd := exec.Command(cfg.Command, cfg.Args...)
	if cfg.WorkDir != "" {
		if _, err := os.Stat(cfg.WorkDir); err != nil {
			return fmt.Errorf("work_dir %q: %w", cfg.WorkDir, err)
		}
		cmd.Dir = cfg.WorkDir
	}
	if len(cfg.Env) > 0 {
		cmd.Env = cfg.Env
	}
	configureSysProcAttr(cmd)

	outCloser, errCloser, err := openRedirects(cfg)
	if err != nil {
		return err
	}
	cmd.Stdout = asWriter(outCloser)
	cmd.Stderr = asWriter(errCloser)

	restore := applyUmask(cfg)
	err = cmd.Start()
	restore()
	if err != nil {
		closeAll(outCloser, errCloser)
		return fmt.Errorf("spawn: %w", err)
	}

	in.cmd = cmd
	in.outCloser = outCloser
	in.errCloser = errCloser
	in.waitDone = make(chan struct{})
	in.spawnID = uuid.NewString()

	done := in.waitDone
	c := cmd
	go func() {
		werr := c.Wait()
		in.waitResult = waitResult{err: werr}
		close(done)
	}()

	in.setState(Starting, now)
	return nil
}

func asWriter(c io.Closer) io.Writer {
	if w, ok := c.(io.Writer); ok {
		return w
	}
	return nil
}

func closeAll(cs ...io.Closer) {
	for _, c := range cs {
		if c != nil {
			_ = c.Close()
		}
	}
}

func openRedirects(cfg SpawnConfig) (io.Closer, io.Closer, error) {
	var out, errc *os.File
	var err error
	if cfg.StdoutFile != "" {
		out, err = os.OpenFile(cfg.StdoutFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("stdout_file %q: %w", cfg.StdoutFile, err)
		}
	}
	if cfg.StderrFile != "" {
		errc, err = os.OpenFile(cfg.StderrFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			closeAll(out)
			return nil, nil, fmt.Errorf("stderr_file %q: %w", cfg.StderrFile, err)
		}
	}
	return nilIfNoFile(out), nilIfNoFile(errc), nil
}

func nilIfNoFile(f *os.File) io.Closer {
	if f == nil {
		return nil
	}
	return f
}

// TryReap is a non-blocking check of whether the monitor goroutine has
// observed the child's exit. It never calls Wait itself.
func (in *Instance) TryReap() (reaped bool, err error) {
	if in.waitDone == nil {
		return false, nil
	}
	select {
	case <-in.waitDone:
		return true, in.waitResult.err
	default:
		return false, nil
	}
}

// DiscardHandle releases the child handle after a reap has been consumed, as
// required by "ownership of child handles" (the handle is consumed on reap).
func (in *Instance) DiscardHandle() {
	closeAll(in.outCloser, in.errCloser)
	in.cmd = nil
	in.waitDone = nil
	in.outCloser = nil
	in.errCloser = nil
}

// Signal delivers stopSignal to the child's process group.
func (in *Instance) Signal(sig int) error {
	if in.cmd == nil || in.cmd.Process == nil {
		return nil
	}
	return signalGroup(in.cmd.Process.Pid, sig)
}

// Kill forces termination of the child's process group.
func (in *Instance) Kill() error {
	if in.cmd == nil || in.cmd.Process == nil {
		return nil
	}
	return killGroup(in.cmd.Process.Pid)
}

// TickParams carries the Job spec parameters (and the Job's spawn closure)
// that Tick needs to advance an instance by one step of the transition
// table in spec.md §4.2.
type TickParams struct {
	StartSecs    int
	StartRetries int
	StopWaitSecs int
	StopSignal   int
	ExitCodes    map[int]bool
	AutoRestart  AutoRestart
	Spawn        func(resetRetries bool) error // Job supplies the spawn closure
}

// AutoRestart mirrors the job.AutoRestart enum without importing the job
// package (which imports instance), avoiding an import cycle.
type AutoRestart int

const (
	AutoRestartAlways AutoRestart = iota
	AutoRestartNever
	AutoRestartUnexpectedExit
)

// Tick advances this instance by one step of the transition table. It never
// blocks: the only state inspection is TryReap, which is itself
// non-blocking. It returns true if this instance spawned a child during
// this call.
func (in *Instance) Tick(now time.Time, p TickParams) bool {
	switch in.state {
	case Backoff:
		if in.retries >= p.StartRetries {
			in.setState(Fatal, now)
			in.retries = 0
			return false
		}
		elapsed := now.Sub(in.stateChangedAt)
		if elapsed >= time.Duration(in.retries)*time.Second {
			if err := p.Spawn(false); err != nil {
				in.setState(Backoff, now)
				return false
			}
			return true
		}
		return false

	case Starting:
		reaped, _ := in.TryReap()
		if reaped {
			in.DiscardHandle()
			in.setState(Backoff, now)
			return false
		}
		if now.Sub(in.stateChangedAt) >= time.Duration(p.StartSecs)*time.Second {
			in.setState(Running, now)
		}
		return false

	case Running:
		reaped, _ := in.TryReap()
		if !reaped {
			return false
		}
		code, bySignal := exitInfo(in.waitResult.err)
		in.DiscardHandle()
		if bySignal {
			in.setState(Stopped, now)
			return false
		}
		expected := p.ExitCodes[code]
		switch {
		case p.AutoRestart == AutoRestartAlways:
			if err := p.Spawn(false); err != nil {
				in.setState(Backoff, now)
				return false
			}
			return true
		case p.AutoRestart == AutoRestartUnexpectedExit && !expected:
			if err := p.Spawn(false); err != nil {
				in.setState(Backoff, now)
				return false
			}
			return true
		default:
			in.setState(Exited, now)
			return false
		}

	case Stopping:
		reaped, _ := in.TryReap()
		if reaped {
			in.DiscardHandle()
			in.setState(Stopped, now)
			return false
		}
		if now.Sub(in.stateChangedAt) >= time.Duration(p.StopWaitSecs)*time.Second {
			_ = in.Kill()
		}
		return false

	default:
		return false
	}
}

// StopCommand signals a Starting/Running instance and marks it Stopping.
func (in *Instance) StopCommand(now time.Time, stopSignal int) error {
	if !in.CanStop() {
		return nil
	}
	if err := in.Signal(stopSignal); err != nil {
		return err
	}
	in.setState(Stopping, now)
	return nil
}

// StopNow is the synchronous teardown used only when a Job is removed from
// the Job Table: force-kill and wait for the reap to be observed.
func (in *Instance) StopNow(now time.Time) {
	if !in.state.HasHandle() {
		return
	}
	_ = in.Kill()
	if in.waitDone != nil {
		<-in.waitDone
	}
	in.DiscardHandle()
	in.setState(Stopped, now)
}

func exitInfo(err error) (code int, bySignal bool) {
	if err == nil {
		return 0, false
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(interface{ Signaled() bool }); ok && ws.Signaled() {
			return 0, true
		}
		return exitErr.ExitCode(), false
	}
	return -1, false
}
