package job

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/taskmasterd/taskmasterd/internal/env"
	"github.com/taskmasterd/taskmasterd/internal/history"
	"github.com/taskmasterd/taskmasterd/internal/instance"
	"github.com/taskmasterd/taskmasterd/internal/metrics"
)

// Target addresses either every instance of a Job or exactly one by index.
type Target struct {
	All   bool
	Index int
}

// AllInstances builds a Target selecting every instance of a Job.
func AllInstances() Target { return Target{All: true} }

// OneInstance builds a Target selecting a single instance by index.
func OneInstance(idx int) Target { return Target{Index: idx} }

// Job owns an immutable Spec and exactly spec.NumProcs Process Instances
// (spec.md §3/§4.2). All mutation happens from the single supervisor
// goroutine; Job itself holds no lock.
type Job struct {
	Name string

	spec      Spec
	instances []*instance.Instance

	log  *slog.Logger
	sink history.Sink // optional, write-only audit trail
}

// New builds a Job with spec.NumProcs Stopped instances, as required when a
// Job is inserted into the Job Table.
func New(name string, spec Spec, log *slog.Logger, sink history.Sink) *Job {
	instances := make([]*instance.Instance, spec.NumProcs)
	for i := range instances {
		instances[i] = instance.New(i)
	}
	if log == nil {
		log = slog.Default()
	}
	j := &Job{Name: name, spec: spec, instances: instances, log: log.With("job", name), sink: sink}
	j.log.Debug("job registered", "command", spec.Command, "num_procs", spec.NumProcs, "exit_codes", sortedExitCodes(spec.ExitCodes))
	return j
}

// SetProcLogger points this Job's own operational log lines (spawns,
// stops, state transitions) at a dedicated per-job logger instead of the
// shared daemon one — built from logger.Config.NewProcessLogger(name)
// when --log-dir is configured (SPEC_FULL.md §4's "per-job log
// correlation" supplement). A nil logger is a no-op, matching the
// "only wire what's configured" convention NewProcessLogger itself
// documents.
func (j *Job) SetProcLogger(l *slog.Logger) {
	if l != nil {
		j.log = l.With("job", j.Name)
	}
}

// Spec returns the Job's immutable spec, used by reconciliation's equality
// check (spec.md §4.2).
func (j *Job) Spec() Spec { return j.spec }

// Instances exposes the live vector for status reporting.
func (j *Job) Instances() []*instance.Instance { return j.instances }

func (j *Job) selected(t Target) ([]*instance.Instance, error) {
	if t.All {
		return j.instances, nil
	}
	if t.Index < 0 || t.Index >= len(j.instances) {
		return nil, fmt.Errorf("bad index %d: num_procs is %d", t.Index, len(j.instances))
	}
	return j.instances[t.Index : t.Index+1], nil
}

// Start spawns every targeted instance that can_start. Instances that
// cannot (already running/starting/stopping) are skipped and logged, not
// treated as errors (spec.md §4.2).
func (j *Job) Start(t Target) error {
	targets, err := j.selected(t)
	if err != nil {
		return err
	}
	for _, in := range targets {
		if !in.CanStart() {
			j.log.Debug("start skipped, instance cannot start", "instance", in.Index, "state", in.State())
			continue
		}
		if err := j.spawn(in, time.Now(), in.State() == instance.Fatal); err != nil {
			j.log.Warn("spawn failure", "instance", in.Index, "error", err)
		}
	}
	return nil
}

// Stop signals every targeted instance that can_stop and marks it Stopping.
// It never waits for the child to exit.
func (j *Job) Stop(t Target) error {
	targets, err := j.selected(t)
	if err != nil {
		return err
	}
	for _, in := range targets {
		if !in.CanStop() {
			j.log.Debug("stop skipped, instance cannot stop", "instance", in.Index, "state", in.State())
			continue
		}
		if err := in.StopCommand(time.Now(), j.spec.StopSignal); err != nil {
			j.log.Warn("stop signal failed", "instance", in.Index, "error", err)
			continue
		}
		metrics.IncStop(j.Name)
		j.recordStop(in)
	}
	return nil
}

// Restart issues stop then start on the same targets. Instances still
// Stopping at the moment start is issued are skipped by start's own
// can_start precondition; no implicit retry is scheduled (spec.md §4.2,
// the documented skip behavior from one of its Open Questions).
func (j *Job) Restart(t Target) error {
	if err := j.Stop(t); err != nil {
		return err
	}
	return j.Start(t)
}

// Status returns one human-readable line per targeted instance.
func (j *Job) Status(t Target) ([]string, error) {
	targets, err := j.selected(t)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(targets))
	for _, in := range targets {
		lines = append(lines, fmt.Sprintf("%s:%d %s", j.Name, in.Index, in.State()))
	}
	return lines, nil
}

// Tick advances every instance by one step of the transition table. Each
// instance's own spawn closure is bound to that instance alone, so no
// instance mutates another's slot and the fixed-length instances slice is
// never resized mid-scan; the re-entrancy spec.md §9 warns about (a Job
// calling its own start() from inside tick) cannot occur because spawning
// is delegated to the per-instance closure below, not to Start.
func (j *Job) Tick(now time.Time) {
	params := instance.TickParams{
		StartSecs:    j.spec.StartSecs,
		StartRetries: j.spec.StartRetries,
		StopWaitSecs: j.spec.StopWaitSecs,
		StopSignal:   j.spec.StopSignal,
		ExitCodes:    j.spec.ExitCodes,
		AutoRestart:  j.spec.AutoRestart,
	}
	for _, in := range j.instances {
		before := in.State()
		in.Tick(now, withSpawn(params, j, in))
		after := in.State()
		if after != before {
			metrics.RecordStateTransition(j.Name, before.String(), after.String())
			j.log.Info("state transition", "instance", in.Index, "from", before, "to", after)
			j.recordState(in, after)
			if after == instance.Fatal {
				metrics.IncFatal(j.Name)
			}
		}
		for s := instance.Stopped; s <= instance.Fatal; s++ {
			metrics.SetCurrentState(j.Name, fmt.Sprint(in.Index), s.String(), s == after)
		}
	}
}

func withSpawn(p instance.TickParams, j *Job, in *instance.Instance) instance.TickParams {
	p.Spawn = func(resetRetries bool) error {
		metrics.IncRestart(j.Name)
		return j.spawn(in, time.Now(), resetRetries)
	}
	return p
}

// StopJobNow synchronously terminates every live child and waits for the
// reap. Used only when this Job is removed from the Job Table.
func (j *Job) StopJobNow() {
	now := time.Now()
	for _, in := range j.instances {
		if in.State().HasHandle() {
			in.StopNow(now)
			metrics.IncStop(j.Name)
			j.recordStop(in)
		}
	}
}

// spawn builds the SpawnConfig for one instance from the Job's spec and
// hands it to instance.Spawn, then logs and emits metrics/audit records.
func (j *Job) spawn(in *instance.Instance, now time.Time, resetRetries bool) error {
	cfg := instance.SpawnConfig{
		Command:    j.spec.Command,
		Args:       j.spec.Args,
		Env:        env.Merge(j.spec.Environment),
		WorkDir:    j.spec.WorkDir,
		Umask:      j.spec.Umask,
		HasUmask:   j.spec.HasUmask,
		StdoutFile: j.spec.StdoutFile,
		StderrFile: j.spec.StderrFile,
	}
	metrics.IncStart(j.Name)
	if err := in.Spawn(cfg, now, resetRetries); err != nil {
		return err
	}
	j.log.Info("spawned", "instance", in.Index, "spawn_id", in.SpawnID(), "pid", in.Pid())
	j.recordSpawn(in)
	return nil
}

func (j *Job) recordSpawn(in *instance.Instance) {
	j.send(history.EventSpawn, in, false)
}

func (j *Job) recordStop(in *instance.Instance) {
	j.send(history.EventStop, in, true)
}

func (j *Job) recordState(in *instance.Instance, st instance.State) {
	j.send(history.EventState, in, st == instance.Stopped || st == instance.Exited || st == instance.Fatal)
}

func (j *Job) send(t history.EventType, in *instance.Instance, stopped bool) {
	if j.sink == nil {
		return
	}
	rec := history.Record{
		Job:       j.Name,
		Instance:  in.Index,
		SpawnID:   in.SpawnID(),
		PID:       in.Pid(),
		State:     in.State().String(),
		StartedAt: in.StateChangedAt(),
	}
	if stopped {
		rec.StoppedAt.Time = time.Now().UTC()
		rec.StoppedAt.Valid = true
	}
	sendHistoryAsync(j.sink, history.Event{Type: t, OccurredAt: time.Now().UTC(), Record: rec}, j.log)
}
