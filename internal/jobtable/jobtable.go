// Package jobtable owns the name -> Job mapping and the reconciliation
// algorithm that merges a freshly parsed spec set into the live table
// (spec.md §4.3) without disturbing jobs whose spec hasn't changed.
package jobtable

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"time"

	"github.com/taskmasterd/taskmasterd/internal/history"
	"github.com/taskmasterd/taskmasterd/internal/job"
	"github.com/taskmasterd/taskmasterd/internal/logger"
)

var jobNamePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// Table is the Job Table (C3). It is not safe for concurrent use: the
// supervisor loop is single-threaded and owns it exclusively (spec.md §5).
type Table struct {
	jobs map[string]*job.Job
	log  *slog.Logger
	sink history.Sink

	procLogCfg *logger.Config // optional, set by SetProcLogConfig
}

// New builds an empty Job Table.
func New(log *slog.Logger, sink history.Sink) *Table {
	if log == nil {
		log = slog.Default()
	}
	return &Table{jobs: make(map[string]*job.Job), log: log, sink: sink}
}

// SetProcLogConfig installs the logging config used to build each Job's
// own per-job rotating log (logger.Config.NewProcessLogger), the
// "per-job log correlation" supplement of SPEC_FULL.md §4. Jobs already
// in the table are unaffected; it applies to every Job inserted from this
// call onward (new jobs and reload replacements alike).
func (t *Table) SetProcLogConfig(cfg *logger.Config) { t.procLogCfg = cfg }

// Get returns the Job named name, or nil if absent.
func (t *Table) Get(name string) (*job.Job, bool) {
	j, ok := t.jobs[name]
	return j, ok
}

// Names returns every job name, sorted, for deterministic iteration
// (spec.md §5 "implementation-defined but stable order").
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.jobs))
	for n := range t.jobs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// All returns every Job in name order.
func (t *Table) All() []*job.Job {
	names := t.Names()
	out := make([]*job.Job, len(names))
	for i, n := range names {
		out[i] = t.jobs[n]
	}
	return out
}

// ValidateName enforces invariant 5: job table keys are unique, non-empty,
// alphanumeric, and never the reserved name "default".
func ValidateName(name string) error {
	if name == "default" {
		return fmt.Errorf("job name %q is reserved", name)
	}
	if !jobNamePattern.MatchString(name) {
		return fmt.Errorf("job name %q: must be non-empty and alphanumeric", name)
	}
	return nil
}

// Reconcile merges newSpecs into the table per spec.md §4.3:
//  1. a name absent from the table is inserted as a fresh Job (started if
//     auto_start);
//  2. a name present with an unchanged spec is left untouched;
//  3. a name present with a changed spec is torn down synchronously and
//     replaced;
//  4. a name in the table but absent from newSpecs is torn down and
//     removed.
//
// Reconcile itself never fails: newSpecs is assumed already validated by
// the caller (the Spec Parser), so that a parse failure never reaches this
// method and the table is left untouched on any parse error (spec.md's
// "atomic at the table level" requirement is satisfied by validating
// before calling Reconcile, not inside it).
func (t *Table) Reconcile(newSpecs map[string]job.Spec) {
	for name, spec := range newSpecs {
		old, exists := t.jobs[name]
		if !exists {
			t.insert(name, spec)
			continue
		}
		if old.Spec().Equal(spec) {
			continue
		}
		t.log.Info("job spec changed, replacing", "job", name)
		old.StopJobNow()
		t.insert(name, spec)
	}

	for _, name := range t.Names() {
		if _, stillWanted := newSpecs[name]; !stillWanted {
			t.log.Info("job removed from config", "job", name)
			t.jobs[name].StopJobNow()
			delete(t.jobs, name)
		}
	}
}

func (t *Table) insert(name string, spec job.Spec) {
	j := job.New(name, spec, t.log, t.sink)
	if t.procLogCfg != nil {
		j.SetProcLogger(t.procLogCfg.NewProcessLogger(name))
	}
	t.jobs[name] = j
	if spec.AutoStart {
		_ = j.Start(job.AllInstances())
	}
}

// Tick advances every Job's instances by one step, in stable name order
// (spec.md §5 "within a single tick, Jobs are advanced in an
// implementation-defined but stable order").
func (t *Table) Tick() {
	now := time.Now()
	for _, j := range t.All() {
		j.Tick(now)
	}
}

// StopAll synchronously tears down every Job, used on supervisor shutdown
// (spec.md §5).
func (t *Table) StopAll() {
	for _, j := range t.All() {
		j.StopJobNow()
	}
}
