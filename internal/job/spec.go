package job

import (
	"fmt"
	"sort"
	"strings"

	"github.com/taskmasterd/taskmasterd/internal/instance"
)

// AutoRestart re-exports instance.AutoRestart so callers never need to
// import the instance package just to build a Spec.
type AutoRestart = instance.AutoRestart

const (
	AutoRestartAlways         = instance.AutoRestartAlways
	AutoRestartNever          = instance.AutoRestartNever
	AutoRestartUnexpectedExit = instance.AutoRestartUnexpectedExit
)

// Spec is the immutable Job Spec (spec.md §3). Equal compares every field;
// it is the comparison reconciliation uses to decide whether a Job survives
// a reload untouched.
type Spec struct {
	Command      string
	Args         []string
	NumProcs     int
	AutoStart    bool
	AutoRestart  AutoRestart
	ExitCodes    map[int]bool
	StartSecs    int
	StartRetries int
	StopSignal   int
	StopWaitSecs int
	StdoutFile   string
	StderrFile   string
	Environment  map[string]string
	WorkDir      string
	Umask        int
	HasUmask     bool
}

// Validate enforces the constraints spec.md §3/§6 place on a Job Spec,
// independent of how it was parsed.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Command) == "" {
		return fmt.Errorf("command: must not be empty")
	}
	if strings.ContainsAny(s.Command, " \t\n") {
		return fmt.Errorf("command: must not contain whitespace")
	}
	if s.NumProcs < 1 {
		return fmt.Errorf("numprocs: must be >= 1, got %d", s.NumProcs)
	}
	if s.StartSecs < 0 || s.StartRetries < 0 || s.StopWaitSecs < 0 {
		return fmt.Errorf("startsecs/startretries/stopwaitsecs: must be >= 0")
	}
	return nil
}

// Equal implements the spec.md §4.2 "equality of Job specs" used by
// reconciliation: by all spec fields, never by live instance data.
func (s Spec) Equal(o Spec) bool {
	if s.Command != o.Command || s.NumProcs != o.NumProcs || s.AutoStart != o.AutoStart ||
		s.AutoRestart != o.AutoRestart || s.StartSecs != o.StartSecs || s.StartRetries != o.StartRetries ||
		s.StopSignal != o.StopSignal || s.StopWaitSecs != o.StopWaitSecs || s.StdoutFile != o.StdoutFile ||
		s.StderrFile != o.StderrFile || s.WorkDir != o.WorkDir || s.HasUmask != o.HasUmask || s.Umask != o.Umask {
		return false
	}
	if !stringSliceEqual(s.Args, o.Args) {
		return false
	}
	if !intSetEqual(s.ExitCodes, o.ExitCodes) {
		return false
	}
	if !stringMapEqual(s.Environment, o.Environment) {
		return false
	}
	return true
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func intSetEqual(a, b map[int]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func stringMapEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// sortedExitCodes returns codes in ascending order so job.New's "job
// registered" log line is deterministic across runs instead of reflecting
// Go's randomized map iteration order.
func sortedExitCodes(codes map[int]bool) []int {
	out := make([]int, 0, len(codes))
	for c := range codes {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}
