package config

import "fmt"

// Kind names one of spec.md §7's config-time error kinds (a taxonomy of
// kinds, not distinct type names, matching the teacher's
// isExpectedShutdownError-style classification by predicate rather than
// by a proliferation of error types).
type Kind string

const (
	KindConfigLoad  Kind = "ConfigLoad"
	KindConfigParse Kind = "ConfigParse"
	KindBadJobName  Kind = "BadJobName"
	KindNoJobs      Kind = "NoJobs"
)

// Error wraps a config-time failure with its kind and, where applicable,
// the offending job name and field (spec.md §7: "ConfigParse: ... includes
// the offending job name and field").
type Error struct {
	Kind  Kind
	Job   string
	Field string
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Job != "" && e.Field != "":
		return fmt.Sprintf("%s: job %q field %q: %v", e.Kind, e.Job, e.Field, e.Err)
	case e.Job != "":
		return fmt.Sprintf("%s: job %q: %v", e.Kind, e.Job, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, &Error{Kind: k}) match any Error of that kind,
// so a caller can classify a config error by kind without string matching.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func loadErr(err error) error  { return &Error{Kind: KindConfigLoad, Err: err} }
func noJobsErr() error         { return &Error{Kind: KindNoJobs, Err: fmt.Errorf("config contains zero jobs")} }
func badNameErr(name string) error {
	return &Error{Kind: KindBadJobName, Job: name, Err: fmt.Errorf("must be non-empty and alphanumeric")}
}
func parseErr(job, field string, err error) error {
	return &Error{Kind: KindConfigParse, Job: job, Field: field, Err: err}
}
