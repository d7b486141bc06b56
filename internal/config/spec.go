package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/taskmasterd/taskmasterd/internal/job"
)

var signalByName = map[string]int{
	"HUP":  1,
	"INT":  2,
	"QUIT": 3,
	"KILL": 9,
	"USR1": 10,
	"USR2": 12,
	"TERM": 15,
}

const (
	defaultNumProcs     = 1
	defaultAutoRestart  = job.AutoRestartUnexpectedExit
	defaultStartSecs    = 1
	defaultStartRetries = 3
	defaultStopSignal   = 15 // TERM
	defaultStopWaitSecs = 10
)

// decodeSpec turns one raw [job] section into a validated job.Spec, per
// the key table of spec.md §6.
func decodeSpec(jobName string, keys map[string]string) (job.Spec, error) {
	s := job.Spec{
		NumProcs:     defaultNumProcs,
		AutoRestart:  defaultAutoRestart,
		ExitCodes:    map[int]bool{0: true},
		StartSecs:    defaultStartSecs,
		StartRetries: defaultStartRetries,
		StopSignal:   defaultStopSignal,
		StopWaitSecs: defaultStopWaitSecs,
	}

	rawCmd, ok := keys["command"]
	if !ok || strings.TrimSpace(rawCmd) == "" {
		return s, parseErr(jobName, "command", fmt.Errorf("required"))
	}
	fields := strings.Fields(rawCmd)
	s.Command = fields[0]
	s.Args = fields[1:]

	if v, ok := keys["numprocs"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return s, parseErr(jobName, "numprocs", fmt.Errorf("must be a positive integer, got %q", v))
		}
		s.NumProcs = n
	}

	if v, ok := keys["autostart"]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return s, parseErr(jobName, "autostart", fmt.Errorf("must be a boolean, got %q", v))
		}
		s.AutoStart = b
	}

	if v, ok := keys["autorestart"]; ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "always":
			s.AutoRestart = job.AutoRestartAlways
		case "never":
			s.AutoRestart = job.AutoRestartNever
		case "unexpected":
			s.AutoRestart = job.AutoRestartUnexpectedExit
		default:
			return s, parseErr(jobName, "autorestart", fmt.Errorf("must be one of always,never,unexpected, got %q", v))
		}
	}

	if v, ok := keys["exitcodes"]; ok {
		codes, err := parseIntList(v)
		if err != nil {
			return s, parseErr(jobName, "exitcodes", err)
		}
		s.ExitCodes = codes
	}

	if v, ok := keys["startsecs"]; ok {
		n, err := parseNonNegInt(v)
		if err != nil {
			return s, parseErr(jobName, "startsecs", err)
		}
		s.StartSecs = n
	}

	if v, ok := keys["startretries"]; ok {
		n, err := parseNonNegInt(v)
		if err != nil {
			return s, parseErr(jobName, "startretries", err)
		}
		s.StartRetries = n
	}

	if v, ok := keys["stopsignal"]; ok {
		sig, ok := signalByName[strings.ToUpper(strings.TrimSpace(v))]
		if !ok {
			return s, parseErr(jobName, "stopsignal", fmt.Errorf("unrecognized signal name %q", v))
		}
		s.StopSignal = sig
	}

	if v, ok := keys["stopwaitsecs"]; ok {
		n, err := parseNonNegInt(v)
		if err != nil {
			return s, parseErr(jobName, "stopwaitsecs", err)
		}
		s.StopWaitSecs = n
	}

	if v, ok := keys["stdout"]; ok {
		if strings.ContainsAny(v, " \t") {
			return s, parseErr(jobName, "stdout", fmt.Errorf("path must not contain whitespace"))
		}
		s.StdoutFile = v
	}
	if v, ok := keys["stderr"]; ok {
		if strings.ContainsAny(v, " \t") {
			return s, parseErr(jobName, "stderr", fmt.Errorf("path must not contain whitespace"))
		}
		s.StderrFile = v
	}

	if v, ok := keys["environment"]; ok {
		env, err := parseEnvironment(v)
		if err != nil {
			return s, parseErr(jobName, "environment", err)
		}
		s.Environment = env
	}

	if v, ok := keys["workdir"]; ok {
		if strings.ContainsAny(v, " \t") {
			return s, parseErr(jobName, "workdir", fmt.Errorf("path must not contain whitespace"))
		}
		s.WorkDir = v
	}

	if v, ok := keys["umask"]; ok {
		u, err := parseUmask(v)
		if err != nil {
			return s, parseErr(jobName, "umask", err)
		}
		s.Umask = u
		s.HasUmask = true
	}

	if err := s.Validate(); err != nil {
		return s, parseErr(jobName, "", err)
	}
	return s, nil
}

func parseIntList(v string) (map[int]bool, error) {
	out := map[int]bool{}
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", part)
		}
		out[n] = true
	}
	if len(out) == 0 {
		out[0] = true
	}
	return out, nil
}

func parseNonNegInt(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("must be a non-negative integer, got %q", v)
	}
	return n, nil
}

// parseEnvironment decodes comma-separated K="V" pairs; quotes are
// optional, and a quoted value may itself contain "=" (spec.md §6).
func parseEnvironment(v string) (map[string]string, error) {
	out := map[string]string{}
	for _, part := range splitUnquoted(v, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("expected K=V or K=\"V\", got %q", part)
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
			val = val[1 : len(val)-1]
		}
		if key == "" {
			return nil, fmt.Errorf("empty environment key in %q", part)
		}
		out[key] = val
	}
	return out, nil
}

// splitUnquoted splits s on sep, except commas inside a double-quoted
// span, so a quoted value may contain "=" and even the separator itself.
func splitUnquoted(s string, sep byte) []string {
	var parts []string
	var buf strings.Builder
	inQuotes := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			buf.WriteByte(c)
		case c == sep && !inQuotes:
			parts = append(parts, buf.String())
			buf.Reset()
		default:
			buf.WriteByte(c)
		}
	}
	parts = append(parts, buf.String())
	return parts
}

func parseUmask(v string) (int, error) {
	v = strings.TrimSpace(v)
	if len(v) != 3 {
		return 0, fmt.Errorf("must be exactly 3 octal digits, got %q", v)
	}
	n, err := strconv.ParseInt(v, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("must be octal [0-7]{3}, got %q", v)
	}
	return int(n), nil
}
