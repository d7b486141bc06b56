// Package env merges a Job's environment onto the supervisor's own
// environment for a spawned child.
package env

import (
	"fmt"
	"os"
	"strings"
)

// global is the process-wide environment layer loaded once at startup
// from --options' env_files (internal/config.Options.EnvFiles), sitting
// between the supervisor's own os.Environ() and each job's own
// Environment. Mirrors the teacher's Manager.SetGlobalEnv/computeGlobalEnv
// split: one global layer merged under every job's own variables.
var global map[string]string

// SetGlobal installs the global environment layer. Called once, before
// any job spawns, from the single supervisor goroutine.
func SetGlobal(kv map[string]string) { global = kv }

// Merge composes the final environment a child process should receive:
// the supervisor's own OS environment, overlaid with the global layer set
// by SetGlobal, overlaid with the job's configured variables, with
// ${VAR} references expanded against the merged result. The supervisor
// loop is single-threaded (spec.md §5) and every call to Merge happens
// from that one goroutine, so this is a plain map merge with no
// synchronization beyond what os.Environ() itself already does.
func Merge(jobEnv map[string]string) []string {
	m := make(map[string]string, len(jobEnv)+len(global)+16)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	for k, v := range global {
		if k == "" {
			continue
		}
		m[k] = v
	}
	for k, v := range jobEnv {
		if k == "" {
			continue
		}
		m[k] = v
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+expand(v, m))
	}
	return out
}

// LoadEnvFile reads a dotenv-style KEY=VALUE file: blank lines and lines
// starting with "#" are skipped, and a value may be wrapped in matching
// single or double quotes. This is the hand-rolled line grammar the
// teacher's own loadEnvFile uses — viper's job is reading the richer
// structured options file (internal/config.LoadOptions), not this
// line-oriented one.
func LoadEnvFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("env file %q: %w", path, err)
	}
	out := make(map[string]string)
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			return nil, fmt.Errorf("env file %q: invalid line %d: %q", path, i+1, line)
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		if len(val) >= 2 && ((val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'')) {
			val = val[1 : len(val)-1]
		}
		if key == "" {
			return nil, fmt.Errorf("env file %q: empty key at line %d", path, i+1)
		}
		out[key] = val
	}
	return out, nil
}

func expand(s string, m map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	res := s
	for k, v := range m {
		res = strings.ReplaceAll(res, "${"+k+"}", v)
	}
	return res
}
