// Package logger builds the supervisor's own process-wide structured
// logger (spec.md §1's "append-only log file and process-wide logger",
// an external collaborator the core only consumes through this package)
// and, as a secondary concern, rotating stdout/stderr writers for any
// other named stream (a job's own operational log, in particular). A
// job's stdout_file/stderr_file redirection does not go through this
// package.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters, applied whenever a FileConfig leaves them
// at zero.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// LogLevel names a slog level by the lowercase word an operator would
// type on the command line.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogFormat selects the slog handler shape.
type LogFormat string

const (
	FormatText LogFormat = "text"
	FormatJSON LogFormat = "json"
)

// SlogConfig controls the console-facing structured logger built by
// NewSlogger.
type SlogConfig struct {
	Level      LogLevel
	Format     LogFormat
	Color      bool // wrap a text handler in ColorTextHandler
	TimeStamps bool
	Source     bool
}

// FileConfig describes rotating log destinations for a named stream (a
// job's own operational log, or the supervisor's own daemon log). If
// StdoutPath/StderrPath are empty and Dir is set, files are derived as
// Dir/<name>.stdout.log and Dir/<name>.stderr.log. Rotation parameters
// follow lumberjack semantics.
type FileConfig struct {
	Dir        string
	StdoutPath string
	StderrPath string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Config is the supervisor's unified logging configuration: Slog drives
// the console/TTY handler, File drives the rotating on-disk destinations
// (spec.md §6 "Persisted state: None beyond the append-only log file").
type Config struct {
	Slog SlogConfig
	File FileConfig
}

// ProcessWriters returns io.WriteClosers for stdout and stderr for the
// named stream, or nil when neither Dir nor an explicit path is
// configured. name may include an instance suffix (e.g. "web-1") or name
// the daemon itself (e.g. "taskmasterd").
func (c Config) ProcessWriters(name string) (io.WriteCloser, io.WriteCloser, error) {
	fc := c.File
	stdout := fc.StdoutPath
	stderr := fc.StderrPath
	if stdout == "" && fc.Dir != "" {
		stdout = filepath.Join(fc.Dir, fmt.Sprintf("%s.stdout.log", name))
	}
	if stderr == "" && fc.Dir != "" {
		stderr = filepath.Join(fc.Dir, fmt.Sprintf("%s.stderr.log", name))
	}

	var outW, errW io.WriteCloser
	if stdout != "" {
		outW = &lj.Logger{
			Filename:   stdout,
			MaxSize:    valOr(fc.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(fc.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(fc.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   fc.Compress,
		}
	}
	if stderr != "" {
		errW = &lj.Logger{
			Filename:   stderr,
			MaxSize:    valOr(fc.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(fc.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(fc.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   fc.Compress,
		}
	}
	return outW, errW, nil
}

// NewSlogger builds the supervisor's process-wide *slog.Logger: a
// ColorTextHandler (or plain text/JSON) writing to stdout, teed into the
// rotating append-only file named by File.Dir/File.StdoutPath when
// configured. This is the one logger every package in the core logs
// through (spec.md §9 ambient stack).
func (c Config) NewSlogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     c.Slog.Level.slogLevel(),
		AddSource: c.Slog.Source,
	}

	var out io.Writer = os.Stdout
	if fileW, _, err := c.ProcessWriters("taskmasterd"); err == nil && fileW != nil {
		out = io.MultiWriter(os.Stdout, fileW)
	}

	var handler slog.Handler
	switch c.Slog.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(out, opts)
	default:
		if c.Slog.Color {
			handler = NewColorTextHandler(out, opts, c.Slog.TimeStamps)
		} else {
			handler = slog.NewTextHandler(out, opts)
		}
	}
	return slog.New(handler)
}

// NewProcessLogger builds a *slog.Logger dedicated to one named stream
// (e.g. a job), writing only to that stream's rotating stdout file. It
// returns nil when no file destination is configured, matching the
// "only wire what's configured" convention used throughout this package.
func (c Config) NewProcessLogger(name string) *slog.Logger {
	outW, _, err := c.ProcessWriters(name)
	if err != nil || outW == nil {
		return nil
	}
	return slog.New(slog.NewTextHandler(outW, &slog.HandlerOptions{Level: c.Slog.Level.slogLevel()}))
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
