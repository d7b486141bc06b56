// Command taskmasterd is the process supervisor's single binary: `run`
// starts the Supervisor Loop (spec.md §4.4), and start/stop/restart/status
// are thin operator-facing clients of its control channel (spec.md §6).
// This mirrors the teacher's cmd/provisr layout: flags.go decouples cobra
// from the handler logic, commands.go holds the handlers bound to a small
// command struct, and pkg/client is this package's session/client
// equivalent.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/taskmasterd/taskmasterd/internal/config"
	"github.com/taskmasterd/taskmasterd/internal/env"
	"github.com/taskmasterd/taskmasterd/internal/logger"
	"github.com/taskmasterd/taskmasterd/internal/supervisor"
)

var logFlags struct {
	Level  string
	Format string
	Color  bool
}

// buildLogger builds the console logger shared by every subcommand. The
// `run` subcommand rebuilds it with a FileConfig once --log-dir is parsed
// (see newRunCmd), since only the foreground daemon needs a rotating
// on-disk copy of its own log.
func buildLogger() *slog.Logger {
	return loggerConfig().NewSlogger()
}

func loggerConfig() logger.Config {
	return logger.Config{
		Slog: logger.SlogConfig{
			Level:      logger.LogLevel(logFlags.Level),
			Format:     logger.LogFormat(logFlags.Format),
			Color:      logFlags.Color,
			TimeStamps: true,
		},
	}
}

func main() {
	root := &cobra.Command{
		Use:   "taskmasterd",
		Short: "A process supervisor: launches, observes, and restarts declaratively configured jobs",
	}
	root.PersistentFlags().StringVar(&logFlags.Level, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&logFlags.Format, "log-format", "text", "log format: text, json")
	root.PersistentFlags().BoolVar(&logFlags.Color, "log-color", true, "colorize console log output")

	c := &command{}
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		c.log = buildLogger()
		slog.SetDefault(c.log)
	}

	root.AddCommand(
		newRunCmd(c),
		newStartCmd(c),
		newStopCmd(c),
		newRestartCmd(c),
		newStatusCmd(c),
	)

	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd(c *command) *cobra.Command {
	var f RunFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the supervisor loop in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.OptionsPath != "" {
				opts, err := config.LoadOptions(f.OptionsPath)
				if err != nil {
					return fmt.Errorf("load options: %w", err)
				}
				applyOptions(cmd, &f, opts)
				if err := loadGlobalEnv(opts.EnvFiles); err != nil {
					return err
				}
			}
			if f.LogDir != "" {
				cfg := loggerConfig()
				cfg.File = logger.FileConfig{Dir: f.LogDir}
				c.log = cfg.NewSlogger()
				slog.SetDefault(c.log)
			}
			return c.runSupervisor(f)
		},
	}
	cmd.Flags().StringVar(&f.ConfigPath, "config", "", "path to the INI-style job config file (required)")
	cmd.Flags().StringVar(&f.ControlAddr, "control-addr", "localhost:4241", "control channel listen address")
	cmd.Flags().StringVar(&f.MetricsListen, "metrics-listen", "", "address to serve GET /status and GET /metrics (empty disables)")
	cmd.Flags().StringVar(&f.HistoryDSN, "history-dsn", "", "audit sink DSN: sqlite://, postgres://, clickhouse://, opensearch:// (empty disables)")
	cmd.Flags().StringVar(&f.LogDir, "log-dir", "", "directory for the rotating append-only daemon log (run only)")
	cmd.Flags().StringVar(&f.OptionsPath, "options", "", "path to a YAML/TOML/JSON daemon options file (control_addr, metrics_listen, history_dsn, log_dir, env_files)")
	return cmd
}

// applyOptions fills in any RunFlags field the operator didn't pass
// explicitly on the command line from opts, read via config.LoadOptions.
// A flag the operator did pass always wins — this is the viper+cobra
// "file supplies defaults, flags override" binding, the CLI-flag-binding
// half of the teacher's viper usage (internal/config's own generic
// unmarshal is the other half).
func applyOptions(cmd *cobra.Command, f *RunFlags, opts config.Options) {
	if !cmd.Flags().Changed("control-addr") && opts.ControlAddr != "" {
		f.ControlAddr = opts.ControlAddr
	}
	if !cmd.Flags().Changed("metrics-listen") && opts.MetricsListen != "" {
		f.MetricsListen = opts.MetricsListen
	}
	if !cmd.Flags().Changed("history-dsn") && opts.HistoryDSN != "" {
		f.HistoryDSN = opts.HistoryDSN
	}
	if !cmd.Flags().Changed("log-dir") && opts.LogDir != "" {
		f.LogDir = opts.LogDir
	}
}

// loadGlobalEnv reads every env file named by --options' env_files and
// installs the merged result as the process-wide environment layer
// (internal/env.SetGlobal), ahead of any job's own Environment. This is
// the teacher's computeGlobalEnv/loadEnvFile pattern: viper supplies the
// file list, the per-line KEY=VALUE grammar is hand-rolled exactly as the
// teacher's own loadEnvFile reads it.
func loadGlobalEnv(files []string) error {
	if len(files) == 0 {
		return nil
	}
	merged := make(map[string]string)
	for _, f := range files {
		pairs, err := env.LoadEnvFile(f)
		if err != nil {
			return err
		}
		for k, v := range pairs {
			merged[k] = v
		}
	}
	env.SetGlobal(merged)
	return nil
}

func newStartCmd(c *command) *cobra.Command {
	return controlCmd("start", "Start a job or one of its instances", (*command).controlStart, c)
}

func newStopCmd(c *command) *cobra.Command {
	return controlCmd("stop", "Stop a job or one of its instances", (*command).controlStop, c)
}

func newRestartCmd(c *command) *cobra.Command {
	return controlCmd("restart", "Restart a job or one of its instances", (*command).controlRestart, c)
}

func newStatusCmd(c *command) *cobra.Command {
	return controlCmd("status", "Show status for one job, one instance, or every job", (*command).controlStatus, c)
}

// controlCmd builds a cobra command that parses "<job>" or "<job>:<index>"
// as its sole positional argument and dispatches through the control
// channel client (spec.md §6's request grammar, client-side).
func controlCmd(name, short string, do func(*command, ControlFlags) (string, error), c *command) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   name + " [job[:index]]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := ControlFlags{Addr: addr, Index: -1}
			if len(args) == 1 {
				job, idx, err := splitJobIndex(args[0])
				if err != nil {
					return err
				}
				f.Job = job
				f.Index = idx
			} else if name != "status" {
				return fmt.Errorf("%s requires a job name", name)
			}
			reply, err := do(c, f)
			if err != nil {
				return err
			}
			printLine(reply)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "control channel address (default localhost:4241)")
	return cmd
}

// splitJobIndex parses the "<job>" or "<job>:<index>" operand shape used
// by both the control-channel wire protocol and this CLI (spec.md §6).
func splitJobIndex(s string) (job string, index int, err error) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			idxStr := s[i+1:]
			n, convErr := supervisor.ParseSignalIndex(idxStr)
			if convErr != nil {
				return "", 0, convErr
			}
			return s[:i], n, nil
		}
	}
	return s, -1, nil
}
