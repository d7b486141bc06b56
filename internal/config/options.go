package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Options holds the daemon-level settings that sit outside any single
// job's spec: the control-channel address, the optional introspect/audit
// wiring, where the daemon's own log lives, and the env files that feed
// the process-wide environment layer (internal/env.SetGlobal). Unlike the
// bespoke per-job grammar decodeSpec hand-rolls (spec.md §6's "first
// token is the executable" convention), this is a generic structured file
// — viper picks the codec from the extension (YAML/TOML/JSON/...) and
// mapstructure-unmarshals it, exactly the split the teacher's own
// internal/config.parseConfigFile uses between a generic top-level Config
// struct and its hand-decoded per-process union.
type Options struct {
	ControlAddr   string   `mapstructure:"control_addr"`
	MetricsListen string   `mapstructure:"metrics_listen"`
	HistoryDSN    string   `mapstructure:"history_dsn"`
	LogDir        string   `mapstructure:"log_dir"`
	EnvFiles      []string `mapstructure:"env_files"`
}

// LoadOptions reads path into an Options value. path's extension selects
// the viper codec (yaml, toml, json, ini, ...); a missing or unparsable
// file is returned as an error naming the file path (the daemon's own
// startup-fatal vs. reload-non-fatal distinction doesn't apply here since
// Options is only ever read once, at process start).
func LoadOptions(path string) (Options, error) {
	var o Options
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return o, fmt.Errorf("options file %q: %w", path, err)
	}
	if err := v.Unmarshal(&o); err != nil {
		return o, fmt.Errorf("options file %q: %w", path, err)
	}
	return o, nil
}
