package main

import (
	"testing"

	"github.com/taskmasterd/taskmasterd/internal/logger"
)

func TestSplitJobIndex_NoColon(t *testing.T) {
	job, idx, err := splitJobIndex("web")
	if err != nil {
		t.Fatalf("splitJobIndex: %v", err)
	}
	if job != "web" || idx != -1 {
		t.Errorf("got (%q, %d), want (\"web\", -1)", job, idx)
	}
}

func TestSplitJobIndex_WithIndex(t *testing.T) {
	job, idx, err := splitJobIndex("web:2")
	if err != nil {
		t.Fatalf("splitJobIndex: %v", err)
	}
	if job != "web" || idx != 2 {
		t.Errorf("got (%q, %d), want (\"web\", 2)", job, idx)
	}
}

func TestSplitJobIndex_BadIndex(t *testing.T) {
	if _, _, err := splitJobIndex("web:nope"); err == nil {
		t.Fatal("expected error for non-numeric index")
	}
}

func TestLoggerConfig_DefaultsToTextInfo(t *testing.T) {
	logFlags.Level = "info"
	logFlags.Format = "text"
	logFlags.Color = false

	cfg := loggerConfig()
	if cfg.Slog.Level != logger.LevelInfo {
		t.Errorf("level = %q", cfg.Slog.Level)
	}
	if cfg.Slog.Format != logger.FormatText {
		t.Errorf("format = %q", cfg.Slog.Format)
	}
}
