package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Session.Backend != "synthetic" {
		t.Fatalf("expected synthetic backend by default, got %q", cfg.Session.Backend)
	}
	if cfg.Recording.MaxLongEdge != 1280 {
		t.Fatalf("expected 1280 long-edge clamp, got %d", cfg.Recording.MaxLongEdge)
	}
}

func TestLoadMissingImplicitFileFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	restore := chdir(t, dir)
	defer restore()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load with no file: %v", err)
	}
	if cfg.Source != "<defaults>" {
		t.Fatalf("expected default source marker, got %q", cfg.Source)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for explicit missing file")
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[paths]",
		`output_dir = "out"`,
		"",
		"[session]",
		`backend = "camera"`,
		"width = 1920",
		"height = 1080",
		"frame_rate = 24",
		"",
		"[recording]",
		`format = "mp4"`,
		"frame_rate = 25",
		"bitrate_kbps = 4000",
		"",
		"[logging]",
		`level = "debug"`,
		`format = "console"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Paths.OutputDir != "out" {
		t.Fatalf("expected output dir override, got %q", cfg.Paths.OutputDir)
	}
	if cfg.Session.Backend != "camera" || cfg.Session.Width != 1920 || cfg.Session.FrameRate != 24 {
		t.Fatalf("unexpected session config: %+v", cfg.Session)
	}
	if cfg.Recording.Format != "mp4" || cfg.Recording.FrameRate != 25 {
		t.Fatalf("unexpected recording config: %+v", cfg.Recording)
	}
	// Untouched keys keep their defaults.
	if cfg.Recording.KeyframeInterval != 60 {
		t.Fatalf("expected default keyframe interval, got %d", cfg.Recording.KeyframeInterval)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Logging.Level)
	}
	if cfg.Source != path {
		t.Fatalf("expected source %q, got %q", path, cfg.Source)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty output dir", func(c *Config) { c.Paths.OutputDir = " " }},
		{"unknown backend", func(c *Config) { c.Session.Backend = "quantum" }},
		{"zero frame rate", func(c *Config) { c.Recording.FrameRate = 0 }},
		{"zero bitrate", func(c *Config) { c.Recording.BitrateKbps = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"zero long edge", func(c *Config) { c.Recording.MaxLongEdge = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestNormalizeLogLevel(t *testing.T) {
	if lvl, err := NormalizeLogLevel("WARNING"); err != nil || lvl != "warn" {
		t.Fatalf("expected warn, got %q err=%v", lvl, err)
	}
	if _, err := NormalizeLogLevel("silent"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	return func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore wd: %v", err)
		}
	}
}
