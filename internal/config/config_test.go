package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Plugins.Timeout.Std() != 5*time.Second {
		t.Errorf("Plugins.Timeout = %v, want 5s", cfg.Plugins.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "tapline.toml", `
[log]
level = "debug"

[plugins]
paths = ["plugins"]
timeout = "250ms"

[plugins.config.banner]
text = "/* built */"

[stages]
processAssets = [-50, 50]

[watch]
debounce = "1s"
`)

	cfg, err := Load(WithPath(path), WithoutEnv())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Source != path {
		t.Errorf("Source = %q, want %q", cfg.Source, path)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want default text", cfg.Log.Format)
	}
	if !slices.Equal(cfg.Plugins.Paths, []string{"plugins"}) {
		t.Errorf("Plugins.Paths = %v", cfg.Plugins.Paths)
	}
	if cfg.Plugins.Timeout.Std() != 250*time.Millisecond {
		t.Errorf("Plugins.Timeout = %v, want 250ms", cfg.Plugins.Timeout)
	}
	if got := cfg.Plugins.Config["banner"]["text"]; got != "/* built */" {
		t.Errorf("Plugins.Config[banner][text] = %v", got)
	}
	if !slices.Equal(cfg.Stages.ProcessAssets, []int64{-50, 50}) {
		t.Errorf("Stages.ProcessAssets = %v, want [-50 50]", cfg.Stages.ProcessAssets)
	}
	if cfg.Watch.Debounce.Std() != time.Second {
		t.Errorf("Watch.Debounce = %v, want 1s", cfg.Watch.Debounce)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "tapline.yaml", `
log:
  format: json
trace:
  output: trace.jsonl
telemetry:
  enabled: true
`)

	cfg, err := Load(WithPath(path), WithoutEnv())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json", cfg.Log.Format)
	}
	if cfg.Trace.Output != "trace.jsonl" {
		t.Errorf("Trace.Output = %q", cfg.Trace.Output)
	}
	if !cfg.Telemetry.Enabled {
		t.Error("Telemetry.Enabled = false, want true")
	}
}

func TestLoadCandidates(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tapline.yml"), []byte("log:\n  level: warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(WithBaseDir(dir), WithoutEnv())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}

	cfg, err = Load(WithBaseDir(t.TempDir()), WithoutEnv())
	if err != nil {
		t.Fatalf("Load without file failed: %v", err)
	}
	if cfg.Source != "" {
		t.Errorf("Source = %q, want empty", cfg.Source)
	}
}

func TestLoadMissingPath(t *testing.T) {
	_, err := Load(WithPath(filepath.Join(t.TempDir(), "absent.toml")), WithoutEnv())
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("Load() error = %v, want ErrConfigNotFound", err)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "tapline.toml", "[log]\nlevel = \"debug\"\n")
	t.Setenv("TAPLINE_LOG_LEVEL", "error")
	t.Setenv("TAPLINE_BREAKPOINTS", "[10]")
	t.Setenv("TAPLINE_PLUGIN_TIMEOUT", "2s")

	cfg, err := Load(WithPath(path))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("Log.Level = %q, want error", cfg.Log.Level)
	}
	if !slices.Equal(cfg.Stages.ProcessAssets, []int64{10}) {
		t.Errorf("Stages.ProcessAssets = %v, want [10]", cfg.Stages.ProcessAssets)
	}
	if cfg.Plugins.Timeout.Std() != 2*time.Second {
		t.Errorf("Plugins.Timeout = %v, want 2s", cfg.Plugins.Timeout)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"level", "[log]\nlevel = \"loud\"\n", ErrInvalidLogLevel},
		{"format", "[log]\nformat = \"xml\"\n", ErrInvalidLogFormat},
		{"negative", "[watch]\ndebounce = \"-1s\"\n", ErrNegativeDuration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "tapline.toml", tt.content)
			_, err := Load(WithPath(path), WithoutEnv())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadBadDuration(t *testing.T) {
	path := writeConfig(t, "tapline.toml", "[plugins]\ntimeout = \"soon\"\n")
	if _, err := Load(WithPath(path), WithoutEnv()); err == nil {
		t.Error("Load() should reject an unparseable duration")
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := (LogConfig{Level: tt.level}).SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
