package plugin

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, ManifestFile)
	writeFile(t, manifestPath, `{
		"name": "minify",
		"version": "1.2.0",
		"displayName": "Minify",
		"dependencies": ["banner"],
		"hooks": ["transform"],
		"configSchema": {
			"level": {"type": "number", "default": 2},
			"mode": {"type": "string"}
		}
	}`)

	m, err := LoadManifest(manifestPath)
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}

	if m.Name != "minify" {
		t.Errorf("Name = %q, want %q", m.Name, "minify")
	}
	if m.Main != "init.lua" {
		t.Errorf("Main = %q, want default init.lua", m.Main)
	}
	if m.Path() != dir {
		t.Errorf("Path() = %q, want %q", m.Path(), dir)
	}
	if m.MainPath() != filepath.Join(dir, "init.lua") {
		t.Errorf("MainPath() = %q", m.MainPath())
	}
	if len(m.Hooks) != 1 || m.Hooks[0] != "transform" {
		t.Errorf("Hooks = %v, want [transform]", m.Hooks)
	}

	defaults := m.ConfigDefaults()
	if len(defaults) != 1 || defaults["level"] != float64(2) {
		t.Errorf("ConfigDefaults() = %v, want map[level:2]", defaults)
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"missing name", `{"version": "1.0.0"}`, ErrMissingName},
		{"invalid name", `{"name": "Bad_Name"}`, ErrInvalidName},
		{"invalid version", `{"name": "ok", "version": "1.0"}`, ErrInvalidVersion},
		{"invalid main", `{"name": "ok", "main": "init.js"}`, ErrInvalidMain},
		{"self dependency", `{"name": "ok", "dependencies": ["ok"]}`, ErrSelfDependency},
		{"invalid config type", `{"name": "ok", "configSchema": {"x": {"type": "date"}}}`, ErrInvalidConfigType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), ManifestFile)
			writeFile(t, path, tt.content)

			_, err := LoadManifest(path)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("LoadManifest() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadManifestInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), ManifestFile)
	writeFile(t, path, "invalid json")

	if _, err := LoadManifest(path); err == nil {
		t.Error("LoadManifest() with invalid JSON should return error")
	}
}

func TestLoadManifestNotFound(t *testing.T) {
	if _, err := LoadManifestFromDir("/nonexistent/path"); err == nil {
		t.Error("LoadManifestFromDir() with nonexistent dir should return error")
	}
}
