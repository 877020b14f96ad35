package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MEMENGINE_DB", "")
	t.Setenv("MEMENGINE_ADDR", "")
	t.Setenv("MEMENGINE_APPS", "")

	cfg := Load()
	if cfg.DBPath == "" {
		t.Error("expected a default db path")
	}
	if cfg.ListenAddr != ":8807" {
		t.Errorf("addr = %q, want :8807", cfg.ListenAddr)
	}
	if cfg.RegistryPath != "" {
		t.Errorf("registry path = %q, want empty", cfg.RegistryPath)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("MEMENGINE_DB", "/tmp/custom.db")
	t.Setenv("MEMENGINE_ADDR", ":9000")
	t.Setenv("MEMENGINE_APPS", "/tmp/apps.yml")

	cfg := Load()
	if cfg.DBPath != "/tmp/custom.db" || cfg.ListenAddr != ":9000" || cfg.RegistryPath != "/tmp/apps.yml" {
		t.Errorf("env not honored: %+v", cfg)
	}
}

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apps.yml")
	data := `apps:
  - id: notes
    name: Notes
    type: internal
    domains: [ui, database]
    internal: true
    ai_enabled: true
  - id: legacy
    name: Legacy
    active: false
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	apps, err := LoadRegistry(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(apps) != 2 {
		t.Fatalf("expected 2 apps, got %d", len(apps))
	}

	notes := apps[0]
	if notes.ID != "notes" || !notes.Internal || !notes.AIEnabled || len(notes.Domains) != 2 {
		t.Errorf("notes app mismatch: %+v", notes)
	}
	if !notes.Active {
		t.Error("active should default to true")
	}
	if apps[1].Active {
		t.Error("explicit active: false not honored")
	}
}

func TestLoadRegistry_MissingID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apps.yml")
	os.WriteFile(path, []byte("apps:\n  - name: nameless\n"), 0o644)

	if _, err := LoadRegistry(path); err == nil {
		t.Error("expected error for app without id")
	}
}

func TestLoadRegistry_MissingFile(t *testing.T) {
	if _, err := LoadRegistry(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Error("expected error for missing file")
	}
}
