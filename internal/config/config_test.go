package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("INSPECTFORM_DRAFT__DEBOUNCE")
	os.Unsetenv("INSPECTFORM_SYNC__BASE_URL")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Draft.Debounce != 500*time.Millisecond {
		t.Errorf("debounce = %v, want 500ms", cfg.Draft.Debounce)
	}
	if cfg.Sync.Timeout != 15*time.Second {
		t.Errorf("timeout = %v, want 15s", cfg.Sync.Timeout)
	}
	if cfg.Sync.BaseURL != "" {
		t.Errorf("base url = %q, want empty", cfg.Sync.BaseURL)
	}
	if cfg.Store.Path == "" {
		t.Error("store path should default to a non-empty location")
	}
}

func TestLoadFileAndEnvOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inspectform.yaml")
	body := "sync:\n  base_url: https://file.example\n  timeout: 5s\nstore:\n  path: /tmp/drafts.db\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	os.Setenv("INSPECTFORM_SYNC__BASE_URL", "https://env.example")
	defer os.Unsetenv("INSPECTFORM_SYNC__BASE_URL")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sync.BaseURL != "https://env.example" {
		t.Errorf("base url = %q, environment should win over the file", cfg.Sync.BaseURL)
	}
	if cfg.Sync.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want the file's 5s", cfg.Sync.Timeout)
	}
	if cfg.Store.Path != "/tmp/drafts.db" {
		t.Errorf("store path = %q, want the file's value", cfg.Store.Path)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() should fail for a missing config file")
	}
}
