// Package config loads runtime settings for the inspection wizard from an
// optional YAML file and the INSPECTFORM_ environment, environment winning.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Store StoreConfig `koanf:"store"`
	Sync  SyncConfig  `koanf:"sync"`
	Draft DraftConfig `koanf:"draft"`
}

type StoreConfig struct {
	// Path of the local SQLite draft database.
	Path string `koanf:"path"`
}

type SyncConfig struct {
	// BaseURL of the remote inspection service. Empty disables remote sync;
	// drafts then live only in the local store.
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

type DraftConfig struct {
	// Debounce is the quiet period before edited values are flushed to the
	// local store.
	Debounce time.Duration `koanf:"debounce"`
}

// Load reads path (when non-empty) and then overlays INSPECTFORM_ environment
// variables, with double underscores separating nesting levels, e.g.
// INSPECTFORM_SYNC__BASE_URL.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("INSPECTFORM_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "INSPECTFORM_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("config: read environment: %w", err)
	}

	applyDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	if !k.Exists("store.path") {
		k.Set("store.path", defaultStorePath())
	}
	if !k.Exists("sync.timeout") {
		k.Set("sync.timeout", "15s")
	}
	if !k.Exists("draft.debounce") {
		k.Set("draft.debounce", "500ms")
	}
}

func defaultStorePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "inspectform.db"
	}
	return dir + string(os.PathSeparator) + "inspectform" + string(os.PathSeparator) + "drafts.db"
}
