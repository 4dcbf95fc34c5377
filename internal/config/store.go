package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/spf13/viper"
)

// Store owns the current rig Config and publishes a new snapshot on every
// accepted update. Snapshots are never mutated once published.
type Store struct {
	mu      sync.Mutex // serializes Update/Load
	v       *viper.Viper
	current atomic.Pointer[Config]
	path    string
}

// NewStore returns a store holding the built-in defaults.
func NewStore() *Store {
	s := &Store{}
	v, cfg, err := decode(defaultSettings(), nil)
	if err != nil {
		// Default() is a compile-time constant; failing here is a bug.
		panic(err)
	}
	s.v = v
	s.current.Store(cfg)
	return s
}

// Load merges the JSON file at path over the defaults. An empty path keeps
// the defaults.
func (s *Store) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.path = path
	if path == "" {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading rig config: %w", err)
	}
	var overrides map[string]any
	if err := json.Unmarshal(raw, &overrides); err != nil {
		return fmt.Errorf("error parsing rig config %s: %w", path, err)
	}

	v, cfg, err := decode(s.v.AllSettings(), overrides)
	if err != nil {
		return err
	}
	s.v = v
	s.current.Store(cfg)
	return nil
}

// Snapshot returns the current config.
func (s *Store) Snapshot() *Config {
	return s.current.Load()
}

// Update deep-merges a partial config object over the current settings.
// Nested objects merge key by key; lists replace the previous list. The new
// snapshot is published only if it validates.
func (s *Store) Update(partial map[string]any) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, cfg, err := decode(s.v.AllSettings(), partial)
	if err != nil {
		return s.current.Load(), err
	}
	s.v = v
	s.current.Store(cfg)
	return cfg, nil
}

// Save writes the current config as JSON to path, or to the loaded path
// when path is empty.
func (s *Store) Save(path string) error {
	if path == "" {
		path = s.path
	}
	if path == "" {
		return errors.New("no rig config path to save to")
	}
	data, err := json.MarshalIndent(s.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding rig config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing rig config: %w", err)
	}
	return nil
}

func decode(base, overlay map[string]any) (*viper.Viper, *Config, error) {
	if overlay != nil {
		base = withoutReplacedKeys(base, overlay)
	}

	v := viper.New()
	if err := v.MergeConfigMap(base); err != nil {
		return nil, nil, fmt.Errorf("error merging rig config: %w", err)
	}
	if overlay != nil {
		if err := v.MergeConfigMap(overlay); err != nil {
			return nil, nil, fmt.Errorf("error merging rig config update: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.Mode.Kind != ModeManualWinch {
		cfg.Mode.WinchID = 0
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return v, cfg, nil
}

// replacedKeys are top-level objects an update swaps whole instead of
// merging, so no field of the previous value survives.
var replacedKeys = []string{"mode"}

// withoutReplacedKeys returns base minus every replaced key present in
// overlay. base itself is not modified.
func withoutReplacedKeys(base, overlay map[string]any) map[string]any {
	var out map[string]any
	for k := range overlay {
		for _, r := range replacedKeys {
			if !strings.EqualFold(k, r) {
				continue
			}
			if out == nil {
				out = maps.Clone(base)
			}
			for bk := range out {
				if strings.EqualFold(bk, r) {
					delete(out, bk)
				}
			}
		}
	}
	if out == nil {
		return base
	}
	return out
}

// defaultSettings flattens Default() into the generic map form viper merges.
func defaultSettings() map[string]any {
	raw, err := json.Marshal(Default())
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		panic(err)
	}
	return m
}
