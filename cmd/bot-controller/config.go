package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tucoflyer/botcontrol/internal/config"
	"gopkg.in/yaml.v3"
)

func serviceConfigFile() string {
	return config.ServiceConfigName
}

// loadServiceConfig reads the service config, falling back to defaults when
// the file is absent.
func loadServiceConfig(logger *slog.Logger) error {
	if err := config.Load(configDir); err != nil {
		var parseErr viper.ConfigParseError
		if errors.As(err, &parseErr) {
			return err
		}
		logger.Warn("service config not loaded, using defaults", "dir", configDir, "error", err)
		config.LoadDefaults()
	}
	if logLevel != "" {
		viper.Set("logLevel", logLevel)
	}
	return nil
}

// rigConfigPath is the --config flag, or rigConfigFile from the service
// config. explicit reports whether the flag was given.
func rigConfigPath() (path string, explicit bool) {
	if rigConfig != "" {
		return rigConfig, true
	}
	return config.GetString("rigConfigFile"), false
}

// loadRigConfig builds the store. A missing default file keeps the built-in
// rig config; a missing explicit file is an error.
func loadRigConfig(logger *slog.Logger) (*config.Store, error) {
	store := config.NewStore()
	path, explicit := rigConfigPath()
	err := store.Load(path)
	if err == nil {
		return store, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		logger.Warn("rig config not found, using defaults", "path", path)
		return store, nil
	}
	return nil, err
}

func showConfig(cmd *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
	if err := loadServiceConfig(logger); err != nil {
		return err
	}
	store, err := loadRigConfig(logger)
	if err != nil {
		return err
	}
	return writeYAML(cmd.OutOrStdout(), store.Snapshot())
}

// writeYAML renders cfg with its JSON key names.
func writeYAML(w io.Writer, cfg *config.Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(tree); err != nil {
		return fmt.Errorf("write yaml: %w", err)
	}
	return enc.Close()
}

func validateConfig(cmd *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
	if err := loadServiceConfig(logger); err != nil {
		return err
	}
	store, err := loadRigConfig(logger)
	if err != nil {
		return err
	}
	cfg := store.Snapshot()
	if err := cfg.Validate(); err != nil {
		return err
	}
	topo, err := config.GetTopology()
	if err != nil {
		return err
	}
	if err := topo.Validate(len(cfg.Winches)); err != nil {
		return err
	}
	footprint, err := topo.Footprint()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ok: %d winches, mode %s, anchor footprint %.1f m^2\n",
		len(cfg.Winches), cfg.Mode, footprint)
	return nil
}
