// Package config loads the demo binary configuration from a JSON file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadWithDefaults loads the configuration file, falling back to defaults
// when the file does not exist.
func LoadWithDefaults(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg, nil
	}
	return Load(path)
}

// applyDefaults sets default values for unset fields.
func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.SettleIntervalMs == 0 {
		cfg.SettleIntervalMs = DefaultSettleIntervalMs
	}
	if cfg.PluginsDir == "" {
		cfg.PluginsDir = DefaultPluginsDir
	}
	if cfg.ProgramCacheSize == 0 {
		cfg.ProgramCacheSize = DefaultProgramCacheSize
	}
}

// validate checks the configuration for errors.
func validate(cfg *Config) error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	if cfg.SettleIntervalMs < 0 {
		return fmt.Errorf("settleIntervalMs must not be negative")
	}
	if cfg.ProgramCacheSize < 0 {
		return fmt.Errorf("programCacheSize must not be negative")
	}
	return nil
}
