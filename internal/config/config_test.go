package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWithDefaults_MissingFile(t *testing.T) {
	cfg, err := LoadWithDefaults(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.SettleIntervalMs != DefaultSettleIntervalMs {
		t.Errorf("SettleIntervalMs = %d", cfg.SettleIntervalMs)
	}
	if cfg.ProgramCacheSize != DefaultProgramCacheSize {
		t.Errorf("ProgramCacheSize = %d", cfg.ProgramCacheSize)
	}
}

func TestLoad_AppliesDefaultsToUnsetFields(t *testing.T) {
	path := writeConfig(t, `{"logLevel": "debug", "hostUrl": "ws://localhost:9000"}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.HostURL != "ws://localhost:9000" {
		t.Errorf("HostURL = %q", cfg.HostURL)
	}
	if cfg.PluginsDir != DefaultPluginsDir {
		t.Errorf("PluginsDir = %q", cfg.PluginsDir)
	}
}

func TestLoad_RejectsBadLogLevel(t *testing.T) {
	path := writeConfig(t, `{"logLevel": "loud"}`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted unknown log level")
	}
}

func TestLoad_RejectsNegativeSettleInterval(t *testing.T) {
	path := writeConfig(t, `{"settleIntervalMs": -5}`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted negative settle interval")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
