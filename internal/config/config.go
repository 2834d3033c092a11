// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// DefaultConfigDir is the default configuration directory
	DefaultConfigDir = ".kokoro/configs"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.json"
)

// Load reads configuration from ~/.kokoro/configs/config.json
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, DefaultConfigDir)

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(configPath)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, use defaults
			return loadFromDefaults(v)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromPath loads configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// EnsureConfigDir creates the default configuration directory
func EnsureConfigDir() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get user home directory: %w", err)
	}
	return os.MkdirAll(filepath.Join(homeDir, DefaultConfigDir), 0755)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	homeDir, _ := os.UserHomeDir()

	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)

	// Database defaults
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.sqlite_path", filepath.Join(homeDir, ".kokoro/db/kokoro.db"))

	// Quota defaults
	v.SetDefault("quota.min_daily", 0)
	v.SetDefault("quota.max_daily", 5)

	// Generation defaults
	v.SetDefault("generation.max_switches_per_request", 3)
	v.SetDefault("generation.request_timeout_seconds", 30)

	// Journal defaults
	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.path", filepath.Join(homeDir, ".kokoro/journal"))

	// Reference table defaults
	v.SetDefault("tables.dir", filepath.Join(homeDir, DefaultConfigDir, "tables"))
}

// loadFromDefaults creates a config from default values
func loadFromDefaults(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal default config: %w", err)
	}
	return &cfg, nil
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.Database.Type != "" && cfg.Database.Type != "sqlite" && cfg.Database.Type != "postgres" {
		return fmt.Errorf("database.type must be 'sqlite' or 'postgres', got '%s'", cfg.Database.Type)
	}

	if cfg.Database.Type == "sqlite" && cfg.Database.SQLitePath == "" {
		return fmt.Errorf("database.sqlite_path is required when database.type is 'sqlite'")
	}

	if cfg.Database.Type == "postgres" && cfg.Database.PostgresDSN == "" {
		return fmt.Errorf("database.postgres_dsn is required when database.type is 'postgres'")
	}

	if cfg.Quota.MinDaily < 0 {
		return fmt.Errorf("quota.min_daily must be >= 0, got %d", cfg.Quota.MinDaily)
	}
	if cfg.Quota.MaxDaily < cfg.Quota.MinDaily {
		return fmt.Errorf("quota.max_daily (%d) must be >= quota.min_daily (%d)",
			cfg.Quota.MaxDaily, cfg.Quota.MinDaily)
	}

	if cfg.Generation.MaxSwitchesPerRequest < 1 {
		return fmt.Errorf("generation.max_switches_per_request must be >= 1, got %d",
			cfg.Generation.MaxSwitchesPerRequest)
	}

	names := make(map[string]bool)
	for i, p := range cfg.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d].name is required", i)
		}
		if names[p.Name] {
			return fmt.Errorf("duplicate provider name '%s'", p.Name)
		}
		names[p.Name] = true
		if p.Enabled && p.Endpoint == "" {
			return fmt.Errorf("provider '%s' is enabled but has no endpoint", p.Name)
		}
		if p.TimeoutSeconds < 0 {
			return fmt.Errorf("provider '%s' has negative timeout", p.Name)
		}
	}

	if cfg.Journal.Enabled && cfg.Journal.Path == "" {
		return fmt.Errorf("journal.path is required when journal.enabled is true")
	}

	return nil
}
