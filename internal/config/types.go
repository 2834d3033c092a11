// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package config

// Config represents the complete engine configuration
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Quota      QuotaConfig      `mapstructure:"quota"`
	Providers  []ProviderConfig `mapstructure:"providers"`
	Generation GenerationConfig `mapstructure:"generation"`
	Journal    JournalConfig    `mapstructure:"journal"`
	Tables     TablesConfig     `mapstructure:"tables"`
	Server     ServerConfig     `mapstructure:"server"`
}

// ServerConfig holds the MCP server settings (HTTP mode only)
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Type        string `mapstructure:"type"` // "sqlite" or "postgres"
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// QuotaConfig bounds the daily diary budget. A fresh total is drawn
// uniformly from [min_daily, max_daily] at each day rollover.
type QuotaConfig struct {
	MinDaily int `mapstructure:"min_daily"`
	MaxDaily int `mapstructure:"max_daily"`
}

// ProviderConfig describes one entry of the LLM provider registry.
// MaxTokens and Temperature are the provider's generation defaults,
// applied when a request does not set its own; RetryAttempts is the
// number of extra same-provider tries before failing over.
type ProviderConfig struct {
	Name           string  `mapstructure:"name"`
	Endpoint       string  `mapstructure:"endpoint"`
	APIKeyEnv      string  `mapstructure:"api_key_env"` // Environment variable name for API key
	Model          string  `mapstructure:"model"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	Temperature    float64 `mapstructure:"temperature"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RetryAttempts  int     `mapstructure:"retry_attempts"`
	Priority       int     `mapstructure:"priority"` // lower = preferred
	Enabled        bool    `mapstructure:"enabled"`
}

// GenerationConfig holds content-generation settings
type GenerationConfig struct {
	MaxSwitchesPerRequest int `mapstructure:"max_switches_per_request"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// JournalConfig holds the optional git-backed diary archive settings
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// TablesConfig points at the directory holding the YAML reference tables
// (event types, trigger rules, fallback templates, emotion tags)
type TablesConfig struct {
	Dir string `mapstructure:"dir"`
}
