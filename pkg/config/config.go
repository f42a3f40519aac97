// Package config loads and validates the engine configuration from a YAML
// file, with environment-variable overrides for secrets. Provider credentials
// are never stored in the file itself; each provider names the environment
// variable that carries its API key.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort           = 8080
	defaultMetricsPort    = 9190
	defaultDatabasePath   = "leadflow.db"
	defaultRequestTimeout = 30 * time.Second
)

// Config is the root configuration for the lead qualification engine.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Database  DatabaseConfig   `yaml:"database"`
	Redis     RedisConfig      `yaml:"redis"`
	Providers []ProviderConfig `yaml:"providers"`
	Chat      ChatConfig       `yaml:"chat"`
	Scoring   ScoringConfig    `yaml:"scoring"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port        int `yaml:"port"`
	MetricsPort int `yaml:"metrics_port"`
}

// DatabaseConfig describes the SQLite lead/conversation store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig describes the rate limit ticket store. An empty address means
// the in-process memory store is used instead.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	Database int    `yaml:"database"`
}

// ProviderConfig describes one upstream completion provider. The provider is
// enabled iff the environment variable named by APIKeyEnv resolves non-empty.
type ProviderConfig struct {
	Name           string        `yaml:"name"`
	BaseURL        string        `yaml:"base_url"`
	Model          string        `yaml:"model"`
	APIKeyEnv      string        `yaml:"api_key_env"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// APIKey resolves the provider credential from the environment.
func (p ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// ChatConfig tunes the user-facing reply generation.
type ChatConfig struct {
	SystemPrompt string   `yaml:"system_prompt"`
	Temperature  *float64 `yaml:"temperature"`
	MaxTokens    *int64   `yaml:"max_tokens"`
}

// ScoringConfig tunes the scoring/summarization generations.
type ScoringConfig struct {
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   *int64   `yaml:"max_tokens"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.MetricsPort == 0 {
		c.Server.MetricsPort = defaultMetricsPort
	}
	if c.Database.Path == "" {
		c.Database.Path = defaultDatabasePath
	}
	for i := range c.Providers {
		if c.Providers[i].RequestTimeout <= 0 {
			c.Providers[i].RequestTimeout = defaultRequestTimeout
		}
	}
}

// Validate checks structural invariants. Provider enablement (credential
// presence) is a runtime concern checked by the orchestrator, not here.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("config: at least one provider must be configured")
	}
	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("config: provider with empty name")
		}
		if seen[p.Name] {
			return fmt.Errorf("config: duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true
		if p.Model == "" {
			return fmt.Errorf("config: provider %q has no model", p.Name)
		}
		if p.APIKeyEnv == "" {
			return fmt.Errorf("config: provider %q has no api_key_env", p.Name)
		}
	}
	return nil
}
