package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the top-level application configuration.
type Config struct {
	Server     ServerConfig               `yaml:"server"`
	Database   DatabaseConfig             `yaml:"database"`
	Engine     EngineConfig               `yaml:"engine"`
	Connectors map[string]ConnectorConfig `yaml:"connectors"`
	Export     ExportConfig               `yaml:"export"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds database connection settings. An empty URL runs
// the store in memory-only mode.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// EngineConfig holds execution engine settings.
type EngineConfig struct {
	MaxConcurrentRuns int `yaml:"max_concurrent_runs"` // default: 10
}

// ConnectorConfig holds LLM connector settings.
type ConnectorConfig struct {
	Type   string `yaml:"type"`    // e.g. "openai"
	URL    string `yaml:"url"`     // base URL
	APIKey string `yaml:"api_key"` // API key
}

// ExportConfig holds document export settings.
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// defaults returns a Config populated with sensible default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Engine: EngineConfig{
			MaxConcurrentRuns: 10,
		},
		Connectors: map[string]ConnectorConfig{},
		Export: ExportConfig{
			Dir: "exports",
		},
	}
}

// Load reads a YAML configuration file at path and applies environment
// overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if cfg.Connectors == nil {
		cfg.Connectors = map[string]ConnectorConfig{}
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadDefault loads ".env" (when present) and then "config.yaml" from the
// current directory. A missing config file yields defaults; any other
// error is returned.
func LoadDefault() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load("config.yaml")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg = defaults()
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values from the environment.
func (c *Config) applyEnv() {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		c.Database.URL = url
	}
	if port := os.Getenv("FLOWD_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if dir := os.Getenv("FLOWD_EXPORT_DIR"); dir != "" {
		c.Export.Dir = dir
	}
}
