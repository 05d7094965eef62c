package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL   = "http://localhost:8080"
	DefaultAgentName = "festive_agent"
	DefaultUserID    = "user"
	DefaultKeyPrefix = "festive_session_"
	DefaultTimeout   = 60 * time.Second
)

// Config holds client settings. Precedence, lowest first: defaults,
// YAML file, .env file, environment, command-line flags.
type Config struct {
	BaseURL   string            `yaml:"base_url" env:"FESTIVE_BASE_URL"`
	AgentName string            `yaml:"agent" env:"FESTIVE_AGENT"`
	UserID    string            `yaml:"user" env:"FESTIVE_USER"`
	CachePath string            `yaml:"cache" env:"FESTIVE_CACHE"`
	KeyPrefix string            `yaml:"key_prefix" env:"FESTIVE_KEY_PREFIX"`
	Timeout   time.Duration     `yaml:"timeout" env:"FESTIVE_TIMEOUT"`
	Headers   map[string]string `yaml:"headers" env:"FESTIVE_HEADERS" envSeparator:","`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	cachePath := filepath.Join(".festive-connect", "cache.db")
	if home, err := os.UserHomeDir(); err == nil {
		cachePath = filepath.Join(home, ".festive-connect", "cache.db")
	}
	return &Config{
		BaseURL:   DefaultBaseURL,
		AgentName: DefaultAgentName,
		UserID:    DefaultUserID,
		CachePath: cachePath,
		KeyPrefix: DefaultKeyPrefix,
		Timeout:   DefaultTimeout,
	}
}

// LoadConfig builds a Config from defaults, the YAML file at path (or
// $FESTIVE_CONFIG when path is empty), a .env file in the working
// directory, and the environment.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("FESTIVE_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		LogWarn("Failed to load .env file: %v", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, &ConfigError{Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return &ConfigError{Path: path, Err: fmt.Errorf("failed to unmarshal config: %w", err)}
	}
	return nil
}

// Validate checks the settings the client cannot run without
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return &ConfigError{Err: errors.New("base URL is required")}
	case c.AgentName == "":
		return &ConfigError{Err: errors.New("agent name is required")}
	case c.UserID == "":
		return &ConfigError{Err: errors.New("user id is required")}
	case c.KeyPrefix == "":
		return &ConfigError{Err: errors.New("cache key prefix is required")}
	case c.Timeout < 0:
		return &ConfigError{Err: fmt.Errorf("timeout must not be negative, got %s", c.Timeout)}
	}
	return nil
}
