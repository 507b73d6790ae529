// Package config loads the server configuration from a YAML file
// merged over built-in defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Cache  CacheConfig  `yaml:"cache"`
	Auth   AuthConfig   `yaml:"auth"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	// Kind is "mongo" or "memory".
	Kind     string `yaml:"kind"`
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// CacheConfig selects and configures the document cache.
type CacheConfig struct {
	// Kind is "memory", "redis", or "badger".
	Kind          string        `yaml:"kind"`
	TTL           time.Duration `yaml:"ttl"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	BadgerPath    string        `yaml:"badger_path"`
}

// AuthConfig configures token issuance.
type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Development bool   `yaml:"development"`
	Level       string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Store: StoreConfig{
			Kind:     "memory",
			URI:      "mongodb://localhost:27017",
			Database: "coedit",
		},
		Cache: CacheConfig{
			Kind:      "memory",
			TTL:       time.Hour,
			RedisAddr: "localhost:6379",
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Log: LogConfig{
			Development: false,
			Level:       "info",
		},
	}
}

// Load reads path and unmarshals it over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Validate rejects unknown kinds and a missing auth secret.
func (c *Config) Validate() error {
	switch c.Store.Kind {
	case "mongo", "memory":
	default:
		return fmt.Errorf("unknown store kind %q", c.Store.Kind)
	}

	switch c.Cache.Kind {
	case "memory", "redis", "badger":
	default:
		return fmt.Errorf("unknown cache kind %q", c.Cache.Kind)
	}

	if c.Cache.Kind == "badger" && c.Cache.BadgerPath == "" {
		return fmt.Errorf("cache kind badger requires badger_path")
	}

	if c.Auth.Secret == "" {
		return fmt.Errorf("auth secret must not be empty")
	}

	return nil
}
