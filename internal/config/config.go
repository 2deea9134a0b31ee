// Copyright (c) 2025 DefInvoice
//
// This file is part of the DefInvoice server.
// Licensed under the MIT License. See LICENSE for details.

// Package config loads and validates the server configuration from a yaml
// file, with environment overrides for deployment secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/definvoice/definvoice/pkg/passkeys"
)

// Environment variables honored at load time.
const (
	// EnvConfigPath overrides the config file path.
	EnvConfigPath = "DEFINVOICE_CONFIG"

	// EnvSigningKey supplies the identity token signing key. It takes
	// precedence over the config file so the secret can stay out of it.
	EnvSigningKey = "DEFINVOICE_SIGNING_KEY"
)

// Config represents the complete server configuration.
type Config struct {
	Server       ServerConfig    `yaml:"server"`
	RelyingParty passkeys.Config `yaml:"relying_party"`
	Storage      StorageConfig   `yaml:"storage"`
	Challenges   ChallengeConfig `yaml:"challenges"`
	Identity     IdentityConfig  `yaml:"identity"`
	RateLimit    RateLimitConfig `yaml:"ratelimit"`
	Logging      LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects the user store backend.
type StorageConfig struct {
	// Backend is "memory" or "bbolt".
	Backend string `yaml:"backend"`

	// Path is the bbolt database file (bbolt backend only).
	Path string `yaml:"path"`
}

// ChallengeConfig selects the challenge store backend.
type ChallengeConfig struct {
	// Backend is "memory" or "redis". Use redis when running more than one
	// instance, since ceremony Begin and Complete may land on different
	// instances.
	Backend string `yaml:"backend"`

	// Redis connection settings (redis backend only).
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// IdentityConfig configures the identity-provider token seam.
type IdentityConfig struct {
	Issuer         string        `yaml:"issuer"`
	Audience       string        `yaml:"audience"`
	SigningKey     string        `yaml:"signing_key"`
	CustomTokenTTL time.Duration `yaml:"custom_token_ttl"`
}

// RateLimitConfig bounds the public authentication endpoints.
type RateLimitConfig struct {
	// Enabled controls whether the public endpoints are rate limited.
	Enabled bool `yaml:"enabled"`

	// RequestsPerMinute sets the sustained per-client rate.
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// Burst allows short bursts above the sustained rate.
	Burst int `yaml:"burst"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`
}

// Load reads, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read config %q: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("can't parse config %q: %w", path, err)
	}

	if key := os.Getenv(EnvSigningKey); key != "" {
		cfg.Identity.SigningKey = key
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return cfg, nil
}

// SetDefaults sets default values for unset fields.
func (c *Config) SetDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}
	if c.Challenges.Backend == "" {
		c.Challenges.Backend = "memory"
	}

	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = 60
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 10
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	c.RelyingParty.SetDefaults()
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.RelyingParty.Validate(); err != nil {
		return fmt.Errorf("relying_party: %w", err)
	}

	switch c.Storage.Backend {
	case "memory":
	case "bbolt":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage: path is required for the bbolt backend")
		}
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Storage.Backend)
	}

	switch c.Challenges.Backend {
	case "memory":
	case "redis":
		if c.Challenges.Redis.Addr == "" {
			return fmt.Errorf("challenges: redis addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("challenges: unknown backend %q", c.Challenges.Backend)
	}

	if c.Identity.SigningKey == "" {
		return fmt.Errorf("identity: signing key is required (set %s)", EnvSigningKey)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging: unknown level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging: unknown format %q", c.Logging.Format)
	}

	return nil
}
