// Copyright (c) 2025 DefInvoice
//
// This file is part of the DefInvoice server.
// Licensed under the MIT License. See LICENSE for details.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

const minimalConfig = `
relying_party:
  id: definvoice.test
  display_name: DefInvoice
  origins:
    - https://definvoice.test
identity:
  signing_key: test-key
`

func TestLoadMinimal(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	// Defaults fill everything the file left out.
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "memory", cfg.Challenges.Backend)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 5*time.Minute, cfg.RelyingParty.ChallengeTTL)
	assert.Equal(t, "test-key", cfg.Identity.SigningKey)
}

func TestLoadFull(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  host: 127.0.0.1
  port: 9090
  read_timeout: 5s
relying_party:
  id: definvoice.test
  display_name: DefInvoice
  origins:
    - https://definvoice.test
  challenge_ttl: 2m
storage:
  backend: bbolt
  path: /tmp/users.db
challenges:
  backend: redis
  redis:
    addr: localhost:6379
    db: 3
identity:
  issuer: my-issuer
  signing_key: test-key
  custom_token_ttl: 90s
ratelimit:
  enabled: true
  requests_per_minute: 30
  burst: 5
logging:
  level: debug
  format: text
`))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 2*time.Minute, cfg.RelyingParty.ChallengeTTL)
	assert.Equal(t, "bbolt", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/users.db", cfg.Storage.Path)
	assert.Equal(t, "redis", cfg.Challenges.Backend)
	assert.Equal(t, "localhost:6379", cfg.Challenges.Redis.Addr)
	assert.Equal(t, 3, cfg.Challenges.Redis.DB)
	assert.Equal(t, "my-issuer", cfg.Identity.Issuer)
	assert.Equal(t, 90*time.Second, cfg.Identity.CustomTokenTTL)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 30, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadSigningKeyFromEnv(t *testing.T) {
	t.Setenv(EnvSigningKey, "env-key")

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Identity.SigningKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can't read config")
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "relying_party: ["))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can't parse config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "unknown storage backend",
			mutate:  func(c *Config) { c.Storage.Backend = "postgres" },
			wantErr: `storage: unknown backend "postgres"`,
		},
		{
			name:    "bbolt without path",
			mutate:  func(c *Config) { c.Storage.Backend = "bbolt" },
			wantErr: "storage: path is required",
		},
		{
			name:    "unknown challenge backend",
			mutate:  func(c *Config) { c.Challenges.Backend = "memcached" },
			wantErr: `challenges: unknown backend "memcached"`,
		},
		{
			name:    "redis without addr",
			mutate:  func(c *Config) { c.Challenges.Backend = "redis" },
			wantErr: "challenges: redis addr is required",
		},
		{
			name:    "missing signing key",
			mutate:  func(c *Config) { c.Identity.SigningKey = "" },
			wantErr: "identity: signing key is required",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: `logging: unknown level "verbose"`,
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: `logging: unknown format "xml"`,
		},
		{
			name:    "missing relying party id",
			mutate:  func(c *Config) { c.RelyingParty.RPID = "" },
			wantErr: "relying_party",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, minimalConfig))
			require.NoError(t, err)

			tc.mutate(cfg)
			err = cfg.Validate()
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}
