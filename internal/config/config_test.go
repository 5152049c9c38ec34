// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tankline Contributors

package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tankline/user-service/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STAGE", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/users")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.StageDev, cfg.Stage)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 86400, cfg.SessionTTLSeconds)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL())
	assert.True(t, cfg.DevProviderAllowed())
}

func TestLoad_ProdRequiresPGSCredentials(t *testing.T) {
	t.Setenv("STAGE", "prod")
	t.Setenv("PGS_WEB_CLIENT_ID", "")
	t.Setenv("PGS_WEB_CLIENT_SECRET", "")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PGS_WEB_CLIENT_ID")
}

func TestLoad_ProdWithCredentials(t *testing.T) {
	t.Setenv("STAGE", "prod")
	t.Setenv("PGS_WEB_CLIENT_ID", "client-id")
	t.Setenv("PGS_WEB_CLIENT_SECRET", "client-secret")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.False(t, cfg.DevProviderAllowed())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "unknown stage",
			mutate:  func(c *config.Config) { c.Stage = "staging" },
			wantErr: "STAGE must be",
		},
		{
			name:    "zero ttl",
			mutate:  func(c *config.Config) { c.SessionTTLSeconds = 0 },
			wantErr: "SESSION_TTL_SECONDS",
		},
		{
			name:    "negative ttl",
			mutate:  func(c *config.Config) { c.SessionTTLSeconds = -60 },
			wantErr: "SESSION_TTL_SECONDS",
		},
		{
			name:    "bad log format",
			mutate:  func(c *config.Config) { c.LogFormat = "pretty" },
			wantErr: "LOG_FORMAT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Stage:             config.StageDev,
				SessionTTLSeconds: 3600,
				LogFormat:         "json",
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
