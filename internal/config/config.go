// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tankline Contributors

// Package config loads service configuration from the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/samber/oops"
)

// Stage identifies the operating mode of the service.
type Stage string

// Known stages. Prod disables the dev identity provider and requires
// PGS client credentials.
const (
	StageDev  Stage = "dev"
	StageProd Stage = "prod"
)

// Config holds all environment-driven service configuration.
type Config struct {
	Stage             Stage  `env:"STAGE" envDefault:"dev"`
	Port              int    `env:"PORT" envDefault:"8080"`
	DatabaseURL       string `env:"DATABASE_URL"`
	SessionTTLSeconds int    `env:"SESSION_TTL_SECONDS" envDefault:"86400"`
	PGSWebClientID    string `env:"PGS_WEB_CLIENT_ID"`
	PGSWebClientSecret string `env:"PGS_WEB_CLIENT_SECRET"`
	MetricsAddr       string `env:"METRICS_ADDR" envDefault:"127.0.0.1:9100"`
	LogFormat         string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load parses configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, oops.Code("CONFIG_PARSE_FAILED").With("operation", "parse environment").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Stage != StageDev && c.Stage != StageProd {
		return oops.Code("CONFIG_INVALID").
			With("stage", string(c.Stage)).
			Errorf("STAGE must be 'dev' or 'prod'")
	}
	if c.SessionTTLSeconds <= 0 {
		return oops.Code("CONFIG_INVALID").
			With("session_ttl_seconds", c.SessionTTLSeconds).
			Errorf("SESSION_TTL_SECONDS must be positive")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").
			With("log_format", c.LogFormat).
			Errorf("LOG_FORMAT must be 'json' or 'text'")
	}
	if c.Stage == StageProd && (c.PGSWebClientID == "" || c.PGSWebClientSecret == "") {
		return oops.Code("CONFIG_INVALID").
			Errorf("PGS_WEB_CLIENT_ID and PGS_WEB_CLIENT_SECRET are required in prod")
	}
	return nil
}

// SessionTTL returns the configured session lifetime as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

// DevProviderAllowed reports whether the dev identity provider may be used.
func (c *Config) DevProviderAllowed() bool {
	return c.Stage != StageProd
}
