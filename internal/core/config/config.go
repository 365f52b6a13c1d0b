package config

import (
	redisclient "github.com/vietddude/guardrail/internal/infra/redis"
	"github.com/vietddude/guardrail/internal/infra/storage/postgres"
	"github.com/vietddude/guardrail/internal/resilience/backoff"
	"github.com/vietddude/guardrail/internal/resilience/breaker"
	"github.com/vietddude/guardrail/internal/resilience/threshold"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig     `yaml:"server"`
	Logging   LoggingConfig    `yaml:"logging"`
	Storage   StorageConfig    `yaml:"storage"`
	Events    EventsConfig     `yaml:"events"`
	Retry     RetryConfig      `yaml:"retry"`
	Breaker   breaker.Settings `yaml:"breaker"`
	Threshold threshold.Config `yaml:"threshold"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// StorageConfig selects and configures the state backend.
type StorageConfig struct {
	Backend  string             `yaml:"backend"` // memory, redis, postgres
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
}

// EventsConfig selects where engine events are published.
type EventsConfig struct {
	Sink    string `yaml:"sink"` // log, redis, none
	Channel string `yaml:"channel"`
}

// RetryConfig selects a named retry preset or an explicit policy.
// When Policy is set it takes precedence over Preset.
type RetryConfig struct {
	Preset string          `yaml:"preset"` // default, aggressive, conservative
	Policy *backoff.Policy `yaml:"policy"`
}

// ResolvePolicy returns the effective retry policy.
func (c RetryConfig) ResolvePolicy() (backoff.Policy, error) {
	if c.Policy != nil {
		if err := c.Policy.Validate(); err != nil {
			return backoff.Policy{}, err
		}
		return *c.Policy, nil
	}
	switch c.Preset {
	case "", "default":
		return backoff.Default(), nil
	case "aggressive":
		return backoff.Aggressive(), nil
	case "conservative":
		return backoff.Conservative(), nil
	default:
		return backoff.Policy{}, ErrUnknownPreset(c.Preset)
	}
}
