package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/guardrail/internal/resilience/breaker"
	"github.com/vietddude/guardrail/internal/resilience/threshold"
)

// ErrUnknownPreset reports an unrecognized retry preset name.
type ErrUnknownPreset string

func (e ErrUnknownPreset) Error() string {
	return fmt.Sprintf("unknown retry preset %q", string(e))
}

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if _, err := cfg.Retry.ResolvePolicy(); err != nil {
		return nil, err
	}
	if err := cfg.Threshold.Validate(); err != nil {
		return nil, fmt.Errorf("invalid threshold config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	if cfg.Events.Sink == "" {
		cfg.Events.Sink = "log"
	}

	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker.FailureThreshold = breaker.DefaultFailureThreshold
	}
	if cfg.Breaker.SuccessThreshold == 0 {
		cfg.Breaker.SuccessThreshold = breaker.DefaultSuccessThreshold
	}
	if cfg.Breaker.TimeoutSecs == 0 {
		cfg.Breaker.TimeoutSecs = breaker.DefaultTimeoutSecs
	}

	def := threshold.DefaultConfig()
	if cfg.Threshold.FailureRateThreshold == 0 {
		cfg.Threshold.FailureRateThreshold = def.FailureRateThreshold
	}
	if cfg.Threshold.OutflowVolumeThreshold == 0 {
		cfg.Threshold.OutflowVolumeThreshold = def.OutflowVolumeThreshold
	}
	if cfg.Threshold.MaxSinglePayout == 0 {
		cfg.Threshold.MaxSinglePayout = def.MaxSinglePayout
	}
	if cfg.Threshold.TimeWindowSecs == 0 {
		cfg.Threshold.TimeWindowSecs = def.TimeWindowSecs
	}
	if cfg.Threshold.CooldownPeriodSecs == 0 {
		cfg.Threshold.CooldownPeriodSecs = def.CooldownPeriodSecs
	}
	if cfg.Threshold.CooldownMultiplier == 0 {
		cfg.Threshold.CooldownMultiplier = def.CooldownMultiplier
	}
}
