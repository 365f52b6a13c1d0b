// Package threshold watches failure rate and outflow volume in sliding
// windows and escalates cooldowns when payouts misbehave.
package threshold

import "fmt"

// Config bounds what one time window may absorb before payouts are refused.
type Config struct {
	// FailureRateThreshold is the maximum failures allowed per window.
	FailureRateThreshold uint32 `json:"failure_rate_threshold" yaml:"failure_rate_threshold"`
	// OutflowVolumeThreshold is the maximum outflow per window, token units.
	OutflowVolumeThreshold int64 `json:"outflow_volume_threshold" yaml:"outflow_volume_threshold"`
	// MaxSinglePayout is the largest amount one payout may move.
	MaxSinglePayout int64 `json:"max_single_payout" yaml:"max_single_payout"`
	// TimeWindowSecs is the window duration.
	TimeWindowSecs uint64 `json:"time_window_secs" yaml:"time_window_secs"`
	// CooldownPeriodSecs is the base lockout after a handled breach.
	CooldownPeriodSecs uint64 `json:"cooldown_period_secs" yaml:"cooldown_period_secs"`
	// CooldownMultiplier scales successive lockouts under repeated breaches.
	CooldownMultiplier uint32 `json:"cooldown_multiplier" yaml:"cooldown_multiplier"`
}

// DefaultConfig returns conservative production thresholds (token amounts
// carry 7 decimals).
func DefaultConfig() Config {
	return Config{
		FailureRateThreshold:   10,
		OutflowVolumeThreshold: 5_000_000_0000000, // 5M tokens
		MaxSinglePayout:        500_000_0000000,   // 500K tokens
		TimeWindowSecs:         600,
		CooldownPeriodSecs:     300,
		CooldownMultiplier:     2,
	}
}

// Validate rejects configurations outside the allowed ranges. Invalid
// configurations are never stored.
func (c Config) Validate() error {
	if c.FailureRateThreshold == 0 || c.FailureRateThreshold > 1000 {
		return fmt.Errorf("failure_rate_threshold must be between 1 and 1000, got %d", c.FailureRateThreshold)
	}
	if c.OutflowVolumeThreshold <= 0 {
		return fmt.Errorf("outflow_volume_threshold must be greater than zero, got %d", c.OutflowVolumeThreshold)
	}
	if c.MaxSinglePayout <= 0 {
		return fmt.Errorf("max_single_payout must be greater than zero, got %d", c.MaxSinglePayout)
	}
	if c.TimeWindowSecs < 10 || c.TimeWindowSecs > 86400 {
		return fmt.Errorf("time_window_secs must be between 10 and 86400, got %d", c.TimeWindowSecs)
	}
	if c.CooldownPeriodSecs < 60 || c.CooldownPeriodSecs > 3600 {
		return fmt.Errorf("cooldown_period_secs must be between 60 and 3600, got %d", c.CooldownPeriodSecs)
	}
	if c.CooldownMultiplier < 1 {
		return fmt.Errorf("cooldown_multiplier must be at least 1, got %d", c.CooldownMultiplier)
	}
	return nil
}
