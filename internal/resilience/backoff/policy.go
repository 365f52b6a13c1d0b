// Package backoff computes retry delays from immutable policies.
package backoff

import (
	"fmt"
	"time"
)

// Policy defines how a retry sequence spaces its attempts. A policy is read
// once at the start of a sequence and never mutated afterwards.
type Policy struct {
	MaxAttempts   uint32        `json:"max_attempts"   yaml:"max_attempts"`
	InitialDelay  time.Duration `json:"initial_delay"  yaml:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"      yaml:"max_delay"`
	Multiplier    uint32        `json:"multiplier"     yaml:"multiplier"`
	JitterPercent uint32        `json:"jitter_percent" yaml:"jitter_percent"`
}

// UnmarshalYAML accepts delays in Go duration notation ("250ms", "2s").
func (p *Policy) UnmarshalYAML(unmarshal func(any) error) error {
	var raw struct {
		MaxAttempts   uint32 `yaml:"max_attempts"`
		InitialDelay  string `yaml:"initial_delay"`
		MaxDelay      string `yaml:"max_delay"`
		Multiplier    uint32 `yaml:"multiplier"`
		JitterPercent uint32 `yaml:"jitter_percent"`
	}
	if err := unmarshal(&raw); err != nil {
		return err
	}

	p.MaxAttempts = raw.MaxAttempts
	p.Multiplier = raw.Multiplier
	p.JitterPercent = raw.JitterPercent

	var err error
	if raw.InitialDelay != "" {
		if p.InitialDelay, err = time.ParseDuration(raw.InitialDelay); err != nil {
			return fmt.Errorf("initial_delay: %w", err)
		}
	}
	if raw.MaxDelay != "" {
		if p.MaxDelay, err = time.ParseDuration(raw.MaxDelay); err != nil {
			return fmt.Errorf("max_delay: %w", err)
		}
	}
	return nil
}

// Default balances recovery speed against upstream pressure.
func Default() Policy {
	return Policy{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		Multiplier:    2,
		JitterPercent: 20,
	}
}

// Aggressive retries often with short delays, for operations where fast
// recovery matters more than upstream load.
func Aggressive() Policy {
	return Policy{
		MaxAttempts:   5,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      3 * time.Second,
		Multiplier:    2,
		JitterPercent: 15,
	}
}

// Conservative gives up quickly but waits long between attempts, for
// rate-limit-sensitive upstreams.
func Conservative() Policy {
	return Policy{
		MaxAttempts:   2,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		Multiplier:    3,
		JitterPercent: 25,
	}
}

// Validate rejects policies that could stall or overflow a retry sequence.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.InitialDelay <= 0 {
		return fmt.Errorf("initial_delay must be positive, got %v", p.InitialDelay)
	}
	if p.MaxDelay < p.InitialDelay {
		return fmt.Errorf("max_delay %v is below initial_delay %v", p.MaxDelay, p.InitialDelay)
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("multiplier must be at least 1, got %d", p.Multiplier)
	}
	if p.JitterPercent > 100 {
		return fmt.Errorf("jitter_percent must be at most 100, got %d", p.JitterPercent)
	}
	return nil
}
