// Package breaker implements the per-category circuit breaker that blocks
// payout attempts when failures cluster.
package breaker

// State is the circuit position.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Default thresholds, taken over by every breaker unless Settings override them.
const (
	DefaultFailureThreshold = 5
	DefaultSuccessThreshold = 2
	DefaultTimeoutSecs      = 60
)

// Settings configure newly created breakers.
type Settings struct {
	FailureThreshold uint32 `yaml:"failure_threshold"`
	SuccessThreshold uint32 `yaml:"success_threshold"`
	TimeoutSecs      uint64 `yaml:"timeout_secs"`
}

// DefaultSettings returns the standard thresholds.
func DefaultSettings() Settings {
	return Settings{
		FailureThreshold: DefaultFailureThreshold,
		SuccessThreshold: DefaultSuccessThreshold,
		TimeoutSecs:      DefaultTimeoutSecs,
	}
}

// Breaker is the persisted state machine for one operation category.
// FailureCount is only meaningful while closed; SuccessCount only while
// half-open. An open breaker ignores further outcome recordings until its
// timeout elapses.
type Breaker struct {
	State            State  `json:"state"`
	FailureCount     uint32 `json:"failure_count"`
	SuccessCount     uint32 `json:"success_count"`
	FailureThreshold uint32 `json:"failure_threshold"`
	SuccessThreshold uint32 `json:"success_threshold"`
	TimeoutSecs      uint64 `json:"timeout_secs"`
	OpenedAt         uint64 `json:"opened_at"`
}

// New creates a closed breaker with the given settings.
func New(s Settings) Breaker {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = DefaultFailureThreshold
	}
	if s.SuccessThreshold == 0 {
		s.SuccessThreshold = DefaultSuccessThreshold
	}
	if s.TimeoutSecs == 0 {
		s.TimeoutSecs = DefaultTimeoutSecs
	}
	return Breaker{
		State:            StateClosed,
		FailureThreshold: s.FailureThreshold,
		SuccessThreshold: s.SuccessThreshold,
		TimeoutSecs:      s.TimeoutSecs,
	}
}

// RecordFailure advances the machine after a failed attempt at unix second now.
func (b *Breaker) RecordFailure(now uint64) {
	switch b.State {
	case StateClosed:
		b.FailureCount++
		if b.FailureCount >= b.FailureThreshold {
			b.State = StateOpen
			b.OpenedAt = now
		}
	case StateHalfOpen:
		// The probe failed; re-arm the timeout.
		b.State = StateOpen
		b.OpenedAt = now
		b.SuccessCount = 0
	case StateOpen:
		// Ignored until the timeout elapses.
	}
}

// RecordSuccess advances the machine after a successful attempt.
func (b *Breaker) RecordSuccess() {
	switch b.State {
	case StateClosed:
		b.FailureCount = 0
	case StateHalfOpen:
		b.SuccessCount++
		if b.SuccessCount >= b.SuccessThreshold {
			b.State = StateClosed
			b.FailureCount = 0
			b.SuccessCount = 0
		}
	case StateOpen:
		// Ignored until the timeout elapses.
	}
}

// Allow reports whether a request may proceed at unix second now. An open
// breaker whose timeout has elapsed moves to half-open and lets the probing
// request through.
func (b *Breaker) Allow(now uint64) bool {
	switch b.State {
	case StateOpen:
		if now >= b.OpenedAt+b.TimeoutSecs {
			b.State = StateHalfOpen
			b.SuccessCount = 0
			return true
		}
		return false
	default:
		return true
	}
}

// stateGauge maps states to the exported gauge values.
func stateGauge(s State) float64 {
	switch s {
	case StateOpen:
		return 1
	case StateHalfOpen:
		return 2
	default:
		return 0
	}
}
