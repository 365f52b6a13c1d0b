package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PayoutOutcomes tracks terminal payout results per category
	PayoutOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardrail_payout_outcomes_total",
			Help: "Terminal payout outcomes by category and result",
		},
		[]string{"category", "outcome"},
	)

	// RetryAttempts tracks individual operation attempts
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardrail_retry_attempts_total",
			Help: "Operation attempts made by the retry executor",
		},
		[]string{"category"},
	)

	// BreakerState exposes the circuit state per category (0=closed, 1=open, 2=half-open)
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "guardrail_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"category"},
	)

	// BreakerTransitions tracks state changes per category
	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardrail_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"category", "to"},
	)

	// ThresholdBreaches tracks sliding-window breaches per metric type
	ThresholdBreaches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardrail_threshold_breaches_total",
			Help: "Threshold breaches by metric type",
		},
		[]string{"metric"},
	)

	// WindowRotations tracks how often the metrics window rolled over
	WindowRotations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guardrail_window_rotations_total",
			Help: "Sliding window rotations",
		},
	)

	// OutflowRecorded tracks total recorded outflow volume
	OutflowRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guardrail_outflow_recorded_total",
			Help: "Total outflow volume recorded in token units",
		},
	)

	// CooldownMultiplier exposes the current escalation multiplier
	CooldownMultiplier = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "guardrail_cooldown_multiplier",
			Help: "Current cooldown escalation multiplier",
		},
	)
)
