package threshold

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coder/quartz"

	"github.com/vietddude/guardrail/internal/infra/events"
	"github.com/vietddude/guardrail/internal/infra/storage"
	"github.com/vietddude/guardrail/internal/metrics"
)

const eventCategory = "threshold"

// Monitor tracks window metrics and cooldown state in the persisted store.
// The host serializes calls touching the window, so each public operation is
// one read-modify-write with no partial-write visibility.
type Monitor struct {
	store storage.Store
	clock quartz.Clock
	sink  events.Sink
	log   *slog.Logger
}

// NewMonitor wires the monitor to its collaborators.
func NewMonitor(store storage.Store, clock quartz.Clock, sink events.Sink) *Monitor {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Monitor{
		store: store,
		clock: clock,
		sink:  sink,
		log:   slog.Default(),
	}
}

// Init stores the given configuration, a fresh window and a unit
// multiplier. Existing configuration is left untouched.
func (m *Monitor) Init(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid threshold config: %w", err)
	}

	has, err := m.store.Has(ctx, storage.KeyConfig)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	if err := m.store.Set(ctx, storage.KeyConfig, cfg); err != nil {
		return err
	}
	if err := m.store.Set(ctx, storage.KeyCurrentMetrics, NewWindowMetrics(m.now())); err != nil {
		return err
	}
	if err := m.store.Set(ctx, storage.KeyCooldownMultiplier, uint32(1)); err != nil {
		return err
	}

	m.sink.Publish(ctx, events.Event{
		Category: eventCategory,
		Name:     "monitor_init",
		Payload: map[string]any{
			"failure_rate_threshold":   cfg.FailureRateThreshold,
			"outflow_volume_threshold": cfg.OutflowVolumeThreshold,
			"max_single_payout":        cfg.MaxSinglePayout,
			"time_window_secs":         cfg.TimeWindowSecs,
		},
	})
	return nil
}

// SetConfig validates and stores a new configuration. Admin authorization is
// the caller's responsibility.
func (m *Monitor) SetConfig(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid threshold config: %w", err)
	}

	prev, err := m.Config(ctx)
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, storage.KeyConfig, cfg); err != nil {
		return err
	}

	m.sink.Publish(ctx, events.Event{
		Category: eventCategory,
		Name:     "config_update",
		Payload: map[string]any{
			"prev_failure_rate_threshold":   prev.FailureRateThreshold,
			"new_failure_rate_threshold":    cfg.FailureRateThreshold,
			"prev_outflow_volume_threshold": prev.OutflowVolumeThreshold,
			"new_outflow_volume_threshold":  cfg.OutflowVolumeThreshold,
		},
	})
	return nil
}

// Config returns the stored configuration, falling back to defaults.
func (m *Monitor) Config(ctx context.Context) (Config, error) {
	cfg := DefaultConfig()
	if _, err := m.store.Get(ctx, storage.KeyConfig, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RecordSuccess counts a successful operation in the live window.
func (m *Monitor) RecordSuccess(ctx context.Context) error {
	w, err := m.rotateIfNeeded(ctx)
	if err != nil {
		return err
	}
	w.SuccessCount++
	return m.store.Set(ctx, storage.KeyCurrentMetrics, w)
}

// RecordFailure counts a failed operation in the live window.
func (m *Monitor) RecordFailure(ctx context.Context) error {
	w, err := m.rotateIfNeeded(ctx)
	if err != nil {
		return err
	}
	w.FailureCount++
	return m.store.Set(ctx, storage.KeyCurrentMetrics, w)
}

// RecordOutflow accumulates outflow volume (saturating) and tracks the
// largest single outflow in the window.
func (m *Monitor) RecordOutflow(ctx context.Context, amount int64) error {
	w, err := m.rotateIfNeeded(ctx)
	if err != nil {
		return err
	}
	w.TotalOutflow = satAdd64(w.TotalOutflow, amount)
	if amount > w.MaxSingleOutflow {
		w.MaxSingleOutflow = amount
	}
	metrics.OutflowRecorded.Add(float64(amount))
	return m.store.Set(ctx, storage.KeyCurrentMetrics, w)
}

// CheckThresholds evaluates the live window, in fixed priority order:
// failure count, total outflow, max single outflow. The first breach found
// is persisted into the window's breach counter, published, and returned.
func (m *Monitor) CheckThresholds(ctx context.Context) (*Breach, error) {
	w, err := m.rotateIfNeeded(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := m.Config(ctx)
	if err != nil {
		return nil, err
	}
	now := m.now()

	var breach *Breach
	switch {
	case w.FailureCount >= cfg.FailureRateThreshold:
		breach = &Breach{
			Metric:    MetricFailureRate,
			Threshold: int64(cfg.FailureRateThreshold),
			Actual:    int64(w.FailureCount),
			Timestamp: now,
		}
	case w.TotalOutflow >= cfg.OutflowVolumeThreshold:
		breach = &Breach{
			Metric:    MetricOutflowVolume,
			Threshold: cfg.OutflowVolumeThreshold,
			Actual:    w.TotalOutflow,
			Timestamp: now,
		}
	case w.MaxSingleOutflow >= cfg.MaxSinglePayout:
		breach = &Breach{
			Metric:    MetricSinglePayout,
			Threshold: cfg.MaxSinglePayout,
			Actual:    w.MaxSingleOutflow,
			Timestamp: now,
		}
	default:
		return nil, nil
	}

	w.BreachCount++
	breach.BreachCount = w.BreachCount
	if err := m.store.Set(ctx, storage.KeyCurrentMetrics, w); err != nil {
		return nil, err
	}
	m.publishBreach(ctx, breach)
	return breach, nil
}

// CheckSinglePayout compares a prospective amount against the single-payout
// cap before the transfer is attempted. It is independent of the rolling
// window: nothing is recorded or rotated.
func (m *Monitor) CheckSinglePayout(ctx context.Context, amount int64) (*Breach, error) {
	cfg, err := m.Config(ctx)
	if err != nil {
		return nil, err
	}
	if amount < cfg.MaxSinglePayout {
		return nil, nil
	}

	w, err := m.CurrentMetrics(ctx)
	if err != nil {
		return nil, err
	}
	breach := &Breach{
		Metric:      MetricSinglePayout,
		Threshold:   cfg.MaxSinglePayout,
		Actual:      amount,
		Timestamp:   m.now(),
		BreachCount: w.BreachCount + 1,
	}
	m.publishBreach(ctx, breach)
	return breach, nil
}

// CurrentMetrics returns the live window without rotating it.
func (m *Monitor) CurrentMetrics(ctx context.Context) (WindowMetrics, error) {
	w := NewWindowMetrics(m.now())
	if _, err := m.store.Get(ctx, storage.KeyCurrentMetrics, &w); err != nil {
		return WindowMetrics{}, err
	}
	return w, nil
}

// PreviousMetrics returns the archived window, if one exists.
func (m *Monitor) PreviousMetrics(ctx context.Context) (WindowMetrics, bool, error) {
	var w WindowMetrics
	ok, err := m.store.Get(ctx, storage.KeyPreviousMetrics, &w)
	if err != nil {
		return WindowMetrics{}, false, err
	}
	return w, ok, nil
}

// ResetMetrics starts a fresh window immediately. Admin authorization is the
// caller's responsibility; the identity is recorded in the event only.
func (m *Monitor) ResetMetrics(ctx context.Context, admin string) error {
	now := m.now()
	if err := m.store.Set(ctx, storage.KeyCurrentMetrics, NewWindowMetrics(now)); err != nil {
		return err
	}
	m.sink.Publish(ctx, events.Event{
		Category: eventCategory,
		Name:     "metrics_reset",
		Payload: map[string]any{
			"admin":     admin,
			"timestamp": now,
		},
	})
	return nil
}

// ApplyCooldown sets the lockout end to now + period * multiplier.
func (m *Monitor) ApplyCooldown(ctx context.Context) error {
	cfg, err := m.Config(ctx)
	if err != nil {
		return err
	}
	mult, err := m.Multiplier(ctx)
	if err != nil {
		return err
	}
	end := m.now() + cfg.CooldownPeriodSecs*uint64(mult)
	return m.store.Set(ctx, storage.KeyLastCooldownEnd, end)
}

// IncreaseMultiplier scales the multiplier for the next lockout. Growth is
// exponential under sustained abuse, saturating instead of wrapping.
func (m *Monitor) IncreaseMultiplier(ctx context.Context) error {
	cfg, err := m.Config(ctx)
	if err != nil {
		return err
	}
	mult, err := m.Multiplier(ctx)
	if err != nil {
		return err
	}
	next := satMul32(mult, cfg.CooldownMultiplier)
	metrics.CooldownMultiplier.Set(float64(next))
	return m.store.Set(ctx, storage.KeyCooldownMultiplier, next)
}

// ResetMultiplier returns the multiplier to 1 after a stability period. The
// trigger is deliberately left to the caller; there is no automatic timer.
func (m *Monitor) ResetMultiplier(ctx context.Context) error {
	metrics.CooldownMultiplier.Set(1)
	return m.store.Set(ctx, storage.KeyCooldownMultiplier, uint32(1))
}

// Multiplier returns the current escalation multiplier.
func (m *Monitor) Multiplier(ctx context.Context) (uint32, error) {
	mult := uint32(1)
	if _, err := m.store.Get(ctx, storage.KeyCooldownMultiplier, &mult); err != nil {
		return 0, err
	}
	return mult, nil
}

// IsCooldownActive reports whether a lockout is still running.
func (m *Monitor) IsCooldownActive(ctx context.Context) (bool, error) {
	var end uint64
	if _, err := m.store.Get(ctx, storage.KeyLastCooldownEnd, &end); err != nil {
		return false, err
	}
	return m.now() < end, nil
}

// CooldownEnd returns the unix second the active lockout ends (0 when none
// was ever applied).
func (m *Monitor) CooldownEnd(ctx context.Context) (uint64, error) {
	var end uint64
	if _, err := m.store.Get(ctx, storage.KeyLastCooldownEnd, &end); err != nil {
		return 0, err
	}
	return end, nil
}

// rotateIfNeeded archives the live window and starts a zeroed one when its
// duration has elapsed. This is the only implicit counter reset.
func (m *Monitor) rotateIfNeeded(ctx context.Context) (WindowMetrics, error) {
	cfg, err := m.Config(ctx)
	if err != nil {
		return WindowMetrics{}, err
	}
	w, err := m.CurrentMetrics(ctx)
	if err != nil {
		return WindowMetrics{}, err
	}
	now := m.now()
	if now < w.WindowStart+cfg.TimeWindowSecs {
		return w, nil
	}

	if err := m.store.Set(ctx, storage.KeyPreviousMetrics, w); err != nil {
		return WindowMetrics{}, err
	}
	fresh := NewWindowMetrics(now)
	if err := m.store.Set(ctx, storage.KeyCurrentMetrics, fresh); err != nil {
		return WindowMetrics{}, err
	}
	metrics.WindowRotations.Inc()
	m.sink.Publish(ctx, events.Event{
		Category: eventCategory,
		Name:     "window_rotate",
		Payload: map[string]any{
			"window_start":  w.WindowStart,
			"failure_count": w.FailureCount,
			"success_count": w.SuccessCount,
			"total_outflow": w.TotalOutflow,
		},
	})
	return fresh, nil
}

func (m *Monitor) publishBreach(ctx context.Context, b *Breach) {
	metrics.ThresholdBreaches.WithLabelValues(string(b.Metric)).Inc()
	m.log.Warn("threshold breach",
		"metric", string(b.Metric),
		"threshold", b.Threshold,
		"actual", b.Actual,
	)
	m.sink.Publish(ctx, events.Event{
		Category: eventCategory,
		Name:     "threshold_breach",
		Payload:  b.payload(),
	})
}

func (m *Monitor) now() uint64 {
	return uint64(m.clock.Now().Unix())
}
