// Package control wires the resilience components into the host-facing
// engine: pre-flight checks, guarded execution and the admin surface.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/coder/quartz"

	"github.com/vietddude/guardrail/internal/core/domain"
	"github.com/vietddude/guardrail/internal/infra/events"
	"github.com/vietddude/guardrail/internal/infra/storage"
	"github.com/vietddude/guardrail/internal/metrics"
	"github.com/vietddude/guardrail/internal/resilience/backoff"
	"github.com/vietddude/guardrail/internal/resilience/batch"
	"github.com/vietddude/guardrail/internal/resilience/breaker"
	"github.com/vietddude/guardrail/internal/resilience/retry"
	"github.com/vietddude/guardrail/internal/resilience/threshold"
)

// ErrCooldownActive is returned while an escalation lockout is running.
var ErrCooldownActive = errors.New("cooldown active")

// ErrEmptyBatch is returned for batches with no items; nothing mutates.
var ErrEmptyBatch = errors.New("batch has no items")

// PayoutFunc performs one attempt of the actual value transfer. The engine
// decides whether and when it runs; it never moves funds itself.
type PayoutFunc func(ctx context.Context) error

// BatchItemFunc performs the transfer for one batch item.
type BatchItemFunc func(ctx context.Context, index int, item domain.PayoutItem) error

// Options configure a new engine.
type Options struct {
	Policy    backoff.Policy
	Breaker   breaker.Settings
	Threshold threshold.Config
}

// Engine is the host-facing resilience facade. One engine guards one escrow
// program's outflow; all state lives in the store, keyed per category or
// globally.
type Engine struct {
	store    storage.Store
	clock    quartz.Clock
	sink     events.Sink
	monitor  *threshold.Monitor
	breakers *breaker.Registry
	executor *retry.Executor
	policy   backoff.Policy
	seedCfg  threshold.Config
	log      *slog.Logger

	mu         sync.Mutex
	categories map[string]struct{}
}

// NewEngine builds the engine over its collaborators. Call Init before use.
func NewEngine(store storage.Store, clock quartz.Clock, sink events.Sink, opts Options) *Engine {
	if sink == nil {
		sink = events.NopSink{}
	}
	if opts.Policy == (backoff.Policy{}) {
		opts.Policy = backoff.Default()
	}
	if opts.Threshold == (threshold.Config{}) {
		opts.Threshold = threshold.DefaultConfig()
	}
	registry := breaker.NewRegistry(store, clock, sink, opts.Breaker)
	return &Engine{
		store:      store,
		clock:      clock,
		sink:       sink,
		monitor:    threshold.NewMonitor(store, clock, sink),
		breakers:   registry,
		executor:   retry.NewExecutor(registry, store, clock),
		policy:     opts.Policy,
		seedCfg:    opts.Threshold,
		log:        slog.Default(),
		categories: make(map[string]struct{}),
	}
}

// Init seeds monitor state when none is persisted yet.
func (en *Engine) Init(ctx context.Context) error {
	if err := en.policy.Validate(); err != nil {
		return fmt.Errorf("retry policy: %w", err)
	}
	return en.monitor.Init(ctx, en.seedCfg)
}

// Monitor exposes the threshold monitor for the admin surface.
func (en *Engine) Monitor() *threshold.Monitor {
	return en.monitor
}

// ExecutePayout runs one guarded payout: cooldown gate, single-payout cap,
// window thresholds and circuit breaker, then the retried transfer. The
// outcome and outflow are recorded for future windows.
func (en *Engine) ExecutePayout(ctx context.Context, category, caller, recipient string, amount int64, op PayoutFunc) error {
	en.trackCategory(category)

	if err := en.preflight(ctx, category, amount); err != nil {
		return err
	}

	err := en.executor.Execute(ctx, category, caller, en.policy, retry.Operation(op))
	switch {
	case err == nil:
		metrics.PayoutOutcomes.WithLabelValues(category, "success").Inc()
		if recErr := en.monitor.RecordSuccess(ctx); recErr != nil {
			return recErr
		}
		return en.monitor.RecordOutflow(ctx, amount)
	case errors.Is(err, retry.ErrCircuitOpen):
		metrics.PayoutOutcomes.WithLabelValues(category, "circuit_open").Inc()
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		metrics.PayoutOutcomes.WithLabelValues(category, "failed").Inc()
		if recErr := en.monitor.RecordFailure(ctx); recErr != nil {
			return recErr
		}
		en.log.Warn("payout failed",
			"category", category,
			"recipient", recipient,
			"error", err,
		)
		return err
	}
}

// ExecuteBatchPayout attempts every item exactly once and returns the
// aggregate result. Item failures never abort the batch; retrying failed
// items is the caller's responsibility using the returned failed indices.
func (en *Engine) ExecuteBatchPayout(ctx context.Context, category, caller string, items []domain.PayoutItem, op BatchItemFunc) (*batch.Result, error) {
	if len(items) == 0 {
		return nil, ErrEmptyBatch
	}
	en.trackCategory(category)

	// The largest item is the one the single-payout cap would trip on.
	var largest int64
	for _, it := range items {
		if it.Amount > largest {
			largest = it.Amount
		}
	}
	if err := en.preflight(ctx, category, largest); err != nil {
		return nil, err
	}

	result := batch.NewResult(len(items))
	for i, item := range items {
		opErr := op(ctx, i, item)
		if opErr == nil {
			result.RecordSuccess()
			if err := en.breakers.RecordSuccess(ctx, category); err != nil {
				return nil, err
			}
			if err := en.monitor.RecordSuccess(ctx); err != nil {
				return nil, err
			}
			if err := en.monitor.RecordOutflow(ctx, item.Amount); err != nil {
				return nil, err
			}
			continue
		}

		kind, known := domain.KindOf(opErr)
		if !known {
			kind = domain.ErrKindTemporaryUnavailable
		}
		result.RecordFailure(i, item.Recipient, item.Amount, kind)
		if err := en.breakers.RecordFailure(ctx, category); err != nil {
			return nil, err
		}
		if err := en.monitor.RecordFailure(ctx); err != nil {
			return nil, err
		}
	}

	outcome := "success"
	if summary := result.Summary(); summary != "" {
		outcome = string(summary)
	}
	metrics.PayoutOutcomes.WithLabelValues(category, outcome).Inc()
	en.sink.Publish(ctx, events.Event{
		Category: category,
		Name:     "batch_result",
		Payload: map[string]any{
			"total_items": result.TotalItems,
			"successful":  result.Successful,
			"failed":      result.Failed,
		},
	})
	return result, nil
}

// preflight runs the gate sequence shared by single and batch payouts:
// cooldown lockout, single-payout cap, window thresholds, then breaker
// health. Order matters: cheaper, stricter gates refuse first.
func (en *Engine) preflight(ctx context.Context, category string, amount int64) error {
	active, err := en.monitor.IsCooldownActive(ctx)
	if err != nil {
		return err
	}
	if active {
		metrics.PayoutOutcomes.WithLabelValues(category, "cooldown").Inc()
		return ErrCooldownActive
	}

	b, err := en.monitor.CheckSinglePayout(ctx, amount)
	if err != nil {
		return err
	}
	if b != nil {
		return en.escalate(ctx, category, b)
	}

	b, err = en.monitor.CheckThresholds(ctx)
	if err != nil {
		return err
	}
	if b != nil {
		return en.escalate(ctx, category, b)
	}

	allowed, err := en.breakers.Allow(ctx, category)
	if err != nil {
		return err
	}
	if !allowed {
		metrics.PayoutOutcomes.WithLabelValues(category, "circuit_open").Inc()
		return retry.ErrCircuitOpen
	}
	return nil
}

// escalate handles a detected breach: lock out with the current multiplier,
// then grow the multiplier so a repeat locks out longer.
func (en *Engine) escalate(ctx context.Context, category string, b *threshold.Breach) error {
	metrics.PayoutOutcomes.WithLabelValues(category, "breach").Inc()
	if err := en.monitor.ApplyCooldown(ctx); err != nil {
		return err
	}
	if err := en.monitor.IncreaseMultiplier(ctx); err != nil {
		return err
	}
	return fmt.Errorf("payout refused: %w", b)
}

// SetThresholdConfig updates the monitor configuration. The caller has
// already verified the admin identity.
func (en *Engine) SetThresholdConfig(ctx context.Context, cfg threshold.Config) error {
	return en.monitor.SetConfig(ctx, cfg)
}

// ResetMetrics starts a fresh metrics window.
func (en *Engine) ResetMetrics(ctx context.Context, admin string) error {
	return en.monitor.ResetMetrics(ctx, admin)
}

// ResetCooldownMultiplier returns the escalation multiplier to 1 after a
// stability period judged by the operator.
func (en *Engine) ResetCooldownMultiplier(ctx context.Context) error {
	return en.monitor.ResetMultiplier(ctx)
}

// BreakerSnapshot is one category's breaker state for the status surface.
type BreakerSnapshot struct {
	Category string `json:"category"`
	breaker.Breaker
}

// Status is the read-only snapshot served by the admin surface.
type Status struct {
	Config             threshold.Config         `json:"config"`
	CurrentWindow      threshold.WindowMetrics  `json:"current_window"`
	PreviousWindow     *threshold.WindowMetrics `json:"previous_window,omitempty"`
	CooldownActive     bool                     `json:"cooldown_active"`
	CooldownEnd        uint64                   `json:"cooldown_end"`
	CooldownMultiplier uint32                   `json:"cooldown_multiplier"`
	Breakers           []BreakerSnapshot        `json:"breakers"`
}

// Snapshot assembles the current engine status.
func (en *Engine) Snapshot(ctx context.Context) (*Status, error) {
	cfg, err := en.monitor.Config(ctx)
	if err != nil {
		return nil, err
	}
	current, err := en.monitor.CurrentMetrics(ctx)
	if err != nil {
		return nil, err
	}
	active, err := en.monitor.IsCooldownActive(ctx)
	if err != nil {
		return nil, err
	}
	end, err := en.monitor.CooldownEnd(ctx)
	if err != nil {
		return nil, err
	}
	mult, err := en.monitor.Multiplier(ctx)
	if err != nil {
		return nil, err
	}

	st := &Status{
		Config:             cfg,
		CurrentWindow:      current,
		CooldownActive:     active,
		CooldownEnd:        end,
		CooldownMultiplier: mult,
	}
	if prev, ok, err := en.monitor.PreviousMetrics(ctx); err != nil {
		return nil, err
	} else if ok {
		st.PreviousWindow = &prev
	}

	for _, category := range en.trackedCategories() {
		b, err := en.breakers.Get(ctx, category)
		if err != nil {
			return nil, err
		}
		st.Breakers = append(st.Breakers, BreakerSnapshot{Category: category, Breaker: b})
	}
	return st, nil
}

func (en *Engine) trackCategory(category string) {
	en.mu.Lock()
	en.categories[category] = struct{}{}
	en.mu.Unlock()
}

func (en *Engine) trackedCategories() []string {
	en.mu.Lock()
	defer en.mu.Unlock()
	out := make([]string, 0, len(en.categories))
	for c := range en.categories {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
