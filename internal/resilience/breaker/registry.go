package breaker

import (
	"context"
	"fmt"

	"github.com/coder/quartz"

	"github.com/vietddude/guardrail/internal/infra/events"
	"github.com/vietddude/guardrail/internal/infra/storage"
	"github.com/vietddude/guardrail/internal/metrics"
)

// Registry persists one breaker per operation category. Every operation is a
// read-modify-write of the category's record; the host serializes calls
// touching the same category, so no in-process locking is layered on top.
type Registry struct {
	store    storage.Store
	clock    quartz.Clock
	sink     events.Sink
	settings Settings
}

// NewRegistry creates a registry creating breakers with the given settings.
func NewRegistry(store storage.Store, clock quartz.Clock, sink events.Sink, settings Settings) *Registry {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Registry{
		store:    store,
		clock:    clock,
		sink:     sink,
		settings: settings,
	}
}

// Get loads the breaker for a category, creating a closed one if absent.
func (r *Registry) Get(ctx context.Context, category string) (Breaker, error) {
	b := New(r.settings)
	if _, err := r.store.Get(ctx, storage.BreakerKey(category), &b); err != nil {
		return Breaker{}, fmt.Errorf("load breaker %s: %w", category, err)
	}
	return b, nil
}

// Allow reports whether a request for the category may proceed, persisting
// the open-to-half-open transition when the timeout has elapsed.
func (r *Registry) Allow(ctx context.Context, category string) (bool, error) {
	b, err := r.Get(ctx, category)
	if err != nil {
		return false, err
	}
	before := b.State
	allowed := b.Allow(r.now())
	if b.State != before {
		if err := r.save(ctx, category, b, before); err != nil {
			return false, err
		}
	}
	return allowed, nil
}

// RecordSuccess records a successful attempt against the category's breaker.
func (r *Registry) RecordSuccess(ctx context.Context, category string) error {
	b, err := r.Get(ctx, category)
	if err != nil {
		return err
	}
	before := b.State
	b.RecordSuccess()
	return r.save(ctx, category, b, before)
}

// RecordFailure records a failed attempt against the category's breaker.
func (r *Registry) RecordFailure(ctx context.Context, category string) error {
	b, err := r.Get(ctx, category)
	if err != nil {
		return err
	}
	before := b.State
	b.RecordFailure(r.now())
	return r.save(ctx, category, b, before)
}

func (r *Registry) save(ctx context.Context, category string, b Breaker, before State) error {
	if err := r.store.Set(ctx, storage.BreakerKey(category), b); err != nil {
		return fmt.Errorf("save breaker %s: %w", category, err)
	}
	metrics.BreakerState.WithLabelValues(category).Set(stateGauge(b.State))
	if b.State != before {
		metrics.BreakerTransitions.WithLabelValues(category, string(b.State)).Inc()
		r.sink.Publish(ctx, events.Event{
			Category: category,
			Name:     "breaker_state",
			Payload: map[string]any{
				"from":          string(before),
				"to":            string(b.State),
				"failure_count": b.FailureCount,
			},
		})
	}
	return nil
}

func (r *Registry) now() uint64 {
	return uint64(r.clock.Now().Unix())
}
