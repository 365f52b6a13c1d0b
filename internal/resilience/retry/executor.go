// Package retry orchestrates repeated attempts of fallible payout
// operations, consulting the classifier, the backoff calculator and the
// circuit breaker.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/vietddude/guardrail/internal/core/domain"
	"github.com/vietddude/guardrail/internal/infra/storage"
	"github.com/vietddude/guardrail/internal/metrics"
	"github.com/vietddude/guardrail/internal/resilience/backoff"
	"github.com/vietddude/guardrail/internal/resilience/breaker"
)

// ErrCircuitOpen is returned when the category's breaker refuses the request
// before the operation is invoked.
var ErrCircuitOpen = errors.New("circuit breaker open")

// Operation is one attempt of the caller's fallible work. The executor never
// moves funds itself; the operation does.
type Operation func(ctx context.Context) error

// Executor runs operations under a retry policy.
type Executor struct {
	breakers *breaker.Registry
	store    storage.Store
	clock    quartz.Clock
	log      *slog.Logger
}

// NewExecutor wires the executor to its collaborators.
func NewExecutor(breakers *breaker.Registry, store storage.Store, clock quartz.Clock) *Executor {
	return &Executor{
		breakers: breakers,
		store:    store,
		clock:    clock,
		log:      slog.Default(),
	}
}

// Execute runs op under the policy for the given category.
//
// The breaker is consulted once up front: a blocked category returns
// ErrCircuitOpen without invoking op. Otherwise op runs at most
// policy.MaxAttempts times. Successes and failures are recorded on the
// breaker per attempt. A permanent or partial failure surfaces immediately
// and is never retried; transient failures wait out the computed backoff
// (context-aware) and try again, and exhausting all attempts yields a
// max-retries-exceeded error wrapping the last failure.
func (e *Executor) Execute(ctx context.Context, category, caller string, policy backoff.Policy, op Operation) error {
	if err := policy.Validate(); err != nil {
		return err
	}

	allowed, err := e.breakers.Allow(ctx, category)
	if err != nil {
		return err
	}
	if !allowed {
		e.log.Warn("request blocked by circuit breaker", "category", category)
		return ErrCircuitOpen
	}

	operationID := uuid.NewString()
	var state *ErrorState
	var lastErr error

	for attempt := uint32(0); attempt < policy.MaxAttempts; attempt++ {
		metrics.RetryAttempts.WithLabelValues(category).Inc()

		opErr := op(ctx)
		if opErr == nil {
			if recErr := e.breakers.RecordSuccess(ctx, category); recErr != nil {
				return recErr
			}
			if state != nil {
				_ = e.store.Remove(ctx, storage.ErrorStateKey(operationID))
			}
			return nil
		}
		lastErr = opErr

		kind, known := domain.KindOf(opErr)
		if !known {
			// Unrecognized errors are assumed to be temporary upstream
			// conditions; refusing to retry them would strand recoverable
			// payouts.
			kind = domain.ErrKindTemporaryUnavailable
		}

		if recErr := e.breakers.RecordFailure(ctx, category); recErr != nil {
			return recErr
		}
		if err := e.trackFailure(ctx, operationID, &state, kind, caller); err != nil {
			return err
		}

		if domain.Classify(kind) != domain.ClassTransient {
			_ = e.store.Remove(ctx, storage.ErrorStateKey(operationID))
			return opErr
		}
		if attempt+1 >= policy.MaxAttempts {
			break
		}

		delay := backoff.Delay(policy, attempt, category, e.clock.Now())
		e.log.Debug("retrying after transient failure",
			"category", category,
			"attempt", attempt,
			"delay", delay,
			"error", opErr,
		)
		if err := e.wait(ctx, delay); err != nil {
			return err
		}
	}

	// The sequence is over; its bookkeeping goes with it. A fresh Execute
	// starts a new operation id, so stale records would only accumulate.
	_ = e.store.Remove(ctx, storage.ErrorStateKey(operationID))
	return domain.WrapError(domain.ErrKindMaxRetriesExceeded, lastErr)
}

// trackFailure creates or advances the operation's error state.
func (e *Executor) trackFailure(ctx context.Context, operationID string, state **ErrorState, kind domain.ErrorKind, caller string) error {
	if *state == nil {
		s := NewErrorState(operationID, kind, uint64(e.clock.Now().Unix()), caller)
		*state = &s
	} else {
		(*state).RetryCount++
		(*state).Kind = kind
	}
	return e.store.Set(ctx, storage.ErrorStateKey(operationID), *state)
}

func (e *Executor) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := e.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
