package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coder/quartz"

	"github.com/vietddude/guardrail/internal/core/domain"
	"github.com/vietddude/guardrail/internal/infra/storage/memory"
	"github.com/vietddude/guardrail/internal/resilience/backoff"
	"github.com/vietddude/guardrail/internal/resilience/breaker"
)

// fastPolicy keeps test retries in the low milliseconds.
func fastPolicy(attempts uint32) backoff.Policy {
	return backoff.Policy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func newTestExecutor() (*Executor, *memory.MemoryStore) {
	store := memory.NewMemoryStore()
	clock := quartz.NewReal()
	breakers := breaker.NewRegistry(store, clock, nil, breaker.DefaultSettings())
	return NewExecutor(breakers, store, clock), store
}

func TestExecute_FirstAttemptSuccess(t *testing.T) {
	exec, _ := newTestExecutor()
	ctx := context.Background()

	calls := 0
	err := exec.Execute(ctx, "payout", "caller-1", fastPolicy(3), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
}

func TestExecute_RetriesTransientThenSucceeds(t *testing.T) {
	exec, store := newTestExecutor()
	ctx := context.Background()

	calls := 0
	err := exec.Execute(ctx, "payout", "caller-1", fastPolicy(3), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return domain.NewError(domain.ErrKindNetworkTimeout, "rpc timed out")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
	// Error state is cleaned up on success.
	if store.Len() != 1 { // only the breaker record remains
		t.Errorf("store holds %d keys after success, want 1", store.Len())
	}
}

func TestExecute_PermanentFailureNotRetried(t *testing.T) {
	exec, _ := newTestExecutor()
	ctx := context.Background()

	calls := 0
	opErr := domain.NewError(domain.ErrKindInsufficientFunds, "balance too low")
	err := exec.Execute(ctx, "payout", "caller-1", fastPolicy(3), func(ctx context.Context) error {
		calls++
		return opErr
	})
	if !errors.Is(err, opErr) {
		t.Fatalf("err = %v, want the permanent failure itself", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, permanent failures must not retry", calls)
	}
}

func TestExecute_MaxRetriesExceeded(t *testing.T) {
	exec, store := newTestExecutor()
	ctx := context.Background()

	calls := 0
	err := exec.Execute(ctx, "payout", "caller-1", fastPolicy(3), func(ctx context.Context) error {
		calls++
		return domain.NewError(domain.ErrKindTemporaryUnavailable, "still down")
	})

	kind, ok := domain.KindOf(err)
	if !ok || kind != domain.ErrKindMaxRetriesExceeded {
		t.Fatalf("err kind = (%s, %v), want max_retries_exceeded", kind, ok)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want all 3 attempts", calls)
	}
	// Exhaustion ends the sequence: its error state must not linger.
	if store.Len() != 1 { // only the breaker record remains
		t.Errorf("store holds %d keys after exhaustion, want 1", store.Len())
	}
}

func TestExecute_UnknownErrorTreatedAsTransient(t *testing.T) {
	exec, _ := newTestExecutor()
	ctx := context.Background()

	calls := 0
	err := exec.Execute(ctx, "payout", "caller-1", fastPolicy(2), func(ctx context.Context) error {
		calls++
		return errors.New("opaque upstream error")
	})

	kind, _ := domain.KindOf(err)
	if kind != domain.ErrKindMaxRetriesExceeded {
		t.Fatalf("err = %v, unknown errors should be retried to exhaustion", err)
	}
	if calls != 2 {
		t.Errorf("op called %d times, want 2", calls)
	}
}

func TestExecute_CircuitOpenBlocksUpfront(t *testing.T) {
	store := memory.NewMemoryStore()
	clock := quartz.NewReal()
	breakers := breaker.NewRegistry(store, clock, nil, breaker.Settings{FailureThreshold: 1})
	exec := NewExecutor(breakers, store, clock)
	ctx := context.Background()

	if err := breakers.RecordFailure(ctx, "payout"); err != nil {
		t.Fatal(err)
	}

	calls := 0
	err := exec.Execute(ctx, "payout", "caller-1", fastPolicy(3), func(ctx context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if calls != 0 {
		t.Errorf("op called %d times behind an open breaker, want 0", calls)
	}
}

func TestExecute_ContextCancelDuringBackoff(t *testing.T) {
	exec, _ := newTestExecutor()
	ctx, cancel := context.WithCancel(context.Background())

	policy := backoff.Policy{
		MaxAttempts:  3,
		InitialDelay: time.Minute,
		MaxDelay:     time.Minute,
		Multiplier:   2,
	}
	calls := 0
	go func() {
		// Cancel while the executor waits out the first backoff.
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := exec.Execute(ctx, "payout", "caller-1", policy, func(ctx context.Context) error {
		calls++
		return domain.NewError(domain.ErrKindNetworkTimeout, "timed out")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
}

func TestExecute_InvalidPolicyRejected(t *testing.T) {
	exec, _ := newTestExecutor()

	err := exec.Execute(context.Background(), "payout", "caller-1", backoff.Policy{}, func(ctx context.Context) error {
		t.Fatal("op must not run under an invalid policy")
		return nil
	})
	if err == nil {
		t.Fatal("expected a validation error")
	}
}

func TestErrorState_TrackedAcrossAttempts(t *testing.T) {
	s := NewErrorState("op-1", domain.ErrKindNetworkTimeout, 1700000000, "caller-1")
	if s.RetryCount != 0 {
		t.Errorf("fresh state RetryCount = %d, want 0", s.RetryCount)
	}
	if s.OperationID != "op-1" || s.Caller != "caller-1" {
		t.Error("identity fields not carried")
	}
	if !s.CanRecover {
		t.Error("network timeout state should be recoverable")
	}

	perm := NewErrorState("op-2", domain.ErrKindUnauthorized, 1700000000, "caller-1")
	if perm.CanRecover {
		t.Error("unauthorized state should not be recoverable")
	}
}

func TestLoadErrorState(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStore()

	_, ok, err := LoadErrorState(ctx, store, "op-9")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("missing state should report absence")
	}

	want := NewErrorState("op-9", domain.ErrKindRateLimitExceeded, 1700000000, "caller-2")
	want.RetryCount = 2
	if err := store.Set(ctx, "errstate:op-9", want); err != nil {
		t.Fatal(err)
	}

	got, ok, err := LoadErrorState(ctx, store, "op-9")
	if err != nil || !ok {
		t.Fatalf("LoadErrorState = (%v, %v)", ok, err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
