package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		kind ErrorKind
		want ErrorClass
	}{
		{ErrKindNetworkTimeout, ClassTransient},
		{ErrKindTemporaryUnavailable, ClassTransient},
		{ErrKindRateLimitExceeded, ClassTransient},
		{ErrKindResourceExhausted, ClassTransient},
		{ErrKindInsufficientFunds, ClassPermanent},
		{ErrKindInvalidRecipient, ClassPermanent},
		{ErrKindUnauthorized, ClassPermanent},
		{ErrKindInvalidAmount, ClassPermanent},
		{ErrKindPartialBatchFailure, ClassPartial},
		{ErrKindAllBatchItemsFailed, ClassPartial},
		{ErrKindMaxRetriesExceeded, ClassPermanent},
		// Unknown kinds fall through to permanent.
		{ErrorKind("something_new"), ClassPermanent},
	}

	for _, c := range cases {
		if got := Classify(c.kind); got != c.want {
			t.Errorf("Classify(%s) = %s, want %s", c.kind, got, c.want)
		}
	}
}

func TestRecoveryStrategyFor(t *testing.T) {
	if s := RecoveryStrategyFor(ErrKindNetworkTimeout); s != AutoRetry {
		t.Errorf("network timeout should be auto_retry, got %s", s)
	}
	if s := RecoveryStrategyFor(ErrKindInsufficientFunds); s != ManualRetry {
		t.Errorf("insufficient funds should be manual_retry, got %s", s)
	}
	if s := RecoveryStrategyFor(ErrKindPartialBatchFailure); s != ManualRetry {
		t.Errorf("partial batch failure should be manual_retry, got %s", s)
	}
}

func TestCanRetry(t *testing.T) {
	if !CanRetry(ErrKindRateLimitExceeded) {
		t.Error("rate limit should be retryable")
	}
	if CanRetry(ErrKindUnauthorized) {
		t.Error("unauthorized should NOT be retryable")
	}
	if CanRetry(ErrKindMaxRetriesExceeded) {
		t.Error("max retries exceeded should NOT be retryable")
	}
}

func TestPayoutError_Error(t *testing.T) {
	e := NewError(ErrKindInvalidRecipient, "address malformed")
	if e.Error() != "invalid_recipient: address malformed" {
		t.Errorf("unexpected message: %s", e.Error())
	}

	// Without a message, the kind alone is the message.
	bare := &PayoutError{Kind: ErrKindNetworkTimeout}
	if bare.Error() != "network_timeout" {
		t.Errorf("unexpected bare message: %s", bare.Error())
	}
}

func TestWrapError_Unwrap(t *testing.T) {
	inner := errors.New("connection reset")
	wrapped := WrapError(ErrKindNetworkTimeout, inner)

	if !errors.Is(wrapped, inner) {
		t.Error("wrapped error should unwrap to the inner error")
	}

	kind, ok := KindOf(wrapped)
	if !ok || kind != ErrKindNetworkTimeout {
		t.Errorf("KindOf = (%s, %v), want (network_timeout, true)", kind, ok)
	}
}

func TestKindOf_DeepChain(t *testing.T) {
	inner := Errf(ErrKindInsufficientFunds, "balance %d below %d", 5, 100)
	outer := fmt.Errorf("payout 42: %w", inner)

	kind, ok := KindOf(outer)
	if !ok || kind != ErrKindInsufficientFunds {
		t.Errorf("KindOf = (%s, %v), want (insufficient_funds, true)", kind, ok)
	}
}

func TestKindOf_Unknown(t *testing.T) {
	kind, ok := KindOf(errors.New("plain error"))
	if ok {
		t.Error("plain error should not carry a kind")
	}
	if kind != ErrKindTemporaryUnavailable {
		t.Errorf("fallback kind = %s, want temporary_unavailable", kind)
	}
}
