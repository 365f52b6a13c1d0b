package domain

import (
	"errors"
	"fmt"
)

// ErrorKind identifies why a payout operation failed. Kinds are persisted
// (error states, batch results), so they are stable string codes.
type ErrorKind string

const (
	// Transient conditions expected to clear without caller intervention.
	ErrKindNetworkTimeout       ErrorKind = "network_timeout"
	ErrKindTemporaryUnavailable ErrorKind = "temporary_unavailable"
	ErrKindRateLimitExceeded    ErrorKind = "rate_limit_exceeded"
	ErrKindResourceExhausted    ErrorKind = "resource_exhausted"

	// Permanent conditions; retrying cannot change the outcome.
	ErrKindInsufficientFunds ErrorKind = "insufficient_funds"
	ErrKindInvalidRecipient  ErrorKind = "invalid_recipient"
	ErrKindUnauthorized      ErrorKind = "unauthorized"
	ErrKindInvalidAmount     ErrorKind = "invalid_amount"

	// Batch-only terminal summaries, not retry signals.
	ErrKindPartialBatchFailure ErrorKind = "partial_batch_failure"
	ErrKindAllBatchItemsFailed ErrorKind = "all_batch_items_failed"

	// ErrKindMaxRetriesExceeded is produced by the retry executor when a
	// transient failure survives every allowed attempt.
	ErrKindMaxRetriesExceeded ErrorKind = "max_retries_exceeded"
)

// ErrorClass groups error kinds by how they should be handled.
type ErrorClass int

const (
	ClassTransient ErrorClass = iota
	ClassPermanent
	ClassPartial
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	case ClassPartial:
		return "partial"
	default:
		return "unknown"
	}
}

// RecoveryStrategy says whether the system may retry on its own or must
// hand the failure back to an operator.
type RecoveryStrategy int

const (
	AutoRetry RecoveryStrategy = iota
	ManualRetry
)

func (s RecoveryStrategy) String() string {
	if s == AutoRetry {
		return "auto_retry"
	}
	return "manual_retry"
}

// Classify maps an error kind to its class. The mapping is total: kinds not
// listed as transient or partial are permanent, which is the safe side for
// fund movement.
func Classify(kind ErrorKind) ErrorClass {
	switch kind {
	case ErrKindNetworkTimeout, ErrKindTemporaryUnavailable,
		ErrKindRateLimitExceeded, ErrKindResourceExhausted:
		return ClassTransient
	case ErrKindPartialBatchFailure, ErrKindAllBatchItemsFailed:
		return ClassPartial
	default:
		return ClassPermanent
	}
}

// RecoveryStrategyFor returns AutoRetry only for transient kinds. Permanent
// and partial results need a human (or the caller's own logic) to decide.
func RecoveryStrategyFor(kind ErrorKind) RecoveryStrategy {
	if Classify(kind) == ClassTransient {
		return AutoRetry
	}
	return ManualRetry
}

// CanRetry reports whether an automatic retry of the kind is worthwhile.
func CanRetry(kind ErrorKind) bool {
	return Classify(kind) == ClassTransient
}

// PayoutError carries a classified failure through the call stack.
type PayoutError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *PayoutError) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *PayoutError) Unwrap() error {
	return e.Err
}

// NewError creates a PayoutError for the given kind.
func NewError(kind ErrorKind, msg string) *PayoutError {
	return &PayoutError{Kind: kind, Msg: msg}
}

// Errf creates a PayoutError with a formatted message.
func Errf(kind ErrorKind, format string, args ...any) *PayoutError {
	return &PayoutError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind to an underlying error.
func WrapError(kind ErrorKind, err error) *PayoutError {
	return &PayoutError{Kind: kind, Msg: err.Error(), Err: err}
}

// KindOf extracts the ErrorKind from err. The second return is false when
// err carries no kind, in which case callers should assume a temporary
// upstream condition rather than refusing to retry.
func KindOf(err error) (ErrorKind, bool) {
	var pe *PayoutError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return ErrKindTemporaryUnavailable, false
}
