package retry

import (
	"context"

	"github.com/vietddude/guardrail/internal/core/domain"
	"github.com/vietddude/guardrail/internal/infra/storage"
)

// ErrorState tracks one operation's failure history for the duration of a
// retry sequence. It is created on the first failure, its retry count
// advances on each subsequent failure, and it is removed when the sequence
// ends, whether by success, permanent failure or exhaustion. States never
// outlive their sequence.
type ErrorState struct {
	OperationID  string           `json:"operation_id"`
	Kind         domain.ErrorKind `json:"error_kind"`
	RetryCount   uint32           `json:"retry_count"`
	FirstErrorAt uint64           `json:"first_error_time"`
	CanRecover   bool             `json:"can_recover"`
	Caller       string           `json:"caller"`
}

// NewErrorState records the first failure of an operation.
func NewErrorState(operationID string, kind domain.ErrorKind, now uint64, caller string) ErrorState {
	return ErrorState{
		OperationID:  operationID,
		Kind:         kind,
		FirstErrorAt: now,
		CanRecover:   domain.CanRetry(kind),
		Caller:       caller,
	}
}

// LoadErrorState fetches a persisted error state, if any.
func LoadErrorState(ctx context.Context, store storage.Store, operationID string) (ErrorState, bool, error) {
	var s ErrorState
	ok, err := store.Get(ctx, storage.ErrorStateKey(operationID), &s)
	if err != nil {
		return ErrorState{}, false, err
	}
	return s, ok, nil
}
