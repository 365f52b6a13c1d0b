package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vietddude/guardrail/internal/core/domain"
)

func TestResult_PartialSuccess(t *testing.T) {
	r := NewResult(5)
	r.RecordSuccess()
	r.RecordFailure(1, "GBAD...", 200, domain.ErrKindInvalidRecipient)
	r.RecordSuccess()
	r.RecordFailure(3, "GXYZ...", 400, domain.ErrKindNetworkTimeout)
	r.RecordSuccess()

	assert.Equal(t, 5, r.TotalItems)
	assert.Equal(t, 3, r.Successful)
	assert.Equal(t, 2, r.Failed)
	assert.Equal(t, []int{1, 3}, r.FailedIndices)

	assert.True(t, r.IsPartialSuccess())
	assert.False(t, r.IsFullSuccess())
	assert.False(t, r.IsCompleteFailure())
	assert.Equal(t, domain.ErrKindPartialBatchFailure, r.Summary())
}

func TestResult_ErrorDetails(t *testing.T) {
	r := NewResult(2)
	r.RecordFailure(0, "GBAD...", 200, domain.ErrKindInvalidRecipient)
	r.RecordFailure(1, "GXYZ...", 400, domain.ErrKindNetworkTimeout)

	assert.Len(t, r.ErrorDetails, 2)

	// Retryability follows the classifier.
	assert.False(t, r.ErrorDetails[0].CanRetry, "invalid recipient is permanent")
	assert.True(t, r.ErrorDetails[1].CanRetry, "network timeout is transient")

	assert.Equal(t, 0, r.ErrorDetails[0].Index)
	assert.Equal(t, "GBAD...", r.ErrorDetails[0].Recipient)
	assert.Equal(t, int64(200), r.ErrorDetails[0].Amount)
}

func TestResult_FullSuccess(t *testing.T) {
	r := NewResult(3)
	r.RecordSuccess()
	r.RecordSuccess()
	r.RecordSuccess()

	assert.True(t, r.IsFullSuccess())
	assert.False(t, r.IsPartialSuccess())
	assert.Empty(t, r.FailedIndices)
	assert.Equal(t, domain.ErrorKind(""), r.Summary())
}

func TestResult_CompleteFailure(t *testing.T) {
	r := NewResult(2)
	r.RecordFailure(0, "a", 1, domain.ErrKindUnauthorized)
	r.RecordFailure(1, "b", 2, domain.ErrKindUnauthorized)

	assert.True(t, r.IsCompleteFailure())
	assert.False(t, r.IsPartialSuccess())
	assert.Equal(t, domain.ErrKindAllBatchItemsFailed, r.Summary())
}

func TestResult_SingleItemBatch(t *testing.T) {
	r := NewResult(1)
	r.RecordFailure(0, "a", 1, domain.ErrKindInsufficientFunds)

	// One failed item out of one is a complete failure, not a partial one.
	assert.True(t, r.IsCompleteFailure())
	assert.Equal(t, domain.ErrKindAllBatchItemsFailed, r.Summary())
}
