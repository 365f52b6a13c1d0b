// Package batch aggregates per-item outcomes of multi-recipient payouts.
package batch

import (
	"github.com/vietddude/guardrail/internal/core/domain"
)

// ErrorDetail records one failed batch item in the order it was recorded.
type ErrorDetail struct {
	Index     int              `json:"index"`
	Recipient string           `json:"recipient"`
	Amount    int64            `json:"amount"`
	Kind      domain.ErrorKind `json:"error_kind"`
	CanRetry  bool             `json:"can_retry"`
}

// Result is the terminal summary of one batch. The caller records each item
// index exactly once; the aggregator does not deduplicate.
type Result struct {
	TotalItems    int           `json:"total_items"`
	Successful    int           `json:"successful"`
	Failed        int           `json:"failed"`
	FailedIndices []int         `json:"failed_indices"`
	ErrorDetails  []ErrorDetail `json:"error_details"`
}

// NewResult starts a batch of total items.
func NewResult(total int) *Result {
	return &Result{TotalItems: total}
}

// RecordSuccess counts one successful item.
func (r *Result) RecordSuccess() {
	r.Successful++
}

// RecordFailure counts one failed item and keeps its detail. CanRetry is
// derived from the error classifier: only transient kinds are retryable.
func (r *Result) RecordFailure(index int, recipient string, amount int64, kind domain.ErrorKind) {
	r.Failed++
	r.FailedIndices = append(r.FailedIndices, index)
	r.ErrorDetails = append(r.ErrorDetails, ErrorDetail{
		Index:     index,
		Recipient: recipient,
		Amount:    amount,
		Kind:      kind,
		CanRetry:  domain.CanRetry(kind),
	})
}

// IsFullSuccess reports whether no item failed.
func (r *Result) IsFullSuccess() bool {
	return r.Failed == 0
}

// IsCompleteFailure reports whether every item failed.
func (r *Result) IsCompleteFailure() bool {
	return r.Successful == 0 && r.Failed == r.TotalItems
}

// IsPartialSuccess reports whether the batch had both outcomes.
func (r *Result) IsPartialSuccess() bool {
	return r.Successful > 0 && r.Failed > 0
}

// Summary returns the batch-level error kind for the result, or "" when the
// batch fully succeeded.
func (r *Result) Summary() domain.ErrorKind {
	switch {
	case r.IsCompleteFailure():
		return domain.ErrKindAllBatchItemsFailed
	case r.Failed > 0:
		return domain.ErrKindPartialBatchFailure
	default:
		return ""
	}
}
