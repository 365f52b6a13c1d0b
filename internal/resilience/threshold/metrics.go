package threshold

import "math"

// WindowMetrics counts outcomes and outflow for one time window. One live
// instance and one archived "previous" instance are persisted; a rotation is
// the only implicit counter reset.
type WindowMetrics struct {
	WindowStart      uint64 `json:"window_start"`
	FailureCount     uint32 `json:"failure_count"`
	SuccessCount     uint32 `json:"success_count"`
	TotalOutflow     int64  `json:"total_outflow"`
	MaxSingleOutflow int64  `json:"max_single_outflow"`
	BreachCount      uint32 `json:"breach_count"`
}

// NewWindowMetrics starts a zeroed window at the given unix second.
func NewWindowMetrics(windowStart uint64) WindowMetrics {
	return WindowMetrics{WindowStart: windowStart}
}

// satAdd64 adds without wrapping; outflow amounts are attacker-influenced.
func satAdd64(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	if b < 0 && a < math.MinInt64-b {
		return math.MinInt64
	}
	return a + b
}

// satMul32 multiplies without wrapping.
func satMul32(a, b uint32) uint32 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxUint32/b {
		return math.MaxUint32
	}
	return a * b
}
