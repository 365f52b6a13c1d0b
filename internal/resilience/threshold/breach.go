package threshold

import "fmt"

// Metric names the threshold a breach tripped.
type Metric string

const (
	MetricFailureRate   Metric = "failure"
	MetricOutflowVolume Metric = "outflow"
	MetricSinglePayout  Metric = "single"
)

// Breach reports one threshold comparison that evaluated true. Breaches are
// inclusive: actual >= threshold trips.
type Breach struct {
	Metric      Metric `json:"metric_type"`
	Threshold   int64  `json:"threshold_value"`
	Actual      int64  `json:"actual_value"`
	Timestamp   uint64 `json:"timestamp"`
	BreachCount uint32 `json:"breach_count"`
}

// Error lets callers surface a breach through error returns.
func (b *Breach) Error() string {
	return fmt.Sprintf("threshold breach: %s %d >= %d", b.Metric, b.Actual, b.Threshold)
}

func (b *Breach) payload() map[string]any {
	return map[string]any{
		"metric":       string(b.Metric),
		"threshold":    b.Threshold,
		"actual":       b.Actual,
		"timestamp":    b.Timestamp,
		"breach_count": b.BreachCount,
	}
}
