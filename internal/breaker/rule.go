// Package breaker implements the circuit-breaker state machine (§4.5):
// three failure-detection strategies over a CounterLeapArray, gating
// admission through Closed/Open/HalfOpen with single-probe recovery.
package breaker

import "fmt"

// StrategyKind selects which condition opens the breaker.
type StrategyKind int

const (
	ErrorCount StrategyKind = iota
	ErrorRatio
	SlowRequestRatio
)

func (k StrategyKind) String() string {
	switch k {
	case ErrorCount:
		return "ErrorCount"
	case ErrorRatio:
		return "ErrorRatio"
	case SlowRequestRatio:
		return "SlowRequestRatio"
	default:
		return "Unknown"
	}
}

// Rule is the circuit-breaker subsystem's rule variant (§3).
type Rule struct {
	ID       string
	Resource string
	Strategy StrategyKind

	StatIntervalMs   int64 `validate:"gt=0"`
	BucketCount      int   `validate:"gt=0"`
	MinRequestAmount int64 `validate:"gte=0"`
	Threshold        float64
	MaxAllowedRtMs   int64
	RetryTimeoutMs   int64 `validate:"gt=0"`
}

// Validate enforces §3's circuit-breaker invariants.
func (r Rule) Validate() error {
	if r.StatIntervalMs <= 0 {
		return fmt.Errorf("breaker rule %q: stat_interval_ms must be > 0", r.Resource)
	}
	if r.RetryTimeoutMs <= 0 {
		return fmt.Errorf("breaker rule %q: retry_timeout_ms must be > 0", r.Resource)
	}
	switch r.Strategy {
	case SlowRequestRatio:
		if r.MaxAllowedRtMs <= 0 {
			return fmt.Errorf("breaker rule %q: max_allowed_rt_ms must be > 0 for slow-request strategy", r.Resource)
		}
	case ErrorRatio:
		if r.Threshold < 0 || r.Threshold > 1 {
			return fmt.Errorf("breaker rule %q: error-ratio threshold must be in [0,1]", r.Resource)
		}
	}
	return nil
}

// Equal reports whether two rules are equal for the controller-reuse
// predicate the registry applies on reload (§4.8).
func (r Rule) Equal(other Rule) bool {
	return r.Resource == other.Resource &&
		r.Strategy == other.Strategy &&
		r.StatIntervalMs == other.StatIntervalMs &&
		r.BucketCount == other.BucketCount &&
		r.MinRequestAmount == other.MinRequestAmount &&
		r.Threshold == other.Threshold &&
		r.MaxAllowedRtMs == other.MaxAllowedRtMs &&
		r.RetryTimeoutMs == other.RetryTimeoutMs
}
