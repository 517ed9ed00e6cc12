// Package flow implements the flow-shaping controllers (§4.4): calculators
// that derive an instantaneous admission threshold (Direct, WarmUp,
// MemoryAdaptive) paired with checkers that compare a resource's
// statistic against that threshold (Reject, Throttling).
package flow

import "fmt"

// CalculatorKind selects how a controller derives its instantaneous
// threshold.
type CalculatorKind int

const (
	Direct CalculatorKind = iota
	WarmUp
	MemoryAdaptive
)

func (k CalculatorKind) String() string {
	switch k {
	case Direct:
		return "Direct"
	case WarmUp:
		return "WarmUp"
	case MemoryAdaptive:
		return "MemoryAdaptive"
	default:
		return "Unknown"
	}
}

// CheckerKind selects how a controller compares its statistic to the
// calculated threshold.
type CheckerKind int

const (
	Reject CheckerKind = iota
	Throttling
)

func (k CheckerKind) String() string {
	switch k {
	case Reject:
		return "Reject"
	case Throttling:
		return "Throttling"
	default:
		return "Unknown"
	}
}

// Rule is the flow subsystem's rule variant (§3 Rule). ID is optional and
// filled by the registry at load time if empty.
type Rule struct {
	ID         string         `validate:"omitempty,uuid4"`
	Resource   string         `validate:"required"`
	Calculator CalculatorKind `validate:"gte=0,lte=2"`
	Checker    CheckerKind    `validate:"gte=0,lte=1"`
	Threshold  float64        `validate:"gte=0"`

	// StatIntervalMs is the window the controller's own statistic covers;
	// 0 means "use the resource node's global stat" (§4.4).
	StatIntervalMs int64 `validate:"gte=0"`

	// MaxQueueingMs bounds Throttling's Wait duration (§4.4).
	MaxQueueingMs int64 `validate:"gte=0"`

	// WarmUp parameters.
	WarmUpPeriodSec  int64   `validate:"gte=0"`
	WarmUpColdFactor float64 `validate:"gte=0"`

	// MemoryAdaptive parameters.
	LowMemWatermark  uint64
	HighMemWatermark uint64
	LowMemThreshold  float64 `validate:"gte=0"`
	HighMemThreshold float64 `validate:"gte=0"`
}

// Validate enforces the cross-field invariants validator tags can't
// express (§3): warm-up needs a positive period, memory-adaptive needs an
// ordered watermark pair.
func (r Rule) Validate() error {
	switch r.Calculator {
	case WarmUp:
		if r.WarmUpPeriodSec <= 0 {
			return fmt.Errorf("flow rule %q: warm-up period_sec must be > 0", r.Resource)
		}
		if r.WarmUpColdFactor <= 1 {
			return fmt.Errorf("flow rule %q: warm-up cold_factor must be > 1", r.Resource)
		}
	case MemoryAdaptive:
		if r.LowMemWatermark >= r.HighMemWatermark {
			return fmt.Errorf("flow rule %q: low_watermark must be < high_watermark", r.Resource)
		}
	}
	return nil
}

// Equal reports whether two rules are equal for the controller-reuse
// predicate the registry applies on reload (§4.8): resource, strategy,
// threshold and window parameters, ignoring ID.
func (r Rule) Equal(other Rule) bool {
	return r.Resource == other.Resource &&
		r.Calculator == other.Calculator &&
		r.Checker == other.Checker &&
		r.Threshold == other.Threshold &&
		r.StatIntervalMs == other.StatIntervalMs &&
		r.MaxQueueingMs == other.MaxQueueingMs &&
		r.WarmUpPeriodSec == other.WarmUpPeriodSec &&
		r.WarmUpColdFactor == other.WarmUpColdFactor &&
		r.LowMemWatermark == other.LowMemWatermark &&
		r.HighMemWatermark == other.HighMemWatermark &&
		r.LowMemThreshold == other.LowMemThreshold &&
		r.HighMemThreshold == other.HighMemThreshold
}
