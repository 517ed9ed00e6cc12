package system

import "fmt"

// MetricKind is the observed quantity a system rule thresholds against
// (§4.7: "checks one of {load1, CPU %, inbound QPS, average RT,
// concurrency} against a threshold").
type MetricKind int

const (
	Load1 MetricKind = iota
	CPU
	InboundQPS
	AvgRT
	Concurrency
)

func (k MetricKind) String() string {
	switch k {
	case Load1:
		return "Load1"
	case CPU:
		return "CPU"
	case InboundQPS:
		return "InboundQPS"
	case AvgRT:
		return "AvgRT"
	case Concurrency:
		return "Concurrency"
	default:
		return "Unknown"
	}
}

// Rule is the system-guard rule variant (§3, §4.7). BBR layers an extra
// constraint on top of whichever Metric is chosen: the resource's live
// concurrency must also stay under an estimated capacity derived from
// its historical peak completion rate and minimum observed round-trip.
type Rule struct {
	ID       string
	Resource string
	Metric   MetricKind
	// Threshold is compared against the chosen Metric's reading.
	// CPU thresholds are a percentage in [0, 100]; Load1 thresholds are
	// a load average normalized by GOMAXPROCS, in [0, 1] (§3).
	Threshold float64
	BBR       bool
}

// Validate enforces §3's metric-specific threshold ranges.
func (r Rule) Validate() error {
	if r.Resource == "" {
		return fmt.Errorf("system rule: resource must not be empty")
	}
	switch r.Metric {
	case CPU:
		if r.Threshold < 0 || r.Threshold > 100 {
			return fmt.Errorf("system rule %q: cpu threshold must be within [0, 100]", r.Resource)
		}
	case Load1:
		if r.Threshold < 0 || r.Threshold > 1 {
			return fmt.Errorf("system rule %q: load1 threshold must be within [0, 1]", r.Resource)
		}
	case InboundQPS, AvgRT, Concurrency:
		if r.Threshold < 0 {
			return fmt.Errorf("system rule %q: threshold must be >= 0", r.Resource)
		}
	default:
		return fmt.Errorf("system rule %q: unknown metric %v", r.Resource, r.Metric)
	}
	return nil
}

// Equal reports whether two rules are equal for the controller-reuse
// predicate the registry applies on reload (§4.8).
func (r Rule) Equal(other Rule) bool {
	return r.Resource == other.Resource && r.Metric == other.Metric &&
		r.Threshold == other.Threshold && r.BBR == other.BBR
}
