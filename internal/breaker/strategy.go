package breaker

import "github.com/Gimel-Foundation/flowguard/internal/blockerr"

// Strategy evaluates whether a breaker's accumulated statistic (ShouldOpen,
// used from Closed) or a single HalfOpen probe (ProbeFailed) should open
// the circuit (§4.5).
type Strategy interface {
	ShouldOpen(counter *CounterLeapArray) (bool, blockerr.Snapshot)
	ProbeFailed(errored bool, rtMs int64) bool
}

// ErrorCountStrategy opens once the windowed error count reaches
// threshold, provided enough requests were observed.
type ErrorCountStrategy struct {
	Threshold        float64
	MinRequestAmount int64
}

func (s ErrorCountStrategy) ShouldOpen(counter *CounterLeapArray) (bool, blockerr.Snapshot) {
	total := counter.Total()
	if total < s.MinRequestAmount {
		return false, blockerr.Snapshot{}
	}
	errors := counter.Errors()
	if float64(errors) >= s.Threshold {
		return true, blockerr.SnapshotOf(uint64(errors))
	}
	return false, blockerr.Snapshot{}
}

func (ErrorCountStrategy) ProbeFailed(errored bool, _ int64) bool { return errored }

// ErrorRatioStrategy opens once errors/total reaches threshold (a
// fraction in [0,1]), provided enough requests were observed.
type ErrorRatioStrategy struct {
	Threshold        float64
	MinRequestAmount int64
}

func (s ErrorRatioStrategy) ShouldOpen(counter *CounterLeapArray) (bool, blockerr.Snapshot) {
	total := counter.Total()
	if total < s.MinRequestAmount {
		return false, blockerr.Snapshot{}
	}
	ratio := float64(counter.Errors()) / float64(total)
	if ratio >= s.Threshold {
		return true, blockerr.SnapshotOfFloat(ratio)
	}
	return false, blockerr.Snapshot{}
}

func (ErrorRatioStrategy) ProbeFailed(errored bool, _ int64) bool { return errored }

// SlowRequestRatioStrategy opens once slow/total reaches threshold, where
// "slow" means observed round-trip time exceeded MaxAllowedRtMs.
type SlowRequestRatioStrategy struct {
	Threshold        float64
	MinRequestAmount int64
	MaxAllowedRtMs   int64
}

func (s SlowRequestRatioStrategy) ShouldOpen(counter *CounterLeapArray) (bool, blockerr.Snapshot) {
	total := counter.Total()
	if total < s.MinRequestAmount {
		return false, blockerr.Snapshot{}
	}
	ratio := float64(counter.Slow()) / float64(total)
	if ratio >= s.Threshold {
		return true, blockerr.SnapshotOfFloat(ratio)
	}
	return false, blockerr.Snapshot{}
}

// ProbeFailed re-opens on a single slow probe regardless of
// MinRequestAmount (§4.5: "In HalfOpen, a single slow probe re-opens
// immediately").
func (s SlowRequestRatioStrategy) ProbeFailed(_ bool, rtMs int64) bool {
	return rtMs > s.MaxAllowedRtMs
}
