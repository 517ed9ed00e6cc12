package flow

import (
	"sync/atomic"
	"time"

	"github.com/Gimel-Foundation/flowguard/internal/blockerr"
	"github.com/Gimel-Foundation/flowguard/internal/chain"
)

// Checker compares a controller's statistic against its calculated
// threshold and returns the chain decision (§4.4).
type Checker interface {
	Check(batch int64, threshold float64, st *StandaloneStat, rule blockerr.RuleRef) chain.Result
}

// RejectChecker blocks outright once current+batch would exceed threshold.
type RejectChecker struct{}

func (RejectChecker) Check(batch int64, threshold float64, st *StandaloneStat, rule blockerr.RuleRef) chain.Result {
	current := st.CurrentPass()
	if float64(current+batch) > threshold {
		return chain.Blocked(blockerr.New(blockerr.Flow, "pass count would exceed threshold", rule, blockerr.SnapshotOf(uint64(current))))
	}
	return chain.Pass()
}

// ThrottlingChecker paces admission in virtual time: a leaky bucket whose
// "water level" is the next allowed pass instant, queueing a caller up to
// maxQueueingMs before blocking (§4.4).
type ThrottlingChecker struct {
	maxQueueingNs int64
	lastPassNs    atomic.Int64
}

// NewThrottlingChecker builds a checker that queues callers up to
// maxQueueingMs milliseconds before blocking them.
func NewThrottlingChecker(maxQueueingMs int64) *ThrottlingChecker {
	return &ThrottlingChecker{maxQueueingNs: maxQueueingMs * int64(time.Millisecond)}
}

func (t *ThrottlingChecker) Check(batch int64, threshold float64, st *StandaloneStat, rule blockerr.RuleRef) chain.Result {
	if threshold <= 0 {
		return chain.Blocked(blockerr.New(blockerr.Flow, "throttling threshold is zero", rule, blockerr.SnapshotOfFloat(threshold)))
	}
	intervalCostNs := int64(float64(batch) * float64(time.Second) / threshold)

	for {
		last := t.lastPassNs.Load()
		now := time.Now().UnixNano()
		expected := last + intervalCostNs

		if expected <= now {
			if t.lastPassNs.CompareAndSwap(last, now) {
				return chain.Pass()
			}
			continue
		}

		waitNs := expected - now
		if waitNs <= t.maxQueueingNs {
			if t.lastPassNs.CompareAndSwap(last, expected) {
				return chain.Wait(waitNs)
			}
			continue
		}

		return chain.Blocked(blockerr.New(blockerr.Flow, "throttling queue would exceed max queueing time", rule, blockerr.SnapshotOfFloat(float64(waitNs)/float64(time.Millisecond))))
	}
}
