package flow

import (
	"github.com/Gimel-Foundation/flowguard/internal/base"
	"github.com/Gimel-Foundation/flowguard/internal/stat"
)

// StandaloneStat is the statistic a flow controller checks its threshold
// against (§4.4). When the rule's interval matches the resource node's
// global stat, it reuses that shared view and records nothing itself,
// avoiding double counting; otherwise it owns a private single-bucket
// counter over the rule's own interval.
type StandaloneStat struct {
	shared bool
	node   *stat.Node
	array  *base.BucketLeapArray
}

// NewStandaloneStat builds the statistic for a controller whose rule
// interval is ruleIntervalMs (0 meaning "use the global interval").
func NewStandaloneStat(node *stat.Node, ruleIntervalMs int64) *StandaloneStat {
	if ruleIntervalMs <= 0 || ruleIntervalMs == node.Metric().IntervalMs() {
		return &StandaloneStat{shared: true, node: node}
	}
	return &StandaloneStat{array: base.NewBucketLeapArray(1, ruleIntervalMs), node: node}
}

// CurrentPass returns the pass count over the statistic's window.
func (s *StandaloneStat) CurrentPass() int64 {
	if s.shared {
		return s.node.Metric().Sum(base.MetricEventPass)
	}
	return s.array.CurrentBucket().Get(base.MetricEventPass)
}

// PassQPS returns the pass rate over the statistic's window, the signal
// WarmUpCalculator uses to decide whether tokens should accumulate.
func (s *StandaloneStat) PassQPS() float64 {
	if s.shared {
		return s.node.Metric().QPS(base.MetricEventPass)
	}
	bucket := s.array.CurrentBucket()
	return float64(bucket.Get(base.MetricEventPass)) * 1000 / float64(s.array.BucketLengthMs())
}

// RecordPass records a Pass of the given batch size. A shared statistic
// records nothing: the resource-node stat slot already counts it.
func (s *StandaloneStat) RecordPass(batch int64) {
	if s.shared {
		return
	}
	s.array.AddCount(base.MetricEventPass, batch)
}
