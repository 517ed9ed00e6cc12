package stat

import (
	"sync/atomic"

	"github.com/Gimel-Foundation/flowguard/internal/base"
)

// DefaultGlobalSampleCount and DefaultGlobalIntervalMs size the underlying
// leap array every resource node is built from, overridable via
// Config.GlobalStat.SampleCountTotal / IntervalMsTotal (§6).
const (
	DefaultGlobalSampleCount = 120
	DefaultGlobalIntervalMs  = 60000

	DefaultMetricSampleCount = 2
	DefaultMetricIntervalMs  = 1000
)

// Node is the per-resource statistic owner: a write-side BucketLeapArray,
// a default read-side SlidingWindowMetric configured from the global
// stat parameters, and an atomic concurrency counter. Created on first
// reference by Registry and never destroyed for the life of the process.
type Node struct {
	resource    string
	array       *base.BucketLeapArray
	metric      *SlidingWindowMetric
	concurrency atomic.Int64
}

func newNode(resource string, sampleCount int, intervalMs int64, metricSampleCount int, metricIntervalMs int64) *Node {
	array := base.NewBucketLeapArray(sampleCount, intervalMs/int64(sampleCount))
	metric, err := NewSlidingWindowMetric(array, metricSampleCount, metricIntervalMs)
	if err != nil {
		// metric_stat parameters that don't divide global_stat cleanly are a
		// configuration error the caller should have caught; fall back to a
		// 1:1 view over the whole array so the node still stays usable.
		metric, _ = NewSlidingWindowMetric(array, sampleCount, intervalMs)
	}
	return &Node{resource: resource, array: array, metric: metric}
}

// Resource returns the resource name this node is keyed by.
func (n *Node) Resource() string { return n.resource }

// Array returns the write-side leap array, for controllers that need a
// custom view (e.g. a flow rule whose stat_interval_ms differs from the
// global interval but still wants to read off the shared array).
func (n *Node) Array() *base.BucketLeapArray { return n.array }

// Metric returns the node's default sliding-window view.
func (n *Node) Metric() *SlidingWindowMetric { return n.metric }

// AddPass records a Pass event of the given batch size.
func (n *Node) AddPass(batch int64) { n.array.AddCount(base.MetricEventPass, batch) }

// AddBlock records a Block event of the given batch size.
func (n *Node) AddBlock(batch int64) { n.array.AddCount(base.MetricEventBlock, batch) }

// AddOccupiedPass records a Pass admitted via a Wait decision.
func (n *Node) AddOccupiedPass(batch int64) { n.array.AddCount(base.MetricEventOccupiedPass, batch) }

// AddComplete records a completed call and its round-trip time.
func (n *Node) AddComplete(rtMs int64) {
	n.array.AddCount(base.MetricEventComplete, 1)
	n.array.AddCount(base.MetricEventRt, rtMs)
	n.array.UpdateMinRt(rtMs)
}

// AddError records a completed call that failed.
func (n *Node) AddError() { n.array.AddCount(base.MetricEventError, 1) }

// IncConcurrency increments and returns the node's in-flight concurrency.
func (n *Node) IncConcurrency() int64 {
	cur := n.concurrency.Add(1)
	n.array.UpdateConcurrency(cur)
	return cur
}

// DecConcurrency decrements the node's in-flight concurrency.
func (n *Node) DecConcurrency() {
	n.concurrency.Add(-1)
}

// CurrentConcurrency returns the node's live in-flight call count.
func (n *Node) CurrentConcurrency() int64 {
	return n.concurrency.Load()
}
