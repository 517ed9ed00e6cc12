package breaker

import (
	"sync/atomic"

	"github.com/Gimel-Foundation/flowguard/internal/base"
	"github.com/Gimel-Foundation/flowguard/internal/clock"
)

// CounterLeapArray is the breaker's own statistic (§4.5): a
// BucketLeapArray recording, per completed call, whether it errored and
// whether it was slow. Reset replaces the underlying array wholesale
// (HalfOpen->Closed transition), which a concurrent reader observes as an
// atomic pointer swap rather than a torn in-place clear.
type CounterLeapArray struct {
	arr         atomic.Pointer[base.BucketLeapArray]
	bucketCount int
	bucketMs    int64
}

// NewCounterLeapArray builds a counter of bucketCount buckets spanning
// intervalMs in total.
func NewCounterLeapArray(bucketCount int, intervalMs int64) *CounterLeapArray {
	bucketMs := intervalMs / int64(bucketCount)
	c := &CounterLeapArray{bucketCount: bucketCount, bucketMs: bucketMs}
	c.arr.Store(base.NewBucketLeapArray(bucketCount, bucketMs))
	return c
}

// RecordComplete records one completed call: errored and/or slow (rtMs
// exceeding maxAllowedRtMs, when maxAllowedRtMs > 0) are recorded
// alongside the unconditional completion count.
func (c *CounterLeapArray) RecordComplete(errored bool, rtMs int64, maxAllowedRtMs int64) {
	arr := c.arr.Load()
	arr.AddCount(base.MetricEventComplete, 1)
	if errored {
		arr.AddCount(base.MetricEventError, 1)
	}
	if maxAllowedRtMs > 0 && rtMs > maxAllowedRtMs {
		arr.AddCount(base.MetricEventSlow, 1)
	}
}

// Total returns the completed-call count over the counter's window.
func (c *CounterLeapArray) Total() int64 { return c.sum(base.MetricEventComplete) }

// Errors returns the errored-call count over the counter's window.
func (c *CounterLeapArray) Errors() int64 { return c.sum(base.MetricEventError) }

// Slow returns the slow-call count over the counter's window.
func (c *CounterLeapArray) Slow() int64 { return c.sum(base.MetricEventSlow) }

func (c *CounterLeapArray) sum(event base.MetricEvent) int64 {
	arr := c.arr.Load()
	now := clock.NowMillis()
	var total int64
	for _, b := range arr.ValuesIn(func(startMs int64) bool { return startMs > now-arr.IntervalMs() }) {
		total += b.Get(event)
	}
	return total
}

// Reset discards all recorded history, used when the breaker returns to
// Closed from a successful probe (§4.5 HalfOpen->Closed).
func (c *CounterLeapArray) Reset() {
	c.arr.Store(base.NewBucketLeapArray(c.bucketCount, c.bucketMs))
}
