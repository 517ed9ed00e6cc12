package base

import (
	"math"
	"sync/atomic"
)

// MetricBucket holds the counters for a single time slice of width W.
// All mutation is through atomics so concurrent writers never corrupt a
// counter; the bucket itself is treated as immutable once published by a
// CAS (see BucketLeapArray.currentBucket), so readers never observe a
// torn combination of counters from two different windows.
type MetricBucket struct {
	counters   [int(metricEventCount)]atomic.Int64
	minRt      atomic.Int64
	concurrHWM atomic.Int64
}

func newMetricBucket() *MetricBucket {
	b := &MetricBucket{}
	b.minRt.Store(math.MaxInt64)
	return b
}

// Add accumulates delta into the counter for event.
func (b *MetricBucket) Add(event MetricEvent, delta int64) {
	b.counters[int(event)].Add(delta)
}

// Get returns the current value of the counter for event.
func (b *MetricBucket) Get(event MetricEvent) int64 {
	return b.counters[int(event)].Load()
}

// UpdateMinRt folds rt into the bucket's minimum round-trip time.
func (b *MetricBucket) UpdateMinRt(rt int64) {
	for {
		cur := b.minRt.Load()
		if rt >= cur {
			return
		}
		if b.minRt.CompareAndSwap(cur, rt) {
			return
		}
	}
}

// MinRt returns the bucket's minimum recorded round-trip time, or 0 if
// none was recorded.
func (b *MetricBucket) MinRt() int64 {
	v := b.minRt.Load()
	if v == math.MaxInt64 {
		return 0
	}
	return v
}

// UpdateConcurrency performs an atomic max of cur against the bucket's
// concurrency high-watermark.
func (b *MetricBucket) UpdateConcurrency(cur int64) {
	for {
		hwm := b.concurrHWM.Load()
		if cur <= hwm {
			return
		}
		if b.concurrHWM.CompareAndSwap(hwm, cur) {
			return
		}
	}
}

// ConcurrencyHWM returns the bucket's concurrency high-watermark.
func (b *MetricBucket) ConcurrencyHWM() int64 {
	return b.concurrHWM.Load()
}
