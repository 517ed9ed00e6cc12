// Package stat implements the read side of the sliding-window statistics
// engine (the view over a base.BucketLeapArray) and the resource-node
// registry that owns one leap array + view pair per guarded resource.
package stat

import (
	"fmt"

	"github.com/Gimel-Foundation/flowguard/internal/base"
	"github.com/Gimel-Foundation/flowguard/internal/clock"
)

// SlidingWindowMetric is a read-only aggregation over a sub-window of an
// underlying BucketLeapArray. sampleCount*bucketLengthMs must equal
// intervalMs exactly — a caller asking for a window that doesn't divide
// the underlying array evenly would silently under- or over-count.
type SlidingWindowMetric struct {
	array       *base.BucketLeapArray
	sampleCount int
	intervalMs  int64
}

// NewSlidingWindowMetric builds a view of sampleCount buckets (intervalMs
// total) over array. Returns an error if intervalMs doesn't divide
// cleanly into array's bucket width, or exceeds the array's own window.
func NewSlidingWindowMetric(array *base.BucketLeapArray, sampleCount int, intervalMs int64) (*SlidingWindowMetric, error) {
	if array == nil {
		return nil, fmt.Errorf("flowguard: nil leap array")
	}
	bucketLen := array.BucketLengthMs()
	if intervalMs <= 0 || intervalMs%bucketLen != 0 {
		return nil, fmt.Errorf("flowguard: interval_ms %d must be a multiple of the underlying bucket width %d", intervalMs, bucketLen)
	}
	if intervalMs/bucketLen != int64(sampleCount) {
		return nil, fmt.Errorf("flowguard: sample_count %d does not match interval_ms/bucket_ms (%d)", sampleCount, intervalMs/bucketLen)
	}
	if intervalMs > array.IntervalMs() {
		return nil, fmt.Errorf("flowguard: requested interval_ms %d exceeds underlying array window %d", intervalMs, array.IntervalMs())
	}
	return &SlidingWindowMetric{array: array, sampleCount: sampleCount, intervalMs: intervalMs}, nil
}

// IntervalMs returns the window's total length in milliseconds.
func (w *SlidingWindowMetric) IntervalMs() int64 { return w.intervalMs }

func (w *SlidingWindowMetric) bucketsInRange(fromMs, toMs int64) []*base.MetricBucket {
	return w.array.ValuesIn(func(startMs int64) bool {
		return startMs >= fromMs && startMs < toMs
	})
}

// Sum totals event across the current window [now-intervalMs, now).
func (w *SlidingWindowMetric) Sum(event base.MetricEvent) int64 {
	now := clock.NowMillis()
	return w.sumRange(event, now-w.intervalMs, now)
}

// SumPrevious totals event across the previous window
// [now-2*intervalMs, now-intervalMs).
func (w *SlidingWindowMetric) SumPrevious(event base.MetricEvent) int64 {
	now := clock.NowMillis()
	return w.sumRange(event, now-2*w.intervalMs, now-w.intervalMs)
}

func (w *SlidingWindowMetric) sumRange(event base.MetricEvent, fromMs, toMs int64) int64 {
	var total int64
	for _, b := range w.bucketsInRange(fromMs, toMs) {
		total += b.Get(event)
	}
	return total
}

// QPS returns the per-second rate of event over the current window.
func (w *SlidingWindowMetric) QPS(event base.MetricEvent) float64 {
	return float64(w.Sum(event)) * 1000 / float64(w.intervalMs)
}

// QPSPrevious returns the per-second rate of event over the previous window.
func (w *SlidingWindowMetric) QPSPrevious(event base.MetricEvent) float64 {
	return float64(w.SumPrevious(event)) * 1000 / float64(w.intervalMs)
}

// MinRt folds the current window's bucket minima. Returns 0 if no
// completions were recorded.
func (w *SlidingWindowMetric) MinRt() int64 {
	now := clock.NowMillis()
	var min int64 = -1
	for _, b := range w.bucketsInRange(now-w.intervalMs, now) {
		rt := b.MinRt()
		if rt == 0 {
			continue
		}
		if min == -1 || rt < min {
			min = rt
		}
	}
	if min == -1 {
		return 0
	}
	return min
}

// AvgRt returns sum(Rt)/max(1, sum(Complete)) over the current window.
func (w *SlidingWindowMetric) AvgRt() float64 {
	completes := w.Sum(base.MetricEventComplete)
	if completes < 1 {
		completes = 1
	}
	return float64(w.Sum(base.MetricEventRt)) / float64(completes)
}

// MaxConcurrency returns the highest per-bucket concurrency high-watermark
// observed in the current window.
func (w *SlidingWindowMetric) MaxConcurrency() int64 {
	now := clock.NowMillis()
	var max int64
	for _, b := range w.bucketsInRange(now-w.intervalMs, now) {
		if hwm := b.ConcurrencyHWM(); hwm > max {
			max = hwm
		}
	}
	return max
}
