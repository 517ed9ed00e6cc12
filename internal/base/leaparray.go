package base

import (
	"log/slog"
	"sync/atomic"

	"github.com/Gimel-Foundation/flowguard/internal/clock"
)

// maxCASRetries bounds the spin in currentSlot before falling back to a
// detached bucket. Losing the CAS this many times in a row means another
// writer is winning every race; better to drop one sample than to spin
// forever on the hot path.
const maxCASRetries = 5

type slot struct {
	startMs int64
	bucket  *MetricBucket
}

// BucketLeapArray is a fixed-count ring of time buckets of width W ms,
// covering a total window of N*W ms. Writes are lock-free: each ring
// position holds an atomic pointer to a (startMs, bucket) pair, and a
// stale pair is replaced wholesale by a CAS rather than mutated in place,
// so a reader never observes a bucket whose counters belong to one window
// and whose startMs belongs to another.
type BucketLeapArray struct {
	sampleCount    int
	windowLengthMs int64
	array          []atomic.Pointer[slot]
}

// NewBucketLeapArray builds a leap array of sampleCount buckets each
// windowLengthMs wide.
func NewBucketLeapArray(sampleCount int, windowLengthMs int64) *BucketLeapArray {
	if sampleCount <= 0 {
		sampleCount = 1
	}
	if windowLengthMs <= 0 {
		windowLengthMs = 1000
	}
	la := &BucketLeapArray{
		sampleCount:    sampleCount,
		windowLengthMs: windowLengthMs,
		array:          make([]atomic.Pointer[slot], sampleCount),
	}
	return la
}

// SampleCount returns the number of buckets in the ring.
func (la *BucketLeapArray) SampleCount() int { return la.sampleCount }

// BucketLengthMs returns the width of a single bucket in milliseconds.
func (la *BucketLeapArray) BucketLengthMs() int64 { return la.windowLengthMs }

// IntervalMs returns the total window covered by the ring.
func (la *BucketLeapArray) IntervalMs() int64 {
	return int64(la.sampleCount) * la.windowLengthMs
}

// CurrentBucket returns the bucket for "now", resetting a stale slot in
// place via CAS. Writers should prefer AddCount/UpdateConcurrency, which
// call this internally; CurrentBucket is exposed for slots that need to
// batch several updates against the same bucket.
func (la *BucketLeapArray) CurrentBucket() *MetricBucket {
	return la.currentBucket(clock.NowMillis())
}

func (la *BucketLeapArray) currentBucket(nowMs int64) *MetricBucket {
	idx := la.idx(nowMs)
	start := la.calculateStart(nowMs)
	ptr := &la.array[idx]

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		cur := ptr.Load()
		switch {
		case cur != nil && cur.startMs == start:
			return cur.bucket
		case cur == nil || cur.startMs < start:
			fresh := &slot{startMs: start, bucket: newMetricBucket()}
			if ptr.CompareAndSwap(cur, fresh) {
				return fresh.bucket
			}
			// lost the race; reload and retry
		default:
			// cur.startMs > start: the caller's clock went backwards.
			// Treat as detached: don't corrupt a newer bucket.
			slog.Debug("flowguard: bucket leap array observed a clock regression", "idx", idx)
			return newMetricBucket()
		}
	}
	slog.Debug("flowguard: bucket leap array exhausted CAS retries, writes to this sample are lost")
	return newMetricBucket()
}

func (la *BucketLeapArray) idx(nowMs int64) int {
	return int((nowMs / la.windowLengthMs) % int64(la.sampleCount))
}

func (la *BucketLeapArray) calculateStart(nowMs int64) int64 {
	return nowMs - nowMs%la.windowLengthMs
}

// AddCount accumulates delta into event on the current bucket.
func (la *BucketLeapArray) AddCount(event MetricEvent, delta int64) {
	la.CurrentBucket().Add(event, delta)
}

// UpdateConcurrency performs an atomic max against the current bucket's
// concurrency high-watermark.
func (la *BucketLeapArray) UpdateConcurrency(cur int64) {
	la.CurrentBucket().UpdateConcurrency(cur)
}

// UpdateMinRt folds rt into the current bucket's minimum.
func (la *BucketLeapArray) UpdateMinRt(rt int64) {
	la.CurrentBucket().UpdateMinRt(rt)
}

// ValuesIn returns a snapshot of the buckets whose startMs satisfies
// predicate, evaluated against the instant this call observes. The
// returned buckets are live pointers (for speed) but are only ever
// reset via CAS-replacement of their slot, never mutated out from under
// a reader's in-flight sum.
func (la *BucketLeapArray) ValuesIn(predicate func(startMs int64) bool) []*MetricBucket {
	out := make([]*MetricBucket, 0, la.sampleCount)
	for i := range la.array {
		s := la.array[i].Load()
		if s == nil {
			continue
		}
		if predicate(s.startMs) {
			out = append(out, s.bucket)
		}
	}
	return out
}
