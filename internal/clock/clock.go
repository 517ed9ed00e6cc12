// Package clock provides a cached millisecond time source for the hot path.
//
// The bucket leap array reads the current time on every admission check;
// calling time.Now() that often is cheap but not free, and the sliding
// window math only needs millisecond resolution. A single background
// goroutine refreshes an atomic int64 at ~1kHz and every other component
// reads that atomic instead of the wall clock directly.
package clock

import (
	"sync"
	"sync/atomic"
	"time"
)

var (
	cached   atomic.Int64
	startOne sync.Once
)

func init() {
	cached.Store(time.Now().UnixMilli())
}

// Start launches the background refresh goroutine. Safe to call multiple
// times and from multiple goroutines; only the first call takes effect.
func Start() {
	startOne.Do(func() {
		cached.Store(time.Now().UnixMilli())
		go func() {
			ticker := time.NewTicker(time.Millisecond)
			defer ticker.Stop()
			for range ticker.C {
				cached.Store(time.Now().UnixMilli())
			}
		}()
	})
}

// NowMillis returns the cached current time in milliseconds, calling Start
// so that the first read launches the background refresh. Accuracy is
// within ~1ms of wall-clock time.
func NowMillis() int64 {
	Start()
	return cached.Load()
}

// NowMillisFresh reads time.Now() directly and updates the cache. Used by
// callers that need a guaranteed-fresh sample regardless of whether Start
// has been called (e.g. the first request into an uninitialized process).
func NowMillisFresh() int64 {
	now := time.Now().UnixMilli()
	cached.Store(now)
	return now
}
