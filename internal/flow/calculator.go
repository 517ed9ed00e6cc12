package flow

import (
	"math"
	"sync"

	"github.com/Gimel-Foundation/flowguard/internal/clock"
)

// Calculator derives the instantaneous admission threshold for one call,
// given its batch size and caller-supplied flag (§4.4).
type Calculator interface {
	CalculateThreshold(batchCount int64, flag int32) float64
}

// DirectCalculator always returns the configured threshold.
type DirectCalculator struct {
	Threshold float64
}

func (d DirectCalculator) CalculateThreshold(int64, int32) float64 { return d.Threshold }

// MemoryUsageFunc reports the current memory-usage reading a
// MemoryAdaptiveCalculator maps to a threshold (injected so flow stays
// independent of the system collector's concrete source, §4.7).
type MemoryUsageFunc func() uint64

// MemoryAdaptiveCalculator interpolates linearly between low and high
// thresholds as memory usage crosses [lowMark, highMark] (§4.4). The two
// thresholds may be ordered either way, supporting "tighten as memory
// rises" or the reverse.
type MemoryAdaptiveCalculator struct {
	LowMark, HighMark           uint64
	LowThreshold, HighThreshold float64
	Usage                       MemoryUsageFunc
}

func (m *MemoryAdaptiveCalculator) CalculateThreshold(int64, int32) float64 {
	usage := m.Usage()
	switch {
	case usage <= m.LowMark:
		return m.LowThreshold
	case usage >= m.HighMark:
		return m.HighThreshold
	default:
		frac := float64(usage-m.LowMark) / float64(m.HighMark-m.LowMark)
		return m.LowThreshold + frac*(m.HighThreshold-m.LowThreshold)
	}
}

// PassQPSFunc reports the resource's current pass rate, the signal a
// WarmUpCalculator uses to decide whether tokens should keep accumulating.
type PassQPSFunc func() float64

// WarmUpCalculator implements the token-bucket inversion described in §4.4:
// the allowed threshold starts at T/coldFactor and rises to T over
// periodSec as real traffic sustains it. storedTokens runs the opposite
// direction of a normal bucket: it fills while the resource is cold or
// idle and drains as passing traffic consumes it, so a sustained pass
// rate pulls the threshold up toward T (sync_token in the reference
// implementation).
type WarmUpCalculator struct {
	threshold     float64
	coldFactor    float64
	warningTokens float64
	maxTokens     float64
	slope         float64
	passQPS       PassQPSFunc

	mu           sync.Mutex
	storedTokens float64
	lastSyncMs   int64
}

// NewWarmUpCalculator builds a calculator for steady threshold T, ramping
// over periodSec seconds from T/coldFactor, per the formulas in §4.4.
func NewWarmUpCalculator(threshold float64, periodSec int64, coldFactor float64, passQPS PassQPSFunc) *WarmUpCalculator {
	p := float64(periodSec)
	warningTokens := p * threshold / (coldFactor - 1)
	maxTokens := warningTokens + 2*p*threshold/(coldFactor+1)
	slope := (coldFactor - 1) / threshold / (maxTokens - warningTokens)
	return &WarmUpCalculator{
		threshold:     threshold,
		coldFactor:    coldFactor,
		warningTokens: warningTokens,
		maxTokens:     maxTokens,
		slope:         slope,
		passQPS:       passQPS,
		storedTokens:  maxTokens,
		lastSyncMs:    clock.NowMillis(),
	}
}

// CalculateThreshold syncs storedTokens against the elapsed time and the
// previous period's pass rate, then derives the allowed threshold from
// the synced token count (calculate_allowed_threshold/sync_token in the
// reference implementation).
func (w *WarmUpCalculator) CalculateThreshold(int64, int32) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	passQPS := w.passQPS()
	now := clock.NowMillis()
	elapsedMs := now - w.lastSyncMs
	if elapsedMs > 0 {
		w.lastSyncMs = now

		lowTraffic := passQPS < w.threshold/w.coldFactor
		if w.storedTokens <= w.warningTokens || lowTraffic {
			refill := float64(elapsedMs) / 1000 * w.threshold
			w.storedTokens = math.Min(w.maxTokens, w.storedTokens+refill)
		}

		// Drain by the traffic that has actually passed since the last
		// sync: this is what lets sustained load pull the threshold back
		// up toward T. Without it storedTokens only ever grows.
		w.storedTokens = math.Max(0, w.storedTokens-passQPS*float64(elapsedMs)/1000)
	}

	if w.storedTokens <= w.warningTokens {
		return w.threshold
	}
	restTokens := w.storedTokens - w.warningTokens
	return 1 / (w.slope*restTokens + 1/w.threshold)
}
