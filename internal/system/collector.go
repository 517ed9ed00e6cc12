// Package system implements the system-load guards (§4.7): threshold
// checks against a background-sampled CPU%, load average, and the
// resource node's own QPS/RT/concurrency statistics, plus the BBR
// strategy's extra concurrency-vs-estimated-capacity constraint.
package system

import (
	"bufio"
	"log/slog"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Collector periodically samples process-wide system metrics into atomics,
// grounded on the teacher's AdaptiveRateLimiter.adjustLimits usage-ratio
// sampling loop generalized from a request-count window to wall-clock
// ticks. Degrades to a constant and logs at warn when a reading isn't
// available on the host platform (§7).
type Collector struct {
	cpuBits  atomic.Uint64
	loadBits atomic.Uint64
	memBytes atomic.Uint64

	cpuIntervalMs  int64
	loadIntervalMs int64
	memIntervalMs  int64

	stop chan struct{}
}

// NewCollector builds a collector sampling CPU, load-average and memory
// usage at the given intervals (§6's system.*_interval_ms). An interval
// of 0 disables that sampler; the reading stays at its zero value.
func NewCollector(cpuIntervalMs, loadIntervalMs, memIntervalMs int64) *Collector {
	return &Collector{cpuIntervalMs: cpuIntervalMs, loadIntervalMs: loadIntervalMs, memIntervalMs: memIntervalMs, stop: make(chan struct{})}
}

// Start launches the sampling goroutines. Safe to call once.
func (c *Collector) Start() {
	if c.cpuIntervalMs > 0 {
		go c.loop(c.cpuIntervalMs, c.sampleCPU)
	}
	if c.loadIntervalMs > 0 {
		go c.loop(c.loadIntervalMs, c.sampleLoad)
	}
	if c.memIntervalMs > 0 {
		go c.loop(c.memIntervalMs, c.sampleMemory)
	}
}

// Stop halts every sampling goroutine.
func (c *Collector) Stop() { close(c.stop) }

func (c *Collector) loop(intervalMs int64, sample func()) {
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer ticker.Stop()
	sample()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			sample()
		}
	}
}

// CPUPercent returns the last-sampled host-wide CPU utilization (from
// /proc/stat), 0-100.
func (c *Collector) CPUPercent() float64 { return math.Float64frombits(c.cpuBits.Load()) }

// Load1 returns the last-sampled 1-minute load average.
func (c *Collector) Load1() float64 { return math.Float64frombits(c.loadBits.Load()) }

// MemoryUsageBytes returns the last-sampled heap usage in bytes.
func (c *Collector) MemoryUsageBytes() uint64 { return c.memBytes.Load() }

var warnUnsupportedOnce atomic.Bool

func warnUnsupported(metric string) {
	if warnUnsupportedOnce.CompareAndSwap(false, true) {
		slog.Warn("flowguard: system metric collector degraded to a constant on this platform", "metric", metric)
	}
}

func (c *Collector) sampleMemory() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	c.memBytes.Store(ms.Alloc)
}

func (c *Collector) sampleLoad() {
	f, err := os.Open("/proc/loadavg")
	if err != nil {
		warnUnsupported("load1")
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		warnUnsupported("load1")
		return
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) == 0 {
		warnUnsupported("load1")
		return
	}
	load1, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		warnUnsupported("load1")
		return
	}
	c.loadBits.Store(math.Float64bits(load1))
}

var lastCPUSample struct {
	totalJiffies, idleJiffies uint64
	ok                        bool
}

func (c *Collector) sampleCPU() {
	total, idle, ok := readProcStat()
	if !ok {
		warnUnsupported("cpu")
		return
	}
	if lastCPUSample.ok {
		dTotal := total - lastCPUSample.totalJiffies
		dIdle := idle - lastCPUSample.idleJiffies
		if dTotal > 0 {
			pct := (1 - float64(dIdle)/float64(dTotal)) * 100
			c.cpuBits.Store(math.Float64bits(pct))
		}
	}
	lastCPUSample.totalJiffies = total
	lastCPUSample.idleJiffies = idle
	lastCPUSample.ok = true
}

func readProcStat() (total, idle uint64, ok bool) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return 0, 0, false
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) < 5 || fields[0] != "cpu" {
		return 0, 0, false
	}
	for _, v := range fields[1:] {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, 0, false
		}
		total += n
	}
	idleJiffies, err := strconv.ParseUint(fields[4], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return total, idleJiffies, true
}
