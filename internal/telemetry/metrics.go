// Package telemetry exposes the core's per-resource counters to
// Prometheus and, optionally, traces each entry with OpenTelemetry.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns one resource-labeled metric family per admission
// outcome, mirroring the teacher's pkg/metrics vectors but labeled by
// guarded resource instead of auth method.
type Collector struct {
	registry *prometheus.Registry

	pass         *prometheus.CounterVec
	block        *prometheus.CounterVec
	complete     *prometheus.CounterVec
	errors       *prometheus.CounterVec
	rt           *prometheus.HistogramVec
	concurrency  *prometheus.GaugeVec
}

// NewCollector builds a Collector registered against its own
// prometheus.Registry, so a process embedding this module doesn't
// collide with the default global registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		pass: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowguard_pass_total",
			Help: "Total number of entries admitted per resource.",
		}, []string{"resource"}),
		block: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowguard_block_total",
			Help: "Total number of entries blocked per resource and block type.",
		}, []string{"resource", "block_type"}),
		complete: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowguard_complete_total",
			Help: "Total number of entries completed per resource.",
		}, []string{"resource"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowguard_error_total",
			Help: "Total number of entries completed with an error per resource.",
		}, []string{"resource"}),
		rt: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flowguard_rt_milliseconds",
			Help:    "Entry round-trip time in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1ms .. ~8s
		}, []string{"resource"}),
		concurrency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "flowguard_concurrency",
			Help: "Current in-flight entry count per resource.",
		}, []string{"resource"}),
	}
	c.registry.MustRegister(c.pass, c.block, c.complete, c.errors, c.rt, c.concurrency)
	return c
}

// Registry returns the collector's private prometheus.Registry, for an
// Exporter to serve.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// RecordPass increments resource's pass counter by batch.
func (c *Collector) RecordPass(resource string, batch int64) {
	c.pass.WithLabelValues(resource).Add(float64(batch))
}

// RecordBlock increments resource's block counter by batch, labeled with
// the rule's block type (§7's taxonomy).
func (c *Collector) RecordBlock(resource, blockType string, batch int64) {
	c.block.WithLabelValues(resource, blockType).Add(float64(batch))
}

// RecordComplete increments resource's complete counter and observes its
// round-trip time.
func (c *Collector) RecordComplete(resource string, rtMs int64) {
	c.complete.WithLabelValues(resource).Inc()
	c.rt.WithLabelValues(resource).Observe(float64(rtMs))
}

// RecordError increments resource's error counter.
func (c *Collector) RecordError(resource string) {
	c.errors.WithLabelValues(resource).Inc()
}

// SetConcurrency sets resource's current in-flight gauge.
func (c *Collector) SetConcurrency(resource string, n int64) {
	c.concurrency.WithLabelValues(resource).Set(float64(n))
}
