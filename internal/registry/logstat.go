package registry

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Gimel-Foundation/flowguard/internal/base"
	"github.com/Gimel-Foundation/flowguard/internal/chain"
	"github.com/Gimel-Foundation/flowguard/internal/clock"
	"github.com/Gimel-Foundation/flowguard/internal/metriclog"
	"github.com/Gimel-Foundation/flowguard/internal/stat"
)

// LogStatOrder is the metric-log stat slot's default order (§4.3), after
// resource-node bookkeeping and ahead of every subsystem's own stat slot.
const LogStatOrder = 2000

// logStatSlot writes one metriclog.Record every flushIntervalSec seconds
// per active resource (§6's log.metric.flush_interval_sec, default 1),
// piggybacking the flush decision on whichever stat event happens to land
// first after the interval rolls over rather than running its own
// ticker. secView is nil (and the slot a no-op) when the node's
// underlying bucket width doesn't divide 1000ms evenly, since the §6 log line is
// defined as a one-second sample (§7: degrade and warn rather than emit
// a misleading number).
type logStatSlot struct {
	resource         string
	resourceType     string
	node             *stat.Node
	writer           *metriclog.Writer
	secView          *stat.SlidingWindowMetric
	flushIntervalSec int64

	lastFlushedSec atomic.Int64
}

func newLogStatSlot(resource, resourceType string, node *stat.Node, writer *metriclog.Writer, flushIntervalSec int64) *logStatSlot {
	if flushIntervalSec <= 0 {
		flushIntervalSec = 1
	}
	s := &logStatSlot{resource: resource, resourceType: resourceType, node: node, writer: writer, flushIntervalSec: flushIntervalSec}
	if writer == nil {
		return s
	}
	bucketMs := node.Array().BucketLengthMs()
	if bucketMs <= 0 || 1000%bucketMs != 0 {
		slog.Warn("flowguard: metric log disabled for resource, bucket width does not divide 1000ms", "resource", resource)
		return s
	}
	view, err := stat.NewSlidingWindowMetric(node.Array(), int(1000/bucketMs), 1000)
	if err != nil {
		slog.Warn("flowguard: metric log disabled for resource", "resource", resource, "err", err)
		return s
	}
	s.secView = view
	return s
}

func (s *logStatSlot) Order() int                                { return LogStatOrder }
func (s *logStatSlot) OnPass(ctx *chain.Context)                  { s.maybeFlush() }
func (s *logStatSlot) OnBlock(ctx *chain.Context, _ chain.Result) { s.maybeFlush() }
func (s *logStatSlot) OnCompleted(ctx *chain.Context)             { s.maybeFlush() }

func (s *logStatSlot) maybeFlush() {
	if s.writer == nil || s.secView == nil {
		return
	}
	sec := clock.NowMillis() / 1000
	last := s.lastFlushedSec.Load()
	if sec-last < s.flushIntervalSec {
		return
	}
	if !s.lastFlushedSec.CompareAndSwap(last, sec) {
		return
	}

	rec := metriclog.Record{
		Timestamp:    time.UnixMilli(sec * 1000),
		Resource:     s.resource,
		Pass:         s.secView.Sum(base.MetricEventPass),
		Block:        s.secView.Sum(base.MetricEventBlock),
		Complete:     s.secView.Sum(base.MetricEventComplete),
		Error:        s.secView.Sum(base.MetricEventError),
		AvgRtMs:      s.secView.AvgRt(),
		OccupiedPass: s.secView.Sum(base.MetricEventOccupiedPass),
		Concurrency:  s.node.CurrentConcurrency(),
		ResourceType: s.resourceType,
	}
	if err := s.writer.WriteRecord(rec); err != nil {
		slog.Warn("flowguard: metric log write failed", "resource", s.resource, "err", err)
	}
}
