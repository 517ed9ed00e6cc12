package registry

import (
	"github.com/Gimel-Foundation/flowguard/internal/chain"
	"github.com/Gimel-Foundation/flowguard/internal/stat"
	"github.com/Gimel-Foundation/flowguard/internal/telemetry"
)

// TelemetryStatOrder runs after the metric log slot, last among the
// always-present bookkeeping slots and before any subsystem's own stat
// slot (§4.3).
const TelemetryStatOrder = 2100

// telemetryStatSlot mirrors resourceNodeStatSlot's bookkeeping onto a
// telemetry.Collector's Prometheus vectors, when one is configured.
type telemetryStatSlot struct {
	resource string
	node     *stat.Node
	metrics  *telemetry.Collector
}

func newTelemetryStatSlot(resource string, node *stat.Node, metrics *telemetry.Collector) *telemetryStatSlot {
	return &telemetryStatSlot{resource: resource, node: node, metrics: metrics}
}

func (s *telemetryStatSlot) Order() int { return TelemetryStatOrder }

func (s *telemetryStatSlot) OnPass(ctx *chain.Context) {
	batch := ctx.Input.BatchCount
	if batch <= 0 {
		batch = 1
	}
	s.metrics.RecordPass(s.resource, batch)
	s.metrics.SetConcurrency(s.resource, s.node.CurrentConcurrency())
}

func (s *telemetryStatSlot) OnBlock(ctx *chain.Context, res chain.Result) {
	batch := ctx.Input.BatchCount
	if batch <= 0 {
		batch = 1
	}
	blockType := "Unknown"
	if res.Err != nil {
		blockType = res.Err.BlockType.String()
	}
	s.metrics.RecordBlock(s.resource, blockType, batch)
}

func (s *telemetryStatSlot) OnCompleted(ctx *chain.Context) {
	s.metrics.SetConcurrency(s.resource, s.node.CurrentConcurrency())
	rt := ctx.RoundTripMs
	if rt < 0 {
		rt = 0
	}
	s.metrics.RecordComplete(s.resource, rt)
	if ctx.Err != nil {
		s.metrics.RecordError(s.resource)
	}
}
