package system

import (
	"math"
	"runtime"
	"sync/atomic"

	"github.com/Gimel-Foundation/flowguard/internal/base"
	"github.com/Gimel-Foundation/flowguard/internal/blockerr"
	"github.com/Gimel-Foundation/flowguard/internal/chain"
	"github.com/Gimel-Foundation/flowguard/internal/stat"
)

// CheckOrder is the system subsystem's default check-slot order (§4.3).
const CheckOrder = 1000

// Controller is the compiled form of a system Rule.
type Controller struct {
	Rule      Rule
	node      *stat.Node
	collector *Collector
	ref       blockerr.RuleRef

	maxCompleteQPSBits atomic.Uint64
}

// NewController builds a system Controller for rule, reading resource
// statistics off node and host-level readings off collector. collector
// may be nil for rules whose Metric doesn't need it (InboundQPS, AvgRT,
// Concurrency); a CPU or Load1 rule over a nil collector always passes.
func NewController(rule Rule, node *stat.Node, collector *Collector) *Controller {
	return &Controller{Rule: rule, node: node, collector: collector, ref: blockerr.RuleRef{Resource: rule.Resource, Strategy: "System", ID: rule.ID}}
}

func (c *Controller) metricValue() (float64, bool) {
	switch c.Rule.Metric {
	case CPU:
		if c.collector == nil {
			return 0, false
		}
		return c.collector.CPUPercent(), true
	case Load1:
		if c.collector == nil {
			return 0, false
		}
		n := runtime.GOMAXPROCS(0)
		if n < 1 {
			n = 1
		}
		return c.collector.Load1() / float64(n), true
	case InboundQPS:
		return c.node.Metric().QPS(base.MetricEventPass), true
	case AvgRT:
		return c.node.Metric().AvgRt(), true
	case Concurrency:
		return float64(c.node.CurrentConcurrency()), true
	default:
		return 0, false
	}
}

func (c *Controller) check(ctx *chain.Context) chain.Result {
	batch := ctx.Input.BatchCount
	if batch <= 0 {
		batch = 1
	}

	observed, ok := c.metricValue()
	if ok && c.Rule.Metric == Concurrency {
		observed += float64(batch)
	}
	if ok && observed > c.Rule.Threshold {
		return chain.Blocked(blockerr.New(blockerr.SystemFlow, c.Rule.Metric.String()+" exceeds threshold", c.ref, blockerr.SnapshotOfFloat(observed)))
	}

	if c.Rule.BBR {
		if blocked, snap := c.checkBBR(batch); blocked {
			return chain.Blocked(blockerr.New(blockerr.SystemFlow, "concurrency exceeds BBR estimated capacity", c.ref, snap))
		}
	}
	return chain.Pass()
}

// checkBBR implements §4.7's additional BBR constraint: concurrency must
// stay at or under estimated_max = max_complete_qps * min_rt / 1000.
// max_complete_qps tracks the resource's historical peak completion rate
// (never decreasing), matching the adaptive-capacity approach the
// teacher's AdaptiveRateLimiter generalizes from a usage ratio to a
// concurrency estimate.
func (c *Controller) checkBBR(batch int64) (bool, blockerr.Snapshot) {
	currentQPS := c.node.Metric().QPS(base.MetricEventComplete)
	c.bumpMaxCompleteQPS(currentQPS)
	maxQPS := math.Float64frombits(c.maxCompleteQPSBits.Load())

	minRt := c.node.Metric().MinRt()
	if maxQPS <= 0 || minRt <= 0 {
		return false, blockerr.Snapshot{}
	}

	estimatedMax := maxQPS * float64(minRt) / 1000
	current := c.node.CurrentConcurrency() + batch
	if float64(current) > estimatedMax {
		return true, blockerr.SnapshotOfFloat(estimatedMax)
	}
	return false, blockerr.Snapshot{}
}

func (c *Controller) bumpMaxCompleteQPS(sample float64) {
	for {
		cur := math.Float64frombits(c.maxCompleteQPSBits.Load())
		if sample <= cur {
			return
		}
		if c.maxCompleteQPSBits.CompareAndSwap(math.Float64bits(cur), math.Float64bits(sample)) {
			return
		}
	}
}

// CheckSlot adapts the controller to chain.CheckSlot at the System order.
func (c *Controller) CheckSlot() chain.CheckSlot { return systemCheckSlot{c} }

type systemCheckSlot struct{ c *Controller }

func (s systemCheckSlot) Order() int                           { return CheckOrder }
func (s systemCheckSlot) Check(ctx *chain.Context) chain.Result { return s.c.check(ctx) }
