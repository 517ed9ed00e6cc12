package registry

import (
	"github.com/Gimel-Foundation/flowguard/internal/chain"
	"github.com/Gimel-Foundation/flowguard/internal/clock"
	"github.com/Gimel-Foundation/flowguard/internal/stat"
)

// PrepareOrder and NodeStatOrder are the resource-node bookkeeping slots'
// default orders (§4.3): they run first among prepare and first among
// stat slots, ahead of every subsystem.
const (
	PrepareOrder = 1000
	NodeStatOrder = 1000
)

// resourceNodeSlot attaches the resource's node to the context and stamps
// entry start time; resourceNodeStatSlot records pass/block/complete/
// error/concurrency onto that node — the bookkeeping every resource gets
// regardless of which subsystem rules target it.
type resourceNodeSlot struct{ node *stat.Node }

func (s resourceNodeSlot) Order() int { return PrepareOrder }

func (s resourceNodeSlot) Prepare(ctx *chain.Context) {
	ctx.Node = s.node
	ctx.StartMs = clock.NowMillis()
}

type resourceNodeStatSlot struct{ node *stat.Node }

func (s resourceNodeStatSlot) Order() int { return NodeStatOrder }

func (s resourceNodeStatSlot) OnPass(ctx *chain.Context) {
	batch := ctx.Input.BatchCount
	if batch <= 0 {
		batch = 1
	}
	s.node.AddPass(batch)
	if ctx.Queued {
		s.node.AddOccupiedPass(batch)
	}
	s.node.IncConcurrency()
}

func (s resourceNodeStatSlot) OnBlock(ctx *chain.Context, _ chain.Result) {
	batch := ctx.Input.BatchCount
	if batch <= 0 {
		batch = 1
	}
	s.node.AddBlock(batch)
}

func (s resourceNodeStatSlot) OnCompleted(ctx *chain.Context) {
	s.node.DecConcurrency()
	rt := ctx.RoundTripMs
	if rt < 0 {
		rt = 0
	}
	s.node.AddComplete(rt)
	if ctx.Err != nil {
		s.node.AddError()
	}
}
