// Package chain implements the slot-chain admission pipeline (§4.1): a
// fixed sequence of prepare, check and stat slots that every guarded entry
// runs through, in the teacher's slot-chain style generalized from a
// single fixed pipeline to one assembled per resource from whichever
// subsystems have rules registered against it.
package chain

import "sort"

// Chain is an ordered pipeline of slots. The zero value is not usable;
// build one with NewChain and Add the slots a resource needs.
type Chain struct {
	prepare []PrepareSlot
	check   []CheckSlot
	stat    []StatSlot
}

// NewChain builds an empty chain.
func NewChain() *Chain {
	return &Chain{}
}

// AddPrepare appends a prepare slot, run in registration order.
func (c *Chain) AddPrepare(s PrepareSlot) {
	c.prepare = append(c.prepare, s)
}

// AddCheck inserts a check slot, keeping the slice sorted by Order.
func (c *Chain) AddCheck(s CheckSlot) {
	c.check = append(c.check, s)
	sort.SliceStable(c.check, func(i, j int) bool { return c.check[i].Order() < c.check[j].Order() })
}

// AddStat inserts a stat slot, keeping the slice sorted by Order.
func (c *Chain) AddStat(s StatSlot) {
	c.stat = append(c.stat, s)
	sort.SliceStable(c.stat, func(i, j int) bool { return c.stat[i].Order() < c.stat[j].Order() })
}

// Entry runs ctx through the prepare and check stages and returns the
// chain's decision. The first non-Pass check slot stops the chain (§2):
// Blocked returns immediately, Wait sleeps then returns Pass without
// running any later check slot, matching a throttling controller that has
// already decided the caller's queueing for it.
func (c *Chain) Entry(ctx *Context) Result {
	for _, p := range c.prepare {
		p.Prepare(ctx)
	}

	for _, chk := range c.check {
		res := chk.Check(ctx)
		switch res.Status {
		case StatusBlocked:
			ctx.TokenResult = res
			c.notifyBlock(ctx, res)
			return res
		case StatusWait:
			sleep(res.WaitNanos)
			pass := Pass()
			ctx.TokenResult = pass
			ctx.Queued = true
			c.notifyPass(ctx)
			return pass
		}
	}

	pass := Pass()
	ctx.TokenResult = pass
	c.notifyPass(ctx)
	return pass
}

// Exit runs ctx's registered exit handlers and every stat slot's
// OnCompleted, once the caller's protected code has returned.
func (c *Chain) Exit(ctx *Context) {
	for _, h := range ctx.exitHandlers {
		h(ctx)
	}
	for _, s := range c.stat {
		s.OnCompleted(ctx)
	}
}

func (c *Chain) notifyPass(ctx *Context) {
	for _, s := range c.stat {
		s.OnPass(ctx)
	}
}

func (c *Chain) notifyBlock(ctx *Context, res Result) {
	for _, s := range c.stat {
		s.OnBlock(ctx, res)
	}
}
