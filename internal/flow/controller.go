package flow

import (
	"github.com/Gimel-Foundation/flowguard/internal/blockerr"
	"github.com/Gimel-Foundation/flowguard/internal/chain"
	"github.com/Gimel-Foundation/flowguard/internal/stat"
)

// Default slot orders for the flow subsystem (§4.3).
const (
	CheckOrder = 2000
	StatOrder  = 3000
)

// Controller is the compiled form of a flow Rule (§3): the rule itself, its
// calculator, its checker and the statistic the checker reads.
type Controller struct {
	Rule Rule

	calc Calculator
	chk  Checker
	stat *StandaloneStat
	ref  blockerr.RuleRef
}

// NewController builds a flow Controller for rule, reading/writing node's
// statistics (or a private one, per NewStandaloneStat).
func NewController(rule Rule, node *stat.Node, calc Calculator, chk Checker) *Controller {
	return &Controller{
		Rule: rule,
		calc: calc,
		chk:  chk,
		stat: NewStandaloneStat(node, rule.StatIntervalMs),
		ref:  blockerr.RuleRef{Resource: rule.Resource, Strategy: rule.Checker.String(), ID: rule.ID},
	}
}

func (c *Controller) batchOf(ctx *chain.Context) int64 {
	if ctx.Input.BatchCount > 0 {
		return ctx.Input.BatchCount
	}
	return 1
}

func (c *Controller) check(ctx *chain.Context) chain.Result {
	batch := c.batchOf(ctx)
	threshold := c.calc.CalculateThreshold(batch, ctx.Input.Flag)
	return c.chk.Check(batch, threshold, c.stat, c.ref)
}

func (c *Controller) onPass(ctx *chain.Context) {
	c.stat.RecordPass(c.batchOf(ctx))
}

// CheckSlot adapts the controller to chain.CheckSlot at the Flow order.
func (c *Controller) CheckSlot() chain.CheckSlot { return flowCheckSlot{c} }

// StatSlot adapts the controller to chain.StatSlot at the
// FlowStandaloneStat order.
func (c *Controller) StatSlot() chain.StatSlot { return flowStatSlot{c} }

type flowCheckSlot struct{ c *Controller }

func (s flowCheckSlot) Order() int                      { return CheckOrder }
func (s flowCheckSlot) Check(ctx *chain.Context) chain.Result { return s.c.check(ctx) }

type flowStatSlot struct{ c *Controller }

func (s flowStatSlot) Order() int                                   { return StatOrder }
func (s flowStatSlot) OnPass(ctx *chain.Context)                     { s.c.onPass(ctx) }
func (s flowStatSlot) OnBlock(ctx *chain.Context, _ chain.Result)    {}
func (s flowStatSlot) OnCompleted(ctx *chain.Context)                {}
