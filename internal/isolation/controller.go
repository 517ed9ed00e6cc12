package isolation

import (
	"github.com/Gimel-Foundation/flowguard/internal/blockerr"
	"github.com/Gimel-Foundation/flowguard/internal/chain"
	"github.com/Gimel-Foundation/flowguard/internal/stat"
)

// CheckOrder is the isolation subsystem's default check-slot order (§4.3).
const CheckOrder = 3000

// Controller is the compiled form of an isolation Rule: a bulkhead that
// blocks once the resource node's live concurrency plus the incoming
// batch would exceed the rule's threshold (§4.7).
type Controller struct {
	Rule Rule
	node *stat.Node
	ref  blockerr.RuleRef
}

// NewController builds an isolation Controller for rule over node.
func NewController(rule Rule, node *stat.Node) *Controller {
	return &Controller{Rule: rule, node: node, ref: blockerr.RuleRef{Resource: rule.Resource, Strategy: "Isolation", ID: rule.ID}}
}

func (c *Controller) check(ctx *chain.Context) chain.Result {
	batch := ctx.Input.BatchCount
	if batch <= 0 {
		batch = 1
	}
	current := c.node.CurrentConcurrency()
	if current+batch > c.Rule.Threshold {
		return chain.Blocked(blockerr.New(blockerr.Isolation, "concurrency would exceed threshold", c.ref, blockerr.SnapshotOf(uint64(current))))
	}
	return chain.Pass()
}

// CheckSlot adapts the controller to chain.CheckSlot at the Isolation
// order.
func (c *Controller) CheckSlot() chain.CheckSlot { return isolationCheckSlot{c} }

type isolationCheckSlot struct{ c *Controller }

func (s isolationCheckSlot) Order() int                       { return CheckOrder }
func (s isolationCheckSlot) Check(ctx *chain.Context) chain.Result { return s.c.check(ctx) }
