package hotspot

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Gimel-Foundation/flowguard/internal/blockerr"
	"github.com/Gimel-Foundation/flowguard/internal/chain"
)

// Default slot orders for the hot-parameter subsystem (§4.3).
const (
	CheckOrder = 4000
	StatOrder  = 4000
)

// Controller is the compiled form of a hot-spot Rule (§3, §4.6).
type Controller struct {
	Rule Rule
	lru  *LRU
	ref  blockerr.RuleRef
}

// NewController builds a hot-spot Controller for rule.
func NewController(rule Rule) *Controller {
	return &Controller{
		Rule: rule,
		lru:  NewLRU(rule.CacheCapacity),
		ref:  blockerr.RuleRef{Resource: rule.Resource, Strategy: rule.Strategy.String(), ID: rule.ID},
	}
}

// extractKey reads the parameter value the rule names out of ctx's input.
// Absence of the argument or attachment means the rule does not apply to
// this call (§4.6).
func (c *Controller) extractKey(ctx *chain.Context) (string, bool) {
	if c.Rule.ParamIndex != nil {
		v, ok := ctx.Input.Arg(*c.Rule.ParamIndex)
		if !ok {
			return "", false
		}
		return fmt.Sprint(v), true
	}
	v, ok := ctx.Input.Attachment(c.Rule.AttachmentKey)
	if !ok {
		return "", false
	}
	return fmt.Sprint(v), true
}

func (c *Controller) batchOf(ctx *chain.Context) int64 {
	if ctx.Input.BatchCount > 0 {
		return ctx.Input.BatchCount
	}
	return 1
}

func (c *Controller) check(ctx *chain.Context) chain.Result {
	key, ok := c.extractKey(ctx)
	if !ok {
		return chain.Pass()
	}
	batch := c.batchOf(ctx)
	threshold := c.Rule.thresholdFor(key)

	switch c.Rule.Strategy {
	case QPSReject:
		return c.checkQPSReject(key, threshold, batch)
	case QPSThrottling:
		return c.checkQPSThrottling(key, threshold, batch)
	default:
		return c.checkConcurrency(key, threshold, batch)
	}
}

func (c *Controller) checkQPSReject(key string, threshold float64, batch int64) chain.Result {
	e := c.lru.GetOrCreate(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UnixNano()
	if e.lastRefillNs == 0 {
		e.tokens = threshold
		e.lastRefillNs = now
	} else {
		elapsedSec := float64(now-e.lastRefillNs) / float64(time.Second)
		refillRate := threshold / float64(c.Rule.DurationSec)
		e.tokens = math.Min(threshold, e.tokens+elapsedSec*refillRate)
		e.lastRefillNs = now
	}

	if e.tokens < float64(batch) {
		return chain.Blocked(blockerr.New(blockerr.HotSpotParamFlow, "parameter token bucket exhausted", c.ref, blockerr.SnapshotOfString(key)))
	}
	e.tokens -= float64(batch)
	return chain.Pass()
}

func (c *Controller) checkQPSThrottling(key string, threshold float64, batch int64) chain.Result {
	e := c.lru.GetOrCreate(key)
	maxQueueingNs := c.Rule.MaxQueueingMs * int64(time.Millisecond)
	intervalCostNs := int64(float64(batch) * float64(time.Second) / threshold)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UnixNano()
	expected := e.lastPassNs + intervalCostNs
	if expected <= now {
		e.lastPassNs = now
		return chain.Pass()
	}
	waitNs := expected - now
	if waitNs <= maxQueueingNs {
		e.lastPassNs = expected
		return chain.Wait(waitNs)
	}
	return chain.Blocked(blockerr.New(blockerr.HotSpotParamFlow, "parameter throttling queue would exceed max queueing time", c.ref, blockerr.SnapshotOfString(key)))
}

func (c *Controller) checkConcurrency(key string, threshold float64, batch int64) chain.Result {
	e := c.lru.GetOrCreate(key)
	cur := e.concurrency.Load()
	if float64(cur+batch) > threshold {
		return chain.Blocked(blockerr.New(blockerr.HotSpotParamFlow, "parameter concurrency would exceed threshold", c.ref, blockerr.SnapshotOf(uint64(cur))))
	}
	return chain.Pass()
}

func (c *Controller) onPass(ctx *chain.Context) {
	if c.Rule.Strategy != Concurrency {
		return
	}
	key, ok := c.extractKey(ctx)
	if !ok {
		return
	}
	c.lru.GetOrCreate(key).concurrency.Add(c.batchOf(ctx))
}

func (c *Controller) onCompleted(ctx *chain.Context) {
	if c.Rule.Strategy != Concurrency {
		return
	}
	key, ok := c.extractKey(ctx)
	if !ok {
		return
	}
	e, found := c.lru.Get(key)
	if !found {
		slog.Debug("flowguard: hot-spot concurrency key evicted before completion", "resource", c.Rule.Resource, "key", key)
		return
	}
	e.concurrency.Add(-c.batchOf(ctx))
}

// CheckSlot adapts the controller to chain.CheckSlot at the HotSpot order.
func (c *Controller) CheckSlot() chain.CheckSlot { return hotspotCheckSlot{c} }

// StatSlot adapts the controller to chain.StatSlot at the HotSpotStat
// order.
func (c *Controller) StatSlot() chain.StatSlot { return hotspotStatSlot{c} }

type hotspotCheckSlot struct{ c *Controller }

func (s hotspotCheckSlot) Order() int                       { return CheckOrder }
func (s hotspotCheckSlot) Check(ctx *chain.Context) chain.Result { return s.c.check(ctx) }

type hotspotStatSlot struct{ c *Controller }

func (s hotspotStatSlot) Order() int                                { return StatOrder }
func (s hotspotStatSlot) OnPass(ctx *chain.Context)                  { s.c.onPass(ctx) }
func (s hotspotStatSlot) OnBlock(ctx *chain.Context, _ chain.Result) {}
func (s hotspotStatSlot) OnCompleted(ctx *chain.Context)             { s.c.onCompleted(ctx) }
