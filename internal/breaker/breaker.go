package breaker

import (
	"sync"
	"sync/atomic"

	"github.com/Gimel-Foundation/flowguard/internal/blockerr"
	"github.com/Gimel-Foundation/flowguard/internal/chain"
	"github.com/Gimel-Foundation/flowguard/internal/clock"
)

// Default slot orders for the circuit-breaker subsystem (§4.3).
const (
	CheckOrder = 5000
	StatOrder  = 5000
)

// Breaker is the compiled form of a breaker Rule (§3, §4.5): the state
// machine plus the statistic its strategy reads. TryPass is the only path
// that can perform Open->HalfOpen; OnCompleted is the only path that can
// perform Closed->Open or resolve a HalfOpen probe.
type Breaker struct {
	Rule Rule

	strategy  Strategy
	counter   *CounterLeapArray
	listeners *ListenerRegistry
	ref       blockerr.RuleRef

	mu          sync.Mutex
	state       State
	nextRetryMs int64
	probing     atomic.Bool
}

// NewBreaker builds a Breaker for rule, starting Closed.
func NewBreaker(rule Rule, strategy Strategy, listeners *ListenerRegistry) *Breaker {
	return &Breaker{
		Rule:      rule,
		strategy:  strategy,
		counter:   NewCounterLeapArray(rule.BucketCount, rule.StatIntervalMs),
		listeners: listeners,
		ref:       blockerr.RuleRef{Resource: rule.Resource, Strategy: rule.Strategy.String(), ID: rule.ID},
		state:     Closed,
	}
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// TryPass is the admission predicate (§4.5): Closed always passes, Open
// blocks unless the retry timeout has elapsed (in which case exactly one
// caller wins the race into HalfOpen and probes), HalfOpen blocks every
// caller but the one already probing.
func (b *Breaker) TryPass() chain.Result {
	b.mu.Lock()

	switch b.state {
	case Closed:
		b.mu.Unlock()
		return chain.Pass()

	case Open:
		if clock.NowMillis() < b.nextRetryMs {
			b.mu.Unlock()
			return b.blockedResult(blockerr.SnapshotOfString("open"))
		}
		if b.probing.CompareAndSwap(false, true) {
			from := b.state
			b.state = HalfOpen
			b.mu.Unlock()
			b.listeners.Notify(b.Rule.Resource, b.Rule, from, HalfOpen, blockerr.Snapshot{})
			return chain.Pass()
		}
		b.mu.Unlock()
		return b.blockedResult(blockerr.SnapshotOfString("open"))

	default: // HalfOpen: a probe is already in flight
		b.mu.Unlock()
		return b.blockedResult(blockerr.SnapshotOfString("half-open"))
	}
}

func (b *Breaker) blockedResult(snap blockerr.Snapshot) chain.Result {
	return chain.Blocked(blockerr.New(blockerr.CircuitBreaking, "circuit breaker is "+b.stateLabel(), b.ref, snap))
}

func (b *Breaker) stateLabel() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}

// OnCompleted records a completion and evaluates the breaker's condition
// (§4.5). A HalfOpen completion is the probe: its own outcome decides the
// transition directly, bypassing min_request_amount, per §4.5's
// single-probe immediacy for slow requests, generalized to every
// strategy so a failing probe always reopens. A Closed completion
// evaluates the strategy's windowed condition. An Open completion should
// not occur (TryPass already blocked it); it is recorded but otherwise
// ignored.
func (b *Breaker) OnCompleted(errored bool, rtMs int64) {
	b.counter.RecordComplete(errored, rtMs, b.Rule.MaxAllowedRtMs)

	b.mu.Lock()
	switch b.state {
	case HalfOpen:
		if b.strategy.ProbeFailed(errored, rtMs) {
			from := b.state
			b.state = Open
			b.nextRetryMs = clock.NowMillis() + b.Rule.RetryTimeoutMs
			b.probing.Store(false)
			b.mu.Unlock()
			b.listeners.Notify(b.Rule.Resource, b.Rule, from, Open, blockerr.Snapshot{})
			return
		}
		from := b.state
		b.state = Closed
		b.counter.Reset()
		b.probing.Store(false)
		b.mu.Unlock()
		b.listeners.Notify(b.Rule.Resource, b.Rule, from, Closed, blockerr.Snapshot{})
		return

	case Closed:
		if open, snap := b.strategy.ShouldOpen(b.counter); open {
			from := b.state
			b.state = Open
			b.nextRetryMs = clock.NowMillis() + b.Rule.RetryTimeoutMs
			b.mu.Unlock()
			b.listeners.Notify(b.Rule.Resource, b.Rule, from, Open, snap)
			return
		}
		b.mu.Unlock()
		return

	default: // Open
		b.mu.Unlock()
		return
	}
}

// CheckSlot adapts the breaker to chain.CheckSlot at the CircuitBreaker
// order.
func (b *Breaker) CheckSlot() chain.CheckSlot { return breakerCheckSlot{b} }

// StatSlot adapts the breaker to chain.StatSlot at the
// CircuitBreakerStat order.
func (b *Breaker) StatSlot() chain.StatSlot { return breakerStatSlot{b} }

type breakerCheckSlot struct{ b *Breaker }

func (s breakerCheckSlot) Order() int                       { return CheckOrder }
func (s breakerCheckSlot) Check(ctx *chain.Context) chain.Result { return s.b.TryPass() }

type breakerStatSlot struct{ b *Breaker }

func (s breakerStatSlot) Order() int                                { return StatOrder }
func (s breakerStatSlot) OnPass(ctx *chain.Context)                  {}
func (s breakerStatSlot) OnBlock(ctx *chain.Context, _ chain.Result) {}
func (s breakerStatSlot) OnCompleted(ctx *chain.Context) {
	s.b.OnCompleted(ctx.Err != nil, ctx.RoundTripMs)
}
