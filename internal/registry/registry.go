package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/Gimel-Foundation/flowguard/internal/base"
	"github.com/Gimel-Foundation/flowguard/internal/breaker"
	"github.com/Gimel-Foundation/flowguard/internal/chain"
	"github.com/Gimel-Foundation/flowguard/internal/flow"
	"github.com/Gimel-Foundation/flowguard/internal/hotspot"
	"github.com/Gimel-Foundation/flowguard/internal/isolation"
	"github.com/Gimel-Foundation/flowguard/internal/metriclog"
	"github.com/Gimel-Foundation/flowguard/internal/stat"
	"github.com/Gimel-Foundation/flowguard/internal/system"
	"github.com/Gimel-Foundation/flowguard/internal/telemetry"
)

var structValidate = validator.New()

// entry pairs a compiled rule with its controller, so the registry can
// test structural equality against a reload's incoming rules and decide
// whether to keep the old controller (preserving its statistics) or
// build a fresh one (§4.8).
type entry[R any, C any] struct {
	rule R
	ctrl C
}

// Registry owns every subsystem's current rule set, the controllers
// compiled from them, and the per-resource chain.Chain snapshot built
// from all of them together. Safe for concurrent use.
type Registry struct {
	mu sync.Mutex

	stat       *stat.Registry
	listeners  *breaker.ListenerRegistry
	collector  *system.Collector
	writer     *metriclog.Writer
	metrics    *telemetry.Collector
	flushSec   int64

	// ResourceType labels a resource for the metric log's trailing column
	// (§6); resources absent from this map log as "common".
	ResourceType map[string]string

	flowEntries      []entry[flow.Rule, *flow.Controller]
	breakerEntries   []entry[breaker.Rule, *breaker.Breaker]
	hotspotEntries   []entry[hotspot.Rule, *hotspot.Controller]
	isolationEntries []entry[isolation.Rule, *isolation.Controller]
	systemEntries    []entry[system.Rule, *system.Controller]

	chains atomic.Pointer[map[string]*chain.Chain]
}

// NewRegistry builds an empty Registry. listeners, collector, writer and
// metrics may all be nil: a nil listeners registry is created empty, a
// nil collector means CPU/load1 system rules always pass, a nil writer
// disables the metric log entirely, a nil metrics collector skips
// Prometheus instrumentation. flushIntervalSec is the metric log's
// log.metric.flush_interval_sec (§6); values <= 0 default to 1.
func NewRegistry(statRegistry *stat.Registry, listeners *breaker.ListenerRegistry, collector *system.Collector, writer *metriclog.Writer, metrics *telemetry.Collector, flushIntervalSec int64) *Registry {
	if listeners == nil {
		listeners = breaker.NewListenerRegistry()
	}
	r := &Registry{
		stat:         statRegistry,
		listeners:    listeners,
		collector:    collector,
		writer:       writer,
		metrics:      metrics,
		flushSec:     flushIntervalSec,
		ResourceType: make(map[string]string),
	}
	empty := make(map[string]*chain.Chain)
	r.chains.Store(&empty)
	return r
}

// ChainFor returns the compiled chain for resource, or nil if no rule of
// any kind currently targets it (a caller should treat that as
// "pass-all", per §9's global-state tolerance note).
func (r *Registry) ChainFor(resource string) *chain.Chain {
	chains := *r.chains.Load()
	return chains[resource]
}

// Listeners returns the shared circuit-breaker listener registry, so a
// caller can register_state_change_listener (§6).
func (r *Registry) Listeners() *breaker.ListenerRegistry { return r.listeners }

// LoadRules validates, compiles and installs rules for kind, reusing
// controllers whose rule is structurally unchanged from the previous
// load (§4.8). rules must be the slice type matching kind ([]flow.Rule
// for KindFlow, and so on). Returns whether the installed rule set
// differs from the previous one. On a validation failure the previous
// snapshot is left in effect and every failure is returned together via
// a multierror (§7).
func (r *Registry) LoadRules(kind Kind, rules any) (bool, error) {
	switch kind {
	case KindFlow:
		rs, ok := rules.([]flow.Rule)
		if !ok {
			return false, fmt.Errorf("registry: KindFlow requires []flow.Rule, got %T", rules)
		}
		return loadKind(r, rs, func(a, b flow.Rule) bool { return a.Equal(b) }, r.buildFlow, &r.flowEntries, func(rule flow.Rule) flow.Rule {
			if rule.ID == "" {
				rule.ID = NewRuleID()
			}
			return rule
		})

	case KindBreaker:
		rs, ok := rules.([]breaker.Rule)
		if !ok {
			return false, fmt.Errorf("registry: KindBreaker requires []breaker.Rule, got %T", rules)
		}
		return loadKind(r, rs, func(a, b breaker.Rule) bool { return a.Equal(b) }, r.buildBreaker, &r.breakerEntries, func(rule breaker.Rule) breaker.Rule {
			if rule.ID == "" {
				rule.ID = NewRuleID()
			}
			return rule
		})

	case KindHotSpot:
		rs, ok := rules.([]hotspot.Rule)
		if !ok {
			return false, fmt.Errorf("registry: KindHotSpot requires []hotspot.Rule, got %T", rules)
		}
		return loadKind(r, rs, func(a, b hotspot.Rule) bool { return a.Equal(b) }, r.buildHotSpot, &r.hotspotEntries, func(rule hotspot.Rule) hotspot.Rule {
			if rule.ID == "" {
				rule.ID = NewRuleID()
			}
			return rule
		})

	case KindIsolation:
		rs, ok := rules.([]isolation.Rule)
		if !ok {
			return false, fmt.Errorf("registry: KindIsolation requires []isolation.Rule, got %T", rules)
		}
		return loadKind(r, rs, func(a, b isolation.Rule) bool { return a.Equal(b) }, r.buildIsolation, &r.isolationEntries, func(rule isolation.Rule) isolation.Rule {
			if rule.ID == "" {
				rule.ID = NewRuleID()
			}
			return rule
		})

	case KindSystem:
		rs, ok := rules.([]system.Rule)
		if !ok {
			return false, fmt.Errorf("registry: KindSystem requires []system.Rule, got %T", rules)
		}
		return loadKind(r, rs, func(a, b system.Rule) bool { return a.Equal(b) }, r.buildSystem, &r.systemEntries, func(rule system.Rule) system.Rule {
			if rule.ID == "" {
				rule.ID = NewRuleID()
			}
			return rule
		})

	default:
		return false, fmt.Errorf("registry: unknown rule kind %v", kind)
	}
}

// validatable is implemented by every subsystem's Rule type.
type validatable interface{ Validate() error }

func loadKind[R validatable, C any](
	reg *Registry,
	rules []R,
	eq func(a, b R) bool,
	build func(R) C,
	slot *[]entry[R, C],
	assignID func(R) R,
) (bool, error) {
	var verr *multierror.Error
	cleaned := make([]R, 0, len(rules))
	for _, rule := range rules {
		rule = assignID(rule)
		if err := structValidate.Struct(rule); err != nil {
			verr = multierror.Append(verr, err)
			continue
		}
		if err := rule.Validate(); err != nil {
			verr = multierror.Append(verr, err)
			continue
		}
		cleaned = append(cleaned, rule)
	}
	if verr != nil {
		return false, verr.ErrorOrNil()
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	old := *slot
	changed := !ruleSetsEqual(old, cleaned, eq)

	next := make([]entry[R, C], 0, len(cleaned))
	for _, rule := range cleaned {
		ctrl, reused := findReusable(old, rule, eq)
		if !reused {
			ctrl = build(rule)
		}
		next = append(next, entry[R, C]{rule: rule, ctrl: ctrl})
	}
	*slot = next

	reg.rebuildLocked()
	return changed, nil
}

func findReusable[R any, C any](old []entry[R, C], rule R, eq func(a, b R) bool) (C, bool) {
	for _, e := range old {
		if eq(e.rule, rule) {
			return e.ctrl, true
		}
	}
	var zero C
	return zero, false
}

func ruleSetsEqual[R any](old, newRules []R, eq func(a, b R) bool) bool {
	if len(old) != len(newRules) {
		return false
	}
	used := make([]bool, len(old))
	for _, n := range newRules {
		found := false
		for i, o := range old {
			if !used[i] && eq(o, n) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (r *Registry) buildFlow(rule flow.Rule) *flow.Controller {
	node := r.stat.NodeFor(rule.Resource)
	return flow.NewController(rule, node, r.buildFlowCalculator(rule, node), r.buildFlowChecker(rule))
}

func (r *Registry) buildFlowCalculator(rule flow.Rule, node *stat.Node) flow.Calculator {
	switch rule.Calculator {
	case flow.WarmUp:
		passQPS := func() float64 { return node.Metric().QPSPrevious(base.MetricEventPass) }
		return flow.NewWarmUpCalculator(rule.Threshold, rule.WarmUpPeriodSec, rule.WarmUpColdFactor, passQPS)
	case flow.MemoryAdaptive:
		return &flow.MemoryAdaptiveCalculator{
			LowMark: rule.LowMemWatermark, HighMark: rule.HighMemWatermark,
			LowThreshold: rule.LowMemThreshold, HighThreshold: rule.HighMemThreshold,
			Usage: r.memoryUsage,
		}
	default:
		return flow.DirectCalculator{Threshold: rule.Threshold}
	}
}

func (r *Registry) memoryUsage() uint64 {
	if r.collector == nil {
		return 0
	}
	return r.collector.MemoryUsageBytes()
}

func (r *Registry) buildFlowChecker(rule flow.Rule) flow.Checker {
	if rule.Checker == flow.Throttling {
		return flow.NewThrottlingChecker(rule.MaxQueueingMs)
	}
	return flow.RejectChecker{}
}

func (r *Registry) buildBreaker(rule breaker.Rule) *breaker.Breaker {
	return breaker.NewBreaker(rule, buildBreakerStrategy(rule), r.listeners)
}

func buildBreakerStrategy(rule breaker.Rule) breaker.Strategy {
	switch rule.Strategy {
	case breaker.ErrorRatio:
		return breaker.ErrorRatioStrategy{Threshold: rule.Threshold, MinRequestAmount: rule.MinRequestAmount}
	case breaker.SlowRequestRatio:
		return breaker.SlowRequestRatioStrategy{Threshold: rule.Threshold, MinRequestAmount: rule.MinRequestAmount, MaxAllowedRtMs: rule.MaxAllowedRtMs}
	default:
		return breaker.ErrorCountStrategy{Threshold: rule.Threshold, MinRequestAmount: rule.MinRequestAmount}
	}
}

func (r *Registry) buildHotSpot(rule hotspot.Rule) *hotspot.Controller {
	return hotspot.NewController(rule)
}

func (r *Registry) buildIsolation(rule isolation.Rule) *isolation.Controller {
	return isolation.NewController(rule, r.stat.NodeFor(rule.Resource))
}

func (r *Registry) buildSystem(rule system.Rule) *system.Controller {
	return system.NewController(rule, r.stat.NodeFor(rule.Resource), r.collector)
}

// rebuildLocked reassembles every resource's chain from the current
// entries of all five subsystems. Called with mu held.
func (r *Registry) rebuildLocked() {
	chains := make(map[string]*chain.Chain)

	ensure := func(resource string) *chain.Chain {
		if c, ok := chains[resource]; ok {
			return c
		}
		c := chain.NewChain()
		node := r.stat.NodeFor(resource)
		c.AddPrepare(resourceNodeSlot{node: node})
		c.AddStat(resourceNodeStatSlot{node: node})
		c.AddStat(newLogStatSlot(resource, r.resourceTypeFor(resource), node, r.writer, r.flushSec))
		if r.metrics != nil {
			c.AddStat(newTelemetryStatSlot(resource, node, r.metrics))
		}
		chains[resource] = c
		return c
	}

	for _, e := range r.systemEntries {
		ensure(e.rule.Resource).AddCheck(e.ctrl.CheckSlot())
	}
	for _, e := range r.flowEntries {
		c := ensure(e.rule.Resource)
		c.AddCheck(e.ctrl.CheckSlot())
		c.AddStat(e.ctrl.StatSlot())
	}
	for _, e := range r.isolationEntries {
		ensure(e.rule.Resource).AddCheck(e.ctrl.CheckSlot())
	}
	for _, e := range r.hotspotEntries {
		c := ensure(e.rule.Resource)
		c.AddCheck(e.ctrl.CheckSlot())
		c.AddStat(e.ctrl.StatSlot())
	}
	for _, e := range r.breakerEntries {
		c := ensure(e.rule.Resource)
		c.AddCheck(e.ctrl.CheckSlot())
		c.AddStat(e.ctrl.StatSlot())
	}

	r.chains.Store(&chains)
}

func (r *Registry) resourceTypeFor(resource string) string {
	if t, ok := r.ResourceType[resource]; ok {
		return t
	}
	return "common"
}

// NewRuleID mints a rule identifier the same way every identified record
// in the teacher's audit/event packages does.
func NewRuleID() string { return uuid.NewString() }
