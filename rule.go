package flowguard

import (
	"github.com/Gimel-Foundation/flowguard/internal/blockerr"
	"github.com/Gimel-Foundation/flowguard/internal/breaker"
	"github.com/Gimel-Foundation/flowguard/internal/flow"
	"github.com/Gimel-Foundation/flowguard/internal/hotspot"
	"github.com/Gimel-Foundation/flowguard/internal/isolation"
	"github.com/Gimel-Foundation/flowguard/internal/registry"
	"github.com/Gimel-Foundation/flowguard/internal/system"
)

// Kind identifies which subsystem a batch of rules passed to LoadRules
// belongs to.
type Kind = registry.Kind

const (
	KindFlow      = registry.KindFlow
	KindBreaker   = registry.KindBreaker
	KindHotSpot   = registry.KindHotSpot
	KindIsolation = registry.KindIsolation
	KindSystem    = registry.KindSystem
)

// Rule variants, re-exported so callers never need to import the
// internal subsystem packages directly.
type (
	FlowRule      = flow.Rule
	BreakerRule   = breaker.Rule
	HotSpotRule   = hotspot.Rule
	IsolationRule = isolation.Rule
	SystemRule    = system.Rule
)

// Flow rule constants.
const (
	Direct         = flow.Direct
	WarmUp         = flow.WarmUp
	MemoryAdaptive = flow.MemoryAdaptive

	Reject     = flow.Reject
	Throttling = flow.Throttling
)

// Circuit-breaker strategy constants.
const (
	ErrorCount       = breaker.ErrorCount
	ErrorRatio       = breaker.ErrorRatio
	SlowRequestRatio = breaker.SlowRequestRatio
)

// BreakerState is one of Closed/Open/HalfOpen (§4.5).
type BreakerState = breaker.State

// Circuit-breaker state constants.
const (
	Closed   = breaker.Closed
	Open     = breaker.Open
	HalfOpen = breaker.HalfOpen
)

// Listener observes circuit-breaker state changes
// (register_state_change_listener, §6).
type Listener = breaker.Listener

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc = breaker.ListenerFunc

// Hot-spot strategy constants.
const (
	QPSReject     = hotspot.QPSReject
	QPSThrottling = hotspot.QPSThrottling
	Concurrency   = hotspot.Concurrency
)

// System metric constants (§4.7).
const (
	MetricLoad1       = system.Load1
	MetricCPU         = system.CPU
	MetricInboundQPS  = system.InboundQPS
	MetricAvgRT       = system.AvgRT
	MetricConcurrency = system.Concurrency
)

// BlockType is the taxonomy of reasons an entry can be blocked (§7).
type BlockType = blockerr.Type

// Block type constants. Third parties extend this set with
// RegisterOtherType rather than adding new iota members.
const (
	Unknown          = blockerr.Unknown
	Flow             = blockerr.Flow
	Isolation        = blockerr.Isolation
	CircuitBreaking  = blockerr.CircuitBreaking
	SystemFlow       = blockerr.SystemFlow
	HotSpotParamFlow = blockerr.HotSpotParamFlow
)

// RegisterOtherType registers a third-party block type label under id.
// Reusing an id already registered is rejected (§7).
func RegisterOtherType(id int, label string) (BlockType, error) {
	return blockerr.RegisterOtherType(id, label)
}

// BlockError is the typed error an Entry build returns when a check slot
// denies the call (§7). It implements the error interface.
type BlockError = blockerr.Error

// RuleRef names the rule that produced a BlockError or a breaker state
// change.
type RuleRef = blockerr.RuleRef

// Snapshot is the type-erased observed value that tripped a rule.
type Snapshot = blockerr.Snapshot
