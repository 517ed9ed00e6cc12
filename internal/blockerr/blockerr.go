// Package blockerr defines the taxonomy of admission-block outcomes (§7):
// a typed code, a human message, the rule that triggered it, and a
// type-erased snapshot of the value that tripped the rule.
//
// Modeled on the teacher's pkg/errors: a string-backed ErrorCode as the
// error interface itself, plus a structured wrapper carrying source and
// detail fields for downstream reporting without leaking internals.
package blockerr

import "fmt"

// Type is the taxonomy of reasons an entry can be blocked.
type Type int

const (
	// Unknown is returned when no rule fired but admission was still denied
	// (used internally; should not escape a well-formed chain).
	Unknown Type = iota
	// Flow indicates a flow-shaping rule (direct/throttling/warm-up/memory) blocked the call.
	Flow
	// Isolation indicates a concurrency-isolation rule blocked the call.
	Isolation
	// CircuitBreaking indicates an open or half-open circuit breaker blocked the call.
	CircuitBreaking
	// SystemFlow indicates a system-load guard blocked the call.
	SystemFlow
	// HotSpotParamFlow indicates a hot-parameter rule blocked the call.
	HotSpotParamFlow

	firstOtherType = 100
)

func (t Type) String() string {
	switch t {
	case Unknown:
		return "Unknown"
	case Flow:
		return "Flow"
	case Isolation:
		return "Isolation"
	case CircuitBreaking:
		return "CircuitBreaking"
	case SystemFlow:
		return "SystemFlow"
	case HotSpotParamFlow:
		return "HotSpotParamFlow"
	default:
		if label, ok := lookupOther(t); ok {
			return label
		}
		return fmt.Sprintf("Other(%d)", int(t))
	}
}

var (
	otherTypes = map[Type]string{}
)

// RegisterOtherType lets a third party mint a block type of its own,
// labeled for reporting. Reusing an id that is already registered is
// rejected, matching §7's "id reuse is rejected".
func RegisterOtherType(id int, label string) (Type, error) {
	t := Type(firstOtherType + id)
	if _, exists := otherTypes[t]; exists {
		return Unknown, fmt.Errorf("flowguard: block type id %d is already registered", id)
	}
	otherTypes[t] = label
	return t, nil
}

func lookupOther(t Type) (string, bool) {
	label, ok := otherTypes[t]
	return label, ok
}

// SnapshotKind tags which field of Snapshot actually holds a value, so
// downstream code can inspect it via the tagged union instead of an
// open-ended type switch or interface{} downcast (§9).
type SnapshotKind int

const (
	SnapshotNone SnapshotKind = iota
	SnapshotU64
	SnapshotF64
	SnapshotString
)

// Snapshot is the type-erased observed value that tripped a rule: a pass
// count, an error ratio, a concurrency level, and so on, carried for
// reporting only.
type Snapshot struct {
	Kind SnapshotKind
	U64  uint64
	F64  float64
	Str  string
}

// SnapshotOf builds a Snapshot from a uint64 value.
func SnapshotOf(v uint64) Snapshot { return Snapshot{Kind: SnapshotU64, U64: v} }

// SnapshotOfFloat builds a Snapshot from a float64 value.
func SnapshotOfFloat(v float64) Snapshot { return Snapshot{Kind: SnapshotF64, F64: v} }

// SnapshotOfString builds a Snapshot from a string value.
func SnapshotOfString(v string) Snapshot { return Snapshot{Kind: SnapshotString, Str: v} }

func (s Snapshot) String() string {
	switch s.Kind {
	case SnapshotU64:
		return fmt.Sprintf("%d", s.U64)
	case SnapshotF64:
		return fmt.Sprintf("%g", s.F64)
	case SnapshotString:
		return s.Str
	default:
		return "<none>"
	}
}

// RuleRef is a minimal, subsystem-agnostic description of the rule that
// produced a block, enough for a caller to report or log without
// depending on the concrete rule type of whichever subsystem fired.
type RuleRef struct {
	Resource string
	Strategy string
	ID       string
}

// Error is the structured block outcome every non-Pass admission
// decision returns. It implements the error interface directly so
// callers can either pattern-match on Type or just log Error().
type Error struct {
	BlockType Type
	Message   string
	Rule      RuleRef
	Snapshot  Snapshot
}

// New builds a block Error.
func New(blockType Type, message string, rule RuleRef, snapshot Snapshot) *Error {
	return &Error{BlockType: blockType, Message: message, Rule: rule, Snapshot: snapshot}
}

func (e *Error) Error() string {
	if e.Rule.Resource == "" {
		return fmt.Sprintf("flowguard: blocked (%s): %s", e.BlockType, e.Message)
	}
	return fmt.Sprintf("flowguard: %q blocked by %s rule (%s): %s (observed %s)",
		e.Rule.Resource, e.BlockType, e.Rule.Strategy, e.Message, e.Snapshot)
}
