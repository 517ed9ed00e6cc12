package breaker

import (
	"log/slog"
	"sync"

	"github.com/Gimel-Foundation/flowguard/internal/blockerr"
)

// Listener observes circuit-breaker state changes (§4.9's
// register_state_change_listener, §9's listener fan-out design note).
type Listener interface {
	OnStateChange(resource string, rule Rule, from, to State, snapshot blockerr.Snapshot)
}

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc func(resource string, rule Rule, from, to State, snapshot blockerr.Snapshot)

func (f ListenerFunc) OnStateChange(resource string, rule Rule, from, to State, snapshot blockerr.Snapshot) {
	f(resource, rule, from, to, snapshot)
}

// ListenerRegistry is the process-wide, append-only set of state-change
// listeners. Notify takes a snapshot of the slice under the mutex, then
// releases it before dispatching, so a slow or panicking listener never
// holds up registration or other breakers (§5, §9).
type ListenerRegistry struct {
	mu        sync.Mutex
	listeners []Listener
}

// NewListenerRegistry builds an empty registry.
func NewListenerRegistry() *ListenerRegistry {
	return &ListenerRegistry{}
}

// Register appends a listener.
func (r *ListenerRegistry) Register(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Notify dispatches a state change to every registered listener.
// Listener callbacks are best-effort: a panic is recovered and logged,
// never propagated, matching §4.5's "reports but does not retry".
func (r *ListenerRegistry) Notify(resource string, rule Rule, from, to State, snapshot blockerr.Snapshot) {
	r.mu.Lock()
	snap := make([]Listener, len(r.listeners))
	copy(snap, r.listeners)
	r.mu.Unlock()

	for _, l := range snap {
		dispatchOne(l, resource, rule, from, to, snapshot)
	}
}

func dispatchOne(l Listener, resource string, rule Rule, from, to State, snapshot blockerr.Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("flowguard: circuit breaker listener panicked", "resource", resource, "panic", r)
		}
	}()
	l.OnStateChange(resource, rule, from, to, snapshot)
}
