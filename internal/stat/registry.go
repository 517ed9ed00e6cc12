package stat

import (
	"log/slog"
	"sync"
)

// DefaultMaxResources bounds the registry so a caller that mints resource
// names from unbounded user input (e.g. a raw URL path) can't grow the
// process-wide map without limit. Overflow logs a warning and returns a
// fresh node that the registry does not track, never failing the caller.
const DefaultMaxResources = 10000

// Registry is the process-wide resource-name -> Node map. It is safe for
// concurrent use and, once a node is created, never evicts it: resource
// nodes live for the life of the process, mirroring rule controllers'
// lifetime in the rule registry.
type Registry struct {
	mu             sync.Mutex
	nodes          map[string]*Node
	maxResources   int
	globalSamples  int
	globalInterval int64
	metricSamples  int
	metricInterval int64
	overflowWarned bool
}

// NewRegistry builds a registry sized from the global/metric stat
// parameters. These are process-wide: every resource node's leap array
// and default view share the same geometry (§6 global_stat/metric_stat).
func NewRegistry(globalSamples int, globalIntervalMs int64, metricSamples int, metricIntervalMs int64, maxResources int) *Registry {
	if maxResources <= 0 {
		maxResources = DefaultMaxResources
	}
	return &Registry{
		nodes:          make(map[string]*Node),
		maxResources:   maxResources,
		globalSamples:  globalSamples,
		globalInterval: globalIntervalMs,
		metricSamples:  metricSamples,
		metricInterval: metricIntervalMs,
	}
}

// NodeFor returns the Node for resource, creating it on first reference.
// An empty resource name never gets a node — callers bypass all checks
// for it per §8's boundary case, so there is nothing to track.
func (r *Registry) NodeFor(resource string) *Node {
	if resource == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if n, ok := r.nodes[resource]; ok {
		return n
	}
	if len(r.nodes) >= r.maxResources {
		if !r.overflowWarned {
			slog.Warn("flowguard: resource node registry at capacity, new resources will not be tracked", "max", r.maxResources)
			r.overflowWarned = true
		}
		return newNode(resource, r.globalSamples, r.globalInterval, r.metricSamples, r.metricInterval)
	}

	n := newNode(resource, r.globalSamples, r.globalInterval, r.metricSamples, r.metricInterval)
	r.nodes[resource] = n
	return n
}

// Lookup returns the existing Node for resource without creating one.
func (r *Registry) Lookup(resource string) (*Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[resource]
	return n, ok
}

// Len returns the number of tracked resources.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nodes)
}

// Resources returns a snapshot of all tracked resource names.
func (r *Registry) Resources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.nodes))
	for name := range r.nodes {
		out = append(out, name)
	}
	return out
}
