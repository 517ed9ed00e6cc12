package chain

import "github.com/Gimel-Foundation/flowguard/internal/stat"

// Input carries the caller-supplied arguments for one entry (§3): a batch
// size for acquiring more than one token at once, an opaque flag a
// controller may interpret (e.g. priority), positional args used by
// hot-parameter rules to index into, and a free-form attachment bag.
type Input struct {
	BatchCount  int64
	Flag        int32
	Args        []any
	Attachments map[string]any
}

// Arg returns the i'th positional argument, if present.
func (in *Input) Arg(i int) (any, bool) {
	if in == nil || i < 0 || i >= len(in.Args) {
		return nil, false
	}
	return in.Args[i], true
}

// Attachment returns a value stashed under key, if present.
func (in *Input) Attachment(key string) (any, bool) {
	if in == nil || in.Attachments == nil {
		return nil, false
	}
	v, ok := in.Attachments[key]
	return v, ok
}

// Context is the per-call state threaded through prepare, check and stat
// slots, and back to the caller on exit (§3 Entry context). It is built
// once per Entry and is not safe for concurrent use by more than the one
// goroutine that owns the entry.
type Context struct {
	Resource    string
	StartMs     int64
	Node        *stat.Node
	Input       Input
	TokenResult Result
	RoundTripMs int64
	Err         error

	// Queued is set when the chain admitted this entry via a Wait decision
	// (it occupied a future time slot rather than passing immediately),
	// distinguishing the metric log's occupied_pass column from an
	// outright immediate pass.
	Queued bool

	exitHandlers []func(*Context)
}

// OnExit registers a function to run once, when the entry completes.
// Exit runs these handlers before any stat slot's OnCompleted.
func (c *Context) OnExit(f func(*Context)) {
	c.exitHandlers = append(c.exitHandlers, f)
}
