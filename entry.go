package flowguard

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/Gimel-Foundation/flowguard/internal/chain"
	"github.com/Gimel-Foundation/flowguard/internal/clock"
	"github.com/Gimel-Foundation/flowguard/internal/telemetry"
)

// EntryBuilder accumulates the caller-supplied arguments for one guarded
// call before Build runs it through the resource's slot chain (§4.9:
// EntryBuilder(resource).with_traffic_type().with_args().
// with_attachments().build()).
type EntryBuilder struct {
	core     *Core
	resource string
	ctx      context.Context
	input    chain.Input
}

// NewEntryBuilder starts building an Entry for resource. An empty
// resource name bypasses every check and always passes (§8's boundary
// case): the returned builder's Build still succeeds, just against a nil
// chain.
func (c *Core) NewEntryBuilder(resource string) *EntryBuilder {
	return &EntryBuilder{core: c, resource: resource, ctx: context.Background()}
}

// WithContext attaches a caller context, used as the parent span for
// tracing when a Tracer is configured.
func (b *EntryBuilder) WithContext(ctx context.Context) *EntryBuilder {
	b.ctx = ctx
	return b
}

// WithTrafficType sets the opaque traffic-type flag a controller may
// interpret (e.g. priority class).
func (b *EntryBuilder) WithTrafficType(flag int32) *EntryBuilder {
	b.input.Flag = flag
	return b
}

// WithBatchCount sets how many tokens this entry acquires at once.
// Leaving it at zero acquires exactly one.
func (b *EntryBuilder) WithBatchCount(n int64) *EntryBuilder {
	b.input.BatchCount = n
	return b
}

// WithArgs sets the positional arguments hot-parameter rules index into.
func (b *EntryBuilder) WithArgs(args ...any) *EntryBuilder {
	b.input.Args = args
	return b
}

// WithAttachment stashes a value under key, retrievable by hot-parameter
// rules configured with a matching attachment key.
func (b *EntryBuilder) WithAttachment(key string, value any) *EntryBuilder {
	if b.input.Attachments == nil {
		b.input.Attachments = make(map[string]any)
	}
	b.input.Attachments[key] = value
	return b
}

// Build constructs the entry context, runs the chain's prepare and check
// phases, and returns either a live Entry or a *BlockError (§4.9). The
// caller must call Exit exactly once on a live Entry.
func (b *EntryBuilder) Build() (*Entry, error) {
	c := b.core.registry.ChainFor(b.resource)

	e := &Entry{
		core:     b.core,
		resource: b.resource,
		chain:    c,
		ctx:      &chain.Context{Resource: b.resource, Input: b.input, StartMs: clock.NowMillis()},
		spanCtx:  b.ctx,
	}

	if b.core.tracer != nil {
		e.spanCtx, e.span = b.core.tracer.StartEntry(b.ctx, b.resource)
	}

	if c == nil {
		// No rule of any kind targets this resource: pass-all (§9's
		// global-state tolerance note).
		return e, nil
	}

	res := c.Entry(e.ctx)
	if res.Status == chain.StatusBlocked {
		if e.span != nil {
			ruleID := ""
			blockType := Unknown
			if res.Err != nil {
				ruleID = res.Err.Rule.ID
				blockType = res.Err.BlockType
			}
			telemetry.EndBlocked(e.span, blockType.String(), ruleID)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return nil, &BlockError{BlockType: Unknown, Message: "blocked by an unspecified rule"}
	}
	return e, nil
}

// Entry is one admission attempt that passed its resource's slot chain.
// The caller must call Exit exactly once, after running the protected
// code; calling SetErr beforehand classifies the call as failed.
type Entry struct {
	core     *Core
	resource string
	chain    *chain.Chain
	ctx      *chain.Context

	spanCtx context.Context
	span    trace.Span
}

// Context returns the context carrying the entry's trace span, for a
// caller that wants to propagate it into the protected code it's about
// to run. Returns the builder's original context when no Tracer is
// configured.
func (e *Entry) Context() context.Context {
	if e.spanCtx != nil {
		return e.spanCtx
	}
	return context.Background()
}

// SetErr classifies this invocation as failed. Must be called before
// Exit to be reflected in the resource's error count and, if a breaker
// rule targets it, its failure-detection strategy.
func (e *Entry) SetErr(err error) {
	e.ctx.Err = err
}

// Exit records completion latency and the error set by SetErr (if any),
// runs registered exit handlers, and decrements concurrency (§4.9). Safe
// to call on an Entry returned for a resource with no rules (chain is
// nil): only the trace span, if any, still closes.
func (e *Entry) Exit() {
	e.ctx.RoundTripMs = clock.NowMillis() - e.ctx.StartMs
	if e.chain != nil {
		e.chain.Exit(e.ctx)
	}
	if e.span != nil {
		telemetry.EndPassed(e.span)
	}
}
