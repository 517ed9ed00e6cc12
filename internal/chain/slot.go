package chain

// PrepareSlot runs before any check slot, unconditionally, for bookkeeping
// that has to happen regardless of the eventual decision (§4.1's
// resource-node prepare stage: attaching the node and stamping start time).
type PrepareSlot interface {
	Prepare(ctx *Context)
}

// CheckSlot is one link in the admission decision. Order determines where
// it sits in the chain; lower runs first. The default ordering (§4.1) is
// System(1000) -> Flow(2000) -> Isolation(3000) -> HotSpot(4000) ->
// CircuitBreaker(5000).
type CheckSlot interface {
	Order() int
	Check(ctx *Context) Result
}

// StatSlot observes the final decision and, on exit, the completed call.
// OnPass and OnBlock fire synchronously as part of Entry; OnCompleted fires
// when the caller's protected code finishes (§4.1's stat stage).
type StatSlot interface {
	Order() int
	OnPass(ctx *Context)
	OnBlock(ctx *Context, result Result)
	OnCompleted(ctx *Context)
}
