// Package flowguard is an in-process traffic-governance library: each
// protected call is wrapped in an Entry that runs through flow shaping,
// concurrency isolation, hot-parameter throttling, system-load guards and
// circuit breaking before the caller's code runs, and that records its
// outcome back into per-resource statistics on exit.
//
// A process calls one of InitDefault, InitWithConfig or
// InitWithConfigFile once at startup, then LoadRules for whichever
// subsystems it wants rules for, then wraps each guarded call site with
// NewEntryBuilder(resource).Build().
package flowguard
