package hotspot_test

import (
	"testing"

	"github.com/Gimel-Foundation/flowguard/internal/chain"
	"github.com/Gimel-Foundation/flowguard/internal/hotspot"
)

func paramIndex(i int) *int { return &i }

func TestQPSRejectPerKeyTokenBucket(t *testing.T) {
	ctrl := hotspot.NewController(hotspot.Rule{
		Resource: "orders", Strategy: hotspot.QPSReject,
		Threshold: 2, DurationSec: 1, CacheCapacity: 10, ParamIndex: paramIndex(0),
	})

	ctx := &chain.Context{Input: chain.Input{Args: []any{"a"}, BatchCount: 1}}
	for i := 0; i < 2; i++ {
		if res := ctrl.CheckSlot().Check(ctx); res.Status != chain.StatusPass {
			t.Fatalf("expected pass %d to succeed within the initial bucket, got %v", i, res.Status)
		}
	}
	if res := ctrl.CheckSlot().Check(ctx); res.Status != chain.StatusBlocked {
		t.Fatalf("expected the third call to exhaust the 2-token bucket, got %v", res.Status)
	}
}

func TestQPSRejectKeysAreIndependent(t *testing.T) {
	ctrl := hotspot.NewController(hotspot.Rule{
		Resource: "orders", Strategy: hotspot.QPSReject,
		Threshold: 1, DurationSec: 1, CacheCapacity: 10, ParamIndex: paramIndex(0),
	})

	ctxA := &chain.Context{Input: chain.Input{Args: []any{"a"}, BatchCount: 1}}
	ctxB := &chain.Context{Input: chain.Input{Args: []any{"b"}, BatchCount: 1}}

	if res := ctrl.CheckSlot().Check(ctxA); res.Status != chain.StatusPass {
		t.Fatalf("expected key a's first call to pass, got %v", res.Status)
	}
	if res := ctrl.CheckSlot().Check(ctxB); res.Status != chain.StatusPass {
		t.Fatalf("expected key b's independent bucket to also pass, got %v", res.Status)
	}
}

func TestMissingParameterBypassesTheRule(t *testing.T) {
	ctrl := hotspot.NewController(hotspot.Rule{
		Resource: "orders", Strategy: hotspot.QPSReject,
		Threshold: 0.0001, DurationSec: 1, CacheCapacity: 10, ParamIndex: paramIndex(5),
	})
	ctx := &chain.Context{Input: chain.Input{Args: []any{"a"}, BatchCount: 1}}
	if res := ctrl.CheckSlot().Check(ctx); res.Status != chain.StatusPass {
		t.Fatalf("expected a call missing the indexed argument to bypass the rule, got %v", res.Status)
	}
}

func TestConcurrencyStrategyTracksPerKey(t *testing.T) {
	ctrl := hotspot.NewController(hotspot.Rule{
		Resource: "orders", Strategy: hotspot.Concurrency,
		Threshold: 1, DurationSec: 1, CacheCapacity: 10, ParamIndex: paramIndex(0),
	})
	ctx := &chain.Context{Input: chain.Input{Args: []any{"a"}, BatchCount: 1}}

	if res := ctrl.CheckSlot().Check(ctx); res.Status != chain.StatusPass {
		t.Fatalf("expected the first call to pass, got %v", res.Status)
	}
	ctrl.StatSlot().OnPass(ctx)

	if res := ctrl.CheckSlot().Check(ctx); res.Status != chain.StatusBlocked {
		t.Fatalf("expected a second concurrent call at threshold 1 to block, got %v", res.Status)
	}

	ctrl.StatSlot().OnCompleted(ctx)
	if res := ctrl.CheckSlot().Check(ctx); res.Status != chain.StatusPass {
		t.Fatalf("expected the slot to free up after completion, got %v", res.Status)
	}
}

func TestQPSThrottlingQueuesWithinMaxQueueing(t *testing.T) {
	ctrl := hotspot.NewController(hotspot.Rule{
		Resource: "orders", Strategy: hotspot.QPSThrottling,
		Threshold: 10, DurationSec: 1, MaxQueueingMs: 200, CacheCapacity: 10, ParamIndex: paramIndex(0),
	})
	ctx := &chain.Context{Input: chain.Input{Args: []any{"a"}, BatchCount: 1}}

	first := ctrl.CheckSlot().Check(ctx)
	if first.Status != chain.StatusPass {
		t.Fatalf("expected the first call to pass immediately, got %v", first.Status)
	}
	second := ctrl.CheckSlot().Check(ctx)
	if second.Status != chain.StatusWait {
		t.Fatalf("expected the second call to queue, got %v", second.Status)
	}
}
