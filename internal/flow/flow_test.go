package flow_test

import (
	"testing"
	"time"

	"github.com/Gimel-Foundation/flowguard/internal/blockerr"
	"github.com/Gimel-Foundation/flowguard/internal/chain"
	"github.com/Gimel-Foundation/flowguard/internal/flow"
	"github.com/Gimel-Foundation/flowguard/internal/stat"
)

func newTestNode() *stat.Node {
	registry := stat.NewRegistry(stat.DefaultGlobalSampleCount, stat.DefaultGlobalIntervalMs, stat.DefaultMetricSampleCount, stat.DefaultMetricIntervalMs, 0)
	return registry.NodeFor("orders")
}

func TestDirectRejectBlocksAtThreshold(t *testing.T) {
	node := newTestNode()
	ctrl := flow.NewController(
		flow.Rule{Resource: "orders", Calculator: flow.Direct, Checker: flow.Reject, Threshold: 3},
		node, flow.DirectCalculator{Threshold: 3}, flow.RejectChecker{},
	)

	passes := 0
	for i := 0; i < 5; i++ {
		ctx := &chain.Context{Resource: "orders", Input: chain.Input{BatchCount: 1}}
		res := ctrl.CheckSlot().Check(ctx)
		if res.Status == chain.StatusPass {
			passes++
			ctrl.StatSlot().OnPass(ctx)
			node.AddPass(1) // a shared stat reads passes the resource-node stat slot records
		}
	}
	if passes != 3 {
		t.Errorf("expected exactly 3 passes before the threshold blocks, got %d", passes)
	}
}

func TestDirectRejectZeroThresholdBlocksEverything(t *testing.T) {
	node := newTestNode()
	ctrl := flow.NewController(
		flow.Rule{Resource: "orders", Calculator: flow.Direct, Checker: flow.Reject, Threshold: 0},
		node, flow.DirectCalculator{Threshold: 0}, flow.RejectChecker{},
	)
	ctx := &chain.Context{Resource: "orders", Input: chain.Input{BatchCount: 1}}
	res := ctrl.CheckSlot().Check(ctx)
	if res.Status != chain.StatusBlocked {
		t.Fatalf("expected a zero threshold to block every call, got %v", res.Status)
	}
	if res.Err.BlockType != blockerr.Flow {
		t.Errorf("expected Flow block type, got %v", res.Err.BlockType)
	}
}

func TestThrottlingSpacesPassesByTheta(t *testing.T) {
	checker := flow.NewThrottlingChecker(0)
	node := newTestNode()
	st := flow.NewStandaloneStat(node, 0)
	rule := blockerr.RuleRef{Resource: "orders", Strategy: "Throttling"}

	first := checker.Check(1, 10, st, rule)
	if first.Status != chain.StatusPass {
		t.Fatalf("expected first call to pass immediately, got %v", first.Status)
	}

	second := checker.Check(1, 10, st, rule)
	if second.Status != chain.StatusBlocked {
		t.Fatalf("expected the immediate second call at 10 QPS with zero queueing to block, got %v", second.Status)
	}

	time.Sleep(110 * time.Millisecond)
	third := checker.Check(1, 10, st, rule)
	if third.Status != chain.StatusPass {
		t.Fatalf("expected a call spaced by > 1/threshold seconds to pass, got %v", third.Status)
	}
}

func TestThrottlingQueuesWithinMaxQueueing(t *testing.T) {
	checker := flow.NewThrottlingChecker(200)
	node := newTestNode()
	st := flow.NewStandaloneStat(node, 0)
	rule := blockerr.RuleRef{Resource: "orders", Strategy: "Throttling"}

	first := checker.Check(1, 10, st, rule)
	if first.Status != chain.StatusPass {
		t.Fatalf("expected first call to pass immediately, got %v", first.Status)
	}
	second := checker.Check(1, 10, st, rule)
	if second.Status != chain.StatusWait {
		t.Fatalf("expected the second call to queue within max_queueing_ms, got %v", second.Status)
	}
	if second.WaitNanos <= 0 {
		t.Error("expected a positive wait duration")
	}
}

func TestMemoryAdaptiveInterpolatesLinearly(t *testing.T) {
	var usage uint64 = 50
	calc := &flow.MemoryAdaptiveCalculator{
		LowMark: 0, HighMark: 100,
		LowThreshold: 100, HighThreshold: 0,
		Usage: func() uint64 { return usage },
	}
	if got := calc.CalculateThreshold(1, 0); got != 50 {
		t.Errorf("expected midpoint threshold 50, got %v", got)
	}
	usage = 0
	if got := calc.CalculateThreshold(1, 0); got != 100 {
		t.Errorf("expected low-watermark threshold 100, got %v", got)
	}
	usage = 200
	if got := calc.CalculateThreshold(1, 0); got != 0 {
		t.Errorf("expected high-watermark threshold 0, got %v", got)
	}
}

func TestWarmUpThresholdRisesMonotonically(t *testing.T) {
	const sustainedPassQPS = 10
	calc := flow.NewWarmUpCalculator(10, 10, 3, func() float64 { return sustainedPassQPS })

	first := calc.CalculateThreshold(1, 0)
	if first >= 10 {
		t.Fatalf("expected a cold start below the steady threshold, got %v", first)
	}

	prev := first
	rose := false
	for i := 0; i < 20; i++ {
		time.Sleep(20 * time.Millisecond)
		cur := calc.CalculateThreshold(1, 0)
		if cur < prev {
			t.Fatalf("expected warm-up threshold to never decrease, got %v after %v", cur, prev)
		}
		if cur > prev {
			rose = true
		}
		prev = cur
	}
	if !rose {
		t.Fatal("expected sustained pass traffic to drain stored tokens and raise the threshold toward the steady value")
	}
	if prev <= first {
		t.Fatalf("expected the threshold to have climbed from its cold-start value %v, got %v", first, prev)
	}
}
