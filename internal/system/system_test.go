package system_test

import (
	"testing"

	"github.com/Gimel-Foundation/flowguard/internal/chain"
	"github.com/Gimel-Foundation/flowguard/internal/stat"
	"github.com/Gimel-Foundation/flowguard/internal/system"
)

func newNode(t *testing.T, resource string) *stat.Node {
	t.Helper()
	registry := stat.NewRegistry(stat.DefaultGlobalSampleCount, stat.DefaultGlobalIntervalMs, stat.DefaultMetricSampleCount, stat.DefaultMetricIntervalMs, 0)
	return registry.NodeFor(resource)
}

func TestConcurrencyMetricBlocksAboveThreshold(t *testing.T) {
	node := newNode(t, "orders")
	ctrl := system.NewController(system.Rule{Resource: "orders", Metric: system.Concurrency, Threshold: 2}, node, nil)

	node.IncConcurrency()
	node.IncConcurrency()

	ctx := &chain.Context{Input: chain.Input{BatchCount: 1}}
	res := ctrl.CheckSlot().Check(ctx)
	if res.Status != chain.StatusBlocked {
		t.Fatalf("expected concurrency 2 + batch 1 over threshold 2 to block, got %v", res.Status)
	}
	if res.Err.BlockType.String() != "SystemFlow" {
		t.Fatalf("expected a SystemFlow block, got %v", res.Err.BlockType)
	}
}

func TestConcurrencyMetricPassesAtOrBelowThreshold(t *testing.T) {
	node := newNode(t, "orders")
	ctrl := system.NewController(system.Rule{Resource: "orders", Metric: system.Concurrency, Threshold: 5}, node, nil)

	node.IncConcurrency()
	ctx := &chain.Context{Input: chain.Input{BatchCount: 1}}
	if res := ctrl.CheckSlot().Check(ctx); res.Status != chain.StatusPass {
		t.Fatalf("expected concurrency well under threshold to pass, got %v", res.Status)
	}
}

func TestCPUMetricBypassesWithoutCollector(t *testing.T) {
	node := newNode(t, "orders")
	ctrl := system.NewController(system.Rule{Resource: "orders", Metric: system.CPU, Threshold: 1}, node, nil)

	ctx := &chain.Context{Input: chain.Input{BatchCount: 1}}
	if res := ctrl.CheckSlot().Check(ctx); res.Status != chain.StatusPass {
		t.Fatalf("expected a CPU rule with no collector to pass through, got %v", res.Status)
	}
}

func TestRuleValidateRejectsOutOfRangeThresholds(t *testing.T) {
	if err := (system.Rule{Resource: "orders", Metric: system.CPU, Threshold: 150}).Validate(); err == nil {
		t.Fatal("expected a CPU threshold above 100 to be rejected")
	}
	if err := (system.Rule{Resource: "orders", Metric: system.Load1, Threshold: 2}).Validate(); err == nil {
		t.Fatal("expected a load1 threshold above 1 to be rejected")
	}
	if err := (system.Rule{Resource: "orders", Metric: system.Concurrency, Threshold: 10}).Validate(); err != nil {
		t.Fatalf("expected an in-range concurrency threshold to validate, got %v", err)
	}
}

func TestBBRSkipsWithoutCompletionHistory(t *testing.T) {
	node := newNode(t, "orders")
	ctrl := system.NewController(system.Rule{Resource: "orders", Metric: system.Concurrency, Threshold: 1000, BBR: true}, node, nil)

	for i := 0; i < 5; i++ {
		node.IncConcurrency()
	}
	ctx := &chain.Context{Input: chain.Input{BatchCount: 1}}
	if res := ctrl.CheckSlot().Check(ctx); res.Status != chain.StatusPass {
		t.Fatalf("expected BBR with no completion history yet to not block, got %v", res.Status)
	}
}

func TestBBRBlocksOnceConcurrencyExceedsEstimatedCapacity(t *testing.T) {
	node := newNode(t, "orders")
	for i := 0; i < 20; i++ {
		node.AddComplete(100)
	}

	ctrl := system.NewController(system.Rule{Resource: "orders", Metric: system.Concurrency, Threshold: 100000, BBR: true}, node, nil)

	for i := 0; i < 50; i++ {
		node.IncConcurrency()
	}
	ctx := &chain.Context{Input: chain.Input{BatchCount: 1}}
	if res := ctrl.CheckSlot().Check(ctx); res.Status != chain.StatusBlocked {
		t.Fatalf("expected concurrency far above the BBR estimated capacity to block, got %v", res.Status)
	}
}
