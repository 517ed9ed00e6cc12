package registry_test

import (
	"testing"

	"github.com/Gimel-Foundation/flowguard/internal/breaker"
	"github.com/Gimel-Foundation/flowguard/internal/chain"
	"github.com/Gimel-Foundation/flowguard/internal/flow"
	"github.com/Gimel-Foundation/flowguard/internal/isolation"
	"github.com/Gimel-Foundation/flowguard/internal/registry"
	"github.com/Gimel-Foundation/flowguard/internal/stat"
	"github.com/Gimel-Foundation/flowguard/internal/system"
)

func newRegistry() (*registry.Registry, *stat.Registry) {
	statRegistry := stat.NewRegistry(stat.DefaultGlobalSampleCount, stat.DefaultGlobalIntervalMs, stat.DefaultMetricSampleCount, stat.DefaultMetricIntervalMs, 0)
	return registry.NewRegistry(statRegistry, nil, nil, nil, nil, 1), statRegistry
}

func TestLoadRulesRejectsUnknownKind(t *testing.T) {
	reg, _ := newRegistry()
	if _, err := reg.LoadRules(registry.Kind(99), []flow.Rule{}); err == nil {
		t.Fatal("expected an error for an unrecognized rule kind")
	}
}

func TestLoadRulesRejectsWrongSliceType(t *testing.T) {
	reg, _ := newRegistry()
	if _, err := reg.LoadRules(registry.KindFlow, []isolation.Rule{{Resource: "orders", Threshold: 1}}); err == nil {
		t.Fatal("expected a type mismatch between kind and rules to fail")
	}
}

func TestLoadRulesAggregatesValidationFailures(t *testing.T) {
	reg, _ := newRegistry()
	rules := []isolation.Rule{
		{Resource: "orders", Threshold: 1},
		{Resource: "payments", Threshold: -1},
		{Resource: "refunds", Threshold: -2},
	}
	_, err := reg.LoadRules(registry.KindIsolation, rules)
	if err == nil {
		t.Fatal("expected the two invalid rules to be reported")
	}
	if reg.ChainFor("orders") != nil {
		t.Fatal("a failed load must leave the previous (empty) snapshot in effect")
	}
}

func TestLoadRulesInstallsValidRulesAndReportsChanged(t *testing.T) {
	reg, _ := newRegistry()
	rules := []isolation.Rule{{Resource: "orders", Threshold: 5}}

	changed, err := reg.LoadRules(registry.KindIsolation, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Fatal("expected the first load to report changed=true")
	}
	if reg.ChainFor("orders") == nil {
		t.Fatal("expected a chain to be compiled for the ruled resource")
	}

	changed, err = reg.LoadRules(registry.KindIsolation, rules)
	if err != nil {
		t.Fatalf("unexpected error on reload: %v", err)
	}
	if changed {
		t.Fatal("expected an identical reload to report changed=false")
	}
}

func TestLoadRulesReusesControllerAcrossUnchangedReload(t *testing.T) {
	reg, statRegistry := newRegistry()
	rules := []system.Rule{{Resource: "orders", Metric: system.Concurrency, Threshold: 1}}

	if _, err := reg.LoadRules(registry.KindSystem, rules); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	node := statRegistry.NodeFor("orders")
	node.IncConcurrency()

	c := reg.ChainFor("orders")
	ctx := &chain.Context{Input: chain.Input{BatchCount: 1}}
	if res := c.Entry(ctx); res.Status != chain.StatusBlocked {
		t.Fatalf("expected concurrency 1 over threshold 1 to block, got %v", res.Status)
	}

	if _, err := reg.LoadRules(registry.KindSystem, rules); err != nil {
		t.Fatalf("unexpected error on reload: %v", err)
	}

	c2 := reg.ChainFor("orders")
	ctx2 := &chain.Context{Input: chain.Input{BatchCount: 1}}
	if res := c2.Entry(ctx2); res.Status != chain.StatusBlocked {
		t.Fatal("expected the reused controller to still observe the concurrency recorded before reload")
	}
}

func TestLoadRulesRebuildsControllerWhenRuleChanges(t *testing.T) {
	reg, statRegistry := newRegistry()
	if _, err := reg.LoadRules(registry.KindSystem, []system.Rule{{Resource: "orders", Metric: system.Concurrency, Threshold: 1}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	node := statRegistry.NodeFor("orders")
	node.IncConcurrency()

	changed, err := reg.LoadRules(registry.KindSystem, []system.Rule{{Resource: "orders", Metric: system.Concurrency, Threshold: 10}})
	if err != nil {
		t.Fatalf("unexpected error on reload: %v", err)
	}
	if !changed {
		t.Fatal("expected a different threshold to report changed=true")
	}

	c := reg.ChainFor("orders")
	ctx := &chain.Context{Input: chain.Input{BatchCount: 1}}
	if res := c.Entry(ctx); res.Status != chain.StatusPass {
		t.Fatalf("expected the raised threshold to admit, got %v", res.Status)
	}
}

func TestChainForReturnsNilForUntouchedResource(t *testing.T) {
	reg, _ := newRegistry()
	if reg.ChainFor("never-ruled") != nil {
		t.Fatal("expected no chain for a resource with no rules of any kind")
	}
}

func TestRebuildAssemblesCheckSlotsInDefaultOrder(t *testing.T) {
	reg, _ := newRegistry()

	if _, err := reg.LoadRules(registry.KindBreaker, []breaker.Rule{{
		Resource: "orders", Strategy: breaker.ErrorCount,
		StatIntervalMs: 1000, BucketCount: 10, MinRequestAmount: 1, Threshold: 1, RetryTimeoutMs: 1000,
	}}); err != nil {
		t.Fatalf("unexpected error loading breaker rule: %v", err)
	}
	if _, err := reg.LoadRules(registry.KindFlow, []flow.Rule{{
		Resource: "orders", Calculator: flow.Direct, Checker: flow.Reject, Threshold: 100,
	}}); err != nil {
		t.Fatalf("unexpected error loading flow rule: %v", err)
	}
	if _, err := reg.LoadRules(registry.KindIsolation, []isolation.Rule{{Resource: "orders", Threshold: 100}}); err != nil {
		t.Fatalf("unexpected error loading isolation rule: %v", err)
	}
	if _, err := reg.LoadRules(registry.KindSystem, []system.Rule{{Resource: "orders", Metric: system.Concurrency, Threshold: 100}}); err != nil {
		t.Fatalf("unexpected error loading system rule: %v", err)
	}

	c := reg.ChainFor("orders")
	if c == nil {
		t.Fatal("expected a chain with four subsystems' rules installed")
	}

	ctx := &chain.Context{Input: chain.Input{BatchCount: 1}}
	if res := c.Entry(ctx); res.Status != chain.StatusPass {
		t.Fatalf("expected all four subsystems to admit well under their thresholds, got %v", res.Status)
	}
	c.Exit(ctx)
}
