package breaker_test

import (
	"testing"
	"time"

	"github.com/Gimel-Foundation/flowguard/internal/blockerr"
	"github.com/Gimel-Foundation/flowguard/internal/breaker"
	"github.com/Gimel-Foundation/flowguard/internal/chain"
)

func newErrorCountBreaker(t *testing.T) *breaker.Breaker {
	t.Helper()
	rule := breaker.Rule{
		Resource: "orders", Strategy: breaker.ErrorCount,
		StatIntervalMs: 1000, BucketCount: 10,
		MinRequestAmount: 30, Threshold: 20, RetryTimeoutMs: 1000,
	}
	strategy := breaker.ErrorCountStrategy{Threshold: rule.Threshold, MinRequestAmount: rule.MinRequestAmount}
	return breaker.NewBreaker(rule, strategy, breaker.NewListenerRegistry())
}

func TestErrorCountBreakerOpensAtThreshold(t *testing.T) {
	b := newErrorCountBreaker(t)

	for i := 0; i < 29; i++ {
		b.OnCompleted(i < 25, 1)
	}
	if b.State() != breaker.Closed {
		t.Fatalf("expected Closed before min_request_amount is reached, got %v", b.State())
	}

	b.OnCompleted(true, 1)
	if b.State() != breaker.Open {
		t.Fatalf("expected Open once error_count reaches threshold past min_request_amount, got %v", b.State())
	}

	if res := b.TryPass(); res.Status != chain.StatusBlocked {
		t.Errorf("expected TryPass to block while Open, got %v", res.Status)
	}
}

func TestBreakerHalfOpenSingleProbe(t *testing.T) {
	rule := breaker.Rule{
		Resource: "orders", Strategy: breaker.ErrorCount,
		StatIntervalMs: 1000, BucketCount: 10,
		MinRequestAmount: 1, Threshold: 1, RetryTimeoutMs: 30,
	}
	strategy := breaker.ErrorCountStrategy{Threshold: rule.Threshold, MinRequestAmount: rule.MinRequestAmount}
	b := breaker.NewBreaker(rule, strategy, breaker.NewListenerRegistry())

	b.OnCompleted(true, 1)
	if b.State() != breaker.Open {
		t.Fatalf("expected Open after the failing call, got %v", b.State())
	}

	time.Sleep(40 * time.Millisecond)

	first := b.TryPass()
	if first.Status != chain.StatusPass {
		t.Fatalf("expected the first caller after retry_timeout_ms to probe through, got %v", first.Status)
	}
	if b.State() != breaker.HalfOpen {
		t.Fatalf("expected HalfOpen after the probe is admitted, got %v", b.State())
	}

	second := b.TryPass()
	if second.Status != chain.StatusBlocked {
		t.Fatalf("expected a concurrent second caller to be blocked during the probe, got %v", second.Status)
	}

	b.OnCompleted(false, 1)
	if b.State() != breaker.Closed {
		t.Fatalf("expected Closed after a successful probe, got %v", b.State())
	}
}

func TestBreakerHalfOpenFailingProbeReopens(t *testing.T) {
	rule := breaker.Rule{
		Resource: "orders", Strategy: breaker.SlowRequestRatio,
		StatIntervalMs: 1000, BucketCount: 10,
		MinRequestAmount: 10, Threshold: 0.5, MaxAllowedRtMs: 50, RetryTimeoutMs: 30,
	}
	strategy := breaker.SlowRequestRatioStrategy{Threshold: rule.Threshold, MinRequestAmount: rule.MinRequestAmount, MaxAllowedRtMs: rule.MaxAllowedRtMs}
	b := breaker.NewBreaker(rule, strategy, breaker.NewListenerRegistry())

	for i := 0; i < 8; i++ {
		b.OnCompleted(false, 10)
	}
	b.OnCompleted(false, 200)
	if b.State() != breaker.Closed {
		t.Fatalf("expected Closed below min_request_amount despite a slow call, got %v", b.State())
	}

	// Push past min_request_amount with a majority-slow window.
	for i := 0; i < 8; i++ {
		b.OnCompleted(false, 200)
	}
	if b.State() != breaker.Open {
		t.Fatalf("expected Open once slow/total reaches threshold, got %v", b.State())
	}

	time.Sleep(40 * time.Millisecond)
	if res := b.TryPass(); res.Status != chain.StatusPass {
		t.Fatalf("expected the probe to be admitted, got %v", res.Status)
	}

	b.OnCompleted(false, 200) // a single slow probe, regardless of min_request_amount
	if b.State() != breaker.Open {
		t.Fatalf("expected a single slow probe to reopen immediately, got %v", b.State())
	}
}

func TestListenerRegistryNotifiesOnStateChange(t *testing.T) {
	registry := breaker.NewListenerRegistry()
	var transitions []string
	registry.Register(breaker.ListenerFunc(func(resource string, rule breaker.Rule, from, to breaker.State, snap blockerr.Snapshot) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}))

	rule := breaker.Rule{
		Resource: "orders", Strategy: breaker.ErrorCount,
		StatIntervalMs: 1000, BucketCount: 10,
		MinRequestAmount: 1, Threshold: 1, RetryTimeoutMs: 1000,
	}
	strategy := breaker.ErrorCountStrategy{Threshold: rule.Threshold, MinRequestAmount: rule.MinRequestAmount}
	b := breaker.NewBreaker(rule, strategy, registry)
	b.OnCompleted(true, 1)

	if len(transitions) != 1 || transitions[0] != "Closed->Open" {
		t.Fatalf("expected one Closed->Open transition, got %v", transitions)
	}
}
