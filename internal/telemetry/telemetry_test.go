package telemetry_test

import (
	"context"
	"testing"

	"github.com/Gimel-Foundation/flowguard/internal/telemetry"
)

func TestCollectorRecordsCounters(t *testing.T) {
	c := telemetry.NewCollector()
	c.RecordPass("orders", 3)
	c.RecordBlock("orders", "Flow", 1)
	c.RecordComplete("orders", 12)
	c.RecordError("orders")
	c.SetConcurrency("orders", 2)

	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("unexpected error gathering metrics: %v", err)
	}

	values := make(map[string]float64)
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[fam.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[fam.GetName()] += m.GetGauge().GetValue()
			}
		}
	}

	if values["flowguard_pass_total"] != 3 {
		t.Fatalf("expected pass total 3, got %v", values["flowguard_pass_total"])
	}
	if values["flowguard_block_total"] != 1 {
		t.Fatalf("expected block total 1, got %v", values["flowguard_block_total"])
	}
	if values["flowguard_complete_total"] != 1 {
		t.Fatalf("expected complete total 1, got %v", values["flowguard_complete_total"])
	}
	if values["flowguard_error_total"] != 1 {
		t.Fatalf("expected error total 1, got %v", values["flowguard_error_total"])
	}
	if values["flowguard_concurrency"] != 2 {
		t.Fatalf("expected concurrency 2, got %v", values["flowguard_concurrency"])
	}
}

func TestNewTracerBuildsWithoutError(t *testing.T) {
	tr, err := telemetry.NewTracer(telemetry.TracingConfig{ServiceName: "flowguard-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tr.Shutdown(context.Background()) //nolint:errcheck

	ctx, span := tr.StartEntry(context.Background(), "orders")
	if ctx == nil || span == nil {
		t.Fatal("expected a non-nil context and span")
	}
	telemetry.EndPassed(span)
}
