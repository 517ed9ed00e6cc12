package metriclog_test

import (
	"testing"
	"time"

	"github.com/Gimel-Foundation/flowguard/internal/metriclog"
)

func TestFormatAndParseRoundTrip(t *testing.T) {
	r := metriclog.Record{
		Timestamp: time.UnixMilli(1700000000123), Resource: "orders|v2",
		Pass: 10, Block: 2, Complete: 8, Error: 1, AvgRtMs: 12.5,
		OccupiedPass: 3, Concurrency: 4, ResourceType: "common",
	}
	line := metriclog.FormatLine(r)
	parsed, err := metriclog.ParseLine(line)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if parsed.Resource != "orders_v2" {
		t.Fatalf("expected the | separator inside the resource name to be sanitized, got %q", parsed.Resource)
	}
	if parsed.Pass != 10 || parsed.Block != 2 || parsed.Complete != 8 || parsed.Error != 1 {
		t.Fatalf("counters did not round-trip: %+v", parsed)
	}
	if parsed.OccupiedPass != 3 || parsed.Concurrency != 4 || parsed.ResourceType != "common" {
		t.Fatalf("trailing fields did not round-trip: %+v", parsed)
	}
}

func TestParseLineRejectsTooFewFields(t *testing.T) {
	if _, err := metriclog.ParseLine("1|2|3|4|5|6"); err == nil {
		t.Fatal("expected a line with fewer than 8 fields to be rejected")
	}
}

func TestParseLineDefaultsMissingTrailingFields(t *testing.T) {
	rec, err := metriclog.ParseLine("1700000000000|2023-11-14 22:13:20|orders|1|0|1|0|0.000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.OccupiedPass != 0 || rec.Concurrency != 0 || rec.ResourceType != "0" {
		t.Fatalf("expected missing trailing fields to default, got %+v", rec)
	}
}

func TestWriterRotatesPastSizeLimit(t *testing.T) {
	dir := t.TempDir()
	w, err := metriclog.NewWriter(metriclog.Config{Directory: dir, SingleMaxBytes: 1, MaxFileAmount: 3})
	if err != nil {
		t.Fatalf("unexpected error building writer: %v", err)
	}
	defer w.Close()

	for i := 0; i < 5; i++ {
		rec := metriclog.Record{Timestamp: time.Now(), Resource: "orders", Pass: int64(i)}
		if err := w.WriteRecord(rec); err != nil {
			t.Fatalf("unexpected error writing record %d: %v", i, err)
		}
	}
}

func TestFindOffsetAndReadFrom(t *testing.T) {
	dir := t.TempDir()
	w, err := metriclog.NewWriter(metriclog.Config{Directory: dir})
	if err != nil {
		t.Fatalf("unexpected error building writer: %v", err)
	}
	defer w.Close()

	base := time.UnixMilli(1700000000000)
	for i := 0; i < 3; i++ {
		rec := metriclog.Record{Timestamp: base.Add(time.Duration(i) * time.Second), Resource: "orders", Pass: int64(i)}
		if err := w.WriteRecord(rec); err != nil {
			t.Fatalf("unexpected error writing record %d: %v", i, err)
		}
	}

	logPath := dir + "/metrics.log.1"
	offset, found, err := metriclog.FindOffset(logPath, base.Add(1*time.Second).UnixMilli())
	if err != nil {
		t.Fatalf("unexpected error finding offset: %v", err)
	}
	if !found {
		t.Fatal("expected to find an index entry at or after the requested timestamp")
	}

	records, err := metriclog.ReadFrom(logPath, offset)
	if err != nil {
		t.Fatalf("unexpected error reading from offset: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records from the second entry onward, got %d", len(records))
	}
	if records[0].Pass != 1 {
		t.Fatalf("expected the first returned record to be index 1, got pass=%d", records[0].Pass)
	}
}
