// Package metriclog implements the rotating pipe-delimited metric log and
// its companion time index (§6), grounded on the teacher's
// pkg/audit.FileStorage directory + rotate-by-size + buffered writer
// shape, generalized from JSON audit entries to the fixed metric line
// format and an append-only (ts, byte_offset) index for binary search.
package metriclog

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is one second's worth of a resource's counters (§6).
type Record struct {
	Timestamp    time.Time
	Resource     string
	Pass         int64
	Block        int64
	Complete     int64
	Error        int64
	AvgRtMs      float64
	OccupiedPass int64
	Concurrency  int64
	ResourceType string
}

// sanitizeResource replaces the field separator inside a resource name so
// it can never be mistaken for a column boundary (§6).
func sanitizeResource(resource string) string {
	return strings.ReplaceAll(resource, "|", "_")
}

// FormatLine renders r in the §6 format:
//
//	ts|yyyy-MM-dd HH:mm:ss|resource|pass|block|complete|error|avg_rt|occupied_pass|concurrency|resource_type
func FormatLine(r Record) string {
	return fmt.Sprintf("%d|%s|%s|%d|%d|%d|%d|%.3f|%d|%d|%s",
		r.Timestamp.UnixMilli(),
		r.Timestamp.Format("2006-01-02 15:04:05"),
		sanitizeResource(r.Resource),
		r.Pass, r.Block, r.Complete, r.Error,
		r.AvgRtMs, r.OccupiedPass, r.Concurrency, r.ResourceType,
	)
}

// ParseLine parses a metric log line back into a Record. Lines with fewer
// than 8 fields are rejected; lines with 8-10 fields have each missing
// trailing field filled with "0", so a missing resource_type reads as "0"
// (§6).
func ParseLine(line string) (Record, error) {
	fields := strings.Split(line, "|")
	if len(fields) < 8 {
		return Record{}, fmt.Errorf("metriclog: line has %d fields, need at least 8", len(fields))
	}
	for len(fields) < 11 {
		fields = append(fields, "0")
	}

	tsMs, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("metriclog: bad timestamp %q: %w", fields[0], err)
	}

	parseInt := func(s string) int64 {
		v, _ := strconv.ParseInt(s, 10, 64)
		return v
	}
	parseFloat := func(s string) float64 {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}

	return Record{
		Timestamp:    time.UnixMilli(tsMs),
		Resource:     fields[2],
		Pass:         parseInt(fields[3]),
		Block:        parseInt(fields[4]),
		Complete:     parseInt(fields[5]),
		Error:        parseInt(fields[6]),
		AvgRtMs:      parseFloat(fields[7]),
		OccupiedPass: parseInt(fields[8]),
		Concurrency:  parseInt(fields[9]),
		ResourceType: fields[10],
	}, nil
}
