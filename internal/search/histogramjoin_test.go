package search

import (
	"testing"

	"github.com/openobserve/openobserve-sub015/internal/value"
)

func TestParseTimeBinIntervalDefault(t *testing.T) {
	secs, err := ParseTimeBinInterval("")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if secs != 300 {
		t.Fatalf("expected default 5 minutes, got %d", secs)
	}
}

func TestParseTimeBinIntervalExplicit(t *testing.T) {
	secs, err := ParseTimeBinInterval("60 seconds")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if secs != 60 {
		t.Fatalf("expected 60s, got %d", secs)
	}
}

func row(ts int64, key string) value.Record {
	return value.Record{"_timestamp": value.I64(ts), "key": value.String(key)}
}

func TestHistogramJoinBuffersUntilAllLeavesExhausted(t *testing.T) {
	j := NewHistogramJoin([]string{"leaf1", "leaf2"}, "_timestamp", "_timestamp", "_timestamp", []string{"key"}, 60, LocalProcessing)

	if err := j.IngestBatch(LeafBatch{LeafID: "leaf1", Rows: []value.Record{row(0, "b"), row(0, "a")}}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if got := j.FlushReady(); got != nil {
		t.Fatalf("expected nothing ready before all leaves exhausted, got %v", got)
	}

	if err := j.IngestBatch(LeafBatch{LeafID: "leaf2", Rows: []value.Record{row(120_000_000, "c")}}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	j.MarkLeafExhausted("leaf1")
	j.MarkLeafExhausted("leaf2")

	bins := j.FlushReady()
	if len(bins) != 2 {
		t.Fatalf("expected 2 distinct time bins, got %d", len(bins))
	}
	if bins[0].BinStart != 0 || bins[1].BinStart != 120 {
		t.Fatalf("expected bins in ascending bin-start order, got %+v %+v", bins[0], bins[1])
	}
	if len(bins[0].Rows) != 2 || value.GetStringValue(bins[0].Rows[0]["key"]) != "a" {
		t.Fatalf("expected first bin rows sorted by join key, got %+v", bins[0].Rows)
	}
}

func TestHistogramJoinRejectsUnknownLeaf(t *testing.T) {
	j := NewHistogramJoin([]string{"leaf1"}, "_timestamp", "_timestamp", "_timestamp", nil, 60, LocalProcessing)
	if err := j.IngestBatch(LeafBatch{LeafID: "ghost"}); err == nil {
		t.Fatal("expected error for unregistered leaf")
	}
}
