package main

import (
	"testing"

	"github.com/openobserve/openobserve-sub015/internal/value"
)

func TestExtractMetricName(t *testing.T) {
	tests := []struct {
		query string
		want  string
		ok    bool
	}{
		{`http_requests_total{job="api"}`, "http_requests_total", true},
		{"  cpu_usage", "cpu_usage", true},
		{"", "", false},
		{"{job=\"api\"}", "", false},
	}
	for _, tt := range tests {
		got, ok := extractMetricName(tt.query)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("extractMetricName(%q) = (%q, %v), want (%q, %v)", tt.query, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLabelKeyIsOrderIndependent(t *testing.T) {
	a := map[string]string{"job": "api", "instance": "1"}
	b := map[string]string{"instance": "1", "job": "api"}
	if labelKey(a) != labelKey(b) {
		t.Fatal("expected identical label sets to produce identical keys regardless of map order")
	}
}

func TestGroupIntoSeriesFoldsMatchingLabelsTogether(t *testing.T) {
	rows := []value.Record{
		{"_timestamp": value.I64(1), "value": value.F64(1), "job": value.FromAny("api"), "instance": value.FromAny("1")},
		{"_timestamp": value.I64(2), "value": value.F64(2), "job": value.FromAny("api"), "instance": value.FromAny("1")},
		{"_timestamp": value.I64(3), "value": value.F64(3), "job": value.FromAny("api"), "instance": value.FromAny("2")},
	}
	series := groupIntoSeries(rows)
	if len(series) != 2 {
		t.Fatalf("got %d series, want 2", len(series))
	}
	var total int
	for _, s := range series {
		total += s.SampleCount
	}
	if total != 3 {
		t.Fatalf("got %d total samples, want 3", total)
	}
}
