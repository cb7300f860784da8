package ingest

import (
	"testing"
	"time"

	"github.com/openobserve/openobserve-sub015/internal/value"
)

func TestReadFromMemtableFiltersByTimeRange(t *testing.T) {
	p := NewPool(4, nil, t.TempDir(), RotationConfig{MaxFileSizeOnDisk: 1 << 30, MaxFileSizeInMemory: 1 << 30, MaxFileRetentionTime: time.Hour}, 16, false, false, false)
	w, err := p.GetWriter("t1", "app", "org1", "logs")
	if err != nil {
		t.Fatalf("get writer: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	rowsA := []value.Record{{"_timestamp": value.I64(100), "msg": value.String("a")}}
	rowsB := []value.Record{{"_timestamp": value.I64(500), "msg": value.String("b")}}
	_ = w.Write(Entry{Rows: rowsA, RawJSON: []byte(`{"a":1}`), MinTS: 100, MaxTS: 100}, false)
	_ = w.Write(Entry{Rows: rowsB, RawJSON: []byte(`{"b":1}`), MinTS: 500, MaxTS: 500}, false)

	got := p.ReadFromMemtable("org1", "logs", "app", 50, 200, nil)
	if len(got) != 1 || got[0].GetField("msg").GetStringValue() != "a" {
		t.Fatalf("unexpected filtered rows: %+v", got)
	}

	gotAll := p.ReadFromMemtable("org1", "logs", "app", 0, 0, nil)
	if len(gotAll) != 2 {
		t.Fatalf("expected no time filter to return all rows, got %d", len(gotAll))
	}
}

func TestReadFromMemtablePartitionFilter(t *testing.T) {
	p := NewPool(4, nil, t.TempDir(), RotationConfig{MaxFileSizeOnDisk: 1 << 30, MaxFileSizeInMemory: 1 << 30, MaxFileRetentionTime: time.Hour}, 16, false, false, false)
	w, err := p.GetWriter("t1", "app", "org1", "logs")
	if err != nil {
		t.Fatalf("get writer: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	rows := []value.Record{
		{"_timestamp": value.I64(1), "region": value.String("us")},
		{"_timestamp": value.I64(1), "region": value.String("eu")},
	}
	_ = w.Write(Entry{Rows: rows, RawJSON: []byte(`{"x":1}`), MinTS: 1, MaxTS: 1}, false)

	got := p.ReadFromMemtable("org1", "logs", "app", 0, 0, map[string]string{"region": "eu"})
	if len(got) != 1 || got[0].GetField("region").GetStringValue() != "eu" {
		t.Fatalf("unexpected partition-filtered rows: %+v", got)
	}
}
