package ingest

import (
	"testing"

	"github.com/openobserve/openobserve-sub015/internal/value"
)

func TestMemTableInsertSkipsEmptyRows(t *testing.T) {
	m := NewMemTable()
	m.Insert("app", []string{"a"}, nil, 10, 10, 100, 200)
	if m.JSONSize() != 0 {
		t.Fatalf("expected empty insert to be a no-op, got json size %d", m.JSONSize())
	}
}

func TestMemTableTracksMinMaxTimestampAcrossInserts(t *testing.T) {
	m := NewMemTable()
	m.Insert("app", []string{"a"}, []value.Record{{"a": value.I64(1)}}, 10, 10, 500, 500)
	m.Insert("app", []string{"a"}, []value.Record{{"a": value.I64(2)}}, 10, 10, 100, 900)
	min, max := m.TimeRange()
	if min != 100 || max != 900 {
		t.Fatalf("expected range [100,900], got [%d,%d]", min, max)
	}
}

func TestMemTableRowsReturnsEveryBatch(t *testing.T) {
	m := NewMemTable()
	m.Insert("app", []string{"a"}, []value.Record{{"a": value.I64(1)}}, 10, 10, 100, 100)
	m.Insert("app", []string{"a"}, []value.Record{{"a": value.I64(2)}, {"a": value.I64(3)}}, 10, 10, 200, 200)
	rows := m.Rows()
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows across batches, got %d", len(rows))
	}
}

func TestMemTableRowsByStreamGroupsByStreamName(t *testing.T) {
	m := NewMemTable()
	m.Insert("app", []string{"a"}, []value.Record{{"a": value.I64(1)}}, 10, 10, 100, 100)
	m.Insert("db", []string{"a"}, []value.Record{{"a": value.I64(2)}, {"a": value.I64(3)}}, 10, 10, 200, 200)
	m.Insert("app", []string{"a"}, []value.Record{{"a": value.I64(4)}}, 10, 10, 300, 300)

	byStream := m.RowsByStream()
	if len(byStream["app"]) != 2 {
		t.Fatalf("expected 2 app rows, got %d", len(byStream["app"]))
	}
	if len(byStream["db"]) != 2 {
		t.Fatalf("expected 2 db rows, got %d", len(byStream["db"]))
	}
}

func TestMemTableReadFiltersByTimeRangeAndPartition(t *testing.T) {
	m := NewMemTable()
	m.Insert("app", []string{"ts", "region"}, []value.Record{
		{"ts": value.I64(100), "region": value.String("us")},
		{"ts": value.I64(200), "region": value.String("eu")},
		{"ts": value.I64(300), "region": value.String("us")},
	}, 30, 30, 100, 300)

	ts := func(r value.Record) int64 { return r.GetField("ts").GetIntValue() }

	got := m.Read(ts, 150, 350, nil)
	if len(got) != 2 {
		t.Fatalf("expected 2 rows in [150,350), got %d", len(got))
	}

	got = m.Read(ts, 0, 0, map[string]string{"region": "us"})
	if len(got) != 2 {
		t.Fatalf("expected 2 us rows with no time filter, got %d", len(got))
	}
}
