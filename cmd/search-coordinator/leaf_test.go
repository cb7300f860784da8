package main

import (
	"context"
	"testing"

	"github.com/openobserve/openobserve-sub015/internal/filelist"
	"github.com/openobserve/openobserve-sub015/internal/objectstore"
	"github.com/openobserve/openobserve-sub015/internal/search/rpc"
)

func newTestLeaf(t *testing.T) *selfLeaf {
	t.Helper()
	ctx := context.Background()
	files, err := filelist.NewSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := files.CreateTables(ctx); err != nil {
		t.Fatalf("create tables: %v", err)
	}
	t.Cleanup(func() { files.Close() })
	store := objectstore.NewLocal(t.TempDir())
	return &selfLeaf{files: files, store: store}
}

func putSegment(t *testing.T, l *selfLeaf, org, stream, path string, minTS, maxTS int64, rows string) {
	t.Helper()
	ctx := context.Background()
	if err := l.store.Put(ctx, org, path, []byte(rows), nil); err != nil {
		t.Fatalf("put segment: %v", err)
	}
	fk := filelist.FileKey{
		Account: org, Org: org,
		Stream: filelist.StreamKey(filelist.StreamLogs, stream),
		Date:   "2026/01/01", File: path,
		Meta: filelist.FileMeta{MinTS: minTS, MaxTS: maxTS, Records: 1, OriginalSize: int64(len(rows))},
	}
	if err := l.files.BatchAdd(ctx, []filelist.FileKey{fk}); err != nil {
		t.Fatalf("register segment: %v", err)
	}
}

func TestSelfLeafScanOneReturnsRowsInRange(t *testing.T) {
	l := newTestLeaf(t)
	putSegment(t, l, "org1", "app", "files/org1/logs/app/seg1.json", 100, 200, `{"_timestamp":150,"msg":"a"}`+"\n")

	rows, err := l.scanOne(context.Background(), "org1", filelist.StreamLogs, "app", 50, 300)
	if err != nil {
		t.Fatalf("scanOne: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0]["msg"] != "a" {
		t.Fatalf("unexpected row: %+v", rows[0])
	}
}

func TestSelfLeafScanOneZeroRangeIsUnbounded(t *testing.T) {
	l := newTestLeaf(t)
	putSegment(t, l, "org1", "app", "files/org1/logs/app/seg1.json", 100, 200, `{"_timestamp":150,"msg":"a"}`+"\n")

	rows, err := l.scanOne(context.Background(), "org1", filelist.StreamLogs, "app", 0, 0)
	if err != nil {
		t.Fatalf("scanOne with zero range: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 (zero range should mean unbounded, not a validation error)", len(rows))
	}
}

func TestSelfLeafScanDecodesMultipleTables(t *testing.T) {
	l := newTestLeaf(t)
	putSegment(t, l, "org1", "app", "files/org1/logs/app/seg1.json", 100, 200, `{"_timestamp":150,"msg":"a"}`+"\n")
	putSegment(t, l, "org1", "db", "files/org1/logs/db/seg1.json", 100, 200, `{"_timestamp":160,"msg":"b"}`+"\n")

	resp, err := l.Scan(context.Background(), &rpc.ScanRequest{
		Tables:    []string{encodeTable("org1", filelist.StreamLogs, "app"), encodeTable("org1", filelist.StreamLogs, "db")},
		StartTime: 50, EndTime: 300,
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(resp.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(resp.Rows))
	}
}

func TestSelfLeafScanSkipsUndecodableTableEntries(t *testing.T) {
	l := newTestLeaf(t)
	resp, err := l.Scan(context.Background(), &rpc.ScanRequest{Tables: []string{"not-a-valid-table-entry"}})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(resp.Rows) != 0 {
		t.Fatalf("got %d rows, want 0", len(resp.Rows))
	}
}

func TestEncodeDecodeTableRoundTrip(t *testing.T) {
	org, st, stream, ok := decodeTable(encodeTable("org1", filelist.StreamTraces, "spans"))
	if !ok || org != "org1" || st != filelist.StreamTraces || stream != "spans" {
		t.Fatalf("round trip mismatch: org=%s st=%s stream=%s ok=%v", org, st, stream, ok)
	}
}

func TestExtractStreamName(t *testing.T) {
	tests := []struct {
		sql  string
		want string
		ok   bool
	}{
		{"SELECT * FROM app", "app", true},
		{`select * from "db" where x = 1`, "db", true},
		{"not a query", "", false},
	}
	for _, tt := range tests {
		got, ok := extractStreamName(tt.sql)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("extractStreamName(%q) = (%q, %v), want (%q, %v)", tt.sql, got, ok, tt.want, tt.ok)
		}
	}
}
