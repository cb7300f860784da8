package pipeline

import (
	"context"
	"testing"

	"github.com/openobserve/openobserve-sub015/internal/oerrors"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()
	s, err := NewSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := s.CreateTable(ctx); err != nil {
		t.Fatalf("create table: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func samplePipeline(id string) Pipeline {
	return Pipeline{
		ID:      id,
		Org:     "o1",
		Name:    "route-logs",
		Enabled: true,
		Source:  SourceRealtime,
		Stream:  StreamParams{Org: "o1", StreamName: "app", StreamType: "logs"},
		Nodes:   []Node{{ID: "n1", Kind: "function", Data: map[string]any{"name": "lowercase"}}},
		Edges:   nil,
	}
}

func TestSQLStorePutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := samplePipeline("p1")
	if err := s.Put(ctx, p); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != p.Name || got.Org != p.Org || got.Source != p.Source || !got.Enabled {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
	if len(got.Nodes) != 1 || got.Nodes[0].ID != "n1" {
		t.Fatalf("dag not round-tripped: %+v", got.Nodes)
	}
	if got.Stream != p.Stream {
		t.Fatalf("stream params not round-tripped: %+v", got.Stream)
	}
}

func TestSQLStorePutUpsertsOnConflict(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := samplePipeline("p1")
	if err := s.Put(ctx, p); err != nil {
		t.Fatalf("put: %v", err)
	}
	p.Name = "renamed"
	p.Enabled = false
	if err := s.Put(ctx, p); err != nil {
		t.Fatalf("put again: %v", err)
	}

	got, err := s.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "renamed" || got.Enabled {
		t.Fatalf("expected upsert to overwrite row, got %+v", got)
	}
}

func TestSQLStoreGetMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, "ghost")
	if !oerrors.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestSQLStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := samplePipeline("p1")
	_ = s.Put(ctx, p)
	if err := s.Delete(ctx, "p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "p1"); !oerrors.IsNotFound(err) {
		t.Fatalf("expected not-found after delete, got %v", err)
	}
}

func TestSQLStoreListByOrg(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p1 := samplePipeline("p1")
	p2 := samplePipeline("p2")
	p2.Org = "o2"
	_ = s.Put(ctx, p1)
	_ = s.Put(ctx, p2)

	rows, err := s.ListByOrg(ctx, "o1")
	if err != nil {
		t.Fatalf("list_by_org: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "p1" {
		t.Fatalf("unexpected list_by_org result: %+v", rows)
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 pipelines total, got %d", len(all))
	}
}

func TestSQLStoreGetWithSameSourceStream(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p1 := samplePipeline("p1")
	_ = s.Put(ctx, p1)

	candidate := samplePipeline("p2")
	got, err := s.GetWithSameSourceStream(ctx, candidate)
	if err != nil {
		t.Fatalf("get_with_same_source_stream: %v", err)
	}
	if got.ID != "p1" {
		t.Fatalf("expected to find p1, got %+v", got)
	}

	p1.Enabled = false
	_ = s.Put(ctx, p1)
	if _, err := s.GetWithSameSourceStream(ctx, candidate); !oerrors.IsNotFound(err) {
		t.Fatalf("expected no match once source pipeline disabled, got %v", err)
	}
}
