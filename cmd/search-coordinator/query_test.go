package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/openobserve/openobserve-sub015/internal/filelist"
	"github.com/openobserve/openobserve-sub015/internal/objectstore"
	"github.com/openobserve/openobserve-sub015/internal/search"
	"github.com/openobserve/openobserve-sub015/internal/value"
)

type fakeMembership struct{ node search.Node }

func (m fakeMembership) OnlineQuerierNodes(ctx context.Context) ([]search.Node, error) {
	return []search.Node{m.node}, nil
}

type fakeLeafClient struct {
	rows []value.Record
	err  error
	n    int
}

func (f *fakeLeafClient) Scan(ctx context.Context, node search.Node, plan search.ScanPlan) ([]value.Record, error) {
	f.n++
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func newTestEngine(t *testing.T, leaf search.LeafClient, cacheEnabled bool) *engine {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := objectstore.NewLocal(t.TempDir())
	return newEngine(store, rdb, time.Minute, leaf, fakeMembership{node: search.Node{ID: "self", Addr: "x"}}, cacheEnabled)
}

func TestEngineRunCacheMissDispatchesOneDelta(t *testing.T) {
	leaf := &fakeLeafClient{rows: []value.Record{{"msg": value.FromAny("hi")}}}
	eng := newTestEngine(t, leaf, true)

	rows, functionError, err := eng.run(context.Background(), "org1", filelist.StreamLogs, search.Request{
		SQL: "SELECT * FROM app", StartTime: 100, EndTime: 200, Size: -1, UseCache: true, SearchType: "ui",
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if functionError != "" {
		t.Fatalf("unexpected function error: %s", functionError)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if leaf.n != 1 {
		t.Fatalf("expected exactly one leaf dispatch, got %d", leaf.n)
	}
}

func TestEngineRunSecondRequestHitsCache(t *testing.T) {
	leaf := &fakeLeafClient{rows: []value.Record{{"msg": value.FromAny("hi")}}}
	eng := newTestEngine(t, leaf, true)
	req := search.Request{SQL: "SELECT * FROM app", StartTime: 100, EndTime: 200, Size: -1, UseCache: true, SearchType: "ui"}

	if _, _, err := eng.run(context.Background(), "org1", filelist.StreamLogs, req); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstDispatches := leaf.n

	rows, _, err := eng.run(context.Background(), "org1", filelist.StreamLogs, req)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows from cache, want 1", len(rows))
	}
	if leaf.n != firstDispatches {
		t.Fatalf("expected no additional leaf dispatch on cache hit, had %d now %d", firstDispatches, leaf.n)
	}
}

func TestEngineRunCacheDisabledAlwaysDispatches(t *testing.T) {
	leaf := &fakeLeafClient{rows: []value.Record{{"msg": value.FromAny("hi")}}}
	eng := newTestEngine(t, leaf, false)
	req := search.Request{SQL: "SELECT * FROM app", StartTime: 100, EndTime: 200, Size: -1, UseCache: true, SearchType: "ui"}

	if _, _, err := eng.run(context.Background(), "org1", filelist.StreamLogs, req); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, _, err := eng.run(context.Background(), "org1", filelist.StreamLogs, req); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if leaf.n != 2 {
		t.Fatalf("expected a leaf dispatch on every request with caching disabled, got %d", leaf.n)
	}
}
