package search

import (
	"context"
	"testing"

	"github.com/openobserve/openobserve-sub015/internal/value"
)

type fakeExecutor struct {
	calls []QueryDelta
	rows  []value.Record
}

func (f *fakeExecutor) ExecuteDelta(ctx context.Context, plan Plan, delta QueryDelta) ([]value.Record, error) {
	f.calls = append(f.calls, delta)
	return f.rows, nil
}

func TestMergeCacheAndDeltasInterleavesInOrder(t *testing.T) {
	plan := Plan{Request: Request{StartTime: 0, EndTime: 100}}
	cached := []CachedQueryResponse{
		{ResponseStartTime: 50, ResponseEndTime: 100, Hits: []value.Record{{"a": value.I64(1)}}},
	}
	deltas := []QueryDelta{{DeltaStartTime: 0, DeltaEndTime: 50}}
	exec := &fakeExecutor{rows: []value.Record{{"a": value.I64(2)}}}

	out := make(chan StreamEvent, 10)
	err := MergeCacheAndDeltas(context.Background(), plan, cached, deltas, exec, "ui", -1, out)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	close(out)

	var events []StreamEvent
	for ev := range out {
		events = append(events, ev)
	}
	if len(events) != 3 {
		t.Fatalf("expected delta + cached + done events, got %d", len(events))
	}
	if events[0].FromCache {
		t.Fatal("expected delta (earlier range) processed before cached slice")
	}
	if !events[1].FromCache {
		t.Fatal("expected cached slice processed second")
	}
	if !events[2].Done {
		t.Fatal("expected terminal done event")
	}
}

func TestMergeCacheAndDeltasTruncatesOnReqSize(t *testing.T) {
	plan := Plan{Request: Request{StartTime: 0, EndTime: 100}}
	cached := []CachedQueryResponse{
		{ResponseStartTime: 0, ResponseEndTime: 100, Hits: []value.Record{
			{"a": value.I64(1)}, {"a": value.I64(2)}, {"a": value.I64(3)},
		}},
	}
	exec := &fakeExecutor{}
	out := make(chan StreamEvent, 10)

	if err := MergeCacheAndDeltas(context.Background(), plan, cached, nil, exec, "ui", 2, out); err != nil {
		t.Fatalf("merge: %v", err)
	}
	close(out)

	var hits int
	for ev := range out {
		hits += len(ev.Hits)
	}
	if hits != 2 {
		t.Fatalf("expected truncation to 2 hits, got %d", hits)
	}
}

func TestEffectiveOrderByForcesDescForDashboards(t *testing.T) {
	if effectiveOrderBy("dashboards", 10, OrderAsc) != OrderDesc {
		t.Fatal("expected dashboards to force DESC")
	}
	if effectiveOrderBy("ui", -1, OrderAsc) != OrderAsc {
		t.Fatal("expected UI unbounded-size requests to keep requested order")
	}
	if effectiveOrderBy("other", -1, OrderAsc) != OrderDesc {
		t.Fatal("expected non-UI unbounded-size requests to force DESC")
	}
}

func TestShouldWriteToCache(t *testing.T) {
	ok := MergedResponse{Hits: []value.Record{{"a": value.I64(1)}}}
	if !ShouldWriteToCache(ok) {
		t.Fatal("expected complete response to be cacheable")
	}

	withError := ok
	withError.FunctionError = "range tightened"
	if ShouldWriteToCache(withError) {
		t.Fatal("expected function_error to block caching")
	}

	empty := MergedResponse{}
	if ShouldWriteToCache(empty) {
		t.Fatal("expected empty hits to block caching")
	}

	partialStart := int64(5)
	partial := MergedResponse{Hits: []value.Record{{"a": value.I64(1)}}, NewStartTime: &partialStart}
	if ShouldWriteToCache(partial) {
		t.Fatal("expected partial-range marker to block caching")
	}
}
