package search

import (
	"context"
	"sort"

	"github.com/openobserve/openobserve-sub015/internal/value"
)

// OrderBy is the iteration direction applied to both cached slices and
// deltas while streaming a merged response.
type OrderBy string

const (
	OrderAsc  OrderBy = "asc"
	OrderDesc OrderBy = "desc"
)

// CachedQueryResponse is one cached time slice of a prior search,
// covering the half-open range [ResponseStartTime, ResponseEndTime).
type CachedQueryResponse struct {
	ResponseStartTime int64
	ResponseEndTime   int64
	Hits              []value.Record
	Took              int64
}

// QueryDelta is a time range not covered by the result cache; its
// union with the cache union must equal the requested range.
type QueryDelta struct {
	DeltaStartTime int64
	DeltaEndTime   int64
}

// MultiCachedQueryResponse describes the cached slice plus deltas for
// one search request, as assembled before streaming begins.
type MultiCachedQueryResponse struct {
	TraceID         string
	FilePath        string
	TSColumn        string
	Limit           int64
	IsAggregate     bool
	IsDescending    bool
	OrderBy         OrderBy
	Took            int64
	CachedResponses []CachedQueryResponse
	Deltas          []QueryDelta
}

// LeafExecutor runs one delta's worth of query against cluster leaves
// and returns the rows it produced.
type LeafExecutor interface {
	ExecuteDelta(ctx context.Context, plan Plan, delta QueryDelta) ([]value.Record, error)
}

// StreamEvent is one item emitted while draining the merge iterator.
type StreamEvent struct {
	Hits      []value.Record
	FromCache bool
	Progress  float64 // 0..100
	Done      bool
}

// effectiveOrderBy forces DESC for dashboards and unbounded-size
// non-UI requests so deltas are processed newest-first, matching the
// chart-rendering order dashboards expect.
func effectiveOrderBy(searchType string, size int, requested OrderBy) OrderBy {
	if searchType == "dashboards" || (size == -1 && searchType != "ui") {
		return OrderDesc
	}
	return requested
}

// MergeCacheAndDeltas drives the cache/delta interleaving described in
// §4.8.2: deltas and cached slices are each sorted by the chosen
// direction, then walked in lockstep — whichever side's next item ends
// earlier (by direction) is emitted first. Results are pushed onto out
// until reqSize rows have been emitted (reqSize == -1 means unlimited)
// or both sides are exhausted.
func MergeCacheAndDeltas(
	ctx context.Context,
	plan Plan,
	cached []CachedQueryResponse,
	deltas []QueryDelta,
	executor LeafExecutor,
	searchType string,
	reqSize int64,
	out chan<- StreamEvent,
) error {
	order := effectiveOrderBy(searchType, int(reqSize), plan.orderByOrDefault())

	cached = append([]CachedQueryResponse(nil), cached...)
	deltas = append([]QueryDelta(nil), deltas...)

	sort.Slice(deltas, func(i, j int) bool {
		if order == OrderDesc {
			return deltas[i].DeltaStartTime > deltas[j].DeltaStartTime
		}
		return deltas[i].DeltaStartTime < deltas[j].DeltaStartTime
	})
	sort.Slice(cached, func(i, j int) bool {
		if order == OrderDesc {
			return cached[i].ResponseStartTime > cached[j].ResponseStartTime
		}
		return cached[i].ResponseStartTime < cached[j].ResponseStartTime
	})

	requestedRange := float64(plan.EndTime - plan.StartTime)
	if requestedRange <= 0 {
		requestedRange = 1
	}
	var consumed float64
	var curResSize int64

	di, ci := 0, 0
	for di < len(deltas) || ci < len(cached) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var processDeltaFirst bool
		switch {
		case di < len(deltas) && ci < len(cached):
			d, c := deltas[di], cached[ci]
			if order == OrderAsc {
				processDeltaFirst = d.DeltaEndTime <= c.ResponseStartTime
			} else {
				processDeltaFirst = d.DeltaStartTime >= c.ResponseEndTime
			}
		case di < len(deltas):
			processDeltaFirst = true
		default:
			processDeltaFirst = false
		}

		if processDeltaFirst {
			d := deltas[di]
			di++
			rows, err := executor.ExecuteDelta(ctx, plan, d)
			if err != nil {
				return err
			}
			deltasExecuted.Inc()
			curResSize += int64(len(rows))
			consumed += float64(abs64(d.DeltaEndTime - d.DeltaStartTime))
			out <- StreamEvent{Hits: rows, FromCache: false, Progress: pct(consumed, requestedRange)}
		} else {
			c := cached[ci]
			ci++
			cacheSlicesServed.Inc()
			hits := c.Hits
			curResSize += int64(len(hits))
			if reqSize != -1 && curResSize > reqSize {
				excess := curResSize - reqSize
				keep := int64(len(hits)) - excess
				if keep < 0 {
					keep = 0
				}
				hits = hits[:keep]
			}
			consumed += float64(abs64(c.ResponseEndTime - c.ResponseStartTime))
			out <- StreamEvent{Hits: hits, FromCache: true, Progress: pct(consumed, requestedRange)}
		}

		if reqSize != -1 && curResSize >= reqSize {
			break
		}
	}
	out <- StreamEvent{Done: true, Progress: 100}
	return nil
}

func (p Plan) orderByOrDefault() OrderBy {
	return OrderAsc
}

func pct(consumed, total float64) float64 {
	if total <= 0 {
		return 100
	}
	v := 100 * consumed / total
	if v > 100 {
		return 100
	}
	return v
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// MergedResponse is the single accumulated response produced once a
// stream completes, ready for the should-cache decision in §4.8.6.
type MergedResponse struct {
	Hits          []value.Record
	NewStartTime  *int64
	NewEndTime    *int64
	FunctionError string
}

// ShouldWriteToCache reports whether a completed merge is eligible for
// the result cache: no partial-range markers, no function error, and
// at least one hit. Cancelled or partial searches must never be
// written back.
func ShouldWriteToCache(m MergedResponse) bool {
	return m.NewStartTime == nil && m.NewEndTime == nil && m.FunctionError == "" && len(m.Hits) > 0
}
