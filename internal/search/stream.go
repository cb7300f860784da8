package search

import (
	"context"

	"github.com/openobserve/openobserve-sub015/internal/value"
)

// ResponseKind discriminates the StreamResponses union (§4.8.6).
type ResponseKind string

const (
	KindSearchResponse ResponseKind = "search_response"
	KindProgress       ResponseKind = "progress"
	KindError          ResponseKind = "error"
)

// TimeOffset records the cache/delta slice a SearchResponse covers.
type TimeOffset struct {
	StartTime int64
	EndTime   int64
}

// StreamResponse is one item sent down the HTTP/2 stream to a client.
type StreamResponse struct {
	Kind          ResponseKind
	Hits          []value.Record
	TimeOffset    TimeOffset
	StreamingID   string
	StreamingAggs bool
	Percent       float64
	ErrorMessage  string
}

// ResultCache is the write-back target keyed by file path, written
// only for complete, successful responses (§4.8.6).
type ResultCache interface {
	Write(ctx context.Context, filePath string, merged MergedResponse, isAggregate, isDescending bool) error
}

// Coordinator drains a StreamEvent channel produced by
// MergeCacheAndDeltas, accumulating hits and forwarding
// StreamResponse/Progress events to sink, then performs the
// end-of-stream cache write-back decision.
type Coordinator struct {
	Cache ResultCache
}

// Drain consumes events from ch until it closes (or ctx is
// cancelled), calling sink for every event and writing the merged
// result back to cache exactly once iff ShouldWriteToCache holds.
// Cancellation (ctx.Err() != nil on return) always skips the
// write-back, matching the "dropped sender aborts in-flight work and
// never writes partial results" rule.
func (c *Coordinator) Drain(
	ctx context.Context,
	ch <-chan StreamEvent,
	filePath string,
	isAggregate, isDescending bool,
	functionError string,
	sink func(StreamResponse),
) error {
	var accumulated []value.Record
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if ev.Done {
				merged := MergedResponse{Hits: accumulated, FunctionError: functionError}
				sink(StreamResponse{Kind: KindProgress, Percent: 100})
				if ctx.Err() == nil && ShouldWriteToCache(merged) && c.Cache != nil {
					return c.Cache.Write(ctx, filePath, merged, isAggregate, isDescending)
				}
				return nil
			}
			accumulated = append(accumulated, ev.Hits...)
			sink(StreamResponse{Kind: KindSearchResponse, Hits: ev.Hits})
			sink(StreamResponse{Kind: KindProgress, Percent: ev.Progress})
		}
	}
}
