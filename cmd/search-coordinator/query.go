package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openobserve/openobserve-sub015/internal/filelist"
	"github.com/openobserve/openobserve-sub015/internal/objectstore"
	"github.com/openobserve/openobserve-sub015/internal/oerrors"
	"github.com/openobserve/openobserve-sub015/internal/search"
	"github.com/openobserve/openobserve-sub015/internal/value"
)

// engine wires one request's worth of planning, cache lookup, leaf
// dispatch, and streaming drain into a single synchronous call,
// matching the non-streaming Searcher.Run contract the scheduler and
// internal/streaming both depend on. The gin route handlers in
// routes.go call run as well and return the accumulated result in one
// response; no route streams progressive events.
type engine struct {
	cache              *redisResultCache
	membership         search.Membership
	leaf               search.LeafClient
	maxQueryRangeHours func(org, streamType, stream string) int64
	fingerprint        func(search.Request) string
	cacheEnabled       bool
}

func newEngine(store objectstore.ObjectStoreExt, rdb *redis.Client, cacheTTL time.Duration, leaf search.LeafClient, membership search.Membership, cacheEnabled bool) *engine {
	return &engine{
		cache:      newRedisResultCache(rdb, store, cacheTTL),
		membership: membership,
		leaf:       leaf,
		maxQueryRangeHours: func(org, streamType, stream string) int64 {
			return 0 // unlimited unless a stream-settings store is wired in; see DESIGN.md
		},
		fingerprint:  fingerprintRequest,
		cacheEnabled: cacheEnabled,
	}
}

// run plans req, resolves cached/delta coverage, dispatches deltas to
// the cluster (of one), merges in request order, and returns every hit
// once the stream completes — the synchronous shape every internal
// caller in this codebase needs (alert.Searcher, streaming.SearchRunner).
func (e *engine) run(ctx context.Context, org string, streamType filelist.StreamType, req search.Request) ([]value.Record, string, error) {
	req.UseCache = req.UseCache && e.cacheEnabled
	plan, err := search.BuildPlan(req, e.maxQueryRangeHours(org, string(streamType), ""), e.fingerprint)
	if err != nil {
		return nil, "", err
	}

	stream, _ := extractStreamName(plan.SQL)

	var cached []search.CachedQueryResponse
	var deltas []search.QueryDelta
	if plan.UseCache {
		if c, ok := e.cache.Lookup(ctx, org, plan.CacheFingerprint); ok {
			cached = c
		} else {
			deltas = []search.QueryDelta{{DeltaStartTime: plan.StartTime, DeltaEndTime: plan.EndTime}}
		}
	} else {
		deltas = []search.QueryDelta{{DeltaStartTime: plan.StartTime, DeltaEndTime: plan.EndTime}}
	}

	executor := &search.ClusterExecutor{
		Membership: e.membership,
		Client:     e.leaf,
		Tables:     []string{encodeTable(org, streamType, stream)},
	}

	out := make(chan search.StreamEvent, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- search.MergeCacheAndDeltas(ctx, plan, cached, deltas, executor, plan.SearchType, int64(plan.Size), out)
	}()

	// Write-back is independent of whether this particular request
	// read from the cache (§4.8.6 applies to every complete response),
	// so the cache is always wired in when the feature is enabled
	// globally — never left as a typed-nil *planScopedCache behind the
	// search.ResultCache interface, which would compare non-nil anyway.
	var coordinator *search.Coordinator
	if e.cacheEnabled {
		coordinator = &search.Coordinator{Cache: &planScopedCache{rc: e.cache, org: org, fingerprint: plan.CacheFingerprint, start: plan.StartTime, end: plan.EndTime}}
	} else {
		coordinator = &search.Coordinator{}
	}

	var accumulated []value.Record
	drainErr := coordinator.Drain(ctx, out, cacheFilePath(org, plan.CacheFingerprint), false, false, plan.FunctionError, func(ev search.StreamResponse) {
		if ev.Kind == search.KindSearchResponse {
			accumulated = append(accumulated, ev.Hits...)
		}
	})
	if mergeErr := <-errCh; mergeErr != nil {
		return nil, "", oerrors.Wrap(oerrors.Upstream, "merge_cache_and_deltas", "merge cached and live results", mergeErr)
	}
	if drainErr != nil {
		return nil, "", oerrors.Wrap(oerrors.Upstream, "drain", "drain merged search stream", drainErr)
	}
	return accumulated, plan.FunctionError, nil
}

// fingerprintRequest derives the cache key CacheEntry is keyed by
// (§3.1): (org is applied by the caller as a key prefix, not folded in
// here, so the same SQL/range fingerprints identically across orgs
// that happen to share it structurally — callers always pass org
// alongside the fingerprint).
func fingerprintRequest(req search.Request) string {
	return hashRequest(req.SQL, req.StartTime, req.EndTime)
}
