package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openobserve/openobserve-sub015/internal/objectstore"
	"github.com/openobserve/openobserve-sub015/internal/oerrors"
	"github.com/openobserve/openobserve-sub015/internal/search"
	"github.com/openobserve/openobserve-sub015/internal/value"
)

// cacheMeta is the Redis-resident half of a cache entry: enough to
// locate and re-expand the hits object storage holds. Redis owns
// expiry (via TTL) rather than the ingestion-boundary invalidation
// §3.2 describes, since there is no stream-write-boundary notification
// path wired into this binary — see DESIGN.md.
type cacheMeta struct {
	FilePath  string `json:"file_path"`
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
	Took      int64  `json:"took"`
}

// redisResultCache implements search.ResultCache plus the read-side
// Lookup internal/search itself has no interface for (result-cache
// reads are a coordinator-level concern, not a planner concern, per
// internal/search/stream.go's write-only ResultCache). Redis holds the
// small fingerprint-keyed pointer record; the actual hits live in
// object storage, mirroring how segment data and its catalog entry are
// split elsewhere in this codebase.
type redisResultCache struct {
	rdb   *redis.Client
	store objectstore.ObjectStoreExt
	ttl   time.Duration
}

func newRedisResultCache(rdb *redis.Client, store objectstore.ObjectStoreExt, ttl time.Duration) *redisResultCache {
	return &redisResultCache{rdb: rdb, store: store, ttl: ttl}
}

func cacheKey(org, fingerprint string) string {
	return "searchcache:" + org + ":" + fingerprint
}

// Lookup returns the single cached slice recorded for (org,
// fingerprint), if any. This module takes the simplest split
// consistent with §4.8.2's invariant (cache union + delta union =
// requested range): a fingerprint either has one cache entry covering
// the whole prior response, in which case the entire request is served
// from it, or it has none, in which case the entire request becomes a
// single delta. A finer-grained interval diff (partial overlap served
// from cache, the uncovered remainder as a delta) is not implemented;
// see DESIGN.md.
func (c *redisResultCache) Lookup(ctx context.Context, org, fingerprint string) ([]search.CachedQueryResponse, bool) {
	raw, err := c.rdb.Get(ctx, cacheKey(org, fingerprint)).Result()
	if err != nil {
		return nil, false
	}
	var meta cacheMeta
	if err := value.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, false
	}
	data, err := c.store.Get(ctx, org, meta.FilePath)
	if err != nil {
		return nil, false
	}
	var hits []map[string]any
	if err := value.Unmarshal(data, &hits); err != nil {
		return nil, false
	}
	return []search.CachedQueryResponse{{
		ResponseStartTime: meta.StartTime,
		ResponseEndTime:   meta.EndTime,
		Hits:              toRecords(hits),
		Took:              meta.Took,
	}}, true
}

// planScopedCache adapts redisResultCache to search.ResultCache for
// one in-flight request: Write's wire contract (§4.8.6) carries only
// filePath and the merged response, not the originating time range, so
// the request's own start/end are captured here at construction
// instead.
type planScopedCache struct {
	rc          *redisResultCache
	org         string
	fingerprint string
	start, end  int64
}

func (p *planScopedCache) Write(ctx context.Context, filePath string, merged search.MergedResponse, isAggregate, isDescending bool) error {
	data, err := value.Marshal(recordsToAny(merged.Hits))
	if err != nil {
		return oerrors.Wrap(oerrors.Format, "cache_encode", "encode cached hits", err)
	}
	if err := p.rc.store.Put(ctx, p.org, filePath, data, &objectstore.PutOptions{ContentType: "application/json"}); err != nil {
		return oerrors.Wrap(oerrors.Storage, "cache_put", "store cached response object", err)
	}
	meta := cacheMeta{FilePath: filePath, StartTime: p.start, EndTime: p.end}
	metaData, err := value.Marshal(meta)
	if err != nil {
		return oerrors.Wrap(oerrors.Format, "cache_meta_encode", "encode cache meta", err)
	}
	if err := p.rc.rdb.Set(ctx, cacheKey(p.org, p.fingerprint), metaData, p.rc.ttl).Err(); err != nil {
		return oerrors.Wrap(oerrors.Storage, "cache_meta_put", "store cache meta", err)
	}
	return nil
}

func cacheFilePath(org, fingerprint string) string {
	return fmt.Sprintf("cache/%s/%s.json", org, fingerprint)
}
