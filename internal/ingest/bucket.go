package ingest

import (
	"fmt"
	"sync"

	"github.com/lukechampine/blake3"

	"github.com/openobserve/openobserve-sub015/internal/oerrors"
)

type bucket struct {
	mu      sync.RWMutex
	writers map[WriterKey]*Writer
}

func newBucket() *bucket {
	return &bucket{writers: map[WriterKey]*Writer{}}
}

// Pool is the fixed-size vector of writer buckets created at startup:
// bucket_count = mem_table_bucket_num + individual stream count, with
// individually-pinned streams mapped to a dedicated bucket and
// everything else hashed.
type Pool struct {
	buckets           []*bucket
	individualStreams map[string]int
	bucketCount       int
	dataDir           string
	rotation          RotationConfig
	queueSize         int
	queueEnabled      bool
	queueFullReject   bool
	perThreadLock     bool

	immu *immutableSet
}

func NewPool(bucketNum int, individualStreams []string, dataDir string, rotation RotationConfig, queueSize int, queueEnabled, queueFullReject, perThreadLock bool) *Pool {
	individual := make(map[string]int, len(individualStreams))
	for i, s := range individualStreams {
		individual[s] = bucketNum + i
	}
	bucketCount := bucketNum + len(individualStreams)
	buckets := make([]*bucket, bucketCount)
	for i := range buckets {
		buckets[i] = newBucket()
	}
	return &Pool{
		buckets:           buckets,
		individualStreams: individual,
		bucketCount:       bucketCount,
		dataDir:           dataDir,
		rotation:          rotation,
		queueSize:         queueSize,
		queueEnabled:      queueEnabled,
		queueFullReject:   queueFullReject,
		perThreadLock:     perThreadLock,
		immu:              newImmutableSet(),
	}
}

// idx computes the writer bucket for a (thread, stream) pair: pinned
// streams go to their dedicated bucket, everything else is hashed.
func idx(thread, stream string, individualStreams map[string]int, generalBucketCount int) int {
	if b, ok := individualStreams[stream]; ok {
		return b
	}
	h := hash64(fmt.Sprintf("%s_%s", thread, stream))
	return int(h % uint64(generalBucketCount))
}

func hash64(s string) uint64 {
	sum := blake3.Sum256([]byte(s))
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(sum[i])
	}
	return v
}

// GetWriter returns (creating lazily if absent) the Writer for
// (org, streamType) living in the bucket that (thread, stream) hashes
// to. With per-thread locking disabled the thread is ignored, so every
// writer of a stream lives in the one bucket BucketsFor returns.
func (p *Pool) GetWriter(thread, stream, org, streamType string) (*Writer, error) {
	if !p.perThreadLock {
		thread = ""
	}
	generalCount := p.bucketCount - len(p.individualStreams)
	i := idx(thread, stream, p.individualStreams, generalCount)
	b := p.buckets[i]
	key := WriterKey{Org: org, StreamType: streamType}

	b.mu.RLock()
	w, ok := b.writers[key]
	b.mu.RUnlock()
	if ok {
		return w, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if w, ok := b.writers[key]; ok {
		return w, nil
	}
	w, err := NewWriter(key, i, p.dataDir, p.rotation, p.queueSize, p.queueEnabled, p.queueFullReject, p.immu.Add)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "new_writer", "create writer", err)
	}
	b.writers[key] = w
	return w, nil
}

// BucketsFor returns every bucket a stream could live in: just the
// one it hashes to, unless per-thread locking is enabled, in which
// case every general bucket is a candidate.
func (p *Pool) BucketsFor(stream string) []*bucket {
	if b, ok := p.individualStreams[stream]; ok {
		return []*bucket{p.buckets[b]}
	}
	if !p.perThreadLock {
		generalCount := p.bucketCount - len(p.individualStreams)
		i := idx("", stream, p.individualStreams, generalCount)
		return []*bucket{p.buckets[i]}
	}
	generalCount := p.bucketCount - len(p.individualStreams)
	out := make([]*bucket, 0, generalCount)
	for i := 0; i < generalCount; i++ {
		out = append(out, p.buckets[i])
	}
	return out
}

func (p *Pool) Immutables() *immutableSet { return p.immu }
