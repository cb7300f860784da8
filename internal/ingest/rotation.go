package ingest

import (
	"os"
	"sync"

	dto "github.com/prometheus/client_model/go"

	"github.com/openobserve/openobserve-sub015/internal/oerrors"
)

// Immutable is a retired (wal_path, memtable) pair waiting to be
// flushed to object storage and registered with the file-list catalog.
// Key carries the org/stream_type the memtable's rows belong to, since
// wal_path alone does not reliably decompose back into them.
type Immutable struct {
	Key      WriterKey
	WalPath  string
	MemTable *MemTable
}

// immutableSet is the global IMMUTABLES map keyed by wal_path. Sweep
// is idempotent per wal_path: once an entry is claimed by Drain it is
// removed, so a concurrent or repeated sweep cannot double-flush it.
type immutableSet struct {
	mu      sync.Mutex
	entries map[string]Immutable
}

func newImmutableSet() *immutableSet {
	return &immutableSet{entries: map[string]Immutable{}}
}

func (s *immutableSet) Add(key WriterKey, walPath string, mt *MemTable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[walPath] = Immutable{Key: key, WalPath: walPath, MemTable: mt}
}

// Drain atomically removes and returns every pending Immutable.
func (s *immutableSet) Drain() []Immutable {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Immutable, 0, len(s.entries))
	for _, v := range s.entries {
		out = append(out, v)
	}
	s.entries = map[string]Immutable{}
	return out
}

func (s *immutableSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// SweepFunc flushes one Immutable to durable storage (segment file +
// file-list row) and is supplied by cmd/ingester, which knows about
// objectstore and filelist; this package only owns the queue.
type SweepFunc func(Immutable) error

// Sweep drains every pending Immutable and applies fn to each,
// releasing the WAL file on disk and the memtable's RAM on success.
// A failed flush is requeued rather than dropped.
func Sweep(set *immutableSet, fn SweepFunc) error {
	pending := set.Drain()
	var firstErr error
	for _, im := range pending {
		if err := fn(im); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			set.Add(im.Key, im.WalPath, im.MemTable)
			continue
		}
		_ = os.Remove(im.WalPath)
		memtableArrowBytes.Sub(float64(im.MemTable.ArrowSize()))
	}
	if firstErr != nil {
		return oerrors.Wrap(oerrors.Storage, "sweep", "flush immutable segment", firstErr)
	}
	return nil
}

// CheckMemtableOverflow is the single global back-pressure throttle:
// callers must check this before accepting a new entry.
func CheckMemtableOverflow(maxSize int64) error {
	if currentArrowBytesGauge() >= float64(maxSize) {
		return oerrors.New(oerrors.Overflow, "memory_table_overflow", "memtable overflow")
	}
	return nil
}

func currentArrowBytesGauge() float64 {
	var m dto.Metric
	_ = memtableArrowBytes.Write(&m)
	return m.GetGauge().GetValue()
}
