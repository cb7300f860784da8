package ingest

import (
	"sync"

	"github.com/openobserve/openobserve-sub015/internal/value"
)

// RecordBatch is an arrow-schema-tagged batch: the schema names the
// columns present in every row of Rows, in order. No repo in the
// retrieval pack demonstrates real apache/arrow-go usage (no source,
// only a go.mod listing), so the in-memory columnar store is a plain
// Go slice-of-records keyed by schema rather than an arrow.Record —
// JSON-shaped data in, JSON-shaped data out, matching what
// read_from_memtable's callers actually need.
type RecordBatch struct {
	Stream string
	Schema []string
	Rows   []value.Record
}

// MemTable is the in-memory batch store backing one Writer. jsonSize
// and arrowSize track the two size dimensions rotation checks
// independently.
type MemTable struct {
	mu        sync.RWMutex
	batches   []RecordBatch
	jsonSize  int64
	arrowSize int64
	minTS     int64
	maxTS     int64
}

func NewMemTable() *MemTable {
	return &MemTable{}
}

// Insert adds one entry's rows as a batch, bumping both size
// dimensions. An entry with no rows is not inserted (data_size == 0).
func (m *MemTable) Insert(stream string, schema []string, rows []value.Record, jsonBytes, arrowBytes int64, minTS, maxTS int64) {
	if len(rows) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, RecordBatch{Stream: stream, Schema: schema, Rows: rows})
	m.jsonSize += jsonBytes
	m.arrowSize += arrowBytes
	if m.minTS == 0 || minTS < m.minTS {
		m.minTS = minTS
	}
	if maxTS > m.maxTS {
		m.maxTS = maxTS
	}
}

func (m *MemTable) JSONSize() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jsonSize
}

func (m *MemTable) ArrowSize() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.arrowSize
}

// Read returns every row across every batch whose column ts (given by
// the caller's extractor) falls within [start, end) and which passes
// every partition filter. start and end both zero disable the time
// filter; a nil filter map disables partition filtering.
func (m *MemTable) Read(ts func(value.Record) int64, start, end int64, partitionFilters map[string]string) []value.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []value.Record
	for _, b := range m.batches {
		for _, row := range b.Rows {
			if start != 0 || end != 0 {
				t := ts(row)
				if t < start || t >= end {
					continue
				}
			}
			if !matchesFilters(row, partitionFilters) {
				continue
			}
			out = append(out, row)
		}
	}
	return out
}

// Rows returns every row across every batch, in insertion order,
// without filtering by time range or partition.
func (m *MemTable) Rows() []value.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []value.Record
	for _, b := range m.batches {
		out = append(out, b.Rows...)
	}
	return out
}

// RowsByStream groups every batch's rows by the stream name they were
// ingested under. A single memtable can hold rows from several stream
// names that share one (org, stream_type) bucket, so the sweep path
// uses this instead of Rows to write one correctly-keyed segment file
// per stream rather than one lumped segment per bucket.
func (m *MemTable) RowsByStream() map[string][]value.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]value.Record)
	for _, b := range m.batches {
		out[b.Stream] = append(out[b.Stream], b.Rows...)
	}
	return out
}

// TimeRange returns the memtable's tracked min/max timestamps.
func (m *MemTable) TimeRange() (int64, int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.minTS, m.maxTS
}

func matchesFilters(row value.Record, filters map[string]string) bool {
	for k, want := range filters {
		if row.GetField(k).GetStringValue() != want {
			return false
		}
	}
	return true
}
