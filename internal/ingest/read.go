package ingest

import (
	"github.com/openobserve/openobserve-sub015/internal/value"
)

// ReadFromMemtable iterates every bucket the stream may live in,
// grabs a read lock per writer, and concatenates rows satisfying both
// the time range and the partition filters.
func (p *Pool) ReadFromMemtable(org, streamType, stream string, start, end int64, partitionFilters map[string]string) []value.Record {
	key := WriterKey{Org: org, StreamType: streamType}
	var out []value.Record
	for _, b := range p.BucketsFor(stream) {
		b.mu.RLock()
		w, ok := b.writers[key]
		b.mu.RUnlock()
		if !ok {
			continue
		}
		mt := w.ReadMemtable()
		rows := mt.Read(timestampOf, start, end, partitionFilters)
		out = append(out, rows...)
	}
	return out
}

// timestampOf extracts the canonical timestamp column from a decoded
// row, matching the column name internal/config.Config.ColumnTimestamp
// defaults to.
func timestampOf(r value.Record) int64 {
	return r.GetField("_timestamp").GetIntValue()
}
