package search

import (
	"sort"
	"strings"

	"github.com/openobserve/openobserve-sub015/internal/oerrors"
	"github.com/openobserve/openobserve-sub015/internal/value"
)

// JoinStrategy selects how a HistogramJoin combines per-leaf batches.
// Only LocalProcessing and Hybrid are implemented; TimePartitioning is
// explicitly out of scope.
type JoinStrategy string

const (
	LocalProcessing JoinStrategy = "local_processing"
	Hybrid          JoinStrategy = "hybrid"
)

// LeafBatch is one record batch produced by a leaf, already locally
// sort-merge-joined on the join keys within that leaf's shard.
type LeafBatch struct {
	LeafID string
	Rows   []value.Record
}

// HistogramJoin buckets incoming per-leaf batches into fixed time bins
// and emits every bin, in bin order with rows sorted by join key, once
// all leaves are exhausted. No bin is emitted earlier, even one that
// every leaf has already produced rows past.
type HistogramJoin struct {
	LeftTimeColumn  string
	RightTimeColumn string
	TimeColumn      string // the column actually present on the joined rows
	JoinColumns     []string
	IntervalSeconds int64
	Strategy        JoinStrategy

	leafDone map[string]bool
	bins     map[int64][]value.Record
}

// ParseTimeBinInterval parses e.g. "5 minutes" or "60 seconds",
// defaulting to 5 minutes when empty.
func ParseTimeBinInterval(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 300, nil
	}
	return ConvertHistogramIntervalToSeconds(s)
}

// NewHistogramJoin constructs a join over the given leaf set.
func NewHistogramJoin(leafIDs []string, leftCol, rightCol, timeCol string, joinCols []string, intervalSeconds int64, strategy JoinStrategy) *HistogramJoin {
	done := make(map[string]bool, len(leafIDs))
	for _, id := range leafIDs {
		done[id] = false
	}
	return &HistogramJoin{
		LeftTimeColumn:  leftCol,
		RightTimeColumn: rightCol,
		TimeColumn:      timeCol,
		JoinColumns:     joinCols,
		IntervalSeconds: intervalSeconds,
		Strategy:        strategy,
		leafDone:        done,
		bins:            make(map[int64][]value.Record),
	}
}

func (j *HistogramJoin) binFor(tsMicros int64) int64 {
	seconds := tsMicros / 1_000_000
	return (seconds / j.IntervalSeconds) * j.IntervalSeconds
}

// IngestBatch appends a leaf's rows to their respective time bins. It
// does not itself decide what is ready to flush; call FlushReady after
// each ingest (or MarkLeafExhausted) to learn that.
func (j *HistogramJoin) IngestBatch(batch LeafBatch) error {
	if _, ok := j.leafDone[batch.LeafID]; !ok {
		return oerrors.New(oerrors.InvalidInput, "unknown_leaf", "batch from unregistered leaf: "+batch.LeafID)
	}
	for _, row := range batch.Rows {
		ts, ok := timestampOf(row, j.TimeColumn)
		if !ok {
			continue
		}
		bin := j.binFor(ts)
		j.bins[bin] = append(j.bins[bin], row)
	}
	return nil
}

// MarkLeafExhausted records that a leaf has no more batches to send.
func (j *HistogramJoin) MarkLeafExhausted(leafID string) {
	j.leafDone[leafID] = true
}

func (j *HistogramJoin) allLeavesExhausted() bool {
	for _, done := range j.leafDone {
		if !done {
			return false
		}
	}
	return true
}

// FlushReady returns every buffered bin, in ascending bin order, once
// all leaves are exhausted, and nil before that. There is no per-bin
// or incremental flush: a bin that every leaf has already passed stays
// buffered until the last leaf is marked exhausted.
func (j *HistogramJoin) FlushReady() []TimeBin {
	if !j.allLeavesExhausted() {
		return nil
	}
	return j.flushAll()
}

func (j *HistogramJoin) flushAll() []TimeBin {
	bins := make([]int64, 0, len(j.bins))
	for b := range j.bins {
		bins = append(bins, b)
	}
	sort.Slice(bins, func(i, k int) bool { return bins[i] < bins[k] })

	out := make([]TimeBin, 0, len(bins))
	for _, b := range bins {
		rows := j.bins[b]
		sortByJoinKeys(rows, j.JoinColumns)
		out = append(out, TimeBin{BinStart: b, Rows: rows})
		delete(j.bins, b)
	}
	return out
}

// TimeBin is one flushed, key-ordered bin of joined rows.
type TimeBin struct {
	BinStart int64
	Rows     []value.Record
}

func timestampOf(row value.Record, col string) (int64, bool) {
	v, ok := row[col]
	if !ok || v.IsNull() {
		return 0, false
	}
	return value.GetIntValue(v), true
}

func sortByJoinKeys(rows []value.Record, cols []string) {
	sort.SliceStable(rows, func(i, k int) bool {
		for _, c := range cols {
			as, bs := value.GetStringValue(rows[i][c]), value.GetStringValue(rows[k][c])
			if as != bs {
				return as < bs
			}
		}
		return false
	})
}
