package search

import "sort"

// TopKState is the per-partition accumulator for the approx_topk(col,
// k) aggregate: a bounded candidate-count map, pruned back to a
// smaller top set whenever it grows past a cap derived from k.
type TopKState struct {
	K          int
	candidates map[string]int64
}

// NewTopKState builds an accumulator for the given k.
func NewTopKState(k int) *TopKState {
	return &TopKState{K: k, candidates: make(map[string]int64)}
}

// maxCandidates bounds the candidate set to clamp(k*10, k*2, 1000).
func maxCandidates(k int) int {
	v := k * 10
	if lo := k * 2; v < lo {
		v = lo
	}
	if v > 1000 {
		v = 1000
	}
	return v
}

// Update records one observation of value for this partition, pruning
// the candidate set when it exceeds the cap.
func (t *TopKState) Update(value string) {
	t.candidates[value]++
	limit := maxCandidates(t.K)
	if len(t.candidates) > limit {
		t.prune(maxInt(t.K, limit/2))
	}
}

// TopKEntry is one emitted (value, count) pair.
type TopKEntry struct {
	Value string
	Count int64
}

// prune keeps only the top n candidates by count DESC, key ASC.
func (t *TopKState) prune(n int) {
	entries := t.sortedEntries()
	if len(entries) > n {
		entries = entries[:n]
	}
	t.candidates = make(map[string]int64, len(entries))
	for _, e := range entries {
		t.candidates[e.Value] = e.Count
	}
}

func (t *TopKState) sortedEntries() []TopKEntry {
	entries := make([]TopKEntry, 0, len(t.candidates))
	for v, c := range t.candidates {
		entries = append(entries, TopKEntry{Value: v, Count: c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Value < entries[j].Value
	})
	return entries
}

// Merge concatenates another partition's state into this one, adding
// counts for shared keys, then re-prunes to the cap.
func (t *TopKState) Merge(other *TopKState) {
	for v, c := range other.candidates {
		t.candidates[v] += c
	}
	limit := maxCandidates(t.K)
	if len(t.candidates) > limit {
		t.prune(maxInt(t.K, limit/2))
	}
}

// Finalize emits the top K entries by count DESC, key ASC.
func (t *TopKState) Finalize() []TopKEntry {
	entries := t.sortedEntries()
	if len(entries) > t.K {
		entries = entries[:t.K]
	}
	return entries
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
