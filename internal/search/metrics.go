package search

import "github.com/prometheus/client_golang/prometheus"

var (
	cacheSlicesServed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "search_cache_slices_served_total",
		Help: "Cached response slices merged into a result by MergeCacheAndDeltas.",
	})
	deltasExecuted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "search_deltas_executed_total",
		Help: "Query deltas dispatched to the leaf executor by MergeCacheAndDeltas.",
	})
)

func init() {
	prometheus.MustRegister(cacheSlicesServed, deltasExecuted)
}
