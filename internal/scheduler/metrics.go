package scheduler

import "github.com/prometheus/client_golang/prometheus"

var (
	triggersPulled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_triggers_pulled_total",
			Help: "Triggers leased out of the waiting queue by Pull.",
		},
		[]string{"module"},
	)
	leasesReclaimed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_leases_reclaimed_total",
		Help: "Processing triggers whose lease expired and were reset to waiting by WatchTimeout.",
	})
)

func init() {
	prometheus.MustRegister(triggersPulled, leasesReclaimed)
}
