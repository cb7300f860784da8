// Command metrics is a standalone Prometheus exporter that serves the
// full named metric catalog this module defines — ingest's
// lock-hold histograms, scheduler's pull/reclaim counters, search's
// cache/delta counters — plus the standard Go and process collectors,
// without running any of the services that produce live values for
// them. It exists for local development and dashboard/alert-rule
// validation against real metric names and label sets; each service
// binary (cmd/ingester, cmd/scheduler, cmd/search-coordinator) exposes
// its own live /metrics endpoint for its own process's counters.
package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/openobserve/openobserve-sub015/internal/ingest"
	_ "github.com/openobserve/openobserve-sub015/internal/scheduler"
	_ "github.com/openobserve/openobserve-sub015/internal/search"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	addr := getenv("METRICS_ADDR", ":9109")
	logger.Info("metrics exporter listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics exporter stopped", "error", err)
		os.Exit(1)
	}
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
