// Command scheduler runs the leased trigger-pull loop: it leases
// waiting alert/report/pipeline triggers from internal/scheduler,
// evaluates alerts and reports through internal/alert, and keeps the
// pipeline cache (internal/pipeline) warm for the scheduled-pipeline
// branch of trigger dispatch.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/openobserve/openobserve-sub015/internal/alert"
	"github.com/openobserve/openobserve-sub015/internal/config"
	"github.com/openobserve/openobserve-sub015/internal/loki"
	"github.com/openobserve/openobserve-sub015/internal/observability/tracing"
	"github.com/openobserve/openobserve-sub015/internal/oerrors"
	"github.com/openobserve/openobserve-sub015/internal/pipeline"
	"github.com/openobserve/openobserve-sub015/internal/scheduler"
	"github.com/openobserve/openobserve-sub015/internal/timeutil"
)

func main() {
	cfg := config.Load()
	logger := slog.New(newLogHandler(cfg, "scheduler"))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.Init(ctx, "scheduler", cfg.OTLPEndpoint)
	if err != nil {
		logger.Warn("tracing init failed", "error", err)
	}

	schedStore, err := newSchedulerStore(ctx, cfg)
	if err != nil {
		logger.Error("scheduler store init failed", "error", err)
		os.Exit(1)
	}
	if err := schedStore.CreateTable(ctx); err != nil {
		logger.Error("scheduler schema init failed", "error", err)
		os.Exit(1)
	}

	alertStore, err := newAlertSQLStore(ctx, cfg)
	if err != nil {
		logger.Error("alert store init failed", "error", err)
		os.Exit(1)
	}
	if err := alertStore.CreateTable(ctx); err != nil {
		logger.Error("alert schema init failed", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	wake := scheduler.NewWake(rdb)
	svc := scheduler.NewService(schedStore, wake)

	pipelineStore, err := newPipelineStore(ctx, cfg)
	if err != nil {
		logger.Error("pipeline store init failed", "error", err)
		os.Exit(1)
	}
	if s, ok := pipelineStore.(*pipeline.SQLStore); ok {
		if err := s.CreateTable(ctx); err != nil {
			logger.Error("pipeline schema init failed", "error", err)
			os.Exit(1)
		}
	}
	mmdb := pipeline.NewMMDBGate()
	if cfg.MMDBDisableDownload {
		mmdb.MarkReady()
	}
	pipelineCache := pipeline.NewCache(pipelineStore, mmdb, cfg.MMDBDisableDownload)
	if err := pipelineCache.LoadAll(ctx); err != nil {
		logger.Error("pipeline cache load failed", "error", err)
	}
	watcher := pipeline.NewWatcher(rdb)
	go func() {
		if err := watcher.Run(ctx, pipelineCache); err != nil && ctx.Err() == nil {
			logger.Error("pipeline watcher stopped", "error", err)
		}
	}()

	searcher := newHTTPSearcher(cfg.SearchCoordinatorURL)
	notifier := &correlatingNotifier{incidents: alertStore.Incidents, timeWindowMinutes: 15}
	reportSender := newReportSender(cfg.ReportRenderURL)

	d := &dispatcher{
		schedStore:   schedStore,
		svc:          svc,
		alertStore:   alertStore.Alerts,
		reportStore:  alertStore.Reports,
		incidents:    alertStore.Incidents,
		searcher:     searcher,
		promSearcher: searcher,
		notifier:     notifier,
		reportSender: reportSender,
		pipelines:    pipelineCache,
		maxRetries:   cfg.SchedulerMaxRetries,
		concurrency:  cfg.AlertScheduleConcurrency,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: cfg.SchedulerMetricsAddr, Handler: metricsMux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	logger.Info("scheduler started", "concurrency", cfg.AlertScheduleConcurrency)
	runLoop(ctx, d, schedStore, cfg)
	logger.Info("scheduler shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	if shutdownTracer != nil {
		_ = shutdownTracer(shutdownCtx)
	}
}

// runLoop polls once a second: reclaim timed-out leases, clean up
// exhausted/completed rows, then pull and dispatch a batch of waiting
// triggers concurrently.
func runLoop(ctx context.Context, d *dispatcher, store scheduler.Store, cfg *config.Config) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := timeutil.NowMicros()
			if err := store.WatchTimeout(ctx, now); err != nil {
				slog.Error("watch_timeout failed", "error", err)
			}
			if err := store.CleanComplete(ctx, cfg.SchedulerMaxRetries); err != nil {
				slog.Error("clean_complete failed", "error", err)
			}
			triggers, err := store.Pull(ctx, cfg.AlertScheduleConcurrency, cfg.AlertScheduleTimeout, cfg.ReportScheduleTimeout, now)
			if err != nil {
				slog.Error("pull failed", "error", err)
				continue
			}
			d.dispatchAll(ctx, triggers)
		}
	}
}

type dispatcher struct {
	schedStore   scheduler.Store
	svc          *scheduler.Service
	alertStore   alert.Store
	reportStore  alert.ReportStore
	incidents    alert.IncidentStore
	searcher     alert.Searcher
	promSearcher alert.PromQLSearcher
	notifier     alert.Notifier
	reportSender alert.ReportSender
	pipelines    *pipeline.Cache
	maxRetries   int
	concurrency  int
}

// dispatchAll runs every leased trigger concurrently, bounded by
// concurrency, so one slow alert query never stalls the rest of the
// pulled batch.
func (d *dispatcher) dispatchAll(ctx context.Context, triggers []scheduler.Trigger) {
	sem := make(chan struct{}, max(1, d.concurrency))
	var wg sync.WaitGroup
	for _, t := range triggers {
		t := t
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := d.dispatchOne(ctx, t); err != nil {
				slog.Error("trigger dispatch failed", "org", t.Org, "module", t.Module, "module_key", t.ModuleKey, "error", err)
			}
		}()
	}
	wg.Wait()
}

func (d *dispatcher) dispatchOne(ctx context.Context, t scheduler.Trigger) error {
	switch t.Module {
	case scheduler.ModuleAlert:
		return alert.HandleTrigger(ctx, t, d.alertStore, d.schedStore, d.searcher, d.promSearcher, d.notifier, d.maxRetries)
	case scheduler.ModuleReport:
		return alert.HandleReportTrigger(ctx, t, d.reportStore, d.schedStore, d.reportSender, d.maxRetries)
	case scheduler.ModulePipeline:
		return d.dispatchPipelineTrigger(ctx, t)
	default:
		return oerrors.New(oerrors.InvalidInput, "unknown_module", "trigger has an unrecognized module")
	}
}

// dispatchPipelineTrigger advances a scheduled-pipeline (DerivedStream)
// trigger's lease. The pipeline cache only owns compilation and
// lookup; there is no node-execution engine in this codebase (see
// DESIGN.md), so a scheduled pipeline's own query/transform run is out
// of scope here — this only keeps the trigger's schedule moving so a
// missing pipeline definition doesn't wedge the lease forever.
func (d *dispatcher) dispatchPipelineTrigger(ctx context.Context, t scheduler.Trigger) error {
	now := timeutil.NowMicros()
	next := t
	next.NextRunAt = now + 60*1_000_000
	next.Status = scheduler.StatusWaiting
	next.Retries = 0
	if _, ok := d.pipelines.GetScheduled(t.ModuleKey); !ok {
		next.NextRunAt = now + daySilenceMicros
	}
	return d.schedStore.UpdateTrigger(ctx, next, false)
}

const daySilenceMicros = 24 * 60 * 60 * 1_000_000

// newLogHandler always writes JSON lines to stdout; when cfg.LokiEndpoint
// is set it also fans each record out to Loki under the "scheduler" source
// label.
func newLogHandler(cfg *config.Config, service string) slog.Handler {
	stdout := slog.NewJSONHandler(os.Stdout, nil)
	if cfg.LokiEndpoint == "" {
		return stdout
	}
	client := loki.New(cfg.LokiEndpoint, map[string]string{"service": service})
	return loki.NewFanout(stdout, loki.NewHandler(client, service))
}
