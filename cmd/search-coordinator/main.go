// Command search-coordinator plans, caches, and streams search
// results: it rewrites and plans incoming SQL (internal/search),
// resolves cached versus live time ranges, fans live deltas out to
// querier nodes over gRPC (internal/search/rpc), merges the two in
// request order, and exposes the traces/session aggregation endpoint
// (internal/streaming). It is also the sole querier node in this
// deployment shape, dialing itself for leaf scans rather than a
// separate process — see DESIGN.md's cluster-of-one note.
package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/openobserve/openobserve-sub015/internal/config"
	"github.com/openobserve/openobserve-sub015/internal/filelist"
	"github.com/openobserve/openobserve-sub015/internal/loki"
	"github.com/openobserve/openobserve-sub015/internal/objectstore"
	"github.com/openobserve/openobserve-sub015/internal/observability/tracing"
	"github.com/openobserve/openobserve-sub015/internal/oerrors"
	"github.com/openobserve/openobserve-sub015/internal/search"
	"github.com/openobserve/openobserve-sub015/internal/search/rpc"
)

type appConfig struct {
	defaultOrg string
}

func main() {
	cfg := config.Load()
	logger := slog.New(newLogHandler(cfg, "search-coordinator"))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.Init(ctx, "search-coordinator", cfg.OTLPEndpoint)
	if err != nil {
		logger.Warn("tracing init failed", "error", err)
	}

	store, err := newObjectStore(cfg)
	if err != nil {
		logger.Error("object store init failed", "error", err)
		os.Exit(1)
	}
	files, err := newFileListStore(ctx, cfg)
	if err != nil {
		logger.Error("file list store init failed", "error", err)
		os.Exit(1)
	}
	if err := files.CreateTables(ctx); err != nil {
		logger.Error("file list schema init failed", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})

	grpcServer := grpc.NewServer()
	rpc.RegisterScanServer(grpcServer, &selfLeaf{files: files, store: store})
	lis, err := net.Listen("tcp", cfg.SearchLeafAddr)
	if err != nil {
		logger.Error("leaf listener failed", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("leaf grpc server stopped", "error", err)
		}
	}()

	leafClient := search.NewGRPCLeafClient(func(addr string) (*grpc.ClientConn, error) {
		return grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	})
	membership := localMembership{self: search.Node{ID: "self", Addr: cfg.SearchLeafAddr}}

	eng := newEngine(store, rdb, cfg.ResultCacheTTL, leafClient, membership, cfg.ResultCacheEnabled)

	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	registerInternalRoutes(router, eng, &appConfig{defaultOrg: cfg.DefaultOrg})

	srv := &http.Server{Addr: getenv("SEARCH_COORDINATOR_ADDR", ":5091"), Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	logger.Info("search coordinator started", "addr", srv.Addr, "leaf_addr", cfg.SearchLeafAddr)
	<-ctx.Done()
	logger.Info("search coordinator shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	if shutdownTracer != nil {
		_ = shutdownTracer(shutdownCtx)
	}
}

func newObjectStore(cfg *config.Config) (objectstore.ObjectStoreExt, error) {
	backend, err := objectstore.NewS3(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "s3_init", "init s3 object store", err)
	}
	cache := objectstore.NewLocal(cfg.DataWALDir + "/search-cache")
	return objectstore.NewCacheFS(cache, backend), nil
}

func newFileListStore(ctx context.Context, cfg *config.Config) (filelist.Store, error) {
	if cfg.PostgresDSN != "" {
		return filelist.NewPostgres(ctx, cfg.PostgresDSN)
	}
	return filelist.NewSQLite(ctx, cfg.SQLitePath)
}

// newLogHandler always writes JSON lines to stdout; when cfg.LokiEndpoint
// is set it also fans each record out to Loki under the
// "search-coordinator" source label.
func newLogHandler(cfg *config.Config, service string) slog.Handler {
	stdout := slog.NewJSONHandler(os.Stdout, nil)
	if cfg.LokiEndpoint == "" {
		return stdout
	}
	client := loki.New(cfg.LokiEndpoint, map[string]string{"service": service})
	return loki.NewFanout(stdout, loki.NewHandler(client, service))
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
