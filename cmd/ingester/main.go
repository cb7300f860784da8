// Command ingester accepts JSON row batches over HTTP, buffers them
// into per-stream write-ahead logs and memtables (internal/ingest),
// and periodically sweeps retired memtables into object storage plus
// the file-list catalog (internal/filelist).
package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openobserve/openobserve-sub015/internal/config"
	"github.com/openobserve/openobserve-sub015/internal/filelist"
	"github.com/openobserve/openobserve-sub015/internal/ingest"
	"github.com/openobserve/openobserve-sub015/internal/loki"
	"github.com/openobserve/openobserve-sub015/internal/objectstore"
	"github.com/openobserve/openobserve-sub015/internal/observability/tracing"
	"github.com/openobserve/openobserve-sub015/internal/oerrors"
	"github.com/openobserve/openobserve-sub015/internal/timeutil"
	"github.com/openobserve/openobserve-sub015/internal/value"
)

func main() {
	cfg := config.Load()
	logger := slog.New(newLogHandler(cfg, "ingester"))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.Init(ctx, "ingester", cfg.OTLPEndpoint)
	if err != nil {
		logger.Warn("tracing init failed", "error", err)
	}

	backend, err := newObjectStore(cfg)
	if err != nil {
		logger.Error("object store init failed", "error", err)
		os.Exit(1)
	}

	fileListStore, err := newFileListStore(ctx, cfg)
	if err != nil {
		logger.Error("file list store init failed", "error", err)
		os.Exit(1)
	}
	if err := fileListStore.CreateTables(ctx); err != nil {
		logger.Error("file list schema init failed", "error", err)
		os.Exit(1)
	}

	pool := ingest.NewPool(
		cfg.MemTableBucketNum,
		nil,
		cfg.DataWALDir,
		ingest.RotationConfig{
			MaxFileSizeOnDisk:    cfg.MaxFileSizeOnDisk,
			MaxFileSizeInMemory:  cfg.MaxFileSizeInMemory,
			MaxFileRetentionTime: cfg.MaxFileRetentionTime,
		},
		cfg.WalWriteQueueSize,
		cfg.WalWriteQueueEnabled,
		cfg.WalWriteQueueFullReject,
		cfg.FeaturePerThreadLock,
	)

	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	registerIngestRoutes(router, pool, cfg)

	srv := &http.Server{Addr: getenv("INGESTER_ADDR", ":5090"), Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	sweepTicker := time.NewTicker(10 * time.Second)
	defer sweepTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sweepTicker.C:
				if err := ingest.Sweep(pool.Immutables(), sweepFunc(ctx, backend, fileListStore)); err != nil {
					logger.Error("sweep failed", "error", err)
				}
			}
		}
	}()

	logger.Info("ingester started", "addr", srv.Addr)
	<-ctx.Done()
	logger.Info("ingester shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if shutdownTracer != nil {
		_ = shutdownTracer(shutdownCtx)
	}
}

func newObjectStore(cfg *config.Config) (objectstore.ObjectStoreExt, error) {
	backend, err := objectstore.NewS3(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "s3_init", "init s3 object store", err)
	}
	cache := objectstore.NewLocal(cfg.DataWALDir + "/cache")
	return objectstore.NewCacheFS(cache, backend), nil
}

func newFileListStore(ctx context.Context, cfg *config.Config) (filelist.Store, error) {
	if cfg.PostgresDSN != "" {
		return filelist.NewPostgres(ctx, cfg.PostgresDSN)
	}
	return filelist.NewSQLite(ctx, cfg.SQLitePath)
}

// registerIngestRoutes wires POST /api/:org/:stream_type/:stream/_json,
// decoding a JSON array of row objects and writing them through pool.
func registerIngestRoutes(r *gin.Engine, pool *ingest.Pool, cfg *config.Config) {
	r.POST("/api/:org/:stream_type/:stream/_json", func(c *gin.Context) {
		org := c.Param("org")
		streamType := c.Param("stream_type")
		stream := c.Param("stream")

		body, err := c.GetRawData()
		if err != nil {
			c.JSON(400, gin.H{"message": "failed to read body"})
			return
		}

		var decoded []map[string]any
		if err := value.Unmarshal(body, &decoded); err != nil {
			c.JSON(400, gin.H{"message": "invalid json: " + err.Error()})
			return
		}
		if len(decoded) == 0 {
			c.JSON(200, gin.H{"status": "ok", "records": 0})
			return
		}

		rows := make([]value.Record, 0, len(decoded))
		columnSet := map[string]struct{}{}
		var minTS, maxTS int64
		for _, m := range decoded {
			rec := value.FromAny(m).AsObject()
			if rec == nil {
				continue
			}
			ts := value.GetIntValue(rec[cfg.ColumnTimestamp])
			if ts == 0 {
				ts = timeutil.NowMicros()
				rec[cfg.ColumnTimestamp] = value.I64(ts)
			}
			if minTS == 0 || ts < minTS {
				minTS = ts
			}
			if ts > maxTS {
				maxTS = ts
			}
			for k := range rec {
				columnSet[k] = struct{}{}
			}
			rows = append(rows, value.Record(rec))
		}
		schema := make([]string, 0, len(columnSet))
		for k := range columnSet {
			schema = append(schema, k)
		}

		writer, err := pool.GetWriter(c.Request.Header.Get("X-Thread-Id"), stream, org, streamType)
		if err != nil {
			c.JSON(500, gin.H{"message": err.Error()})
			return
		}
		entry := ingest.Entry{
			Stream: stream, Schema: schema, Rows: rows,
			RawJSON: body, ArrowBytes: int64(len(body)),
			MinTS: minTS, MaxTS: maxTS,
		}
		if err := writer.Write(entry, false); err != nil {
			status := 500
			if oerrors.IsOverflow(err) {
				status = 429
			}
			c.JSON(status, gin.H{"message": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ok", "records": len(rows)})
	})
}

// sweepFunc flushes one retired memtable to object storage as an
// ndjson blob and registers the result with the file-list catalog.
// The Puffin footer format (internal/puffin) is read-only in
// this codebase (no writer was ever implemented against it, per
// spec.md's read-path-only Puffin scope), so the sweep writes a plain
// ndjson object instead of a Puffin-framed one — readable by the same
// objectstore.ObjectStoreExt.Get the search coordinator's leaves use.
func sweepFunc(ctx context.Context, store objectstore.ObjectStoreExt, files filelist.Store) ingest.SweepFunc {
	return func(im ingest.Immutable) error {
		org := im.Key.Org
		streamType := filelist.StreamType(im.Key.StreamType)
		minTS, maxTS := im.MemTable.TimeRange()
		date := time.UnixMicro(minTS).UTC().Format("2006/01/02/15")

		fks := make([]filelist.FileKey, 0, 1)
		for stream, records := range im.MemTable.RowsByStream() {
			var buf bytes.Buffer
			for _, rec := range records {
				data, err := value.Marshal(rec)
				if err != nil {
					return oerrors.Wrap(oerrors.Format, "sweep_encode", "encode memtable row", err)
				}
				buf.Write(data)
				buf.WriteByte('\n')
			}

			fileName := fmt.Sprintf("%d.json", timeutil.NowMicros())
			objectPath := fmt.Sprintf("files/%s/%s/%s/%s/%s", org, im.Key.StreamType, stream, date, fileName)

			if err := store.Put(ctx, org, objectPath, buf.Bytes(), &objectstore.PutOptions{ContentType: "application/x-ndjson"}); err != nil {
				return oerrors.Wrap(oerrors.Storage, "sweep_put", "upload segment", err)
			}

			fks = append(fks, filelist.FileKey{
				Account: org,
				Org:     org,
				Stream:  filelist.StreamKey(streamType, stream),
				Date:    date,
				File:    objectPath,
				Meta: filelist.FileMeta{
					MinTS:        minTS,
					MaxTS:        maxTS,
					Records:      int64(len(records)),
					OriginalSize: int64(buf.Len()),
				},
			})
		}
		if len(fks) == 0 {
			return nil
		}
		if err := files.BatchAdd(ctx, fks); err != nil {
			return oerrors.Wrap(oerrors.Storage, "sweep_filelist", "register file list entries", err)
		}
		return nil
	}
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

// newLogHandler always writes JSON lines to stdout; when cfg.LokiEndpoint
// is set it also fans each record out to Loki under the "ingester" source
// label.
func newLogHandler(cfg *config.Config, service string) slog.Handler {
	stdout := slog.NewJSONHandler(os.Stdout, nil)
	if cfg.LokiEndpoint == "" {
		return stdout
	}
	client := loki.New(cfg.LokiEndpoint, map[string]string{"service": service})
	return loki.NewFanout(stdout, loki.NewHandler(client, service))
}
