// Package config defines the recognized configuration options for the
// ingest/catalog/scheduler/search engine, loaded from the environment
// with the same getenv/getenvInt helper style used elsewhere in this
// codebase. Loading arbitrary layered config files is out of scope;
// this package only owns the keys the core engine itself consults.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every recognized option plus the connection settings
// the domain stack (Postgres, Redis, S3, OTLP) needs to be reachable.
type Config struct {
	// Ingestion
	MemTableBucketNum        int
	MemTableMaxSize          int64
	MaxFileSizeOnDisk        int64
	MaxFileSizeInMemory      int64
	MaxFileRetentionTime     time.Duration
	WalWriteQueueEnabled     bool
	WalWriteQueueSize        int
	WalWriteQueueFullReject  bool
	WalWriteBufferSize       int
	FeaturePerThreadLock     bool
	IngestAllowedUptoHours   int

	// Scheduler
	AlertScheduleConcurrency int
	AlertScheduleTimeout     time.Duration
	ReportScheduleTimeout    time.Duration
	SchedulerMaxRetries      int
	SchedulerMetricsAddr     string

	// Stream naming
	FormatStreamNameToLower bool

	// Search
	ResultCacheEnabled   bool
	ColumnTimestamp      string
	SearchLeafAddr       string
	ResultCacheTTL       time.Duration
	DefaultOrg           string

	// Pipeline
	MMDBDisableDownload bool

	// Cross-service wiring
	SearchCoordinatorURL string
	ReportRenderURL      string

	// Domain-stack connection settings, needed to reach the backends
	// the rest of this config assumes exist.
	PostgresDSN   string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string
	S3Bucket      string
	S3UseSSL      bool
	OTLPEndpoint  string
	DataWALDir    string

	// Logging
	LokiEndpoint string
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return d
}

func getenvInt64(k string, d int64) int64 {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return d
}

func getenvBool(k string, d bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return d
}

func getenvDuration(k string, d time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return d
}

// Load reads Config from the process environment, falling back to
// dev-friendly localhost defaults.
func Load() *Config {
	return &Config{
		MemTableBucketNum:       getenvInt("MEM_TABLE_BUCKET_NUM", 128),
		MemTableMaxSize:         getenvInt64("MEM_TABLE_MAX_SIZE", 1<<30),
		MaxFileSizeOnDisk:       getenvInt64("MAX_FILE_SIZE_ON_DISK", 256<<20),
		MaxFileSizeInMemory:     getenvInt64("MAX_FILE_SIZE_IN_MEMORY", 128<<20),
		MaxFileRetentionTime:    getenvDuration("MAX_FILE_RETENTION_TIME", 10*time.Minute),
		WalWriteQueueEnabled:    getenvBool("WAL_WRITE_QUEUE_ENABLED", true),
		WalWriteQueueSize:       getenvInt("WAL_WRITE_QUEUE_SIZE", 4096),
		WalWriteQueueFullReject: getenvBool("WAL_WRITE_QUEUE_FULL_REJECT", false),
		WalWriteBufferSize:      getenvInt("WAL_WRITE_BUFFER_SIZE", 64*1024),
		FeaturePerThreadLock:    getenvBool("FEATURE_PER_THREAD_LOCK", false),
		IngestAllowedUptoHours:  getenvInt("INGEST_ALLOWED_UPTO_HOURS", 5),

		AlertScheduleConcurrency: getenvInt("ALERT_SCHEDULE_CONCURRENCY", 5),
		AlertScheduleTimeout:     getenvDuration("ALERT_SCHEDULE_TIMEOUT", 10*time.Minute),
		ReportScheduleTimeout:    getenvDuration("REPORT_SCHEDULE_TIMEOUT", 15*time.Minute),
		SchedulerMaxRetries:      getenvInt("SCHEDULER_MAX_RETRIES", 3),
		SchedulerMetricsAddr:     getenv("SCHEDULER_METRICS_ADDR", ":9110"),

		FormatStreamNameToLower: getenvBool("FORMAT_STREAM_NAME_TO_LOWER", true),

		ResultCacheEnabled: getenvBool("RESULT_CACHE_ENABLED", true),
		ColumnTimestamp:    getenv("COLUMN_TIMESTAMP", "_timestamp"),
		SearchLeafAddr:     getenv("SEARCH_LEAF_ADDR", "127.0.0.1:5093"),
		ResultCacheTTL:     getenvDuration("RESULT_CACHE_TTL", 10*time.Minute),
		DefaultOrg:         getenv("DEFAULT_ORG", "default"),

		MMDBDisableDownload: getenvBool("MMDB_DISABLE_DOWNLOAD", false),

		SearchCoordinatorURL: getenv("SEARCH_COORDINATOR_URL", "http://127.0.0.1:5091"),
		ReportRenderURL:      getenv("REPORT_RENDER_URL", "http://127.0.0.1:5092/render"),

		PostgresDSN:   os.Getenv("PG_DSN"),
		SQLitePath:    getenv("SQLITE_PATH", "./data/meta.db"),
		RedisAddr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		S3Endpoint:    getenv("S3_ENDPOINT", "127.0.0.1:9000"),
		S3AccessKey:   os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:   os.Getenv("S3_SECRET_KEY"),
		S3Bucket:      getenv("S3_BUCKET", "o2-segments"),
		S3UseSSL:      getenvBool("S3_USE_SSL", false),
		OTLPEndpoint:  getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
		DataWALDir:    getenv("DATA_WAL_DIR", "./data/wal"),

		LokiEndpoint: os.Getenv("LOKI_ENDPOINT"),
	}
}
