// Package filelist implements the relational segment catalog:
// file_list / file_list_deleted / file_list_history / stream_stats /
// file_list_jobs, behind a Store interface so the shared (Postgres)
// and local (SQLite) backends are interchangeable.
package filelist

import (
	"context"

	"github.com/openobserve/openobserve-sub015/internal/oerrors"
)

// StreamType enumerates the kinds of stream a segment can belong to.
type StreamType string

const (
	StreamLogs       StreamType = "logs"
	StreamMetrics    StreamType = "metrics"
	StreamTraces     StreamType = "traces"
	StreamEnrichment StreamType = "enrichment"
	StreamFileList   StreamType = "file_list"
	StreamMetadata   StreamType = "metadata"
	StreamIndex      StreamType = "index"
)

// FileMeta carries the segment-level statistics file_list rows track.
type FileMeta struct {
	MinTS          int64
	MaxTS          int64
	Records        int64
	OriginalSize   int64
	CompressedSize int64
	IndexSize      int64
	Flattened      bool
}

// FileKey names one segment row to insert/update.
type FileKey struct {
	Account string
	Org     string
	Stream  string
	Date    string
	File    string
	Deleted bool
	Meta    FileMeta
}

// FileRow is a file_list row as returned by Query/QueryByIDs.
type FileRow struct {
	ID      int64
	Account string
	Org     string
	Stream  string
	Date    string
	File    string
	Deleted bool
	Meta    FileMeta
}

// FileID is the compact projection Query_ids returns for planning.
type FileID struct {
	ID      int64
	Records int64
	Size    int64
	Deleted bool
}

// DeletedEntry is a file_list_deleted tombstone row.
type DeletedEntry struct {
	File      string
	Stream    string
	Date      string
	Flags     int64
	CreatedAt int64
}

// StreamStats is the stream_stats snapshot row.
type StreamStats struct {
	Org            string
	Stream         string
	FileNum        int64
	MinTS          int64
	MaxTS          int64
	Records        int64
	OriginalSize   int64
	CompressedSize int64
	IndexSize      int64
}

// JobStatus enumerates file_list_jobs.status transitions.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
)

// Job is a file_list_jobs row: a leased compaction task.
type Job struct {
	ID        int64
	Stream    string
	Offsets   string
	Node      string
	Status    JobStatus
	UpdatedAt int64
	Dumped    bool
}

// StreamKey combines a stream_type and stream_name into the single
// string the file_list table's `stream` column stores and Query's
// lookup matches against. Callers building a FileKey for Add/BatchAdd
// must pre-combine with this, since insertion does not apply the
// combination itself.
func StreamKey(streamType StreamType, stream string) string {
	return streamKey(streamType, stream)
}

// TimeRange is a closed-open [Start, End) microsecond range.
type TimeRange struct {
	Start int64
	End   int64
}

func (r TimeRange) validate() error {
	if r.Start == 0 || r.End == 0 {
		return oerrors.New(oerrors.InvalidInput, "invalid_time_range", "invalid time range")
	}
	if r.Start > r.End {
		return oerrors.New(oerrors.InvalidInput, "invalid_time_range", "invalid time range")
	}
	return nil
}

// Store is the relational segment catalog interface. Every method
// takes an explicit org so a single Store instance serves all
// tenants.
type Store interface {
	Add(ctx context.Context, fk FileKey) error
	BatchAdd(ctx context.Context, fks []FileKey) error
	BatchAddDeleted(ctx context.Context, org string, createdAt int64, entries []DeletedEntry) error

	Query(ctx context.Context, org string, streamType StreamType, stream string, tr *TimeRange, flattened *bool) ([]FileRow, error)
	QueryIDs(ctx context.Context, org string, streamType StreamType, stream string, tr *TimeRange) ([]FileID, error)

	Stats(ctx context.Context, org string, streamType *StreamType, stream *string) ([]StreamStats, error)
	GetStreamStats(ctx context.Context, org string, streamType *StreamType, stream *string) ([]StreamStats, error)
	SetStreamStats(ctx context.Context, org string, streams []StreamStats, pkRange *[2]int64) error

	AddJob(ctx context.Context, org string, streamType StreamType, stream string, offset int64) (int64, error)
	GetPendingJobs(ctx context.Context, node string, limit int64) ([]Job, error)
	CheckRunningJobs(ctx context.Context, beforeDate int64) error
	CleanDoneJobs(ctx context.Context, beforeDate int64) error

	GetMaxPKValue(ctx context.Context) (int64, error)
	GetMinPKValue(ctx context.Context) (int64, error)
	CleanByMinPKValue(ctx context.Context, val int64) error

	CreateTables(ctx context.Context) error
}
