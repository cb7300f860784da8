package filelist

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/openobserve/openobserve-sub015/internal/oerrors"
)

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

// SQLStore implements Store on top of database/sql, shared between
// the Postgres (shared/cluster) and SQLite (local/node, and the
// always-local mirror cache) backends. Query text only differs in
// placeholder syntax and DDL id-generation, both isolated in this
// file.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// NewPostgres opens a shared catalog store via pgx's database/sql
// driver, registered under the "pgx" driver name.
func NewPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "pg_open", "open postgres connection", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "pg_ping", "ping postgres", err)
	}
	return &SQLStore{db: db, dialect: dialectPostgres}, nil
}

// NewSQLite opens a local catalog store (or the LOCAL mirror cache)
// via modernc.org/sqlite, a pure-Go driver requiring no cgo toolchain.
func NewSQLite(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "sqlite_open", "open sqlite connection", err)
	}
	// modernc.org/sqlite serializes writes internally and an in-memory
	// database is per-connection; pin the pool to one connection so
	// every query sees the same database and write contention is
	// resolved at the Go level rather than returned as SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "sqlite_ping", "ping sqlite", err)
	}
	return &SQLStore{db: db, dialect: dialectSQLite}, nil
}

// ph renders the n-th (1-based) bind placeholder for this dialect.
func (s *SQLStore) ph(n int) string {
	if s.dialect == dialectSQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

func (s *SQLStore) phList(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = s.ph(i + 1)
	}
	return strings.Join(parts, ", ")
}

func (s *SQLStore) CreateTables(ctx context.Context) error {
	var idType string
	if s.dialect == dialectSQLite {
		idType = "INTEGER PRIMARY KEY AUTOINCREMENT"
	} else {
		idType = "BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY"
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS file_list (
			id %s,
			account TEXT NOT NULL,
			org TEXT NOT NULL,
			stream TEXT NOT NULL,
			date TEXT NOT NULL,
			file TEXT NOT NULL,
			deleted BOOLEAN NOT NULL DEFAULT FALSE,
			min_ts BIGINT NOT NULL,
			max_ts BIGINT NOT NULL,
			records BIGINT NOT NULL,
			original_size BIGINT NOT NULL,
			compressed_size BIGINT NOT NULL,
			index_size BIGINT NOT NULL DEFAULT 0,
			flattened BOOLEAN NOT NULL DEFAULT FALSE,
			UNIQUE(stream, file)
		)`, idType),
		`CREATE TABLE IF NOT EXISTS file_list_deleted (
			file TEXT NOT NULL,
			stream TEXT NOT NULL,
			date TEXT NOT NULL,
			flags BIGINT NOT NULL DEFAULT 0,
			org TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS file_list_history (
			account TEXT NOT NULL,
			org TEXT NOT NULL,
			stream TEXT NOT NULL,
			date TEXT NOT NULL,
			file TEXT NOT NULL,
			deleted BOOLEAN NOT NULL DEFAULT FALSE,
			min_ts BIGINT NOT NULL,
			max_ts BIGINT NOT NULL,
			records BIGINT NOT NULL,
			original_size BIGINT NOT NULL,
			compressed_size BIGINT NOT NULL,
			index_size BIGINT NOT NULL DEFAULT 0,
			flattened BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS stream_stats (
			org TEXT NOT NULL,
			stream TEXT NOT NULL,
			file_num BIGINT NOT NULL DEFAULT 0,
			min_ts BIGINT NOT NULL DEFAULT 0,
			max_ts BIGINT NOT NULL DEFAULT 0,
			records BIGINT NOT NULL DEFAULT 0,
			original_size BIGINT NOT NULL DEFAULT 0,
			compressed_size BIGINT NOT NULL DEFAULT 0,
			index_size BIGINT NOT NULL DEFAULT 0,
			UNIQUE(org, stream)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS file_list_jobs (
			id %s,
			stream TEXT NOT NULL,
			offsets BIGINT NOT NULL DEFAULT 0,
			node TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			updated_at BIGINT NOT NULL DEFAULT 0,
			dumped BOOLEAN NOT NULL DEFAULT FALSE
		)`, idType),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return oerrors.Wrap(oerrors.Storage, "create_table", "create catalog table", err)
		}
	}
	return nil
}

func (s *SQLStore) Add(ctx context.Context, fk FileKey) error {
	return s.BatchAdd(ctx, []FileKey{fk})
}

func (s *SQLStore) BatchAdd(ctx context.Context, fks []FileKey) error {
	if len(fks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return oerrors.Wrap(oerrors.Storage, "begin_tx", "begin batch add transaction", err)
	}
	defer tx.Rollback()

	conflictClause := "ON CONFLICT (stream, file) DO UPDATE SET min_ts=EXCLUDED.min_ts, max_ts=EXCLUDED.max_ts, records=EXCLUDED.records, original_size=EXCLUDED.original_size, compressed_size=EXCLUDED.compressed_size, index_size=EXCLUDED.index_size, flattened=EXCLUDED.flattened, deleted=EXCLUDED.deleted"
	q := fmt.Sprintf(`INSERT INTO file_list
		(account, org, stream, date, file, deleted, min_ts, max_ts, records, original_size, compressed_size, index_size, flattened)
		VALUES (%s) %s`, s.phList(13), conflictClause)
	for _, fk := range fks {
		if _, err := tx.ExecContext(ctx, q,
			fk.Account, fk.Org, fk.Stream, fk.Date, fk.File, fk.Deleted,
			fk.Meta.MinTS, fk.Meta.MaxTS, fk.Meta.Records, fk.Meta.OriginalSize,
			fk.Meta.CompressedSize, fk.Meta.IndexSize, fk.Meta.Flattened,
		); err != nil {
			return oerrors.Wrap(oerrors.Storage, "batch_add", "insert file_list row", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return oerrors.Wrap(oerrors.Storage, "commit", "commit batch add", err)
	}
	return nil
}

func (s *SQLStore) BatchAddDeleted(ctx context.Context, org string, createdAt int64, entries []DeletedEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return oerrors.Wrap(oerrors.Storage, "begin_tx", "begin batch add deleted transaction", err)
	}
	defer tx.Rollback()
	q := fmt.Sprintf(`INSERT INTO file_list_deleted (file, stream, date, flags, org, created_at) VALUES (%s)`, s.phList(6))
	for _, e := range entries {
		ts := e.CreatedAt
		if ts == 0 {
			ts = createdAt
		}
		if _, err := tx.ExecContext(ctx, q, e.File, e.Stream, e.Date, e.Flags, org, ts); err != nil {
			return oerrors.Wrap(oerrors.Storage, "batch_add_deleted", "insert tombstone", err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) Query(ctx context.Context, org string, streamType StreamType, stream string, tr *TimeRange, flattened *bool) ([]FileRow, error) {
	if tr != nil {
		if err := tr.validate(); err != nil {
			return nil, err
		}
	}
	where := []string{fmt.Sprintf("org = %s", s.ph(1)), fmt.Sprintf("stream = %s", s.ph(2))}
	args := []any{org, streamKey(streamType, stream)}
	n := 2
	if tr != nil {
		n++
		where = append(where, fmt.Sprintf("max_ts >= %s", s.ph(n)))
		args = append(args, tr.Start)
		n++
		where = append(where, fmt.Sprintf("min_ts < %s", s.ph(n)))
		args = append(args, tr.End)
	}
	if flattened != nil {
		n++
		where = append(where, fmt.Sprintf("flattened = %s", s.ph(n)))
		args = append(args, *flattened)
	}
	q := fmt.Sprintf(`SELECT id, account, org, stream, date, file, deleted, min_ts, max_ts, records, original_size, compressed_size, index_size, flattened
		FROM file_list WHERE %s ORDER BY max_ts DESC, id DESC`, strings.Join(where, " AND "))
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "query", "query file_list", err)
	}
	defer rows.Close()
	var out []FileRow
	for rows.Next() {
		var r FileRow
		if err := rows.Scan(&r.ID, &r.Account, &r.Org, &r.Stream, &r.Date, &r.File, &r.Deleted,
			&r.Meta.MinTS, &r.Meta.MaxTS, &r.Meta.Records, &r.Meta.OriginalSize, &r.Meta.CompressedSize, &r.Meta.IndexSize, &r.Meta.Flattened); err != nil {
			return nil, oerrors.Wrap(oerrors.Storage, "scan", "scan file_list row", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) QueryIDs(ctx context.Context, org string, streamType StreamType, stream string, tr *TimeRange) ([]FileID, error) {
	rows, err := s.Query(ctx, org, streamType, stream, tr, nil)
	if err != nil {
		return nil, err
	}
	out := make([]FileID, len(rows))
	for i, r := range rows {
		out[i] = FileID{ID: r.ID, Records: r.Meta.Records, Size: r.Meta.OriginalSize, Deleted: r.Deleted}
	}
	return out, nil
}

func streamKey(streamType StreamType, stream string) string {
	return string(streamType) + "/" + stream
}

func (s *SQLStore) Stats(ctx context.Context, org string, streamType *StreamType, stream *string) ([]StreamStats, error) {
	return s.GetStreamStats(ctx, org, streamType, stream)
}

func (s *SQLStore) GetStreamStats(ctx context.Context, org string, streamType *StreamType, stream *string) ([]StreamStats, error) {
	where := []string{fmt.Sprintf("org = %s", s.ph(1))}
	args := []any{org}
	n := 1
	if stream != nil {
		n++
		key := *stream
		if streamType != nil {
			key = streamKey(*streamType, *stream)
		}
		where = append(where, fmt.Sprintf("stream = %s", s.ph(n)))
		args = append(args, key)
	}
	q := fmt.Sprintf(`SELECT org, stream, file_num, min_ts, max_ts, records, original_size, compressed_size, index_size
		FROM stream_stats WHERE %s ORDER BY stream`, strings.Join(where, " AND "))
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "stats", "query stream_stats", err)
	}
	defer rows.Close()
	var out []StreamStats
	for rows.Next() {
		var st StreamStats
		if err := rows.Scan(&st.Org, &st.Stream, &st.FileNum, &st.MinTS, &st.MaxTS, &st.Records, &st.OriginalSize, &st.CompressedSize, &st.IndexSize); err != nil {
			return nil, oerrors.Wrap(oerrors.Storage, "scan", "scan stream_stats row", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *SQLStore) SetStreamStats(ctx context.Context, org string, streams []StreamStats, pkRange *[2]int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return oerrors.Wrap(oerrors.Storage, "begin_tx", "begin set_stream_stats transaction", err)
	}
	defer tx.Rollback()
	q := fmt.Sprintf(`INSERT INTO stream_stats (org, stream, file_num, min_ts, max_ts, records, original_size, compressed_size, index_size)
		VALUES (%s)
		ON CONFLICT (org, stream) DO UPDATE SET
			file_num = stream_stats.file_num + EXCLUDED.file_num,
			min_ts = MIN(stream_stats.min_ts, EXCLUDED.min_ts),
			max_ts = MAX(stream_stats.max_ts, EXCLUDED.max_ts),
			records = stream_stats.records + EXCLUDED.records,
			original_size = stream_stats.original_size + EXCLUDED.original_size,
			compressed_size = stream_stats.compressed_size + EXCLUDED.compressed_size,
			index_size = stream_stats.index_size + EXCLUDED.index_size`, s.phList(9))
	for _, st := range streams {
		if _, err := tx.ExecContext(ctx, q, org, st.Stream, st.FileNum, st.MinTS, st.MaxTS, st.Records, st.OriginalSize, st.CompressedSize, st.IndexSize); err != nil {
			return oerrors.Wrap(oerrors.Storage, "set_stream_stats", "upsert stream_stats row", err)
		}
	}
	_ = pkRange // bounds are enforced by the caller selecting which rows fed this aggregate
	return tx.Commit()
}

func (s *SQLStore) AddJob(ctx context.Context, org string, streamType StreamType, stream string, offset int64) (int64, error) {
	key := streamKey(streamType, stream)
	q := fmt.Sprintf(`INSERT INTO file_list_jobs (stream, offsets, node, status, updated_at) VALUES (%s, %s, '', 'pending', 0)`, s.ph(1), s.ph(2))
	res, err := s.db.ExecContext(ctx, q, key, offset)
	if err != nil {
		return 0, oerrors.Wrap(oerrors.Storage, "add_job", "insert file_list_jobs row", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, oerrors.Wrap(oerrors.Storage, "add_job", "read inserted job id", err)
	}
	return id, nil
}

func (s *SQLStore) GetPendingJobs(ctx context.Context, node string, limit int64) ([]Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "begin_tx", "begin lease transaction", err)
	}
	defer tx.Rollback()

	q := fmt.Sprintf(`SELECT id, stream, offsets, status, updated_at, dumped FROM file_list_jobs WHERE status = 'pending' ORDER BY id LIMIT %s`, s.ph(1))
	rows, err := tx.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "get_pending_jobs", "select pending jobs", err)
	}
	var ids []int64
	var jobs []Job
	for rows.Next() {
		var j Job
		var offsets int64
		if err := rows.Scan(&j.ID, &j.Stream, &offsets, &j.Status, &j.UpdatedAt, &j.Dumped); err != nil {
			rows.Close()
			return nil, oerrors.Wrap(oerrors.Storage, "scan", "scan file_list_jobs row", err)
		}
		j.Offsets = fmt.Sprintf("%d", offsets)
		j.Node = node
		j.Status = JobRunning
		ids = append(ids, j.ID)
		jobs = append(jobs, j)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		upd := fmt.Sprintf(`UPDATE file_list_jobs SET status='running', node=%s WHERE id=%s`, s.ph(1), s.ph(2))
		if _, err := tx.ExecContext(ctx, upd, node, id); err != nil {
			return nil, oerrors.Wrap(oerrors.Storage, "lease", "lease file_list_jobs row", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "commit", "commit lease transaction", err)
	}
	return jobs, nil
}

func (s *SQLStore) CheckRunningJobs(ctx context.Context, beforeDate int64) error {
	q := fmt.Sprintf(`UPDATE file_list_jobs SET status='pending', node='' WHERE status='running' AND updated_at < %s`, s.ph(1))
	if _, err := s.db.ExecContext(ctx, q, beforeDate); err != nil {
		return oerrors.Wrap(oerrors.Storage, "check_running_jobs", "reset timed-out job leases", err)
	}
	return nil
}

func (s *SQLStore) CleanDoneJobs(ctx context.Context, beforeDate int64) error {
	q := fmt.Sprintf(`DELETE FROM file_list_jobs WHERE status='done' AND updated_at < %s`, s.ph(1))
	if _, err := s.db.ExecContext(ctx, q, beforeDate); err != nil {
		return oerrors.Wrap(oerrors.Storage, "clean_done_jobs", "delete completed jobs", err)
	}
	return nil
}

func (s *SQLStore) GetMaxPKValue(ctx context.Context) (int64, error) {
	var v sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM file_list`).Scan(&v); err != nil {
		return 0, oerrors.Wrap(oerrors.Storage, "get_max_pk", "read max file_list id", err)
	}
	return v.Int64, nil
}

func (s *SQLStore) GetMinPKValue(ctx context.Context) (int64, error) {
	var v sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MIN(id) FROM file_list`).Scan(&v); err != nil {
		return 0, oerrors.Wrap(oerrors.Storage, "get_min_pk", "read min file_list id", err)
	}
	return v.Int64, nil
}

// CleanByMinPKValue garbage-collects the LOCAL mirror cache: nothing
// with id < val is relevant once the primary catalog has moved past
// it. Intended to run on a periodic sweep.
func (s *SQLStore) CleanByMinPKValue(ctx context.Context, val int64) error {
	q := fmt.Sprintf(`DELETE FROM file_list WHERE id < %s`, s.ph(1))
	if _, err := s.db.ExecContext(ctx, q, val); err != nil {
		return oerrors.Wrap(oerrors.Storage, "clean_by_min_pk", "gc local mirror cache", err)
	}
	return nil
}

func (s *SQLStore) Close() error { return s.db.Close() }
