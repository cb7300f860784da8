package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/openobserve/openobserve-sub015/internal/oerrors"
	"github.com/openobserve/openobserve-sub015/internal/timeutil"
)

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

// SQLStore implements Store over database/sql, the same
// dialect-shared pattern internal/filelist.SQLStore uses, against a
// dedicated scheduler_triggers table.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

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

func NewSQLite(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "sqlite_open", "open sqlite connection", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "sqlite_ping", "ping sqlite", err)
	}
	return &SQLStore{db: db, dialect: dialectSQLite}, nil
}

func (s *SQLStore) ph(n int) string {
	if s.dialect == dialectSQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

func (s *SQLStore) CreateTable(ctx context.Context) error {
	var idType string
	if s.dialect == dialectSQLite {
		idType = "INTEGER PRIMARY KEY AUTOINCREMENT"
	} else {
		idType = "BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY"
	}
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS scheduler_triggers (
		id %s,
		org TEXT NOT NULL,
		module TEXT NOT NULL,
		module_key TEXT NOT NULL,
		is_realtime BOOLEAN NOT NULL DEFAULT FALSE,
		is_silenced BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT 'waiting',
		start_time BIGINT NOT NULL DEFAULT 0,
		end_time BIGINT NOT NULL DEFAULT 0,
		retries INTEGER NOT NULL DEFAULT 0,
		next_run_at BIGINT NOT NULL DEFAULT 0,
		data TEXT NOT NULL DEFAULT '',
		UNIQUE(org, module, module_key)
	)`, idType)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return oerrors.Wrap(oerrors.Storage, "create_table", "create scheduler_triggers table", err)
	}
	idxQ := `CREATE INDEX IF NOT EXISTS scheduler_triggers_module_key ON scheduler_triggers (module_key)`
	if _, err := s.db.ExecContext(ctx, idxQ); err != nil {
		return oerrors.Wrap(oerrors.Storage, "create_index", "create module_key index", err)
	}
	idxQ2 := `CREATE INDEX IF NOT EXISTS scheduler_triggers_org_module_key ON scheduler_triggers (org, module_key)`
	if _, err := s.db.ExecContext(ctx, idxQ2); err != nil {
		return oerrors.Wrap(oerrors.Storage, "create_index", "create org_module_key index", err)
	}
	return nil
}

func (s *SQLStore) Push(ctx context.Context, t Trigger) error {
	q := fmt.Sprintf(`INSERT INTO scheduler_triggers
		(org, module, module_key, is_realtime, is_silenced, status, start_time, end_time, retries, next_run_at, data)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		ON CONFLICT (org, module, module_key) DO NOTHING`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8), s.ph(9), s.ph(10), s.ph(11))
	status := t.Status
	if status == "" {
		status = StatusWaiting
	}
	_, err := s.db.ExecContext(ctx, q, t.Org, t.Module, t.ModuleKey, t.IsRealtime, t.IsSilenced,
		status, t.StartTime, t.EndTime, t.Retries, t.NextRunAt, t.Data)
	if err != nil {
		return oerrors.Wrap(oerrors.Storage, "push", "insert trigger", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, org string, module Module, key string) error {
	q := fmt.Sprintf(`DELETE FROM scheduler_triggers WHERE org=%s AND module=%s AND module_key=%s`, s.ph(1), s.ph(2), s.ph(3))
	if _, err := s.db.ExecContext(ctx, q, org, module, key); err != nil {
		return oerrors.Wrap(oerrors.Storage, "delete", "delete trigger", err)
	}
	return nil
}

func (s *SQLStore) UpdateStatus(ctx context.Context, org string, module Module, key string, status Status, retries int, data *string) error {
	if data != nil {
		q := fmt.Sprintf(`UPDATE scheduler_triggers SET status=%s, retries=%s, data=%s WHERE org=%s AND module=%s AND module_key=%s`,
			s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6))
		_, err := s.db.ExecContext(ctx, q, status, retries, *data, org, module, key)
		if err != nil {
			return oerrors.Wrap(oerrors.Storage, "update_status", "update trigger status", err)
		}
		return nil
	}
	q := fmt.Sprintf(`UPDATE scheduler_triggers SET status=%s, retries=%s WHERE org=%s AND module=%s AND module_key=%s`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5))
	_, err := s.db.ExecContext(ctx, q, status, retries, org, module, key)
	if err != nil {
		return oerrors.Wrap(oerrors.Storage, "update_status", "update trigger status", err)
	}
	return nil
}

func (s *SQLStore) UpdateTrigger(ctx context.Context, t Trigger, cloneFields bool) error {
	if cloneFields {
		q := fmt.Sprintf(`UPDATE scheduler_triggers SET is_realtime=%s, is_silenced=%s, status=%s, retries=%s, next_run_at=%s, data=%s, start_time=%s, end_time=%s
			WHERE org=%s AND module=%s AND module_key=%s`,
			s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8), s.ph(9), s.ph(10), s.ph(11))
		_, err := s.db.ExecContext(ctx, q, t.IsRealtime, t.IsSilenced, t.Status, t.Retries, t.NextRunAt, t.Data,
			t.StartTime, t.EndTime, t.Org, t.Module, t.ModuleKey)
		if err != nil {
			return oerrors.Wrap(oerrors.Storage, "update_trigger", "update trigger (clone fields)", err)
		}
		return nil
	}
	q := fmt.Sprintf(`UPDATE scheduler_triggers SET is_realtime=%s, is_silenced=%s, status=%s, retries=%s, next_run_at=%s, data=%s
		WHERE org=%s AND module=%s AND module_key=%s`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8), s.ph(9))
	_, err := s.db.ExecContext(ctx, q, t.IsRealtime, t.IsSilenced, t.Status, t.Retries, t.NextRunAt, t.Data, t.Org, t.Module, t.ModuleKey)
	if err != nil {
		return oerrors.Wrap(oerrors.Storage, "update_trigger", "update trigger", err)
	}
	return nil
}

func (s *SQLStore) KeepAlive(ctx context.Context, ids []int64, alertTimeout, reportTimeout time.Duration) error {
	if len(ids) == 0 {
		return nil
	}
	now := timeutil.NowMicros()
	for _, id := range ids {
		var row Trigger
		q := fmt.Sprintf(`SELECT module FROM scheduler_triggers WHERE id=%s`, s.ph(1))
		if err := s.db.QueryRowContext(ctx, q, id).Scan(&row.Module); err != nil {
			return oerrors.Wrap(oerrors.Storage, "keep_alive", "read trigger module", err)
		}
		timeout := ModuleTimeout(row.Module, alertTimeout, reportTimeout)
		endTime := now + timeout.Microseconds()
		upd := fmt.Sprintf(`UPDATE scheduler_triggers SET end_time=%s WHERE id=%s`, s.ph(1), s.ph(2))
		if _, err := s.db.ExecContext(ctx, upd, endTime, id); err != nil {
			return oerrors.Wrap(oerrors.Storage, "keep_alive", "extend trigger lease", err)
		}
	}
	return nil
}

func (s *SQLStore) Pull(ctx context.Context, concurrency int, alertTimeout, reportTimeout time.Duration, now int64) ([]Trigger, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "begin_tx", "begin pull transaction", err)
	}
	defer tx.Rollback()

	q := fmt.Sprintf(`SELECT id, org, module, module_key, is_realtime, is_silenced, status, start_time, end_time, retries, next_run_at, data
		FROM scheduler_triggers
		WHERE status = 'waiting' AND next_run_at <= %s AND NOT (is_realtime = %s AND is_silenced = %s)
		ORDER BY next_run_at ASC LIMIT %s`, s.ph(1), s.boolLit(true), s.boolLit(false), s.ph(2))
	rows, err := tx.QueryContext(ctx, q, now, concurrency)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "pull", "select waiting triggers", err)
	}
	var out []Trigger
	for rows.Next() {
		var t Trigger
		if err := rows.Scan(&t.ID, &t.Org, &t.Module, &t.ModuleKey, &t.IsRealtime, &t.IsSilenced, &t.Status,
			&t.StartTime, &t.EndTime, &t.Retries, &t.NextRunAt, &t.Data); err != nil {
			rows.Close()
			return nil, oerrors.Wrap(oerrors.Storage, "scan", "scan trigger row", err)
		}
		out = append(out, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		timeout := ModuleTimeout(out[i].Module, alertTimeout, reportTimeout)
		out[i].Status = StatusProcessing
		out[i].StartTime = now
		out[i].EndTime = now + timeout.Microseconds()
		upd := fmt.Sprintf(`UPDATE scheduler_triggers SET status='processing', start_time=%s, end_time=%s WHERE id=%s`, s.ph(1), s.ph(2), s.ph(3))
		if _, err := tx.ExecContext(ctx, upd, out[i].StartTime, out[i].EndTime, out[i].ID); err != nil {
			return nil, oerrors.Wrap(oerrors.Storage, "pull", "lease trigger row", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "commit", "commit pull transaction", err)
	}
	for _, t := range out {
		triggersPulled.WithLabelValues(string(t.Module)).Inc()
	}
	return out, nil
}

func (s *SQLStore) boolLit(b bool) string {
	if s.dialect == dialectSQLite {
		if b {
			return "1"
		}
		return "0"
	}
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func (s *SQLStore) WatchTimeout(ctx context.Context, now int64) error {
	q := fmt.Sprintf(`UPDATE scheduler_triggers SET status='waiting', retries=retries+1 WHERE status='processing' AND end_time <= %s`, s.ph(1))
	res, err := s.db.ExecContext(ctx, q, now)
	if err != nil {
		return oerrors.Wrap(oerrors.Storage, "watch_timeout", "reset timed-out triggers", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		leasesReclaimed.Add(float64(n))
	}
	return nil
}

func (s *SQLStore) CleanComplete(ctx context.Context, maxRetries int) error {
	q := fmt.Sprintf(`DELETE FROM scheduler_triggers WHERE (status='completed' OR retries >= %s) AND module <> 'alert'`, s.ph(1))
	if _, err := s.db.ExecContext(ctx, q, maxRetries); err != nil {
		return oerrors.Wrap(oerrors.Storage, "clean_complete", "delete completed triggers", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, org string, module Module, key string) (Trigger, error) {
	q := fmt.Sprintf(`SELECT id, org, module, module_key, is_realtime, is_silenced, status, start_time, end_time, retries, next_run_at, data
		FROM scheduler_triggers WHERE org=%s AND module=%s AND module_key=%s`, s.ph(1), s.ph(2), s.ph(3))
	var t Trigger
	err := s.db.QueryRowContext(ctx, q, org, module, key).Scan(&t.ID, &t.Org, &t.Module, &t.ModuleKey,
		&t.IsRealtime, &t.IsSilenced, &t.Status, &t.StartTime, &t.EndTime, &t.Retries, &t.NextRunAt, &t.Data)
	if err == sql.ErrNoRows {
		return Trigger{}, ErrNotFound
	}
	if err != nil {
		return Trigger{}, oerrors.Wrap(oerrors.Storage, "get", "read trigger", err)
	}
	return t, nil
}

func (s *SQLStore) List(ctx context.Context) ([]Trigger, error) {
	return s.listWhere(ctx, "1=1")
}

func (s *SQLStore) ListByOrg(ctx context.Context, org string) ([]Trigger, error) {
	q := fmt.Sprintf(`SELECT id, org, module, module_key, is_realtime, is_silenced, status, start_time, end_time, retries, next_run_at, data
		FROM scheduler_triggers WHERE org=%s ORDER BY id`, s.ph(1))
	rows, err := s.db.QueryContext(ctx, q, org)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "list_by_org", "list triggers by org", err)
	}
	return scanTriggers(rows)
}

func (s *SQLStore) listWhere(ctx context.Context, where string) ([]Trigger, error) {
	q := fmt.Sprintf(`SELECT id, org, module, module_key, is_realtime, is_silenced, status, start_time, end_time, retries, next_run_at, data
		FROM scheduler_triggers WHERE %s ORDER BY id`, where)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "list", "list triggers", err)
	}
	return scanTriggers(rows)
}

func scanTriggers(rows *sql.Rows) ([]Trigger, error) {
	defer rows.Close()
	var out []Trigger
	for rows.Next() {
		var t Trigger
		if err := rows.Scan(&t.ID, &t.Org, &t.Module, &t.ModuleKey, &t.IsRealtime, &t.IsSilenced, &t.Status,
			&t.StartTime, &t.EndTime, &t.Retries, &t.NextRunAt, &t.Data); err != nil {
			return nil, oerrors.Wrap(oerrors.Storage, "scan", "scan trigger row", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLStore) Close() error { return s.db.Close() }
