package pipeline

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bytedance/sonic"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/openobserve/openobserve-sub015/internal/oerrors"
)

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

// SQLStore persists pipeline DAGs, following the same dialect-shared
// database/sql pattern as internal/filelist and internal/scheduler.
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
	q := `CREATE TABLE IF NOT EXISTS pipelines (
		id TEXT PRIMARY KEY,
		org TEXT NOT NULL,
		name TEXT NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT FALSE,
		source_kind TEXT NOT NULL,
		stream_org TEXT NOT NULL DEFAULT '',
		stream_name TEXT NOT NULL DEFAULT '',
		stream_type TEXT NOT NULL DEFAULT '',
		dag TEXT NOT NULL
	)`
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return oerrors.Wrap(oerrors.Storage, "create_table", "create pipelines table", err)
	}
	idxQ := `CREATE INDEX IF NOT EXISTS pipelines_org ON pipelines (org)`
	if _, err := s.db.ExecContext(ctx, idxQ); err != nil {
		return oerrors.Wrap(oerrors.Storage, "create_index", "create pipelines org index", err)
	}
	return nil
}

type dag struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

func (s *SQLStore) Put(ctx context.Context, p Pipeline) error {
	d, err := sonic.Marshal(dag{Nodes: p.Nodes, Edges: p.Edges})
	if err != nil {
		return oerrors.Wrap(oerrors.Format, "encode_dag", "encode pipeline dag", err)
	}
	q := fmt.Sprintf(`INSERT INTO pipelines (id, org, name, enabled, source_kind, stream_org, stream_name, stream_type, dag)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s)
		ON CONFLICT (id) DO UPDATE SET org=excluded.org, name=excluded.name, enabled=excluded.enabled,
			source_kind=excluded.source_kind, stream_org=excluded.stream_org, stream_name=excluded.stream_name,
			stream_type=excluded.stream_type, dag=excluded.dag`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8), s.ph(9))
	_, err = s.db.ExecContext(ctx, q, p.ID, p.Org, p.Name, p.Enabled, p.Source,
		p.Stream.Org, p.Stream.StreamName, p.Stream.StreamType, string(d))
	if err != nil {
		return oerrors.Wrap(oerrors.Storage, "put", "upsert pipeline", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	q := fmt.Sprintf(`DELETE FROM pipelines WHERE id=%s`, s.ph(1))
	if _, err := s.db.ExecContext(ctx, q, id); err != nil {
		return oerrors.Wrap(oerrors.Storage, "delete", "delete pipeline", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (Pipeline, error) {
	q := fmt.Sprintf(`SELECT id, org, name, enabled, source_kind, stream_org, stream_name, stream_type, dag
		FROM pipelines WHERE id=%s`, s.ph(1))
	row := s.db.QueryRowContext(ctx, q, id)
	p, err := scanPipeline(row)
	if err == sql.ErrNoRows {
		return Pipeline{}, oerrors.New(oerrors.NotFound, "pipeline_not_found", "pipeline not found")
	}
	return p, err
}

func (s *SQLStore) List(ctx context.Context) ([]Pipeline, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, org, name, enabled, source_kind, stream_org, stream_name, stream_type, dag FROM pipelines ORDER BY id`)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "list", "list pipelines", err)
	}
	return scanPipelines(rows)
}

func (s *SQLStore) ListByOrg(ctx context.Context, org string) ([]Pipeline, error) {
	q := fmt.Sprintf(`SELECT id, org, name, enabled, source_kind, stream_org, stream_name, stream_type, dag
		FROM pipelines WHERE org=%s ORDER BY id`, s.ph(1))
	rows, err := s.db.QueryContext(ctx, q, org)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "list_by_org", "list pipelines by org", err)
	}
	return scanPipelines(rows)
}

func (s *SQLStore) GetWithSameSourceStream(ctx context.Context, p Pipeline) (Pipeline, error) {
	q := fmt.Sprintf(`SELECT id, org, name, enabled, source_kind, stream_org, stream_name, stream_type, dag
		FROM pipelines WHERE source_kind=%s AND stream_org=%s AND stream_name=%s AND stream_type=%s AND enabled=%s LIMIT 1`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5))
	row := s.db.QueryRowContext(ctx, q, SourceRealtime, p.Stream.Org, p.Stream.StreamName, p.Stream.StreamType, true)
	got, err := scanPipeline(row)
	if err == sql.ErrNoRows {
		return Pipeline{}, oerrors.New(oerrors.NotFound, "pipeline_not_found", "no pipeline with the same source stream")
	}
	return got, err
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPipeline(row scannable) (Pipeline, error) {
	var p Pipeline
	var d string
	if err := row.Scan(&p.ID, &p.Org, &p.Name, &p.Enabled, &p.Source, &p.Stream.Org, &p.Stream.StreamName, &p.Stream.StreamType, &d); err != nil {
		if err == sql.ErrNoRows {
			return Pipeline{}, err
		}
		return Pipeline{}, oerrors.Wrap(oerrors.Storage, "scan", "scan pipeline row", err)
	}
	var g dag
	if err := sonic.Unmarshal([]byte(d), &g); err != nil {
		return Pipeline{}, oerrors.Wrap(oerrors.Format, "decode_dag", "decode pipeline dag", err)
	}
	p.Nodes = g.Nodes
	p.Edges = g.Edges
	return p, nil
}

func scanPipelines(rows *sql.Rows) ([]Pipeline, error) {
	defer rows.Close()
	var out []Pipeline
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) Close() error { return s.db.Close() }
