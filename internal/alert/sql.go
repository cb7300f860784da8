package alert

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/openobserve/openobserve-sub015/internal/oerrors"
	"github.com/openobserve/openobserve-sub015/internal/value"
)

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

// sqlCore is the shared database/sql handle + dialect pair underlying
// every store adapter below, mirroring internal/scheduler.SQLStore's
// dialect-shared pattern. Alert.Conditions/Agg/Schema, Report.Frequency,
// and Incident.StableDimensions are stored as JSON blobs rather than
// normalized columns, since none of them are queried by field — only
// fetched whole by (org, name) or (org, key).
type sqlCore struct {
	db      *sql.DB
	dialect dialect
}

// SQLStore bundles the three store adapters an alert-processing
// scheduler needs, all sharing one connection: AlertStore satisfies
// alert.Store, ReportStore satisfies alert.ReportStore, IncidentStore
// satisfies alert.IncidentStore. A single Go type cannot implement all
// three directly since alert.Store.Get and alert.ReportStore.Get have
// different signatures.
type SQLStore struct {
	core *sqlCore

	Alerts    *AlertStore
	Reports   *ReportStore
	Incidents *IncidentStore
}

func newSQLStore(db *sql.DB, d dialect) *SQLStore {
	core := &sqlCore{db: db, dialect: d}
	return &SQLStore{
		core:      core,
		Alerts:    &AlertStore{core},
		Reports:   &ReportStore{core},
		Incidents: &IncidentStore{core},
	}
}

func NewPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "pg_open", "open postgres connection", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "pg_ping", "ping postgres", err)
	}
	return newSQLStore(db, dialectPostgres), nil
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
	return newSQLStore(db, dialectSQLite), nil
}

func (c *sqlCore) ph(n int) string {
	if c.dialect == dialectSQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// CreateTable creates all three tables this store's adapters use.
func (s *SQLStore) CreateTable(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			org TEXT NOT NULL,
			stream_type TEXT NOT NULL,
			stream_name TEXT NOT NULL,
			name TEXT NOT NULL,
			definition TEXT NOT NULL,
			PRIMARY KEY (org, stream_type, stream_name, name)
		)`,
		`CREATE TABLE IF NOT EXISTS alert_reports (
			org TEXT NOT NULL,
			name TEXT NOT NULL,
			definition TEXT NOT NULL,
			PRIMARY KEY (org, name)
		)`,
		`CREATE TABLE IF NOT EXISTS alert_incidents (
			org TEXT NOT NULL,
			correlation_key TEXT NOT NULL,
			incident TEXT NOT NULL,
			status TEXT NOT NULL,
			PRIMARY KEY (org, correlation_key)
		)`,
	}
	for _, q := range stmts {
		if _, err := s.core.db.ExecContext(ctx, q); err != nil {
			return oerrors.Wrap(oerrors.Storage, "create_table", "create alert tables", err)
		}
	}
	return nil
}

func (s *SQLStore) Close() error { return s.core.db.Close() }

// alertRow mirrors Alert for JSON storage; Alert itself is kept free
// of struct tags since it is also the in-memory evaluation shape.
type alertRow struct {
	ID              string                `json:"id"`
	Enabled         bool                  `json:"enabled"`
	Mode            QueryMode             `json:"mode"`
	SQL             string                `json:"sql"`
	Conditions      ConditionGroup        `json:"conditions"`
	Agg             *Aggregation          `json:"agg,omitempty"`
	Schema          map[string]ColumnType `json:"schema,omitempty"`
	Trigger         TriggerCondition      `json:"trigger"`
	StableDimension []string              `json:"stable_dimension,omitempty"`
	Destinations    []string              `json:"destinations,omitempty"`
}

// AlertStore satisfies internal/alert.Store.
type AlertStore struct{ core *sqlCore }

func (s *AlertStore) Get(ctx context.Context, org, streamType, streamName, name string) (Alert, error) {
	q := fmt.Sprintf(`SELECT definition FROM alerts WHERE org=%s AND stream_type=%s AND stream_name=%s AND name=%s`,
		s.core.ph(1), s.core.ph(2), s.core.ph(3), s.core.ph(4))
	var raw string
	if err := s.core.db.QueryRowContext(ctx, q, org, streamType, streamName, name).Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return Alert{}, oerrors.New(oerrors.NotFound, "alert_not_found", "alert not found")
		}
		return Alert{}, oerrors.Wrap(oerrors.Storage, "alert_get", "get alert", err)
	}
	var row alertRow
	if err := value.Unmarshal([]byte(raw), &row); err != nil {
		return Alert{}, oerrors.Wrap(oerrors.Format, "alert_decode", "decode alert definition", err)
	}
	return Alert{
		ID:              row.ID,
		Org:             org,
		StreamName:      streamName,
		StreamType:      streamType,
		Name:            name,
		Enabled:         row.Enabled,
		Mode:            row.Mode,
		SQL:             row.SQL,
		Conditions:      row.Conditions,
		Agg:             row.Agg,
		Schema:          row.Schema,
		Trigger:         row.Trigger,
		StableDimension: row.StableDimension,
		Destinations:    row.Destinations,
	}, nil
}

// Put upserts an alert definition — the write-side counterpart used
// by whatever admin surface creates/edits alerts.
func (s *AlertStore) Put(ctx context.Context, a Alert) error {
	row := alertRow{
		ID: a.ID, Enabled: a.Enabled, Mode: a.Mode, SQL: a.SQL,
		Conditions: a.Conditions, Agg: a.Agg, Schema: a.Schema,
		Trigger: a.Trigger, StableDimension: a.StableDimension, Destinations: a.Destinations,
	}
	data, err := value.Marshal(row)
	if err != nil {
		return oerrors.Wrap(oerrors.Format, "alert_encode", "encode alert definition", err)
	}
	var q string
	if s.core.dialect == dialectSQLite {
		q = `INSERT INTO alerts (org, stream_type, stream_name, name, definition) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (org, stream_type, stream_name, name) DO UPDATE SET definition=excluded.definition`
	} else {
		q = `INSERT INTO alerts (org, stream_type, stream_name, name, definition) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (org, stream_type, stream_name, name) DO UPDATE SET definition=excluded.definition`
	}
	if _, err := s.core.db.ExecContext(ctx, q, a.Org, a.StreamType, a.StreamName, a.Name, string(data)); err != nil {
		return oerrors.Wrap(oerrors.Storage, "alert_put", "put alert", err)
	}
	return nil
}

// ReportStore satisfies internal/alert.ReportStore.
type ReportStore struct{ core *sqlCore }

func (s *ReportStore) Get(ctx context.Context, org, name string) (Report, error) {
	q := fmt.Sprintf(`SELECT definition FROM alert_reports WHERE org=%s AND name=%s`, s.core.ph(1), s.core.ph(2))
	var raw string
	if err := s.core.db.QueryRowContext(ctx, q, org, name).Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return Report{}, oerrors.New(oerrors.NotFound, "report_not_found", "report not found")
		}
		return Report{}, oerrors.Wrap(oerrors.Storage, "report_get", "get report", err)
	}
	var r Report
	if err := value.Unmarshal([]byte(raw), &r); err != nil {
		return Report{}, oerrors.Wrap(oerrors.Format, "report_decode", "decode report definition", err)
	}
	r.Org, r.Name = org, name
	return r, nil
}

func (s *ReportStore) Set(ctx context.Context, org string, r Report) error {
	data, err := value.Marshal(r)
	if err != nil {
		return oerrors.Wrap(oerrors.Format, "report_encode", "encode report definition", err)
	}
	var q string
	if s.core.dialect == dialectSQLite {
		q = `INSERT INTO alert_reports (org, name, definition) VALUES (?, ?, ?)
			ON CONFLICT (org, name) DO UPDATE SET definition=excluded.definition`
	} else {
		q = `INSERT INTO alert_reports (org, name, definition) VALUES ($1, $2, $3)
			ON CONFLICT (org, name) DO UPDATE SET definition=excluded.definition`
	}
	if _, err := s.core.db.ExecContext(ctx, q, org, r.Name, string(data)); err != nil {
		return oerrors.Wrap(oerrors.Storage, "report_set", "set report", err)
	}
	return nil
}

// IncidentStore satisfies internal/alert.IncidentStore.
type IncidentStore struct{ core *sqlCore }

func (s *IncidentStore) GetOpenByCorrelationKey(ctx context.Context, org, key string) (Incident, bool, error) {
	q := fmt.Sprintf(`SELECT incident FROM alert_incidents WHERE org=%s AND correlation_key=%s AND status=%s`,
		s.core.ph(1), s.core.ph(2), s.core.ph(3))
	var raw string
	if err := s.core.db.QueryRowContext(ctx, q, org, key, string(IncidentOpen)).Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return Incident{}, false, nil
		}
		return Incident{}, false, oerrors.Wrap(oerrors.Storage, "incident_get", "get open incident", err)
	}
	var inc Incident
	if err := value.Unmarshal([]byte(raw), &inc); err != nil {
		return Incident{}, false, oerrors.Wrap(oerrors.Format, "incident_decode", "decode incident", err)
	}
	return inc, true, nil
}

func (s *IncidentStore) Put(ctx context.Context, incident Incident) error {
	data, err := value.Marshal(incident)
	if err != nil {
		return oerrors.Wrap(oerrors.Format, "incident_encode", "encode incident", err)
	}
	var q string
	if s.core.dialect == dialectSQLite {
		q = `INSERT INTO alert_incidents (org, correlation_key, incident, status) VALUES (?, ?, ?, ?)
			ON CONFLICT (org, correlation_key) DO UPDATE SET incident=excluded.incident, status=excluded.status`
	} else {
		q = `INSERT INTO alert_incidents (org, correlation_key, incident, status) VALUES ($1, $2, $3, $4)
			ON CONFLICT (org, correlation_key) DO UPDATE SET incident=excluded.incident, status=excluded.status`
	}
	if _, err := s.core.db.ExecContext(ctx, q, incident.Org, incident.CorrelationKey, string(data), string(incident.Status)); err != nil {
		return oerrors.Wrap(oerrors.Storage, "incident_put", "put incident", err)
	}
	return nil
}

func (s *IncidentStore) ListOpen(ctx context.Context, org string) ([]Incident, error) {
	q := fmt.Sprintf(`SELECT incident FROM alert_incidents WHERE org=%s AND status=%s`, s.core.ph(1), s.core.ph(2))
	rows, err := s.core.db.QueryContext(ctx, q, org, string(IncidentOpen))
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Storage, "incident_list", "list open incidents", err)
	}
	defer rows.Close()
	var out []Incident
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, oerrors.Wrap(oerrors.Storage, "incident_scan", "scan incident row", err)
		}
		var inc Incident
		if err := value.Unmarshal([]byte(raw), &inc); err != nil {
			return nil, oerrors.Wrap(oerrors.Format, "incident_decode", "decode incident", err)
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}
