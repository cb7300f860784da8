package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/openobserve/openobserve-sub015/internal/alert"
	"github.com/openobserve/openobserve-sub015/internal/config"
	"github.com/openobserve/openobserve-sub015/internal/oerrors"
	"github.com/openobserve/openobserve-sub015/internal/pipeline"
	"github.com/openobserve/openobserve-sub015/internal/scheduler"
	"github.com/openobserve/openobserve-sub015/internal/value"
)

func newSchedulerStore(ctx context.Context, cfg *config.Config) (scheduler.Store, error) {
	if cfg.PostgresDSN != "" {
		return scheduler.NewPostgres(ctx, cfg.PostgresDSN)
	}
	return scheduler.NewSQLite(ctx, cfg.SQLitePath)
}

func newAlertSQLStore(ctx context.Context, cfg *config.Config) (*alert.SQLStore, error) {
	if cfg.PostgresDSN != "" {
		return alert.NewPostgres(ctx, cfg.PostgresDSN)
	}
	return alert.NewSQLite(ctx, cfg.SQLitePath)
}

func newPipelineStore(ctx context.Context, cfg *config.Config) (pipeline.Store, error) {
	if cfg.PostgresDSN != "" {
		return pipeline.NewPostgres(ctx, cfg.PostgresDSN)
	}
	return pipeline.NewSQLite(ctx, cfg.SQLitePath)
}

// httpSearcher issues alert/PromQL queries against the search
// coordinator's HTTP surface (cmd/search-coordinator), matching the
// trigger semantics' "executes via the search coordinator with
// search_type=Alerts" requirement from the scheduler side.
type httpSearcher struct {
	baseURL string
	client  *http.Client
}

func newHTTPSearcher(baseURL string) *httpSearcher {
	return &httpSearcher{baseURL: baseURL, client: &http.Client{Timeout: 30 * time.Second}}
}

type searchRequestBody struct {
	SQL        string `json:"sql"`
	StartTime  int64  `json:"start_time"`
	EndTime    int64  `json:"end_time"`
	SearchType string `json:"search_type"`
}

type searchResponseBody struct {
	Hits  []map[string]any `json:"hits"`
	Error string           `json:"error,omitempty"`
}

func (s *httpSearcher) Run(ctx context.Context, sql string, start, end int64) ([]value.Record, error) {
	body := searchRequestBody{SQL: sql, StartTime: start, EndTime: end, SearchType: "Alerts"}
	data, err := value.Marshal(body)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Format, "encode_request", "encode search request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/_internal/_search", bytes.NewReader(data))
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Upstream, "build_request", "build search request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Upstream, "search_request", "call search coordinator", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, oerrors.New(oerrors.Upstream, "search_status", fmt.Sprintf("search coordinator returned %d", resp.StatusCode))
	}
	var out searchResponseBody
	if err := value.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, oerrors.Wrap(oerrors.Format, "decode_response", "decode search response", err)
	}
	rows := make([]value.Record, 0, len(out.Hits))
	for _, h := range out.Hits {
		rows = append(rows, value.Record(value.FromAny(h).AsObject()))
	}
	return rows, nil
}

type promqlRequestBody struct {
	Query string `json:"query"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
}

type promqlSeriesBody struct {
	Labels      map[string]string `json:"labels"`
	SampleCount int               `json:"sample_count"`
}

type promqlResponseBody struct {
	Series []promqlSeriesBody `json:"series"`
}

func (s *httpSearcher) RunPromQL(ctx context.Context, query string, start, end int64) ([]alert.Series, error) {
	body := promqlRequestBody{Query: query, Start: start, End: end}
	data, err := value.Marshal(body)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Format, "encode_request", "encode promql request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/_internal/_promql_range", bytes.NewReader(data))
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Upstream, "build_request", "build promql request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, oerrors.Wrap(oerrors.Upstream, "promql_request", "call search coordinator", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, oerrors.New(oerrors.Upstream, "promql_status", fmt.Sprintf("search coordinator returned %d", resp.StatusCode))
	}
	var out promqlResponseBody
	if err := value.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, oerrors.Wrap(oerrors.Format, "decode_response", "decode promql response", err)
	}
	series := make([]alert.Series, 0, len(out.Series))
	for _, sr := range out.Series {
		series = append(series, alert.Series{Labels: sr.Labels, SampleCount: sr.SampleCount})
	}
	return series, nil
}

// correlatingNotifier folds every firing alert into an incident
// (blake3-keyed by stable dimension, per internal/alert's correlation
// rule) before delivering a webhook per configured destination.
type correlatingNotifier struct {
	incidents         alert.IncidentStore
	timeWindowMinutes int64
	client            http.Client
}

func (n *correlatingNotifier) Send(ctx context.Context, a alert.Alert, rows []value.Record, stableDimensions []map[string]string) error {
	dims := map[string]string{}
	if len(stableDimensions) > 0 {
		dims = stableDimensions[0]
	}
	if len(dims) > 0 {
		if _, err := alert.Correlate(ctx, n.incidents, a.Org, dims, alert.SeverityP3, n.timeWindowMinutes, func() string { return uuid.NewString() }); err != nil {
			return oerrors.Wrap(oerrors.Storage, "correlate", "correlate alert firing into incident", err)
		}
	}

	payload := map[string]any{
		"org":         a.Org,
		"alert":       a.Name,
		"stream":      a.StreamName,
		"stream_type": a.StreamType,
		"row_count":   len(rows),
		"rows":        rows,
	}
	data, err := value.Marshal(payload)
	if err != nil {
		return oerrors.Wrap(oerrors.Format, "encode_notification", "encode alert notification payload", err)
	}
	for _, dest := range a.Destinations {
		if err := n.postWebhook(ctx, dest, data); err != nil {
			return err
		}
	}
	return nil
}

func (n *correlatingNotifier) postWebhook(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return oerrors.Wrap(oerrors.Upstream, "build_webhook", "build webhook request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return oerrors.Wrap(oerrors.Upstream, "webhook_request", "deliver alert webhook", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return oerrors.New(oerrors.Upstream, "webhook_status", fmt.Sprintf("destination %s returned %d", url, resp.StatusCode))
	}
	return nil
}

// httpReportSender hands a report definition to the out-of-process
// headless-render collaborator; the renderer owns PDF generation and
// SMTP delivery, matching the "external collaborator" scope for
// reports.
type httpReportSender struct {
	renderURL string
	client    http.Client
}

func newReportSender(renderURL string) *httpReportSender {
	return &httpReportSender{renderURL: renderURL}
}

func (s *httpReportSender) Send(ctx context.Context, r alert.Report) error {
	data, err := value.Marshal(r)
	if err != nil {
		return oerrors.Wrap(oerrors.Format, "encode_report", "encode report render request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.renderURL, bytes.NewReader(data))
	if err != nil {
		return oerrors.Wrap(oerrors.Upstream, "build_render_request", "build report render request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return oerrors.Wrap(oerrors.Upstream, "render_request", "call report render service", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return oerrors.New(oerrors.Upstream, "render_status", fmt.Sprintf("report render service returned %d", resp.StatusCode))
	}
	return nil
}
