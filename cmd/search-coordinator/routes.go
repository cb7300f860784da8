package main

import (
	"context"
	"regexp"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openobserve/openobserve-sub015/internal/filelist"
	"github.com/openobserve/openobserve-sub015/internal/search"
	"github.com/openobserve/openobserve-sub015/internal/streaming"
	"github.com/openobserve/openobserve-sub015/internal/value"
)

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

// registerInternalRoutes wires the two endpoints cmd/scheduler's
// httpSearcher contract assumes (POST /api/_internal/_search and
// /api/_internal/_promql_range), plus the traces/session aggregation
// route (internal/streaming) mounted on the same coordinator.
func registerInternalRoutes(r *gin.Engine, eng *engine, cfg *appConfig) {
	r.POST("/api/_internal/_search", func(c *gin.Context) {
		var body searchRequestBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(400, gin.H{"message": "invalid request: " + err.Error()})
			return
		}
		req := search.Request{
			SQL: body.SQL, StartTime: body.StartTime, EndTime: body.EndTime,
			Size: -1, UseCache: true, SearchType: body.SearchType,
		}
		rows, functionError, err := eng.run(c.Request.Context(), cfg.defaultOrg, filelist.StreamLogs, req)
		if err != nil {
			c.JSON(200, searchResponseBody{Error: err.Error()})
			return
		}
		c.JSON(200, searchResponseBody{Hits: recordsToAny(rows), Error: functionError})
	})

	r.POST("/api/_internal/_promql_range", func(c *gin.Context) {
		var body promqlRequestBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(400, gin.H{"message": "invalid request: " + err.Error()})
			return
		}
		metric, ok := extractMetricName(body.Query)
		if !ok {
			c.JSON(200, promqlResponseBody{})
			return
		}
		req := search.Request{
			SQL: "SELECT * FROM " + metric, StartTime: body.Start, EndTime: body.End,
			Size: -1, UseCache: false, SearchType: "ui",
		}
		rows, _, err := eng.run(c.Request.Context(), cfg.defaultOrg, filelist.StreamMetrics, req)
		if err != nil {
			c.JSON(500, gin.H{"message": err.Error()})
			return
		}
		c.JSON(200, promqlResponseBody{Series: groupIntoSeries(rows)})
	})

	runner := &engineSearchRunner{eng: eng, org: cfg.defaultOrg}
	streaming.RegisterSessionRoute(r, runner, func(org, stream string) int64 { return 0 }, func() string { return uuid.NewString() })
}

var metricNamePattern = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)`)

// extractMetricName pulls the leading identifier off a PromQL-shaped
// selector (e.g. `http_requests_total{job="api"}`). There is no PromQL
// expression engine in this codebase (Non-goal: general RDBMS query
// execution extends to PromQL functions/operators too), so only the
// vector-selector metric name drives the underlying scan; label
// matchers are not evaluated against the query text.
func extractMetricName(query string) (string, bool) {
	m := metricNamePattern.FindStringSubmatch(query)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// groupIntoSeries folds rows sharing every non-timestamp, non-value
// field into one series, counting samples — a reduced PromQL range
// query that reports how many samples matched a label set rather than
// evaluating a full instant/range vector function.
func groupIntoSeries(rows []value.Record) []promqlSeriesBody {
	type key string
	order := make([]key, 0)
	bucket := make(map[key]promqlSeriesBody)
	for _, row := range rows {
		labels := make(map[string]string, len(row))
		for k, v := range row {
			if k == "_timestamp" || k == "value" {
				continue
			}
			labels[k] = v.GetStringValue()
		}
		k := key(labelKey(labels))
		s, ok := bucket[k]
		if !ok {
			s = promqlSeriesBody{Labels: labels}
			order = append(order, k)
		}
		s.SampleCount++
		bucket[k] = s
	}
	out := make([]promqlSeriesBody, 0, len(order))
	for _, k := range order {
		out = append(out, bucket[k])
	}
	return out
}

// labelKey builds a deterministic key from a label set regardless of
// map iteration order, so rows sharing the same labels always fold
// into the same series.
func labelKey(labels map[string]string) string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)
	var b []byte
	for _, k := range names {
		b = append(b, k...)
		b = append(b, '=')
		b = append(b, labels[k]...)
		b = append(b, ';')
	}
	return string(b)
}

// engineSearchRunner adapts engine.run to internal/streaming's
// SearchRunner interface (it additionally carries from/size, which the
// internal _search contract above omits since alert evaluation always
// wants every matching row).
type engineSearchRunner struct {
	eng *engine
	org string
}

func (r *engineSearchRunner) Run(ctx context.Context, sql string, from, size int, startTime, endTime int64) ([]value.Record, error) {
	req := search.Request{SQL: sql, StartTime: startTime, EndTime: endTime, From: from, Size: size, UseCache: true, SearchType: "ui"}
	rows, _, err := r.eng.run(ctx, r.org, filelist.StreamTraces, req)
	return rows, err
}
