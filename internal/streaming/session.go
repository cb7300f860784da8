// Package streaming implements the two HTTP/streaming-facing
// components that sit in front of the search coordinator: the
// traces/session two-phase aggregation endpoint, and the WebSocket
// proxy between client, router, and backend.
package streaming

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openobserve/openobserve-sub015/internal/value"
)

const sessionIDColumn = "session_id"

// SearchRunner executes one SQL query against the search coordinator
// and returns its rows; it is the seam traces/session uses instead of
// depending on internal/search directly, keeping this package testable
// without a live coordinator.
type SearchRunner interface {
	Run(ctx context.Context, sql string, from, size int, startTime, endTime int64) ([]value.Record, error)
}

// SessionItem is one aggregated session row in the response.
type SessionItem struct {
	SessionID            string  `json:"session_id"`
	StartTime            int64   `json:"start_time"`
	EndTime               int64   `json:"end_time"`
	Duration             int64   `json:"duration"`
	TraceCount           int     `json:"trace_count"`
	LLMUsageDetailsInput  int64   `json:"_o2_llm_usage_details_input"`
	LLMUsageDetailsOutput int64   `json:"_o2_llm_usage_details_output"`
	LLMUsageDetailsTotal  int64   `json:"_o2_llm_usage_details_total"`
	LLMCostDetailsTotal   float64 `json:"_o2_llm_cost_details_total"`
}

// SessionsResponse is the traces/session endpoint's response body.
type SessionsResponse struct {
	Took          int64         `json:"took"`
	Total         int           `json:"total"`
	From          int           `json:"from"`
	Size          int           `json:"size"`
	Hits          []SessionItem `json:"hits"`
	TraceID       string        `json:"trace_id"`
	FunctionError string        `json:"function_error,omitempty"`
}

type traceDetail struct {
	startTime   int64
	endTime     int64
	usageInput  int64
	usageOutput int64
	usageTotal  int64
	costTotal   float64
}

// GetLatestSessions runs the two-phase session query described for
// the traces/session endpoint: phase one groups by session_id_col to
// find each session's trace_ids, phase two sums LLM usage/cost columns
// per trace_id (because _o2_llm_* fields and session_id may live on
// different spans of the same trace), and the results are folded back
// per session.
func GetLatestSessions(
	ctx context.Context,
	runner SearchRunner,
	streamName, filter string,
	from, size int,
	startTime, endTime int64,
	traceID string,
) (SessionsResponse, error) {
	sessionFilter := sessionIDColumn + " IS NOT NULL AND " + sessionIDColumn + " != ''"
	if filter != "" {
		sessionFilter += " AND " + filter
	}
	phase1SQL := "SELECT " + sessionIDColumn + ", min(_timestamp) as zo_sql_timestamp, " +
		"array_agg(DISTINCT trace_id) as trace_ids FROM \"" + streamName + "\" " +
		"WHERE " + sessionFilter + " GROUP BY " + sessionIDColumn + " ORDER BY zo_sql_timestamp DESC"

	rows, err := runner.Run(ctx, phase1SQL, from, size, startTime, endTime)
	if err != nil {
		return SessionsResponse{}, err
	}
	if len(rows) == 0 {
		return SessionsResponse{From: from, Size: size, TraceID: traceID}, nil
	}

	sessionTraceIDs := make(map[string][]string, len(rows))
	sessionOrder := make([]string, 0, len(rows))
	traceIDSet := make(map[string]struct{})
	for _, row := range rows {
		sid := value.GetStringValue(row[sessionIDColumn])
		if sid == "" {
			continue
		}
		var traceIDs []string
		for _, v := range row["trace_ids"].AsArray() {
			tid := value.GetStringValue(v)
			if tid != "" {
				traceIDs = append(traceIDs, tid)
				traceIDSet[tid] = struct{}{}
			}
		}
		sessionTraceIDs[sid] = traceIDs
		sessionOrder = append(sessionOrder, sid)
	}

	allTraceIDs := make([]string, 0, len(traceIDSet))
	for tid := range traceIDSet {
		allTraceIDs = append(allTraceIDs, tid)
	}
	sort.Strings(allTraceIDs) // deterministic IN(...) ordering only; result order comes from the fold below

	details := make(map[string]traceDetail, len(allTraceIDs))
	if len(allTraceIDs) > 0 {
		phase2SQL := "SELECT trace_id, min(start_time) as trace_start_time, max(end_time) as trace_end_time, " +
			"sum(_o2_llm_usage_details_input) as llm_usage_details_input, " +
			"sum(_o2_llm_usage_details_output) as llm_usage_details_output, " +
			"sum(_o2_llm_usage_details_total) as llm_usage_details_total, " +
			"sum(_o2_llm_cost_details_total) as llm_cost_details_total " +
			"FROM \"" + streamName + "\" WHERE trace_id IN ('" + strings.Join(allTraceIDs, "','") + "') GROUP BY trace_id"

		detailRows, err := runner.Run(ctx, phase2SQL, 0, len(allTraceIDs), startTime, endTime)
		if err != nil {
			return SessionsResponse{}, err
		}
		for _, row := range detailRows {
			tid := value.GetStringValue(row["trace_id"])
			if tid == "" {
				continue
			}
			details[tid] = traceDetail{
				startTime:   value.GetIntValue(row["trace_start_time"]),
				endTime:     value.GetIntValue(row["trace_end_time"]),
				usageInput:  value.GetIntValue(row["llm_usage_details_input"]),
				usageOutput: value.GetIntValue(row["llm_usage_details_output"]),
				usageTotal:  value.GetIntValue(row["llm_usage_details_total"]),
				costTotal:   value.GetFloatValue(row["llm_cost_details_total"]),
			}
		}
	}

	items := make([]SessionItem, 0, len(sessionOrder))
	for _, sid := range sessionOrder {
		traceIDs := sessionTraceIDs[sid]
		var start, end, usageIn, usageOut, usageTotal int64
		var cost float64
		for _, tid := range traceIDs {
			d, ok := details[tid]
			if !ok {
				continue
			}
			if start == 0 || d.startTime < start {
				start = d.startTime
			}
			if d.endTime > end {
				end = d.endTime
			}
			usageIn += d.usageInput
			usageOut += d.usageOutput
			usageTotal += d.usageTotal
			cost += d.costTotal
		}
		var duration int64
		if end > start {
			duration = end - start
		}
		items = append(items, SessionItem{
			SessionID:             sid,
			StartTime:             start,
			EndTime:                end,
			Duration:              duration,
			TraceCount:            len(traceIDs),
			LLMUsageDetailsInput:  usageIn,
			LLMUsageDetailsOutput: usageOut,
			LLMUsageDetailsTotal:  usageTotal,
			LLMCostDetailsTotal:   cost,
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].StartTime > items[j].StartTime })

	return SessionsResponse{
		Total:   len(items),
		From:    from,
		Size:    size,
		Hits:    items,
		TraceID: traceID,
	}, nil
}

// RegisterSessionRoute wires GET /api/:org/:stream/traces/session onto
// r, parsing query params the way the original handler does (a
// missing start_time/end_time is a 400, not a silent default).
func RegisterSessionRoute(r gin.IRouter, runner SearchRunner, maxQueryRangeHours func(org, stream string) int64, newTraceID func() string) {
	r.GET("/:org/:stream/traces/session", func(c *gin.Context) {
		org := c.Param("org")
		stream := c.Param("stream")
		filter := c.Query("filter")
		from := atoiOr(c.Query("from"), 0)
		size := atoiOr(c.Query("size"), 10)
		startTime := atoi64Or(c.Query("start_time"), 0)
		endTime := atoi64Or(c.Query("end_time"), 0)

		if startTime == 0 {
			c.JSON(400, gin.H{"message": "start_time is empty"})
			return
		}
		if endTime == 0 {
			c.JSON(400, gin.H{"message": "end_time is empty"})
			return
		}

		var functionError string
		if maxHours := maxQueryRangeHours(org, stream); maxHours > 0 {
			if endTime-startTime > maxHours*3600*1_000_000 {
				startTime = endTime - maxHours*3600*1_000_000
				functionError = "Query duration is modified due to query range restriction"
			}
		}

		resp, err := GetLatestSessions(c.Request.Context(), runner, stream, filter, from, size, startTime, endTime, newTraceID())
		if err != nil {
			c.JSON(500, gin.H{"message": err.Error()})
			return
		}
		resp.FunctionError = functionError
		c.JSON(200, resp)
	})
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func atoi64Or(s string, def int64) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return n
}
