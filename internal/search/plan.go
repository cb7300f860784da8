// Package search implements the query coordinator: SQL rewriting and
// planning, the result-cache merge iterator, histogram sort-merge join,
// and the approx_topk aggregate used by leaf scan plans.
package search

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/openobserve/openobserve-sub015/internal/oerrors"
	"github.com/openobserve/openobserve-sub015/internal/timeutil"
)

// Request is the inbound query as received from the HTTP/gRPC surface.
type Request struct {
	SQL         string
	StartTime   int64
	EndTime     int64
	From        int
	Size        int
	TimeoutSecs int64
	UseCache    bool
	SearchType  string
	QueryFn     string
}

// Plan is a Request after rewrite, histogram extraction, and range
// enforcement, ready for cache lookup and leaf dispatch.
type Plan struct {
	Request
	TraceID          string
	CacheFingerprint string
	HistogramSeconds int64
	IsHistogram      bool
	FunctionError    string
}

// equalityPattern matches `col = 'x::_o2_custom'`. It captures only the
// quoted literal itself, so it never swallows surrounding parens and
// therefore naturally matches inside subqueries, CTEs, and joins
// without a dedicated traversal step. There is no lightweight SQL AST
// parser in the dependency set this module draws on, so the rewrite
// works directly on the literal tokens rather than a parsed expression
// tree; see DESIGN.md.
var equalityPattern = regexp.MustCompile(`(?i)([A-Za-z_][A-Za-z0-9_.]*)\s*=\s*'([^']*)'`)

// inListPattern matches `col IN ('a', 'b', ...)` where every element
// is a quoted literal; a subquery `col IN (SELECT ...)` never matches
// this shape since its first token isn't a quote.
var inListPattern = regexp.MustCompile(`(?i)([A-Za-z_][A-Za-z0-9_.]*)\s+IN\s*\(\s*'[^']*'(?:\s*,\s*'[^']*')*\s*\)`)

var inListElemPattern = regexp.MustCompile(`'([^']*)'`)

const literalSuffixMarker = "::_o2_custom"

// RewriteLiteralSuffix rewrites `col = 'x::_o2_custom'` and
// `col IN ('x::_o2_custom', ...)` into `str_match(col, 'x')` calls. It
// scans the whole statement text rather than a parsed tree, so it
// applies uniformly across SELECT, WHERE, HAVING, subqueries, CTEs,
// and joins.
func RewriteLiteralSuffix(sql string) string {
	sql = inListPattern.ReplaceAllStringFunc(sql, rewriteInList)
	sql = equalityPattern.ReplaceAllStringFunc(sql, rewriteEquality)
	return sql
}

func rewriteEquality(match string) string {
	sub := equalityPattern.FindStringSubmatch(match)
	col, lit := sub[1], sub[2]
	if !strings.HasSuffix(lit, literalSuffixMarker) {
		return match
	}
	return "str_match(" + col + ", '" + strings.TrimSuffix(lit, literalSuffixMarker) + "')"
}

func rewriteInList(match string) string {
	sub := inListPattern.FindStringSubmatch(match)
	col := sub[1]
	elems := inListElemPattern.FindAllStringSubmatch(match, -1)

	calls := make([]string, 0, len(elems))
	for _, e := range elems {
		lit := e[1]
		if !strings.HasSuffix(lit, literalSuffixMarker) {
			return match
		}
		calls = append(calls, "str_match("+col+", '"+strings.TrimSuffix(lit, literalSuffixMarker)+"')")
	}
	return "(" + strings.Join(calls, " OR ") + ")"
}

var histogramCallPattern = regexp.MustCompile(`(?i)histogram\s*\(\s*([A-Za-z_][A-Za-z0-9_.]*)\s*(?:,\s*'([^']*)')?\s*\)`)

var wordUnitSeconds = map[string]int64{
	"second": 1, "seconds": 1, "s": 1, "sec": 1, "secs": 1,
	"minute": 60, "minutes": 60, "m": 60, "min": 60, "mins": 60,
	"hour": 3600, "hours": 3600, "h": 3600, "hr": 3600, "hrs": 3600,
	"day": 86400, "days": 86400, "d": 86400,
}

// ConvertHistogramIntervalToSeconds parses a "<n> <unit>" literal such
// as "5 minutes" or "1 hour" into seconds.
func ConvertHistogramIntervalToSeconds(interval string) (int64, error) {
	interval = strings.TrimSpace(interval)
	pos := strings.IndexFunc(interval, func(r rune) bool { return r < '0' || r > '9' })
	if pos <= 0 {
		return 0, oerrors.New(oerrors.InvalidInput, "histogram_interval", "invalid interval format: "+interval)
	}
	numStr, unitStr := interval[:pos], strings.ToLower(strings.TrimSpace(interval[pos:]))
	n, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, oerrors.Wrap(oerrors.InvalidInput, "histogram_interval", "invalid number in interval", err)
	}
	secs, ok := wordUnitSeconds[unitStr]
	if !ok {
		return 0, oerrors.New(oerrors.InvalidInput, "histogram_interval", "unsupported histogram interval unit: "+unitStr)
	}
	return n * secs, nil
}

// GenerateHistogramInterval picks a default bucket width from the
// requested time range when the query omits one, the same ladder the
// UI dashboard auto-histogram uses.
func GenerateHistogramInterval(start, end int64) string {
	if start == 0 && end == 0 {
		return "1 hour"
	}
	duration := end - start
	const (
		hour   = int64(3600 * 1_000_000)
		minute = int64(60 * 1_000_000)
	)
	steps := []struct {
		micros   int64
		interval string
	}{
		{24 * 60 * hour, "1 day"},
		{24 * 30 * hour, "12 hour"},
		{24 * 28 * hour, "6 hour"},
		{24 * 21 * hour, "3 hour"},
		{24 * 15 * hour, "2 hour"},
		{6 * hour, "1 hour"},
		{2 * hour, "1 minute"},
		{1 * hour, "30 second"},
		{30 * minute, "15 second"},
		{15 * minute, "10 second"},
	}
	for _, s := range steps {
		if duration >= s.micros {
			return s.interval
		}
	}
	return "10 second"
}

// ExtractHistogramInterval finds the first `histogram(col, 'interval')`
// call in sql, defaulting the interval from the time range when the
// second argument is absent, and adjusts it onto the canonical ladder
// via timeutil.ValidateAndAdjustHistogramInterval.
func ExtractHistogramInterval(sql string, start, end int64) (seconds int64, found bool, err error) {
	m := histogramCallPattern.FindStringSubmatch(sql)
	if m == nil {
		return 0, false, nil
	}
	interval := m[2]
	if interval == "" {
		interval = GenerateHistogramInterval(start, end)
	}
	raw, err := ConvertHistogramIntervalToSeconds(interval)
	if err != nil {
		raw = 0
	}
	return timeutil.ValidateAndAdjustHistogramInterval(raw), true, nil
}

// EnforceMaxQueryRange tightens the request's start_time to respect a
// stream's max_query_range_hours and returns an advisory message when
// it had to. A maxHours <= 0 means unlimited.
func EnforceMaxQueryRange(start, end, maxHours int64) (newStart int64, functionError string) {
	if maxHours <= 0 {
		return start, ""
	}
	maxMicros := maxHours * 3600 * 1_000_000
	if end-start <= maxMicros {
		return start, ""
	}
	adjusted := end - maxMicros
	return adjusted, "Query duration exceeds the configured max query range of " +
		strconv.FormatInt(maxHours, 10) + " hours; start_time has been adjusted"
}

// BuildPlan runs the full planning pipeline (§4.8.1): literal-suffix
// rewrite, histogram extraction, max-range enforcement, and trace_id
// assignment.
func BuildPlan(req Request, maxQueryRangeHours int64, fingerprint func(Request) string) (Plan, error) {
	p := Plan{Request: req}
	p.SQL = RewriteLiteralSuffix(req.SQL)

	seconds, found, err := ExtractHistogramInterval(p.SQL, req.StartTime, req.EndTime)
	if err != nil {
		return Plan{}, err
	}
	p.IsHistogram = found
	p.HistogramSeconds = seconds

	newStart, functionError := EnforceMaxQueryRange(req.StartTime, req.EndTime, maxQueryRangeHours)
	p.StartTime = newStart
	p.FunctionError = functionError

	id, err := uuid.NewV7()
	if err != nil {
		return Plan{}, oerrors.Wrap(oerrors.Storage, "trace_id", "failed to generate trace_id", err)
	}
	p.TraceID = id.String()
	if fingerprint != nil {
		p.CacheFingerprint = fingerprint(p.Request)
	}
	return p, nil
}
