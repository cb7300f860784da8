package alert

import (
	"context"

	"github.com/openobserve/openobserve-sub015/internal/value"
)

// TriggerCondition is the subset of an alert's schedule + firing rule
// the evaluator needs: how often it runs, and how long it silences
// itself after firing.
type TriggerCondition struct {
	FrequencySeconds int64
	Cron             string
	TZOffsetMins     int
	SilenceMinutes   int64
	ThresholdCount   int
	Period           int64 // seconds, window for PromQL mode
	PromQLOp         Operator
	PromQLThreshold  float64
}

// Alert is a user-defined trigger specification.
type Alert struct {
	ID              string
	Org             string
	StreamName      string
	StreamType      string
	Name            string
	Enabled         bool
	Mode            QueryMode
	SQL             string // ModeSQL / ModePromQL query text
	Conditions      ConditionGroup
	Agg             *Aggregation
	Schema          map[string]ColumnType
	Trigger         TriggerCondition
	StableDimension []string // columns flattened into the notification's stable_dimension key
	Destinations    []string
}

// Searcher executes a SQL query via the search coordinator with
// search_type=Alerts and returns the matched rows.
type Searcher interface {
	Run(ctx context.Context, sql string, start, end int64) ([]value.Record, error)
}

// Series is one PromQL result series.
type Series struct {
	Labels      map[string]string
	SampleCount int
}

// PromQLSearcher evaluates a PromQL query over a time window.
type PromQLSearcher interface {
	RunPromQL(ctx context.Context, query string, start, end int64) ([]Series, error)
}

// Notifier sends a firing alert's notification.
type Notifier interface {
	Send(ctx context.Context, alert Alert, rows []value.Record, stableDimensions []map[string]string) error
}

// Result is the outcome of evaluating an alert once.
type Result struct {
	Fired           bool
	Rows            []value.Record
	StableDimension []map[string]string
}

// Evaluate runs alert's query in whichever mode it's configured for
// and reports whether the result set satisfies its threshold.
func Evaluate(ctx context.Context, a Alert, searcher Searcher, promSearcher PromQLSearcher, start, end int64) (Result, error) {
	switch a.Mode {
	case ModePromQL:
		return evaluatePromQL(ctx, a, promSearcher, start, end)
	default: // ModeCustom, ModeSQL
		return evaluateRows(ctx, a, searcher, start, end)
	}
}

func evaluateRows(ctx context.Context, a Alert, searcher Searcher, start, end int64) (Result, error) {
	sqlText := a.SQL
	if a.Mode == ModeCustom {
		built, err := BuildCustomSQL(a.StreamName, a.Conditions, a.Agg, a.Schema)
		if err != nil {
			return Result{}, err
		}
		sqlText = built
	}

	rows, err := searcher.Run(ctx, sqlText, start, end)
	if err != nil {
		return Result{}, err
	}

	threshold := a.Trigger.ThresholdCount
	if threshold <= 0 {
		threshold = 1
	}
	if len(rows) < threshold {
		return Result{}, nil
	}

	dims := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		dims = append(dims, flattenStableDimension(row, a.StableDimension))
	}
	return Result{Fired: true, Rows: rows, StableDimension: dims}, nil
}

func evaluatePromQL(ctx context.Context, a Alert, promSearcher PromQLSearcher, start, end int64) (Result, error) {
	series, err := promSearcher.RunPromQL(ctx, a.SQL, start, end)
	if err != nil {
		return Result{}, err
	}

	threshold := a.Trigger.ThresholdCount
	if threshold <= 0 {
		threshold = 1
	}

	var fired []Series
	for _, s := range series {
		if matchesThreshold(float64(s.SampleCount), a.Trigger.PromQLOp, a.Trigger.PromQLThreshold) {
			fired = append(fired, s)
		}
	}
	if len(fired) < threshold {
		return Result{}, nil
	}

	dims := make([]map[string]string, 0, len(fired))
	for _, s := range fired {
		dims = append(dims, s.Labels)
	}
	return Result{Fired: true, StableDimension: dims}, nil
}

func matchesThreshold(v float64, op Operator, threshold float64) bool {
	switch op {
	case OpGreaterThan:
		return v > threshold
	case OpGreaterEqual:
		return v >= threshold
	case OpLessThan:
		return v < threshold
	case OpLessEqual:
		return v <= threshold
	case OpNotEqual:
		return v != threshold
	default:
		return v == threshold
	}
}

func flattenStableDimension(row value.Record, columns []string) map[string]string {
	out := make(map[string]string, len(columns))
	for _, c := range columns {
		out[c] = value.GetStringValue(row.GetField(c))
	}
	return out
}
