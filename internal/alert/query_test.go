package alert

import (
	"strings"
	"testing"

	"github.com/openobserve/openobserve-sub015/internal/oerrors"
	"github.com/openobserve/openobserve-sub015/internal/value"
)

func TestBuildCustomSQLSimpleWhere(t *testing.T) {
	g := ConditionGroup{Conditions: []ConditionItem{
		{Column: "status", Op: OpEqual, Value: value.String("error"), LogicalOperator: LogicalAnd},
		{Column: "count", Op: OpGreaterThan, Value: value.I64(10), LogicalOperator: LogicalAnd},
	}}
	schema := map[string]ColumnType{"status": ColumnString, "count": ColumnInt}

	q, err := BuildCustomSQL("app_logs", g, nil, schema)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(q, "status = 'error'") || !strings.Contains(q, "count > 10") || !strings.Contains(q, " AND ") {
		t.Fatalf("unexpected query: %s", q)
	}
}

func TestBuildCustomSQLAggregation(t *testing.T) {
	g := ConditionGroup{Conditions: []ConditionItem{
		{Column: "status", Op: OpEqual, Value: value.String("error"), LogicalOperator: LogicalAnd},
	}}
	agg := &Aggregation{Func: "count", Column: "*", GroupBy: []string{"service"}, Having: "alert_agg_value > 5"}

	q, err := BuildCustomSQL("app_logs", g, agg, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(q, "count(*) AS alert_agg_value") || !strings.Contains(q, "GROUP BY service") || !strings.Contains(q, "HAVING alert_agg_value > 5") {
		t.Fatalf("unexpected aggregation query: %s", q)
	}
}

func TestBuildCustomSQLRejectsIncompatibleLiteral(t *testing.T) {
	g := ConditionGroup{Conditions: []ConditionItem{
		{Column: "count", Op: OpGreaterThan, Value: value.String("not-a-number"), LogicalOperator: LogicalAnd},
	}}
	schema := map[string]ColumnType{"count": ColumnInt}

	_, err := BuildCustomSQL("app_logs", g, nil, schema)
	if oerrors.KindOf(err) != oerrors.InvalidInput {
		t.Fatalf("expected data_type error, got %v", err)
	}
}

func TestBuildCustomSQLContainsUsesLike(t *testing.T) {
	g := ConditionGroup{Conditions: []ConditionItem{
		{Column: "message", Op: OpContains, Value: value.String("boom"), LogicalOperator: LogicalAnd},
	}}
	q, err := BuildCustomSQL("app_logs", g, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(q, "message LIKE '%boom%'") {
		t.Fatalf("unexpected query: %s", q)
	}
}

func TestBuildCustomSQLNestedGroupParenthesized(t *testing.T) {
	g := ConditionGroup{Conditions: []ConditionItem{
		{Column: "status", Op: OpEqual, Value: value.String("error"), LogicalOperator: LogicalAnd},
		{
			LogicalOperator: LogicalAnd,
			Group: []ConditionItem{
				{Column: "service", Op: OpEqual, Value: value.String("api"), LogicalOperator: LogicalOr},
				{Column: "service", Op: OpEqual, Value: value.String("web"), LogicalOperator: LogicalAnd},
			},
		},
	}}
	q, err := BuildCustomSQL("app_logs", g, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(q, "(service = 'api' OR service = 'web')") {
		t.Fatalf("expected parenthesized nested group, got: %s", q)
	}
}
