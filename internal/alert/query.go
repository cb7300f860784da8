package alert

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/openobserve/openobserve-sub015/internal/oerrors"
	"github.com/openobserve/openobserve-sub015/internal/value"
)

// QueryMode selects how an alert's condition is turned into a query.
type QueryMode string

const (
	ModeCustom QueryMode = "custom"
	ModeSQL    QueryMode = "sql"
	ModePromQL QueryMode = "promql"
)

// ColumnType is the subset of the stream schema relevant to literal
// coercion when building a Custom-mode WHERE clause.
type ColumnType string

const (
	ColumnString ColumnType = "string"
	ColumnInt    ColumnType = "int"
	ColumnFloat  ColumnType = "float"
	ColumnBool   ColumnType = "bool"
)

// Aggregation wraps a Custom-mode WHERE clause in a GROUP BY/HAVING
// aggregate select.
type Aggregation struct {
	Func    string
	Column  string
	GroupBy []string
	Having  string
}

// BuildCustomSQL renders a Custom-mode alert's condition tree into a
// SQL query over stream, coercing each leaf's literal to the column's
// declared type. schema maps column name to its declared type; a
// column with no entry is treated as ColumnString.
func BuildCustomSQL(stream string, conditions ConditionGroup, agg *Aggregation, schema map[string]ColumnType) (string, error) {
	where, err := renderItems(conditions.Conditions, schema)
	if err != nil {
		return "", err
	}

	if agg == nil {
		q := fmt.Sprintf("SELECT * FROM %q", stream)
		if where != "" {
			q += " WHERE " + where
		}
		return q, nil
	}

	q := fmt.Sprintf("SELECT %s(%s) AS alert_agg_value FROM %q", agg.Func, agg.Column, stream)
	if where != "" {
		q += " WHERE " + where
	}
	if len(agg.GroupBy) > 0 {
		q += " GROUP BY " + strings.Join(agg.GroupBy, ", ")
	}
	if agg.Having != "" {
		q += " HAVING " + agg.Having
	}
	return q, nil
}

func renderItems(items []ConditionItem, schema map[string]ColumnType) (string, error) {
	if len(items) == 0 {
		return "", nil
	}
	var b strings.Builder
	first, err := renderItem(items[0], schema)
	if err != nil {
		return "", err
	}
	b.WriteString(first)
	for i := 0; i < len(items)-1; i++ {
		op := "AND"
		if items[i].LogicalOperator == LogicalOr {
			op = "OR"
		}
		next, err := renderItem(items[i+1], schema)
		if err != nil {
			return "", err
		}
		b.WriteString(" ")
		b.WriteString(op)
		b.WriteString(" ")
		b.WriteString(next)
	}
	return b.String(), nil
}

func renderItem(item ConditionItem, schema map[string]ColumnType) (string, error) {
	if item.Group != nil {
		inner, err := renderItems(item.Group, schema)
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil
	}

	colType := schema[item.Column]
	if colType == "" {
		colType = ColumnString
	}
	literal, err := coerceLiteral(item.Value, colType)
	if err != nil {
		return "", err
	}

	switch item.Op {
	case OpContains:
		return fmt.Sprintf("%s LIKE '%%%s%%'", item.Column, strings.Trim(literal, "'")), nil
	case OpNotContains:
		return fmt.Sprintf("%s NOT LIKE '%%%s%%'", item.Column, strings.Trim(literal, "'")), nil
	case OpEqual:
		return fmt.Sprintf("%s = %s", item.Column, literal), nil
	case OpNotEqual:
		return fmt.Sprintf("%s != %s", item.Column, literal), nil
	case OpGreaterThan:
		return fmt.Sprintf("%s > %s", item.Column, literal), nil
	case OpGreaterEqual:
		return fmt.Sprintf("%s >= %s", item.Column, literal), nil
	case OpLessThan:
		return fmt.Sprintf("%s < %s", item.Column, literal), nil
	case OpLessEqual:
		return fmt.Sprintf("%s <= %s", item.Column, literal), nil
	default:
		return "", oerrors.New(oerrors.InvalidInput, "unknown_operator", "unknown condition operator: "+string(item.Op))
	}
}

func coerceLiteral(v value.Value, want ColumnType) (string, error) {
	switch want {
	case ColumnInt, ColumnFloat:
		s := value.GetStringValue(v)
		if v.Kind() == value.KindString {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				return "", oerrors.New(oerrors.InvalidInput, "data_type", "condition literal is not numeric: "+s)
			}
		}
		return value.GetStringValue(v), nil
	case ColumnBool:
		if v.Kind() != value.KindBool && v.Kind() != value.KindString {
			return "", oerrors.New(oerrors.InvalidInput, "data_type", "condition literal is not boolean")
		}
		if value.GetBoolValue(v) {
			return "true", nil
		}
		return "false", nil
	default: // ColumnString
		return "'" + strings.ReplaceAll(value.GetStringValue(v), "'", "''") + "'", nil
	}
}
