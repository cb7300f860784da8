package alert

import (
	"strings"

	"github.com/openobserve/openobserve-sub015/internal/value"
)

// Operator is a single condition comparator.
type Operator string

const (
	OpEqual        Operator = "="
	OpNotEqual     Operator = "!="
	OpGreaterThan  Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLessThan     Operator = "<"
	OpLessEqual    Operator = "<="
	OpContains     Operator = "contains"
	OpNotContains  Operator = "not_contains"
)

// LogicalOperator joins one condition item to the next in a group.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// ConditionItem is either a leaf condition (Column set) or a nested
// group (Group non-nil). The LogicalOperator field names the operator
// joining this item to the one that follows it within its own group —
// it has no meaning on the last item of a group.
type ConditionItem struct {
	Column          string
	Op              Operator
	Value           value.Value
	IgnoreCase      bool
	LogicalOperator LogicalOperator
	Group           []ConditionItem
}

// ConditionGroup is the top-level condition tree attached to an alert
// or pipeline filter.
type ConditionGroup struct {
	Conditions []ConditionItem
}

// Evaluate runs the left-to-right fold over group's conditions against
// row. Missing columns evaluate to false. An empty condition list
// evaluates to true.
func (g ConditionGroup) Evaluate(row value.Record) bool {
	return evaluateItems(g.Conditions, row)
}

func evaluateItems(items []ConditionItem, row value.Record) bool {
	if len(items) == 0 {
		return true
	}
	result := evaluateItem(items[0], row)
	for i := 0; i < len(items)-1; i++ {
		next := evaluateItem(items[i+1], row)
		switch items[i].LogicalOperator {
		case LogicalOr:
			result = result || next
		default:
			result = result && next
		}
	}
	return result
}

func evaluateItem(item ConditionItem, row value.Record) bool {
	if item.Group != nil {
		return evaluateItems(item.Group, row)
	}
	return evaluateCondition(row, item.Column, item.Op, item.Value, item.IgnoreCase)
}

func evaluateCondition(row value.Record, column string, op Operator, want value.Value, ignoreCase bool) bool {
	got, ok := row[column]
	if !ok {
		return false
	}

	switch got.Kind() {
	case value.KindString:
		gotStr := value.GetStringValue(got)
		wantStr := value.GetStringValue(want)
		if ignoreCase {
			gotStr = strings.ToLower(gotStr)
			wantStr = strings.ToLower(wantStr)
		}
		switch op {
		case OpEqual:
			return gotStr == wantStr
		case OpNotEqual:
			return gotStr != wantStr
		case OpGreaterThan:
			return gotStr > wantStr
		case OpGreaterEqual:
			return gotStr >= wantStr
		case OpLessThan:
			return gotStr < wantStr
		case OpLessEqual:
			return gotStr <= wantStr
		case OpContains:
			return strings.Contains(gotStr, wantStr)
		case OpNotContains:
			return !strings.Contains(gotStr, wantStr)
		default:
			return false
		}
	case value.KindI64, value.KindU64, value.KindF64:
		gotNum := value.GetFloatValue(got)
		wantNum := value.GetFloatValue(want)
		switch op {
		case OpEqual:
			return gotNum == wantNum
		case OpNotEqual:
			return gotNum != wantNum
		case OpGreaterThan:
			return gotNum > wantNum
		case OpGreaterEqual:
			return gotNum >= wantNum
		case OpLessThan:
			return gotNum < wantNum
		case OpLessEqual:
			return gotNum <= wantNum
		default:
			return false
		}
	case value.KindBool:
		gotBool := value.GetBoolValue(got)
		wantBool := value.GetBoolValue(want)
		switch op {
		case OpEqual:
			return gotBool == wantBool
		case OpNotEqual:
			return gotBool != wantBool
		default:
			return false
		}
	default:
		return false
	}
}
