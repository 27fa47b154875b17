// Package condition evaluates step visibility conditions against accumulated
// flow data.
package condition

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/homemesh/onboard/pkg/models"
)

// Evaluate resolves the condition's dependency value from flowData and applies
// the operator. Missing dependency data evaluates to false: an unmet
// precondition step is treated as not satisfied, so the dependent step is
// skipped rather than shown with undefined state.
//
// "contains" is array membership when the resolved value is a slice and
// substring matching when it is a string; any other resolved type is false.
func Evaluate(cond *models.StepCondition, flowData map[string]map[string]any) bool {
	if cond == nil {
		return true
	}

	stepData, ok := flowData[cond.DependsOn]
	if !ok {
		return false
	}

	var resolved any = stepData

	if cond.Field != "" {
		resolved, ok = stepData[cond.Field]
		if !ok && cond.Operator != models.OperatorNotExists {
			return false
		}
	}

	switch cond.Operator {
	case models.OperatorEquals:
		return looseEqual(resolved, cond.Value)
	case models.OperatorNotEquals:
		return !looseEqual(resolved, cond.Value)
	case models.OperatorContains:
		return contains(resolved, cond.Value)
	case models.OperatorGreaterThan:
		left, lok := toFloat(resolved)
		right, rok := toFloat(cond.Value)

		return lok && rok && left > right
	case models.OperatorLessThan:
		left, lok := toFloat(resolved)
		right, rok := toFloat(cond.Value)

		return lok && rok && left < right
	case models.OperatorExists:
		return resolved != nil
	case models.OperatorNotExists:
		return !ok || resolved == nil
	case models.OperatorIn:
		return member(cond.Value, resolved)
	case models.OperatorNotIn:
		return !member(cond.Value, resolved)
	default:
		return false
	}
}

func looseEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)

	return aok && bok && af == bf
}

func contains(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		n, ok := needle.(string)

		return ok && strings.Contains(h, n)
	case []any:
		return member(h, needle)
	case []string:
		generic := make([]any, len(h))
		for i, s := range h {
			generic[i] = s
		}

		return member(generic, needle)
	default:
		return false
	}
}

// member reports whether value appears in list, where list is the condition's
// declared array (in/not_in) or the resolved array (contains).
func member(list any, value any) bool {
	items, ok := list.([]any)
	if !ok {
		return false
	}

	for _, item := range items {
		if looseEqual(item, value) {
			return true
		}
	}

	return false
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)

		return f, err == nil
	default:
		return 0, false
	}
}
