// Package conditions provides the condition evaluator shared by automation
// rules, event wake triggers, and skip/review checks. Evaluation is pure and
// total: a missing field, a type mismatch, or an unparsable date evaluates to
// false rather than failing, so one bad metric can never crash a pipeline.
// Callers that care log the miss.
package conditions

import (
	"strconv"
	"strings"
	"time"

	"github.com/cadencehq/cadence/pkg/models"
)

// Evaluate checks a single condition against a context snapshot.
func Evaluate(condition models.EventCondition, snapshot map[string]any) bool {
	actual, exists := snapshot[condition.Field]
	if !exists {
		return false
	}

	switch condition.Operator {
	case models.OperatorEquals:
		return equals(actual, condition.Value)
	case models.OperatorNotEquals:
		return !equals(actual, condition.Value)
	case models.OperatorGreaterThan, models.OperatorLessThan,
		models.OperatorGreaterEquals, models.OperatorLessEquals:
		return compareNumeric(condition.Operator, actual, condition.Value)
	case models.OperatorContains:
		return contains(actual, condition.Value)
	case models.OperatorDateBefore, models.OperatorDateAfter:
		return compareDates(condition.Operator, actual, condition.Value)
	default:
		return false
	}
}

// EvaluateSet combines one or two conditions with the given logic operator.
// A single-condition set ignores the operator. An empty set never matches.
func EvaluateSet(set []models.EventCondition, logic models.LogicOperator, snapshot map[string]any) bool {
	switch len(set) {
	case 0:
		return false
	case 1:
		return Evaluate(set[0], snapshot)
	}

	if logic == models.LogicOr {
		for _, condition := range set {
			if Evaluate(condition, snapshot) {
				return true
			}
		}

		return false
	}

	// AND is the default for multi-condition sets with a missing or unknown
	// operator; rule validation rejects those upstream, this is the fail-closed
	// fallback.
	for _, condition := range set {
		if !Evaluate(condition, snapshot) {
			return false
		}
	}

	return true
}

func equals(actual, expected any) bool {
	// Numeric equality first so 45 == 45.0 across JSON round trips.
	if a, aOK := toFloat(actual); aOK {
		if e, eOK := toFloat(expected); eOK {
			return a == e
		}
	}

	if a, aOK := toBool(actual); aOK {
		if e, eOK := toBool(expected); eOK {
			return a == e
		}
	}

	aStr, aOK := toString(actual)
	eStr, eOK := toString(expected)

	return aOK && eOK && aStr == eStr
}

func compareNumeric(operator models.ComparisonOperator, actual, expected any) bool {
	a, aOK := toFloat(actual)
	e, eOK := toFloat(expected)

	if !aOK || !eOK {
		return false
	}

	switch operator {
	case models.OperatorGreaterThan:
		return a > e
	case models.OperatorLessThan:
		return a < e
	case models.OperatorGreaterEquals:
		return a >= e
	case models.OperatorLessEquals:
		return a <= e
	default:
		return false
	}
}

func contains(actual, expected any) bool {
	needle, needleOK := toString(expected)
	if !needleOK {
		return false
	}

	switch haystack := actual.(type) {
	case string:
		return strings.Contains(haystack, needle)
	case []string:
		for _, item := range haystack {
			if item == needle {
				return true
			}
		}

		return false
	case []any:
		for _, item := range haystack {
			if str, ok := toString(item); ok && str == needle {
				return true
			}
		}

		return false
	default:
		return false
	}
}

func compareDates(operator models.ComparisonOperator, actual, expected any) bool {
	a, aOK := toTime(actual)
	e, eOK := toTime(expected)

	if !aOK || !eOK {
		return false
	}

	if operator == models.OperatorDateBefore {
		return a.Before(e)
	}

	return a.After(e)
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
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}

		return parsed, true
	default:
		return 0, false
	}
}

func toBool(value any) (bool, bool) {
	parsed, ok := value.(bool)

	return parsed, ok
}

func toString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func toTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}

		return *v, true
	case string:
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, v); err == nil {
				return parsed, true
			}
		}

		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}
