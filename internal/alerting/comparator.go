package alerting

import (
	"fmt"
	"strconv"
	"strings"
)

// Compare evaluates one record value against the condition threshold. Records
// that cannot be interpreted for the comparator (non-numeric value under a
// numeric comparator, unparsable threshold) simply do not match.
func Compare(comparator string, value any, threshold string) bool {
	if IsNumericComparator(comparator) {
		return compareNumeric(comparator, value, threshold)
	}
	return compareString(comparator, value, threshold)
}

func compareNumeric(comparator string, value any, threshold string) bool {
	v, err := toFloat64(value)
	if err != nil {
		return false
	}
	t, err := strconv.ParseFloat(strings.TrimSpace(threshold), 64)
	if err != nil {
		return false
	}
	switch comparator {
	case ComparatorGreaterThan:
		return v > t
	case ComparatorGreaterOrEqual:
		return v >= t
	case ComparatorLessThan:
		return v < t
	case ComparatorLessOrEqual:
		return v <= t
	case ComparatorEqual:
		return v == t
	case ComparatorNotEqual:
		return v != t
	default:
		return false
	}
}

// String comparisons are case-insensitive and ignore surrounding whitespace.
func compareString(comparator string, value any, threshold string) bool {
	s, ok := value.(string)
	if !ok {
		if value == nil {
			return false
		}
		s = fmt.Sprintf("%v", value)
	}
	v := strings.ToLower(strings.TrimSpace(s))
	t := strings.ToLower(strings.TrimSpace(threshold))
	switch comparator {
	case ComparatorContains:
		return strings.Contains(v, t)
	case ComparatorNotContains:
		return !strings.Contains(v, t)
	case ComparatorEquals:
		return v == t
	default:
		return false
	}
}

func toFloat64(val any) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", val)
	}
}
