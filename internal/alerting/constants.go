package alerting

// Comparators accepted on alert conditions. Numeric comparators parse both
// sides as floats; string comparators trim and lowercase both sides.
const (
	ComparatorGreaterThan    = ">"
	ComparatorGreaterOrEqual = ">="
	ComparatorLessThan       = "<"
	ComparatorLessOrEqual    = "<="
	ComparatorEqual          = "=="
	ComparatorNotEqual       = "!="
	ComparatorContains       = "contains"
	ComparatorNotContains    = "not_contains"
	ComparatorEquals         = "equals"
)

// defaultTimeWindowMin is used when a condition leaves its window unset.
const defaultTimeWindowMin = 5

// KnownComparator reports whether c is a supported comparator.
func KnownComparator(c string) bool {
	switch c {
	case ComparatorGreaterThan, ComparatorGreaterOrEqual,
		ComparatorLessThan, ComparatorLessOrEqual,
		ComparatorEqual, ComparatorNotEqual,
		ComparatorContains, ComparatorNotContains, ComparatorEquals:
		return true
	}
	return false
}

// IsNumericComparator reports whether c compares parsed numbers.
func IsNumericComparator(c string) bool {
	switch c {
	case ComparatorGreaterThan, ComparatorGreaterOrEqual,
		ComparatorLessThan, ComparatorLessOrEqual,
		ComparatorEqual, ComparatorNotEqual:
		return true
	}
	return false
}
