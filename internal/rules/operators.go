// internal/rules/operators.go
package rules

import (
	"cmp"
	"reflect"
	"strings"
)

/*
 * Comparison operators shared by the string_* and int_* helper families.
 *
 * Values reach these functions already type-checked: both strings or both
 * int64. Ordering is the natural one (byte-wise for strings). Strict operators
 * fail on ties.
 *
 * Matching operators (prefix, suffix, substring) and JSON equality for
 * array_contains live here too so every helper compares the same way.
 */

// Operator is a relational comparison.
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreater
	OpGreaterOrEqual
	OpLess
	OpLessOrEqual
)

// Symbol returns the operator as used in failure traces.
func (op Operator) Symbol() string {
	switch op {
	case OpEqual:
		return "=="
	case OpNotEqual:
		return "!="
	case OpGreater:
		return ">"
	case OpGreaterOrEqual:
		return ">="
	case OpLess:
		return "<"
	case OpLessOrEqual:
		return "<="
	default:
		return "?"
	}
}

// holds reports whether a three-way comparison result satisfies op.
func (op Operator) holds(c int) bool {
	switch op {
	case OpEqual:
		return c == 0
	case OpNotEqual:
		return c != 0
	case OpGreater:
		return c > 0
	case OpGreaterOrEqual:
		return c >= 0
	case OpLess:
		return c < 0
	case OpLessOrEqual:
		return c <= 0
	default:
		return false
	}
}

// CompareStrings applies op to a byte-wise comparison of a and b.
func CompareStrings(op Operator, a, b string) bool {
	return op.holds(strings.Compare(a, b))
}

// CompareInts applies op to a and b.
func CompareInts(op Operator, a, b int64) bool {
	return op.holds(cmp.Compare(a, b))
}

// MatchKind selects a string matching operation.
type MatchKind int

const (
	MatchPrefix MatchKind = iota
	MatchSuffix
	MatchSubstring
)

func (m MatchKind) apply(value, pattern string) bool {
	switch m {
	case MatchPrefix:
		return strings.HasPrefix(value, pattern)
	case MatchSuffix:
		return strings.HasSuffix(value, pattern)
	case MatchSubstring:
		return strings.Contains(value, pattern)
	default:
		return false
	}
}

func (m MatchKind) verb() string {
	switch m {
	case MatchPrefix:
		return "does not start with"
	case MatchSuffix:
		return "does not end with"
	default:
		return "does not contain"
	}
}

// compareEqual performs JSON equality with numeric type coercion.
// Handles float64/int/int64 mixing; composite values compare structurally.
func compareEqual(a, b any) bool {
	na, oka := asFloat(a)
	nb, okb := asFloat(b)
	if oka && okb {
		return na == nb
	}
	if oka != okb {
		return false
	}
	switch a.(type) {
	case []any, map[string]any:
		return reflect.DeepEqual(a, b)
	}
	switch b.(type) {
	case []any, map[string]any:
		return false
	}
	return a == b
}

// compareIn checks if any element of set equals value.
func compareIn(value any, set []any) bool {
	for _, elem := range set {
		if compareEqual(value, elem) {
			return true
		}
	}
	return false
}
