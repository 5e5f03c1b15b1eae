// internal/rules/coercion.go
package rules

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/solatis/opbuilder/internal/types"
)

/*
 * Type checking for helper operands and event values.
 *
 * Build time: each argument position declares an ArgType. Literals in int
 * positions are parsed to int64; references bound to definitions are checked
 * against the position type. Event references cannot be checked until
 * evaluation.
 *
 * Run time: event values arrive as decoded JSON (string, float64, bool, nil,
 * []any, map[string]any). Integer helpers accept a number only when it is
 * integral and inside int64 range; anything else is a failed Result.
 */

// ArgType is the type an argument position accepts.
type ArgType int

const (
	// ArgAny accepts literals and references of any type.
	ArgAny ArgType = iota
	// ArgString accepts literals and references resolving to strings.
	ArgString
	// ArgInt accepts integer literals and references resolving to integers.
	ArgInt
	// ArgLiteral accepts literal text only; references are rejected.
	ArgLiteral
)

func (t ArgType) String() string {
	switch t {
	case ArgString:
		return "string"
	case ArgInt:
		return "int"
	case ArgLiteral:
		return "literal"
	default:
		return "any"
	}
}

// ValueKind is the JSON kind of a runtime value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBoolean
	KindArray
	KindObject
	KindUnknown
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// KindOf classifies a decoded JSON value.
func KindOf(v any) ValueKind {
	switch v.(type) {
	case nil:
		return KindNull
	case string:
		return KindString
	case float64, int, int64, json.Number:
		return KindNumber
	case bool:
		return KindBoolean
	case []any:
		return KindArray
	case map[string]any:
		return KindObject
	default:
		return KindUnknown
	}
}

// int64 bounds as float64; 2^63 itself is out of range.
const (
	minInt64Float = -9223372036854775808.0
	maxInt64Float = 9223372036854775808.0
)

// asInt converts an integral number to int64.
// Fractional values, out-of-range values and non-numbers are rejected.
func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || n < minInt64Float || n >= maxInt64Float {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// asFloat converts any number to float64 for equality checks.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// coerceText renders a scalar as text for concatenation.
// Integral numbers render without exponent or decimal point.
func coerceText(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case int:
		return strconv.Itoa(x), true
	case float64:
		if i, ok := asInt(x); ok {
			return strconv.FormatInt(i, 10), true
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case json.Number:
		return x.String(), true
	default:
		return "", false
	}
}

// coerceOperand checks op against the position type t and returns the
// operand with its value coerced.
func coerceOperand(op Operand, t ArgType) (Operand, error) {
	switch o := op.(type) {
	case Literal:
		if t != ArgInt {
			return o, nil
		}
		text, _ := o.Value.(string)
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", types.ErrTypeMismatch, o.Raw)
		}
		o.Value = n
		return o, nil

	case Reference:
		if t == ArgLiteral {
			return nil, fmt.Errorf("%w: %q: reference not allowed, literal required", types.ErrInvalidArgument, o.Raw)
		}
		if o.Source != SourceDefinition {
			return o, nil
		}
		switch t {
		case ArgString:
			if _, ok := o.Value.(string); !ok {
				return nil, fmt.Errorf("%w: definition %q is %s, want string", types.ErrTypeMismatch, o.Raw, KindOf(o.Value))
			}
		case ArgInt:
			n, ok := asInt(o.Value)
			if !ok {
				return nil, fmt.Errorf("%w: definition %q is %s, want integer", types.ErrTypeMismatch, o.Raw, KindOf(o.Value))
			}
			o.Value = n
		}
		return o, nil

	default:
		return nil, fmt.Errorf("unsupported operand type %T", op)
	}
}
