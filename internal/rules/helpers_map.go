// internal/rules/helpers_map.go
package rules

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/solatis/opbuilder/internal/types"
)

/*
 * Map helper builders.
 *
 * Map terms compute a value and write it to the target. The write is
 * copy-on-write (see Assign): the input event is never modified and the
 * Result carries the new event. A failed map term leaves the event unchanged.
 */

// write assigns value at target and converts data-level write failures
// into a failed outcome.
func write(target types.FieldPath, event *types.Event, value any) (outcome, error) {
	next, err := Assign(target, event, value)
	if err != nil {
		if errors.Is(err, types.ErrFieldNotFound) {
			return failf("Cannot write target field '%s': %v", target, err), nil
		}
		return outcome{}, err
	}
	return passWith(next), nil
}

func buildCaseMap(upper bool) builderFunc {
	return func(st *buildState) (termFunc, error) {
		target, operand := st.target, st.operands[0]
		return func(event *types.Event) (outcome, error) {
			s, reason, err := operandString(operand, event)
			if err != nil || reason != "" {
				return failf("%s", reason), err
			}
			if upper {
				return write(target, event, strings.ToUpper(s))
			}
			return write(target, event, strings.ToLower(s))
		}, nil
	}
}

// Trim sides accepted by the trim helper.
const (
	TrimBegin = "begin"
	TrimEnd   = "end"
	TrimBoth  = "both"
)

func buildTrim(st *buildState) (termFunc, error) {
	side := st.operands[0].(Literal).Value.(string)
	switch side {
	case TrimBegin, TrimEnd, TrimBoth:
	default:
		return nil, fmt.Errorf("%w: trim side %q, want %s, %s or %s",
			types.ErrInvalidArgument, side, TrimBegin, TrimEnd, TrimBoth)
	}
	char := st.operands[1].(Literal).Value.(string)
	if utf8.RuneCountInString(char) != 1 {
		return nil, fmt.Errorf("%w: trim character %q must be a single character", types.ErrInvalidArgument, char)
	}

	target := st.target
	return func(event *types.Event) (outcome, error) {
		s, reason, err := readString(target, event)
		if err != nil || reason != "" {
			return failf("%s", reason), err
		}
		switch side {
		case TrimBegin:
			s = strings.TrimLeft(s, char)
		case TrimEnd:
			s = strings.TrimRight(s, char)
		default:
			s = strings.Trim(s, char)
		}
		return write(target, event, s)
	}, nil
}

func buildConcat(st *buildState) (termFunc, error) {
	target, operands := st.target, st.operands
	return func(event *types.Event) (outcome, error) {
		var sb strings.Builder
		for _, op := range operands {
			v, found, err := readOperand(op, event)
			if err != nil {
				return outcome{}, err
			}
			if !found {
				return failf("Reference '%s' not found", op.Text()), nil
			}
			text, ok := coerceText(v)
			if !ok {
				return failf("Reference '%s' is %s, cannot concatenate", op.Text(), KindOf(v)), nil
			}
			sb.WriteString(text)
		}
		return write(target, event, sb.String())
	}, nil
}

// Arithmetic operators accepted by int_calculate.
const (
	CalcSum = "sum"
	CalcSub = "sub"
	CalcMul = "mul"
	CalcDiv = "div"
)

func buildIntCalculate(st *buildState) (termFunc, error) {
	calc := st.operands[0].(Literal).Value.(string)
	switch calc {
	case CalcSum, CalcSub, CalcMul, CalcDiv:
	default:
		return nil, fmt.Errorf("%w: operator %q, want %s, %s, %s or %s",
			types.ErrInvalidArgument, calc, CalcSum, CalcSub, CalcMul, CalcDiv)
	}
	operand := st.operands[1]
	if lit, ok := operand.(Literal); ok && calc == CalcDiv && lit.Value.(int64) == 0 {
		return nil, fmt.Errorf("%w: division by zero", types.ErrInvalidArgument)
	}

	target := st.target
	return func(event *types.Event) (outcome, error) {
		a, reason, err := readInt(target, event)
		if err != nil || reason != "" {
			return failf("%s", reason), err
		}
		b, reason, err := operandInt(operand, event)
		if err != nil || reason != "" {
			return failf("%s", reason), err
		}
		n, ok := calculate(calc, a, b)
		if !ok {
			return failf("Operation %d %s %d is undefined or overflows", a, calc, b), nil
		}
		return write(target, event, n)
	}, nil
}

// calculate applies calc and reports false on division by zero or overflow.
func calculate(calc string, a, b int64) (int64, bool) {
	switch calc {
	case CalcSum:
		r := a + b
		return r, (r > a) == (b > 0)
	case CalcSub:
		r := a - b
		return r, (r < a) == (b > 0)
	case CalcMul:
		if a == 0 || b == 0 {
			return 0, true
		}
		r := a * b
		if r/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
			return 0, false
		}
		return r, true
	case CalcDiv:
		if b == 0 || (a == math.MinInt64 && b == -1) {
			return 0, false
		}
		return a / b, true
	default:
		return 0, false
	}
}

func buildSet(st *buildState) (termFunc, error) {
	target, operand := st.target, st.operands[0]
	return func(event *types.Event) (outcome, error) {
		v, found, err := readOperand(operand, event)
		if err != nil {
			return outcome{}, err
		}
		if !found {
			return failf("Reference '%s' not found", operand.Text()), nil
		}
		return write(target, event, v)
	}, nil
}
