// internal/rules/helpers_filter.go
package rules

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/google/cel-go/cel"

	"github.com/solatis/opbuilder/internal/types"
)

/*
 * Filter helper builders.
 *
 * Each builder captures the target path and operands and returns a closure
 * that reads the event without modifying it. A missing field, a missing
 * reference or a value of the wrong kind is a failed outcome with a reason;
 * only a malformed event escapes as an error.
 */

const (
	// DefaultRegexTimeout bounds a single regex match.
	DefaultRegexTimeout = 100 * time.Millisecond

	// MaxRegexPatternLength rejects oversized patterns at build time.
	MaxRegexPatternLength = 10000

	// MaxCELExpressionLength rejects oversized expressions at build time.
	MaxCELExpressionLength = 10000

	// CELCostLimit bounds the runtime cost of one cel_match evaluation.
	CELCostLimit = 1000000
)

// readString reads path as a string. A non-empty reason is a per-event failure.
func readString(path types.FieldPath, event *types.Event) (string, string, error) {
	v, found, err := readValue(path, event)
	if err != nil {
		return "", "", err
	}
	if !found {
		return "", fmt.Sprintf("Target field '%s' not found", path), nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Sprintf("Target field '%s' is %s, expected string", path, KindOf(v)), nil
	}
	return s, "", nil
}

// readInt reads path as an integer.
func readInt(path types.FieldPath, event *types.Event) (int64, string, error) {
	v, found, err := readValue(path, event)
	if err != nil {
		return 0, "", err
	}
	if !found {
		return 0, fmt.Sprintf("Target field '%s' not found", path), nil
	}
	n, ok := asInt(v)
	if !ok {
		return 0, fmt.Sprintf("Target field '%s' is %s, expected integer", path, KindOf(v)), nil
	}
	return n, "", nil
}

// operandString resolves op as a string.
func operandString(op Operand, event *types.Event) (string, string, error) {
	v, found, err := readOperand(op, event)
	if err != nil {
		return "", "", err
	}
	if !found {
		return "", fmt.Sprintf("Reference '%s' not found", op.Text()), nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Sprintf("Reference '%s' is %s, expected string", op.Text(), KindOf(v)), nil
	}
	return s, "", nil
}

// operandInt resolves op as an integer.
func operandInt(op Operand, event *types.Event) (int64, string, error) {
	v, found, err := readOperand(op, event)
	if err != nil {
		return 0, "", err
	}
	if !found {
		return 0, fmt.Sprintf("Reference '%s' not found", op.Text()), nil
	}
	n, ok := asInt(v)
	if !ok {
		return 0, fmt.Sprintf("Reference '%s' is %s, expected integer", op.Text(), KindOf(v)), nil
	}
	return n, "", nil
}

func buildStringCompare(op Operator) builderFunc {
	return func(st *buildState) (termFunc, error) {
		target, operand := st.target, st.operands[0]
		return func(event *types.Event) (outcome, error) {
			value, reason, err := readString(target, event)
			if err != nil || reason != "" {
				return failf("%s", reason), err
			}
			other, reason, err := operandString(operand, event)
			if err != nil || reason != "" {
				return failf("%s", reason), err
			}
			if !CompareStrings(op, value, other) {
				return failf("Comparison '%s' %s '%s' is false", value, op.Symbol(), other), nil
			}
			return pass(), nil
		}, nil
	}
}

func buildIntCompare(op Operator) builderFunc {
	return func(st *buildState) (termFunc, error) {
		target, operand := st.target, st.operands[0]
		return func(event *types.Event) (outcome, error) {
			value, reason, err := readInt(target, event)
			if err != nil || reason != "" {
				return failf("%s", reason), err
			}
			other, reason, err := operandInt(operand, event)
			if err != nil || reason != "" {
				return failf("%s", reason), err
			}
			if !CompareInts(op, value, other) {
				return failf("Comparison %d %s %d is false", value, op.Symbol(), other), nil
			}
			return pass(), nil
		}, nil
	}
}

func buildMatch(kind MatchKind) builderFunc {
	return func(st *buildState) (termFunc, error) {
		target, operand := st.target, st.operands[0]
		return func(event *types.Event) (outcome, error) {
			value, reason, err := readString(target, event)
			if err != nil || reason != "" {
				return failf("%s", reason), err
			}
			pattern, reason, err := operandString(operand, event)
			if err != nil || reason != "" {
				return failf("%s", reason), err
			}
			if !kind.apply(value, pattern) {
				return failf("'%s' %s '%s'", value, kind.verb(), pattern), nil
			}
			return pass(), nil
		}, nil
	}
}

func buildRegex(wantMatch bool) builderFunc {
	return func(st *buildState) (termFunc, error) {
		pattern := st.operands[0].(Literal).Value.(string)
		if len(pattern) > MaxRegexPatternLength {
			return nil, fmt.Errorf("%w: regex pattern length %d exceeds maximum of %d",
				types.ErrInvalidArgument, len(pattern), MaxRegexPatternLength)
		}
		re, err := regexp2.Compile(pattern, regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("%w: regex %q: %v", types.ErrInvalidArgument, pattern, err)
		}
		re.MatchTimeout = DefaultRegexTimeout

		target := st.target
		return func(event *types.Event) (outcome, error) {
			value, reason, err := readString(target, event)
			if err != nil || reason != "" {
				return failf("%s", reason), err
			}
			matched, err := re.MatchString(value)
			if err != nil {
				return failf("Regex '%s' did not complete: %v", pattern, err), nil
			}
			if matched != wantMatch {
				if wantMatch {
					return failf("'%s' does not match '%s'", value, pattern), nil
				}
				return failf("'%s' matches '%s'", value, pattern), nil
			}
			return pass(), nil
		}, nil
	}
}

func buildCIDRMatch(st *buildState) (termFunc, error) {
	prefixes := make([]netip.Prefix, 0, len(st.operands))
	for _, op := range st.operands {
		text := op.(Literal).Value.(string)
		p, err := netip.ParsePrefix(strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("%w: CIDR %q: %v", types.ErrInvalidArgument, text, err)
		}
		prefixes = append(prefixes, p.Masked())
	}

	target := st.target
	return func(event *types.Event) (outcome, error) {
		value, reason, err := readString(target, event)
		if err != nil || reason != "" {
			return failf("%s", reason), err
		}
		addr, err := netip.ParseAddr(value)
		if err != nil {
			return failf("'%s' is not an IP address", value), nil
		}
		addr = addr.Unmap()
		for _, p := range prefixes {
			if p.Contains(addr) {
				return pass(), nil
			}
		}
		return failf("'%s' is outside every configured network", value), nil
	}, nil
}

func buildExists(want bool) builderFunc {
	return func(st *buildState) (termFunc, error) {
		target := st.target
		return func(event *types.Event) (outcome, error) {
			_, found, err := readValue(target, event)
			if err != nil {
				return outcome{}, err
			}
			switch {
			case found == want:
				return pass(), nil
			case want:
				return failf("Target field '%s' not found", target), nil
			default:
				return failf("Target field '%s' exists", target), nil
			}
		}, nil
	}
}

func buildTypeCheck(kind ValueKind) builderFunc {
	return func(st *buildState) (termFunc, error) {
		target := st.target
		return func(event *types.Event) (outcome, error) {
			v, found, err := readValue(target, event)
			if err != nil {
				return outcome{}, err
			}
			if !found {
				return failf("Target field '%s' not found", target), nil
			}
			if got := KindOf(v); got != kind {
				return failf("Target field '%s' is %s, expected %s", target, got, kind), nil
			}
			return pass(), nil
		}, nil
	}
}

func buildArrayContains(st *buildState) (termFunc, error) {
	target, operands := st.target, st.operands

	// Numeric literals also match number elements: "5" finds [5] and ["5"].
	numeric := make([]any, len(operands))
	for i, op := range operands {
		if lit, ok := op.(Literal); ok {
			if s, ok := lit.Value.(string); ok {
				if n, err := strconv.ParseFloat(s, 64); err == nil {
					numeric[i] = n
				}
			}
		}
	}

	return func(event *types.Event) (outcome, error) {
		v, found, err := readValue(target, event)
		if err != nil {
			return outcome{}, err
		}
		if !found {
			return failf("Target field '%s' not found", target), nil
		}
		arr, ok := v.([]any)
		if !ok {
			return failf("Target field '%s' is %s, expected array", target, KindOf(v)), nil
		}
		for i, op := range operands {
			want, found, err := readOperand(op, event)
			if err != nil {
				return outcome{}, err
			}
			if found && compareIn(want, arr) {
				return pass(), nil
			}
			if numeric[i] != nil && compareIn(numeric[i], arr) {
				return pass(), nil
			}
		}
		return failf("Target array '%s' holds none of the given values", target), nil
	}, nil
}

// celEnv declares the variables visible to cel_match expressions.
var celEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("event", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("field", cel.DynType),
	)
})

func buildCELMatch(st *buildState) (termFunc, error) {
	expr := st.operands[0].(Literal).Value.(string)
	if len(expr) > MaxCELExpressionLength {
		return nil, fmt.Errorf("%w: expression length %d exceeds maximum of %d",
			types.ErrInvalidArgument, len(expr), MaxCELExpressionLength)
	}

	env, err := celEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues.Err() != nil {
		return nil, fmt.Errorf("%w: expression %q: %v", types.ErrInvalidArgument, expr, issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("%w: expression %q returns %s, want bool", types.ErrInvalidArgument, expr, out)
	}
	prg, err := env.Program(ast, cel.CostLimit(CELCostLimit))
	if err != nil {
		return nil, fmt.Errorf("%w: expression %q: %v", types.ErrInvalidArgument, expr, err)
	}

	target := st.target
	return func(event *types.Event) (outcome, error) {
		field, found, err := readValue(target, event)
		if err != nil {
			return outcome{}, err
		}
		if !found {
			return failf("Target field '%s' not found", target), nil
		}
		out, _, err := prg.Eval(map[string]any{
			"event": event.Root(),
			"field": field,
		})
		if err != nil {
			return failf("Expression '%s' failed: %v", expr, err), nil
		}
		matched, ok := out.Value().(bool)
		if !ok {
			return failf("Expression '%s' returned %s, expected bool", expr, out.Type()), nil
		}
		if !matched {
			return failf("Expression '%s' is false", expr), nil
		}
		return pass(), nil
	}, nil
}
