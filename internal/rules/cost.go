// internal/rules/cost.go
package rules

import "github.com/solatis/opbuilder/internal/types"

/*
 * Cost model for check ordering.
 *
 * cost = lookup_cost + (helper_cost * type_multiplier)
 *
 * lookup_cost charges every path segment the term reads from the event: the
 * target plus every event reference. Definition references were resolved at
 * build time and cost nothing. The type multiplier comes from the first
 * argument position (integer work is cheaper than string work).
 *
 * Check stages evaluate terms in ascending cost so cheap presence tests
 * short-circuit expensive regex or CEL evaluation on non-matching events.
 */

const (
	// Helper base costs
	CostExists    = 1
	CostTypeCheck = 1
	CostEq        = 5
	CostOrder     = 7
	CostIn        = 8
	CostMatch     = 10
	CostCIDR      = 12
	CostTransform = 16
	CostRegex     = 48
	CostCEL       = 128

	// Field lookup cost per path segment
	CostLookupPerSegment = 128

	// Argument type multipliers
	MultiplierInt     = 1
	MultiplierLiteral = 4
	MultiplierString  = 48
	MultiplierAny     = 128
)

// CalculateTermCost computes the ordering cost of a compiled helper call.
func CalculateTermCost(spec *HelperSpec, target types.FieldPath, operands []Operand) int {
	lookupCost := len(target) * CostLookupPerSegment
	for _, op := range operands {
		if ref, ok := op.(Reference); ok && ref.Source == SourceEvent {
			lookupCost += len(ref.Path) * CostLookupPerSegment
		}
	}

	typeMult := MultiplierInt
	if spec.MinArgs > 0 || len(spec.Args) > 0 {
		typeMult = typeMultiplier(spec.argType(0))
	}

	return lookupCost + spec.Cost*typeMult
}

func typeMultiplier(t ArgType) int {
	switch t {
	case ArgInt:
		return MultiplierInt
	case ArgLiteral:
		return MultiplierLiteral
	case ArgString:
		return MultiplierString
	default:
		return MultiplierAny
	}
}
