// internal/rules/evaluate.go
package rules

import (
	"fmt"
	"sort"

	"github.com/solatis/opbuilder/internal/types"
)

/*
 * Expression evaluation.
 *
 * An Expression is the compiled form of an asset: a check stage and a
 * normalize stage.
 *
 * Check: filter terms only, evaluated in ascending cost order (stable, so
 * equal-cost terms keep declaration order). The first failing term stops
 * evaluation and the expression does not match.
 *
 * Normalize: runs only after every check passed, in declaration order. Each
 * term receives the event produced by the previous one. A failing normalize
 * term is recorded in the traces and skipped; it does not undo earlier writes
 * or stop later terms.
 *
 * Errors: only a malformed event aborts evaluation with an error.
 */

// Expression is an immutable compiled check/normalize pipeline.
type Expression struct {
	name      string
	check     []*Term
	normalize []*Term
}

// ExpressionResult is the outcome of evaluating an Expression.
type ExpressionResult struct {
	Matched    bool
	Event      *types.Event
	Traces     []string
	FailedTerm string // name of the first failing check term, if any
}

// NewExpression orders check terms by cost and validates stage kinds.
// Map terms are rejected in the check stage.
func NewExpression(name string, check, normalize []*Term) (*Expression, error) {
	ordered := make([]*Term, len(check))
	copy(ordered, check)
	for _, t := range ordered {
		if t.Kind() != TermFilter {
			return nil, fmt.Errorf("%w: map helper %s in check stage", types.ErrInvalidArgument, t.Name())
		}
	}

	// Stable sort: equal-cost terms maintain declaration order
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Cost() < ordered[j].Cost()
	})

	return &Expression{
		name:      name,
		check:     ordered,
		normalize: append([]*Term(nil), normalize...),
	}, nil
}

// Name returns the asset name.
func (x *Expression) Name() string { return x.name }

// CheckTerms returns the check stage in evaluation order.
func (x *Expression) CheckTerms() []*Term { return append([]*Term(nil), x.check...) }

// NormalizeTerms returns the normalize stage in evaluation order.
func (x *Expression) NormalizeTerms() []*Term { return append([]*Term(nil), x.normalize...) }

// Evaluate runs the check stage and, if it passes, the normalize stage.
func (x *Expression) Evaluate(event *types.Event) (ExpressionResult, error) {
	result := ExpressionResult{
		Event:  event,
		Traces: make([]string, 0, len(x.check)+len(x.normalize)),
	}

	for _, term := range x.check {
		r, err := term.Evaluate(event)
		if err != nil {
			return result, err
		}
		result.Traces = append(result.Traces, r.Trace)
		if !r.Success {
			result.FailedTerm = term.Name()
			return result, nil
		}
	}

	current := event
	for _, term := range x.normalize {
		r, err := term.Evaluate(current)
		if err != nil {
			return result, err
		}
		result.Traces = append(result.Traces, r.Trace)
		if r.Success {
			current = r.Event
		}
	}

	result.Matched = true
	result.Event = current
	return result, nil
}
