// internal/rules/term.go
package rules

import (
	"fmt"
	"strings"

	"github.com/solatis/opbuilder/internal/types"
)

// TermKind distinguishes predicates from transforms.
type TermKind int

const (
	// TermFilter terms never change the event.
	TermFilter TermKind = iota
	// TermMap terms may return a new event.
	TermMap
)

func (k TermKind) String() string {
	if k == TermMap {
		return "map"
	}
	return "filter"
}

// Result is the outcome of evaluating a Term against one event.
type Result struct {
	Success bool
	Event   *types.Event // input event, or the new event written by a map term
	Trace   string
}

// outcome is what a helper closure reports; Term.Evaluate formats the trace.
type outcome struct {
	ok     bool
	event  *types.Event // nil keeps the input event
	reason string
}

// termFunc is the per-event closure produced by a helper builder.
// It returns an error only for malformed events.
type termFunc func(event *types.Event) (outcome, error)

func pass() outcome { return outcome{ok: true} }

func passWith(event *types.Event) outcome { return outcome{ok: true, event: event} }

func failf(format string, args ...any) outcome {
	return outcome{reason: fmt.Sprintf(format, args...)}
}

// Term is an immutable compiled helper invocation.
// Safe for concurrent use by multiple goroutines.
type Term struct {
	name     string
	helper   string
	target   types.FieldPath
	operands []Operand
	kind     TermKind
	cost     int
	fn       termFunc
}

// Name returns the display name, e.g. helper.string_greater[/a, b].
func (t *Term) Name() string { return t.name }

// Helper returns the helper name the term was built from.
func (t *Term) Helper() string { return t.helper }

// Target returns the target field path.
func (t *Term) Target() types.FieldPath { return t.target }

// Kind reports whether the term is a filter or a map.
func (t *Term) Kind() TermKind { return t.kind }

// Cost returns the estimated evaluation cost used for check ordering.
func (t *Term) Cost() int { return t.cost }

// Operands returns a copy of the classified arguments.
// Bound definition values are deep-copied as well.
func (t *Term) Operands() []Operand {
	out := make([]Operand, len(t.operands))
	for i, op := range t.operands {
		if ref, ok := op.(Reference); ok && ref.Source == SourceDefinition {
			ref.Path = append(types.FieldPath(nil), ref.Path...)
			ref.Value = cloneValue(ref.Value)
			op = ref
		}
		out[i] = op
	}
	return out
}

// Evaluate runs the term against event.
// Missing fields and wrong runtime types produce a failed Result.
// A malformed event returns an error wrapping types.ErrMalformedEvent.
func (t *Term) Evaluate(event *types.Event) (Result, error) {
	if err := checkEvent(event); err != nil {
		return Result{Event: event}, fmt.Errorf("%s: %w", t.name, err)
	}

	out, err := t.fn(event)
	if err != nil {
		return Result{Event: event}, fmt.Errorf("%s: %w", t.name, err)
	}

	res := Result{Success: out.ok, Event: event}
	if out.event != nil {
		res.Event = out.event
	}
	if out.ok {
		res.Trace = fmt.Sprintf("[%s] -> Success", t.name)
	} else {
		res.Trace = fmt.Sprintf("[%s] -> Failure: %s", t.name, out.reason)
	}
	return res, nil
}

// String implements fmt.Stringer.
func (t *Term) String() string { return t.name }

// termName renders helper.<name>[<target>, <args...>].
func termName(call types.HelperCall) string {
	parts := make([]string, 0, len(call.Args)+1)
	parts = append(parts, call.Target)
	parts = append(parts, call.Args...)
	return fmt.Sprintf("helper.%s[%s]", call.Helper, strings.Join(parts, ", "))
}
