// internal/rules/operand.go
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/solatis/opbuilder/internal/defs"
	"github.com/solatis/opbuilder/internal/types"
)

/*
 * Operand classification and resolution.
 *
 * Argument text is classified once, at build time:
 *   $a.b    -> Reference to path a.b
 *   other   -> Literal, verbatim (including \$x)
 *
 * A Reference whose first segment names a definition is bound to the
 * definition value during the build. Every other Reference is read from the
 * event on each evaluation.
 */

// ReferenceSigil marks an argument as a field or definition reference.
const ReferenceSigil = "$"

// Operand is a classified helper argument: Literal or Reference.
type Operand interface {
	// Text returns the argument as written in the rule.
	Text() string
	isOperand()
}

// Literal is a constant argument.
// Value holds the text until type checking coerces it (int64 for int positions).
type Literal struct {
	Raw   string
	Value any
}

// RefSource identifies where a Reference is read from.
type RefSource int

const (
	// SourceEvent references are resolved against each event.
	SourceEvent RefSource = iota
	// SourceDefinition references were bound to a definition value at build time.
	SourceDefinition
)

func (s RefSource) String() string {
	if s == SourceDefinition {
		return "definition"
	}
	return "event"
}

// Reference is a $-prefixed argument naming a path.
type Reference struct {
	Raw    string
	Path   types.FieldPath
	Source RefSource
	Value  any // bound value, only when Source == SourceDefinition
}

func (l Literal) Text() string   { return l.Raw }
func (r Reference) Text() string { return r.Raw }

func (Literal) isOperand()   {}
func (Reference) isOperand() {}

// Classify parses raw argument text into an Operand.
// Returns an error wrapping ErrInvalidReference for "$", "$a..b" and similar.
func Classify(text string) (Operand, error) {
	if !strings.HasPrefix(text, ReferenceSigil) {
		return Literal{Raw: text, Value: text}, nil
	}

	path, err := types.ParseDottedPath(text[len(ReferenceSigil):])
	if err != nil {
		if errors.Is(err, types.ErrPathTooDeep) {
			return nil, fmt.Errorf("%w: %q: %v", types.ErrInvalidReference, text, err)
		}
		return nil, err
	}
	return Reference{Raw: text, Path: path, Source: SourceEvent}, nil
}

// bindReference binds ref to a definition when its first segment is defined.
// Get is only called after Contains reported true; a failing Get or a missing
// nested member is ErrUndefinedDefinition.
func bindReference(ref Reference, d defs.Definitions) (Reference, error) {
	name := ref.Path[0]
	if d == nil || !d.Contains(name) {
		return ref, nil
	}

	value, err := d.Get(name)
	if err != nil {
		return ref, fmt.Errorf("%w: %q: %v", types.ErrUndefinedDefinition, name, err)
	}

	if len(ref.Path) > 1 {
		res, err := resolveRecursive(ref.Path[1:], value)
		if err != nil {
			return ref, fmt.Errorf("%w: %q has no member %q", types.ErrUndefinedDefinition, name, ref.Path[1:].Dotted())
		}
		value = res.Value
	}

	ref.Source = SourceDefinition
	ref.Value = cloneValue(value)
	return ref, nil
}

// cloneValue deep-copies JSON composites so a bound value never aliases
// the definition set or a caller's copy.
func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// ResolveOperand returns the operand value for event.
// Event references that do not resolve return ErrFieldNotFound.
func ResolveOperand(op Operand, event *types.Event) (any, error) {
	switch o := op.(type) {
	case Literal:
		return o.Value, nil
	case Reference:
		if o.Source == SourceDefinition {
			return o.Value, nil
		}
		res, err := Resolve(o.Path, event)
		if err != nil {
			return nil, err
		}
		return res.Value, nil
	default:
		return nil, fmt.Errorf("unsupported operand type %T", op)
	}
}

// readOperand folds ErrFieldNotFound into found=false, like readValue.
func readOperand(op Operand, event *types.Event) (any, bool, error) {
	v, err := ResolveOperand(op, event)
	if err != nil {
		if errors.Is(err, types.ErrFieldNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}
