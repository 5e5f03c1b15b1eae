// internal/rules/compile.go
package rules

import (
	"fmt"

	"github.com/solatis/opbuilder/internal/defs"
	"github.com/solatis/opbuilder/internal/types"
)

/*
 * Helper compilation and validation.
 *
 * Compiles a types.HelperCall into an immutable Term. Validation runs as an
 * ordered list of steps and stops at the first failure, so an unknown helper
 * is reported before a bad path, a bad path before a wrong argument count,
 * and so on:
 *   1. helper name registered         (ErrUnknownHelper)
 *   2. target path well-formed        (ErrInvalidTargetPath, ErrPathTooDeep)
 *   3. argument count within bounds   (ErrArity)
 *   4. arguments classified and bound (ErrInvalidReference, ErrUndefinedDefinition)
 *   5. operand types                  (ErrTypeMismatch, ErrInvalidArgument)
 * The helper's own builder then runs and may reject arguments it cannot use
 * (bad regex, bad CIDR, unknown keyword) with ErrInvalidArgument.
 *
 * Build never evaluates anything against an event. Everything the closure
 * needs is captured here, so evaluation does no parsing.
 */

// BuildError reports why a helper invocation could not be compiled.
type BuildError struct {
	Helper string
	Target string
	Err    error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build %s on %q: %v", e.Helper, e.Target, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// buildState accumulates what the pipeline steps learn about a call.
type buildState struct {
	call     types.HelperCall
	defs     defs.Definitions
	spec     *HelperSpec
	target   types.FieldPath
	operands []Operand
}

type buildStep func(*buildState) error

// buildPipeline runs in order; the first failing step aborts the build.
var buildPipeline = []buildStep{
	resolveHelper,
	parseTarget,
	checkArity,
	classifyOperands,
	checkOperandTypes,
}

// Build compiles target, helper and args into a Term.
// A nil d behaves like an empty definitions set.
func Build(target, helper string, args []string, d defs.Definitions) (*Term, error) {
	return BuildCall(types.HelperCall{Target: target, Helper: helper, Args: args}, d)
}

// BuildCall compiles a HelperCall into a Term.
// All failures are returned as *BuildError.
func BuildCall(call types.HelperCall, d defs.Definitions) (*Term, error) {
	st := &buildState{call: call, defs: d}
	for _, step := range buildPipeline {
		if err := step(st); err != nil {
			return nil, &BuildError{Helper: call.Helper, Target: call.Target, Err: err}
		}
	}

	fn, err := st.spec.build(st)
	if err != nil {
		return nil, &BuildError{Helper: call.Helper, Target: call.Target, Err: err}
	}

	return &Term{
		name:     termName(call),
		helper:   st.spec.Name,
		target:   st.target,
		operands: st.operands,
		kind:     st.spec.Kind,
		cost:     CalculateTermCost(st.spec, st.target, st.operands),
		fn:       fn,
	}, nil
}

func resolveHelper(st *buildState) error {
	spec, ok := registry[st.call.Helper]
	if !ok {
		return fmt.Errorf("%w: %q", types.ErrUnknownHelper, st.call.Helper)
	}
	st.spec = spec
	return nil
}

func parseTarget(st *buildState) error {
	path, err := types.ParseFieldPath(st.call.Target)
	if err != nil {
		return err
	}
	st.target = path
	return nil
}

func checkArity(st *buildState) error {
	n := len(st.call.Args)
	maxArgs := st.spec.MaxArgs
	if maxArgs == Unbounded || maxArgs > types.MaxHelperArgs {
		maxArgs = types.MaxHelperArgs
	}
	if n < st.spec.MinArgs || n > maxArgs {
		return fmt.Errorf("%w: %s takes %s, got %d", types.ErrArity, st.spec.Name, st.spec.arityText(), n)
	}
	return nil
}

func classifyOperands(st *buildState) error {
	st.operands = make([]Operand, 0, len(st.call.Args))
	for _, arg := range st.call.Args {
		op, err := Classify(arg)
		if err != nil {
			return err
		}
		if ref, ok := op.(Reference); ok {
			bound, err := bindReference(ref, st.defs)
			if err != nil {
				return err
			}
			op = bound
		}
		st.operands = append(st.operands, op)
	}
	return nil
}

func checkOperandTypes(st *buildState) error {
	for i, op := range st.operands {
		coerced, err := coerceOperand(op, st.spec.argType(i))
		if err != nil {
			return fmt.Errorf("argument %d: %w", i+1, err)
		}
		st.operands[i] = coerced
	}
	return nil
}
