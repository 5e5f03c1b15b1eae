// internal/rules/fieldpath.go
package rules

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/solatis/opbuilder/internal/types"
)

/*
 * Field path resolution for event documents.
 *
 * Resolves '/'-separated paths through nested objects. Arrays are leaves: a
 * key segment applied to an array is a miss, never an index. Every lookup
 * walks from the root on its own, so sibling paths that share a prefix
 * (/parentA/field vs /parentB/field) cannot observe each other.
 *
 * Key functions:
 *   - Resolve: read a value (ErrFieldNotFound on miss)
 *   - Assign: copy-on-write write used by map helpers
 *
 * Error classes:
 *   - ErrFieldNotFound: data-level miss, helpers turn it into a failed Result
 *   - ErrMalformedEvent: a node that is not a JSON-shaped Go value; fatal
 */

// ResolveResult contains the resolved value.
type ResolveResult struct {
	Value any  // resolved value (nil is a valid JSON null)
	Found bool // true if path resolved to a value
}

// Resolve traverses the event following path segments.
// Returns ErrPathTooDeep if path exceeds MaxPathDepth.
// Returns ErrFieldNotFound if path does not exist in the event.
// Returns ErrMalformedEvent if the event or a visited node is not JSON-shaped.
func Resolve(path types.FieldPath, event *types.Event) (ResolveResult, error) {
	if event == nil {
		return ResolveResult{}, fmt.Errorf("%w: nil event", types.ErrMalformedEvent)
	}
	if len(path) == 0 {
		return ResolveResult{}, types.ErrFieldNotFound
	}
	if len(path) > types.MaxPathDepth {
		return ResolveResult{}, types.ErrPathTooDeep
	}
	return resolveRecursive(path, event.Root())
}

// resolveRecursive descends one object level per segment.
// Also used at build time to navigate inside definition values.
func resolveRecursive(path types.FieldPath, current any) (ResolveResult, error) {
	if len(path) == 0 {
		if !isJSONValue(current) {
			return ResolveResult{}, fmt.Errorf("%w: unsupported value type %T", types.ErrMalformedEvent, current)
		}
		return ResolveResult{Value: current, Found: true}, nil
	}

	switch v := current.(type) {
	case map[string]any:
		val, ok := v[path[0]]
		if !ok {
			return ResolveResult{}, types.ErrFieldNotFound
		}
		return resolveRecursive(path[1:], val)
	default:
		if !isJSONValue(current) {
			return ResolveResult{}, fmt.Errorf("%w: unsupported value type %T", types.ErrMalformedEvent, current)
		}
		// Scalar, null or array but path continues
		return ResolveResult{}, types.ErrFieldNotFound
	}
}

// Assign returns a new event with value written at path.
// Only the objects along the path are copied; the input event is untouched.
// Missing or null intermediate nodes become objects. A non-object
// intermediate node yields ErrFieldNotFound.
func Assign(path types.FieldPath, event *types.Event, value any) (*types.Event, error) {
	if len(path) == 0 {
		return nil, types.ErrInvalidTargetPath
	}
	root, ok := event.Root().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: root is %T, want object", types.ErrMalformedEvent, event.Root())
	}
	newRoot, err := assignRecursive(root, path, value)
	if err != nil {
		return nil, err
	}
	return types.NewEvent(newRoot), nil
}

// assignRecursive copies obj and replaces the child on the path.
func assignRecursive(obj map[string]any, path types.FieldPath, value any) (map[string]any, error) {
	out := make(map[string]any, len(obj)+1)
	for k, v := range obj {
		out[k] = v
	}

	key := path[0]
	if len(path) == 1 {
		out[key] = value
		return out, nil
	}

	var child map[string]any
	switch c := obj[key].(type) {
	case map[string]any:
		child = c
	case nil:
		child = map[string]any{}
	default:
		return nil, fmt.Errorf("%w: %q is %s, cannot descend", types.ErrFieldNotFound, key, KindOf(c))
	}

	newChild, err := assignRecursive(child, path[1:], value)
	if err != nil {
		return nil, err
	}
	out[key] = newChild
	return out, nil
}

// readValue resolves path and folds ErrFieldNotFound into found=false.
// Any other error is fatal and returned as-is.
func readValue(path types.FieldPath, event *types.Event) (any, bool, error) {
	res, err := Resolve(path, event)
	if err != nil {
		if errors.Is(err, types.ErrFieldNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return res.Value, res.Found, nil
}

// checkEvent rejects events that no term can evaluate.
func checkEvent(event *types.Event) error {
	if event == nil {
		return fmt.Errorf("%w: nil event", types.ErrMalformedEvent)
	}
	if _, ok := event.Root().(map[string]any); !ok {
		return fmt.Errorf("%w: root is %T, want object", types.ErrMalformedEvent, event.Root())
	}
	return nil
}

// isJSONValue reports whether v is a node type the accessor understands.
// Integer types are accepted because map helpers write int64 results.
func isJSONValue(v any) bool {
	switch v.(type) {
	case nil, string, bool, float64, int, int64, json.Number, []any, map[string]any:
		return true
	default:
		return false
	}
}
