// internal/types/fieldpath.go
package types

/*
 * Field path syntax.
 *
 * Two textual forms name the same FieldPath:
 *   - target form:    /parent/child   (absolute, '/'-separated)
 *   - reference form: parent.child    (after the '$' sigil, '.'-separated)
 *
 * Both parse into an ordered list of non-empty, case-sensitive segments.
 * Array indices are not special: a segment is always an object key.
 */

import (
	"fmt"
	"strings"
)

// FieldPath is an absolute path into an event, one object key per segment.
type FieldPath []string

// ParseFieldPath parses the target form "/a/b".
// Returns ErrInvalidTargetPath for "", "/", missing leading slash or empty segments,
// and ErrPathTooDeep above MaxPathDepth.
func ParseFieldPath(s string) (FieldPath, error) {
	if !strings.HasPrefix(s, "/") {
		return nil, fmt.Errorf("%w: %q must start with '/'", ErrInvalidTargetPath, s)
	}
	return splitSegments(s[1:], "/", ErrInvalidTargetPath)
}

// ParseDottedPath parses the reference form "a.b".
// Returns ErrInvalidReference for empty input or empty segments.
func ParseDottedPath(s string) (FieldPath, error) {
	return splitSegments(s, ".", ErrInvalidReference)
}

// splitSegments splits on sep and rejects empty segments with the given sentinel.
func splitSegments(s, sep string, invalid error) (FieldPath, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty path", invalid)
	}
	parts := strings.Split(s, sep)
	if len(parts) > MaxPathDepth {
		return nil, ErrPathTooDeep
	}
	for i, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: empty segment at position %d in %q", invalid, i, s)
		}
	}
	return FieldPath(parts), nil
}

// String renders the target form.
func (p FieldPath) String() string {
	return "/" + strings.Join(p, "/")
}

// Dotted renders the reference form.
func (p FieldPath) Dotted() string {
	return strings.Join(p, ".")
}
