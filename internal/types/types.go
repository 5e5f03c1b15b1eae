// Package types provides domain models shared across opbuilder components.
//
// The event document, field paths, helper calls and sentinel errors live here
// so that internal/rules, internal/asset and the service layer agree on one
// vocabulary without importing each other. Only ids.go pulls in a third-party
// module (uuid).
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EventID identifies an event inside an evaluation batch.
type EventID string

// DefinitionSetID represents a UUIDv7 definition set identifier.
type DefinitionSetID string

// Event is a decoded structured telemetry document.
// The root is the tree produced by encoding/json (map[string]any, []any,
// string, float64, bool, nil). Helpers treat an Event as read-only; map
// helpers produce a new Event instead of mutating this one.
type Event struct {
	root any
}

// NewEvent wraps an already-decoded document.
// No validation is done here; malformed trees surface as ErrMalformedEvent
// when a term walks into them.
func NewEvent(root any) *Event {
	return &Event{root: root}
}

// ParseEvent decodes a JSON object into an Event.
// Returns ErrPayloadTooLarge above MaxPayloadSize and ErrMalformedEvent for
// invalid JSON or a non-object root.
func ParseEvent(data []byte) (*Event, error) {
	if len(data) > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}

	var root any
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after document", ErrMalformedEvent)
	}
	if _, ok := root.(map[string]any); !ok {
		return nil, fmt.Errorf("%w: root must be an object, got %T", ErrMalformedEvent, root)
	}
	return &Event{root: root}, nil
}

// Root returns the underlying document tree.
func (e *Event) Root() any {
	if e == nil {
		return nil
	}
	return e.root
}

// MarshalJSON implements json.Marshaler.
func (e *Event) MarshalJSON() ([]byte, error) {
	if e == nil {
		return []byte("null"), nil
	}
	return json.Marshal(e.root)
}

// String renders the event as compact JSON for traces and logs.
func (e *Event) String() string {
	b, err := e.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<unencodable event: %v>", err)
	}
	return string(b)
}

// Resource limits enforced by the builder and the path accessor.
const (
	// MaxPayloadSize limits a single event document.
	MaxPayloadSize = 1024 * 1024

	// MaxPathDepth bounds both target paths and reference paths.
	MaxPathDepth = 16

	// MaxHelperArgs bounds variadic helpers (array_contains, concat, ip_cidr_match).
	MaxHelperArgs = 64
)
