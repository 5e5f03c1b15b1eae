// Package defs provides the definitions capability consumed by the helper
// builders: named values that rule text can reference with $name.
//
// Implementations must be safe for concurrent reads. The builders call Get
// only after Contains reported true, and treat a failing Get as a build error.
package defs

//go:generate mockgen -destination=mocks/mock_definitions.go -package=mocks -source=definitions.go Definitions

import (
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/solatis/opbuilder/internal/types"
)

// Definitions resolves named variables referenced inside rule text.
type Definitions interface {
	// Contains reports whether name is defined. Never fails.
	Contains(name string) bool
	// Get returns the value for name, or an error wrapping types.ErrLookup.
	Get(name string) (any, error)
}

// Map is an immutable Definitions backed by a map of decoded JSON values.
type Map struct {
	values map[string]any
}

// NewMap copies values into a new Map. Nil produces an empty set.
func NewMap(values map[string]any) *Map {
	m := &Map{values: make(map[string]any, len(values))}
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

// Empty returns a Map with no definitions.
func Empty() *Map {
	return NewMap(nil)
}

// FromJSON decodes a JSON object of name -> value.
func FromJSON(data []byte) (*Map, error) {
	var values map[string]any
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to decode definitions: %w", err)
	}
	return NewMap(values), nil
}

// FromYAML decodes a YAML mapping of name -> value.
// Values are normalized to the shapes encoding/json produces so that
// definitions and event fields compare the same way.
func FromYAML(data []byte) (*Map, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode definitions: %w", err)
	}
	// Round-trip through JSON: ints become float64, nested maps become map[string]any
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("definitions are not JSON-compatible: %w", err)
	}
	return FromJSON(encoded)
}

// Contains implements Definitions.
func (m *Map) Contains(name string) bool {
	_, ok := m.values[name]
	return ok
}

// Get implements Definitions.
func (m *Map) Get(name string) (any, error) {
	v, ok := m.values[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrLookup, name)
	}
	return v, nil
}

// Names returns the defined names in sorted order.
func (m *Map) Names() []string {
	names := make([]string, 0, len(m.values))
	for k := range m.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of definitions.
func (m *Map) Len() int {
	return len(m.values)
}
