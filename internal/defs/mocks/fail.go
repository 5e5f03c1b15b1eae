package mocks

import (
	"fmt"

	"github.com/solatis/opbuilder/internal/types"
)

// FailDefinitions knows no names and fails every Get.
// Builders given this provider must never depend on a successful lookup.
type FailDefinitions struct{}

// Contains always reports false.
func (FailDefinitions) Contains(string) bool { return false }

// Get always fails.
func (FailDefinitions) Get(name string) (any, error) {
	return nil, fmt.Errorf("%w: FailDefinitions.Get(%q) called", types.ErrLookup, name)
}

// LyingDefinitions claims to know every name but fails every Get.
// Exercises the build-time handling of a provider that breaks its contract.
type LyingDefinitions struct{}

// Contains always reports true.
func (LyingDefinitions) Contains(string) bool { return true }

// Get always fails.
func (LyingDefinitions) Get(name string) (any, error) {
	return nil, fmt.Errorf("%w: LyingDefinitions.Get(%q) called", types.ErrLookup, name)
}
