// internal/rules/helpers.go
package rules

import (
	"fmt"
	"sort"
)

/*
 * Helper registry.
 *
 * Every helper name maps to exactly one HelperSpec. The registry is built
 * once at package initialisation and never written afterwards, so concurrent
 * builds can read it without locking.
 *
 * Args lists the accepted type per argument position. For variadic helpers
 * the last entry applies to every remaining position.
 */

// Unbounded marks a variadic helper; the effective maximum is types.MaxHelperArgs.
const Unbounded = -1

// builderFunc turns validated build state into the per-event closure.
type builderFunc func(st *buildState) (termFunc, error)

// HelperSpec describes one helper's signature.
type HelperSpec struct {
	Name    string
	Kind    TermKind
	MinArgs int
	MaxArgs int
	Args    []ArgType
	Cost    int
	build   builderFunc
}

// argType returns the accepted type for argument position i.
func (s *HelperSpec) argType(i int) ArgType {
	if len(s.Args) == 0 {
		return ArgAny
	}
	if i >= len(s.Args) {
		return s.Args[len(s.Args)-1]
	}
	return s.Args[i]
}

func (s *HelperSpec) arityText() string {
	switch {
	case s.MaxArgs == Unbounded:
		return fmt.Sprintf("at least %d arguments", s.MinArgs)
	case s.MinArgs == s.MaxArgs:
		return fmt.Sprintf("exactly %d arguments", s.MinArgs)
	default:
		return fmt.Sprintf("%d to %d arguments", s.MinArgs, s.MaxArgs)
	}
}

var registry = newRegistry()

func newRegistry() map[string]*HelperSpec {
	specs := []*HelperSpec{
		// String comparison
		comparison("string_equal", ArgString, OpEqual),
		comparison("string_not_equal", ArgString, OpNotEqual),
		comparison("string_greater", ArgString, OpGreater),
		comparison("string_greater_or_equal", ArgString, OpGreaterOrEqual),
		comparison("string_less", ArgString, OpLess),
		comparison("string_less_or_equal", ArgString, OpLessOrEqual),

		// Integer comparison
		comparison("int_equal", ArgInt, OpEqual),
		comparison("int_not_equal", ArgInt, OpNotEqual),
		comparison("int_greater", ArgInt, OpGreater),
		comparison("int_greater_or_equal", ArgInt, OpGreaterOrEqual),
		comparison("int_less", ArgInt, OpLess),
		comparison("int_less_or_equal", ArgInt, OpLessOrEqual),

		// String matching
		{Name: "starts_with", Kind: TermFilter, MinArgs: 1, MaxArgs: 1, Args: []ArgType{ArgString}, Cost: CostMatch, build: buildMatch(MatchPrefix)},
		{Name: "ends_with", Kind: TermFilter, MinArgs: 1, MaxArgs: 1, Args: []ArgType{ArgString}, Cost: CostMatch, build: buildMatch(MatchSuffix)},
		{Name: "contains", Kind: TermFilter, MinArgs: 1, MaxArgs: 1, Args: []ArgType{ArgString}, Cost: CostMatch, build: buildMatch(MatchSubstring)},
		{Name: "regex_match", Kind: TermFilter, MinArgs: 1, MaxArgs: 1, Args: []ArgType{ArgLiteral}, Cost: CostRegex, build: buildRegex(true)},
		{Name: "regex_not_match", Kind: TermFilter, MinArgs: 1, MaxArgs: 1, Args: []ArgType{ArgLiteral}, Cost: CostRegex, build: buildRegex(false)},
		{Name: "ip_cidr_match", Kind: TermFilter, MinArgs: 1, MaxArgs: Unbounded, Args: []ArgType{ArgLiteral}, Cost: CostCIDR, build: buildCIDRMatch},

		// Presence and type
		{Name: "exists", Kind: TermFilter, Cost: CostExists, build: buildExists(true)},
		{Name: "not_exists", Kind: TermFilter, Cost: CostExists, build: buildExists(false)},
		typeCheck("is_string", KindString),
		typeCheck("is_number", KindNumber),
		typeCheck("is_boolean", KindBoolean),
		typeCheck("is_array", KindArray),
		typeCheck("is_object", KindObject),
		typeCheck("is_null", KindNull),

		// Membership and expressions
		{Name: "array_contains", Kind: TermFilter, MinArgs: 1, MaxArgs: Unbounded, Args: []ArgType{ArgAny}, Cost: CostIn, build: buildArrayContains},
		{Name: "cel_match", Kind: TermFilter, MinArgs: 1, MaxArgs: 1, Args: []ArgType{ArgLiteral}, Cost: CostCEL, build: buildCELMatch},

		// Transforms
		{Name: "upcase", Kind: TermMap, MinArgs: 1, MaxArgs: 1, Args: []ArgType{ArgString}, Cost: CostTransform, build: buildCaseMap(true)},
		{Name: "downcase", Kind: TermMap, MinArgs: 1, MaxArgs: 1, Args: []ArgType{ArgString}, Cost: CostTransform, build: buildCaseMap(false)},
		{Name: "trim", Kind: TermMap, MinArgs: 2, MaxArgs: 2, Args: []ArgType{ArgLiteral, ArgLiteral}, Cost: CostTransform, build: buildTrim},
		{Name: "concat", Kind: TermMap, MinArgs: 2, MaxArgs: Unbounded, Args: []ArgType{ArgAny}, Cost: CostTransform, build: buildConcat},
		{Name: "int_calculate", Kind: TermMap, MinArgs: 2, MaxArgs: 2, Args: []ArgType{ArgLiteral, ArgInt}, Cost: CostTransform, build: buildIntCalculate},
		{Name: "set", Kind: TermMap, MinArgs: 1, MaxArgs: 1, Args: []ArgType{ArgAny}, Cost: CostTransform, build: buildSet},
	}

	m := make(map[string]*HelperSpec, len(specs))
	for _, s := range specs {
		if _, dup := m[s.Name]; dup {
			panic("duplicate helper " + s.Name)
		}
		m[s.Name] = s
	}
	return m
}

func comparison(name string, t ArgType, op Operator) *HelperSpec {
	cost := CostOrder
	if op == OpEqual || op == OpNotEqual {
		cost = CostEq
	}
	build := buildStringCompare(op)
	if t == ArgInt {
		build = buildIntCompare(op)
	}
	return &HelperSpec{Name: name, Kind: TermFilter, MinArgs: 1, MaxArgs: 1, Args: []ArgType{t}, Cost: cost, build: build}
}

func typeCheck(name string, kind ValueKind) *HelperSpec {
	return &HelperSpec{Name: name, Kind: TermFilter, Cost: CostTypeCheck, build: buildTypeCheck(kind)}
}

// LookupHelper returns a copy of the spec registered under name.
func LookupHelper(name string) (HelperSpec, bool) {
	s, ok := registry[name]
	if !ok {
		return HelperSpec{}, false
	}
	c := *s
	c.Args = append([]ArgType(nil), s.Args...)
	return c, true
}

// HelperNames returns every registered helper name, sorted.
func HelperNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
