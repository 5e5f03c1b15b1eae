package rules

import (
	"errors"
	"testing"

	"github.com/solatis/opbuilder/internal/defs"
	"github.com/solatis/opbuilder/internal/defs/mocks"
	"github.com/solatis/opbuilder/internal/types"
)

// validArgs holds one well-formed argument list per registered helper.
var validArgs = map[string][]string{
	"string_equal":            {"value"},
	"string_not_equal":        {"$other"},
	"string_greater":          {"value1"},
	"string_greater_or_equal": {"value1"},
	"string_less":             {"value1"},
	"string_less_or_equal":    {"value1"},
	"int_equal":               {"1"},
	"int_not_equal":           {"-1"},
	"int_greater":             {"0"},
	"int_greater_or_equal":    {"$other"},
	"int_less":                {"100"},
	"int_less_or_equal":       {"100"},
	"starts_with":             {"pre"},
	"ends_with":               {"post"},
	"contains":                {"mid"},
	"regex_match":             {`^a+$`},
	"regex_not_match":         {`^a+$`},
	"ip_cidr_match":           {"10.0.0.0/8", "fd00::/8"},
	"exists":                  {},
	"not_exists":              {},
	"is_string":               {},
	"is_number":               {},
	"is_boolean":              {},
	"is_array":                {},
	"is_object":               {},
	"is_null":                 {},
	"array_contains":          {"a", "$b"},
	"cel_match":               {`field == "x"`},
	"upcase":                  {"$name"},
	"downcase":                {"NAME"},
	"trim":                    {"both", " "},
	"concat":                  {"a", "$b", "c"},
	"int_calculate":           {"sum", "1"},
	"set":                     {"value"},
}

func TestBuild_EveryHelperBuilds(t *testing.T) {
	for _, name := range HelperNames() {
		t.Run(name, func(t *testing.T) {
			args, ok := validArgs[name]
			if !ok {
				t.Fatalf("no test arguments for helper %s", name)
			}
			term, err := Build("/field", name, args, mocks.FailDefinitions{})
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if term.Helper() != name || term.Target().String() != "/field" {
				t.Errorf("term = %s, want helper %s on /field", term.Name(), name)
			}
		})
	}
}

func TestBuild_ErrorPrecedence(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		helper  string
		args    []string
		wantErr error
	}{
		{"unknown helper beats everything", "", "no_such_helper", nil, types.ErrUnknownHelper},
		{"empty target beats arity", "", "string_greater", nil, types.ErrInvalidTargetPath},
		{"root target", "/", "exists", nil, types.ErrInvalidTargetPath},
		{"relative target", "field", "exists", nil, types.ErrInvalidTargetPath},
		{"empty segment", "/a//b", "exists", nil, types.ErrInvalidTargetPath},
		{"arity beats references", "/f", "string_greater", []string{"$", "$"}, types.ErrArity},
		{"too few", "/f", "string_greater", nil, types.ErrArity},
		{"extra args to nullary", "/f", "exists", []string{"x"}, types.ErrArity},
		{"reference before type", "/f", "int_greater", []string{"$a..b"}, types.ErrInvalidReference},
		{"bare sigil", "/f", "string_equal", []string{"$"}, types.ErrInvalidReference},
		{"non-integer literal", "/f", "int_greater", []string{"ten"}, types.ErrTypeMismatch},
		{"float literal", "/f", "int_equal", []string{"1.5"}, types.ErrTypeMismatch},
		{"reference in literal position", "/f", "regex_match", []string{"$pattern"}, types.ErrInvalidArgument},
		{"bad regex", "/f", "regex_match", []string{"(unclosed"}, types.ErrInvalidArgument},
		{"bad CIDR", "/f", "ip_cidr_match", []string{"10.0.0.0/33"}, types.ErrInvalidArgument},
		{"bad trim side", "/f", "trim", []string{"middle", " "}, types.ErrInvalidArgument},
		{"multi-char trim", "/f", "trim", []string{"both", "ab"}, types.ErrInvalidArgument},
		{"unknown operator", "/f", "int_calculate", []string{"pow", "2"}, types.ErrInvalidArgument},
		{"division by zero", "/f", "int_calculate", []string{"div", "0"}, types.ErrInvalidArgument},
		{"bad CEL", "/f", "cel_match", []string{"field =="}, types.ErrInvalidArgument},
		{"non-bool CEL", "/f", "cel_match", []string{`"text"`}, types.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.target, tt.helper, tt.args, mocks.FailDefinitions{})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Build() error = %v, want %v", err, tt.wantErr)
			}
			var be *BuildError
			if !errors.As(err, &be) {
				t.Fatalf("Build() error = %T, want *BuildError", err)
			}
			if be.Helper != tt.helper || be.Target != tt.target {
				t.Errorf("BuildError = {%s %s}, want {%s %s}", be.Helper, be.Target, tt.helper, tt.target)
			}
		})
	}
}

func TestBuild_TooManyArguments(t *testing.T) {
	args := make([]string, types.MaxHelperArgs+1)
	for i := range args {
		args[i] = "x"
	}
	if _, err := Build("/f", "concat", args, nil); !errors.Is(err, types.ErrArity) {
		t.Errorf("Build() error = %v, want ErrArity", err)
	}
}

func TestBuild_DefinitionTypeChecks(t *testing.T) {
	d := defs.NewMap(map[string]any{
		"name":  "sshd",
		"limit": float64(10),
		"ratio": 1.5,
	})

	tests := []struct {
		name    string
		helper  string
		arg     string
		wantErr error
	}{
		{"string definition for string helper", "string_equal", "$name", nil},
		{"number definition for string helper", "string_equal", "$limit", types.ErrTypeMismatch},
		{"integral definition for int helper", "int_less", "$limit", nil},
		{"fractional definition for int helper", "int_less", "$ratio", types.ErrTypeMismatch},
		{"string definition for int helper", "int_less", "$name", types.ErrTypeMismatch},
		{"undefined falls back to event", "int_less", "$pid", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build("/f", tt.helper, []string{tt.arg}, d)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Build() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Build() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuild_LyingDefinitions(t *testing.T) {
	_, err := Build("/f", "string_equal", []string{"$anything"}, mocks.LyingDefinitions{})
	if !errors.Is(err, types.ErrUndefinedDefinition) {
		t.Errorf("Build() error = %v, want ErrUndefinedDefinition", err)
	}

	// Literal-only calls never consult the provider
	if _, err := Build("/f", "string_equal", []string{"plain"}, mocks.LyingDefinitions{}); err != nil {
		t.Errorf("Build(literal) error = %v", err)
	}
}

func TestLookupHelper(t *testing.T) {
	spec, ok := LookupHelper("int_calculate")
	if !ok {
		t.Fatal("LookupHelper(int_calculate) not found")
	}
	if spec.Kind != TermMap || spec.MinArgs != 2 || spec.MaxArgs != 2 {
		t.Errorf("spec = %+v", spec)
	}

	spec.Args[0] = ArgAny
	again, _ := LookupHelper("int_calculate")
	if again.Args[0] != ArgLiteral {
		t.Error("LookupHelper must return an isolated copy")
	}

	if _, ok := LookupHelper("nope"); ok {
		t.Error("LookupHelper(nope) found")
	}
}

func TestCalculateTermCost_Ordering(t *testing.T) {
	exists := mustBuild(t, "/a", "exists")
	intEq := mustBuild(t, "/a", "int_equal", "1")
	strEq := mustBuild(t, "/a", "string_equal", "x")
	regex := mustBuild(t, "/a", "regex_match", "x")
	deep := mustBuild(t, "/a/b/c", "exists")
	withRef := mustBuild(t, "/a", "int_equal", "$b.c")

	if !(exists.Cost() < intEq.Cost() && intEq.Cost() < strEq.Cost()) {
		t.Errorf("costs exists=%d int_equal=%d string_equal=%d, want ascending",
			exists.Cost(), intEq.Cost(), strEq.Cost())
	}
	if regex.Cost() <= intEq.Cost() {
		t.Errorf("regex cost %d must exceed int_equal cost %d", regex.Cost(), intEq.Cost())
	}
	if deep.Cost() <= exists.Cost() {
		t.Errorf("deeper lookup cost %d must exceed %d", deep.Cost(), exists.Cost())
	}
	if withRef.Cost() <= intEq.Cost() {
		t.Errorf("event reference cost %d must exceed literal cost %d", withRef.Cost(), intEq.Cost())
	}
}
