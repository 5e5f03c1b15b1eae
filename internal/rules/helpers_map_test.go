package rules

import (
	"math"
	"testing"

	"github.com/solatis/opbuilder/internal/defs"
)

func TestMapHelpers(t *testing.T) {
	tests := []struct {
		name   string
		target string
		helper string
		args   []string
		event  string
		want   any
	}{
		{"upcase reference", "/out", "upcase", []string{"$name"}, `{"name": "sshd"}`, "SSHD"},
		{"upcase literal", "/out", "upcase", []string{"abc"}, `{}`, "ABC"},
		{"downcase in place", "/name", "downcase", []string{"$name"}, `{"name": "SSHD"}`, "sshd"},
		{"trim both", "/s", "trim", []string{"both", "-"}, `{"s": "--x--"}`, "x"},
		{"trim begin", "/s", "trim", []string{"begin", "-"}, `{"s": "--x--"}`, "x--"},
		{"trim end", "/s", "trim", []string{"end", "-"}, `{"s": "--x--"}`, "--x"},
		{"concat mixed", "/out", "concat", []string{"pid-", "$pid", "-", "$ok"}, `{"pid": 42, "ok": true}`, "pid-42-true"},
		{"int_calculate sum", "/n", "int_calculate", []string{"sum", "5"}, `{"n": 10}`, int64(15)},
		{"int_calculate sub", "/n", "int_calculate", []string{"sub", "$m"}, `{"n": 10, "m": 3}`, int64(7)},
		{"int_calculate mul", "/n", "int_calculate", []string{"mul", "-2"}, `{"n": 10}`, int64(-20)},
		{"int_calculate div", "/n", "int_calculate", []string{"div", "3"}, `{"n": 10}`, int64(3)},
		{"set literal nested", "/a/b", "set", []string{"v"}, `{}`, "v"},
		{"set reference", "/copy", "set", []string{"$src"}, `{"src": 1.5}`, 1.5},
		{"set backslash sigil verbatim", "/s", "set", []string{`\$HOME`}, `{}`, `\$HOME`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term := mustBuild(t, tt.target, tt.helper, tt.args...)
			if term.Kind() != TermMap {
				t.Fatalf("Kind() = %v, want map", term.Kind())
			}
			input := mustEvent(t, tt.event)
			before := input.String()

			res, err := term.Evaluate(input)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if !res.Success {
				t.Fatalf("Success = false (trace %s)", res.Trace)
			}
			got, err := Resolve(mustPath(t, tt.target), res.Event)
			if err != nil {
				t.Fatalf("Resolve(result) error = %v", err)
			}
			if got.Value != tt.want {
				t.Errorf("%s = %#v, want %#v", tt.target, got.Value, tt.want)
			}
			if input.String() != before {
				t.Errorf("input event modified: %s, was %s", input.String(), before)
			}
		})
	}
}

func TestMapHelpers_Failures(t *testing.T) {
	tests := []struct {
		name   string
		target string
		helper string
		args   []string
		event  string
	}{
		{"upcase missing reference", "/out", "upcase", []string{"$name"}, `{}`},
		{"upcase non-string", "/out", "upcase", []string{"$name"}, `{"name": 1}`},
		{"trim missing target", "/s", "trim", []string{"both", " "}, `{}`},
		{"concat missing operand", "/out", "concat", []string{"a", "$b"}, `{}`},
		{"concat object operand", "/out", "concat", []string{"a", "$b"}, `{"b": {}}`},
		{"int_calculate non-integer target", "/n", "int_calculate", []string{"sum", "1"}, `{"n": 1.5}`},
		{"int_calculate division by zero reference", "/n", "int_calculate", []string{"div", "$z"}, `{"n": 1, "z": 0}`},
		{"set through scalar", "/s/x", "set", []string{"v"}, `{"s": "text"}`},
		{"set missing reference", "/s", "set", []string{"$nope"}, `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := mustEvent(t, tt.event)
			res, err := mustBuild(t, tt.target, tt.helper, tt.args...).Evaluate(input)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if res.Success {
				t.Fatalf("Success = true, want false")
			}
			if res.Event != input {
				t.Error("failed map term must return the input event")
			}
		})
	}
}

func TestCalculate_Overflow(t *testing.T) {
	tests := []struct {
		calc string
		a, b int64
		ok   bool
	}{
		{CalcSum, math.MaxInt64, 1, false},
		{CalcSum, math.MinInt64, -1, false},
		{CalcSum, 1, 2, true},
		{CalcSub, math.MinInt64, 1, false},
		{CalcSub, math.MaxInt64, -1, false},
		{CalcSub, 5, 7, true},
		{CalcMul, math.MaxInt64, 2, false},
		{CalcMul, math.MinInt64, -1, false},
		{CalcMul, -1, math.MinInt64, false},
		{CalcMul, 0, math.MinInt64, true},
		{CalcDiv, math.MinInt64, -1, false},
		{CalcDiv, 7, 0, false},
		{CalcDiv, 7, 2, true},
	}

	for _, tt := range tests {
		if _, ok := calculate(tt.calc, tt.a, tt.b); ok != tt.ok {
			t.Errorf("calculate(%s, %d, %d) ok = %v, want %v", tt.calc, tt.a, tt.b, ok, tt.ok)
		}
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		in   any
		want int64
		ok   bool
	}{
		{float64(42), 42, true},
		{float64(-42), -42, true},
		{1.5, 0, false},
		{float64(1 << 62), 1 << 62, true},
		{9.3e18, 0, false},
		{-9.3e18, 0, false},
		{int64(7), 7, true},
		{"7", 0, false},
		{nil, 0, false},
	}

	for _, tt := range tests {
		got, ok := asInt(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("asInt(%v) = %d, %v, want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		in   any
		want ValueKind
	}{
		{nil, KindNull},
		{"s", KindString},
		{1.0, KindNumber},
		{int64(1), KindNumber},
		{true, KindBoolean},
		{[]any{}, KindArray},
		{map[string]any{}, KindObject},
		{struct{}{}, KindUnknown},
	}
	for _, tt := range tests {
		if got := KindOf(tt.in); got != tt.want {
			t.Errorf("KindOf(%#v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTermOperands_AreCopied(t *testing.T) {
	term := mustBuild(t, "/f", "concat", "a", "b")
	ops := term.Operands()
	ops[0] = Literal{Raw: "mutated", Value: "mutated"}
	if term.Operands()[0].Text() != "a" {
		t.Error("Operands() must return a copy")
	}
}

func TestTermOperands_DefinitionValueIsolated(t *testing.T) {
	allowed := []any{float64(22), float64(443)}
	d := defs.NewMap(map[string]any{"allowed": allowed})
	term, err := Build("/ports", "array_contains", []string{"$allowed"}, d)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	ref := term.Operands()[0].(Reference)
	ref.Value.([]any)[0] = float64(8080)

	again := term.Operands()[0].(Reference)
	if again.Value.([]any)[0] != float64(22) {
		t.Errorf("bound value mutated through Operands(): %v", again.Value)
	}

	allowed[1] = float64(9999)
	if again := term.Operands()[0].(Reference); again.Value.([]any)[1] != float64(443) {
		t.Errorf("bound value aliases the definition set: %v", again.Value)
	}
}
