// Package asset loads declarative check/normalize documents and compiles
// them into rules.Expression values.
//
// Document format (YAML):
//
//	name: decoder/sshd/0
//	check:
//	  - event.module: sshd
//	  - process.pid: +int_greater/0
//	normalize:
//	  - process.name: +downcase/$process.name
//
// Keys are dotted field names. A value starting with '+' is a helper call,
// '+helper/arg1/arg2', where "\/" is a literal slash inside an argument. Any
// other value is shorthand: string_equal or int_equal in check, set in
// normalize.
package asset

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/solatis/opbuilder/internal/rules"
	"github.com/solatis/opbuilder/internal/types"
)

//go:embed schema/asset.schema.json
var schemaData []byte

// HelperPrefix marks a stage value as a helper call.
const HelperPrefix = "+"

// Builder compiles single helper calls. *rules.Engine satisfies it.
type Builder interface {
	BuildCall(call types.HelperCall) (*rules.Term, error)
}

// document mirrors the YAML layout after schema validation.
type document struct {
	Name      string           `json:"name"`
	Check     []map[string]any `json:"check"`
	Normalize []map[string]any `json:"normalize"`
}

// LoadFile reads and parses an asset file.
func LoadFile(path string) (*types.Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset %s: %w", path, err)
	}
	a, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// Parse validates a YAML asset document and converts it to helper calls.
// All failures wrap types.ErrInvalidAsset.
func Parse(data []byte) (*types.Asset, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidAsset, err)
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: document is not JSON-compatible: %v", types.ErrInvalidAsset, err)
	}

	if err := validate(encoded); err != nil {
		return nil, err
	}

	var doc document
	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidAsset, err)
	}

	a := &types.Asset{Name: doc.Name}
	if a.Check, err = parseStage(doc.Check, checkShorthand); err != nil {
		return nil, fmt.Errorf("%s: check: %w", doc.Name, err)
	}
	if a.Normalize, err = parseStage(doc.Normalize, normalizeShorthand); err != nil {
		return nil, fmt.Errorf("%s: normalize: %w", doc.Name, err)
	}
	return a, nil
}

// validate checks the JSON form of a document against the embedded schema.
func validate(doc []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaData),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("%w: schema validation failed: %v", types.ErrInvalidAsset, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("%w: %s", types.ErrInvalidAsset, strings.Join(msgs, "; "))
}

// shorthand converts a non-helper stage value into a helper call.
type shorthand func(target string, value any) (types.HelperCall, error)

func parseStage(entries []map[string]any, short shorthand) ([]types.HelperCall, error) {
	calls := make([]types.HelperCall, 0, len(entries))
	for i, entry := range entries {
		for key, value := range entry {
			path, err := types.ParseDottedPath(key)
			if err != nil {
				return nil, fmt.Errorf("%w: entry %d: field %q: %v", types.ErrInvalidAsset, i, key, err)
			}
			target := path.String()

			var call types.HelperCall
			if s, ok := value.(string); ok && strings.HasPrefix(s, HelperPrefix) {
				call, err = ParseHelperCall(target, s)
			} else {
				call, err = short(target, value)
			}
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			calls = append(calls, call)
		}
	}
	return calls, nil
}

// ParseHelperCall parses "+helper/arg1/arg2" for target.
// "\/" inside an argument is a literal slash; other escapes are kept as written.
func ParseHelperCall(target, text string) (types.HelperCall, error) {
	if !strings.HasPrefix(text, HelperPrefix) {
		return types.HelperCall{}, fmt.Errorf("%w: %q is not a helper call", types.ErrInvalidAsset, text)
	}
	parts := splitArgs(text[len(HelperPrefix):])
	if parts[0] == "" {
		return types.HelperCall{}, fmt.Errorf("%w: %q has no helper name", types.ErrInvalidAsset, text)
	}
	return types.HelperCall{Target: target, Helper: parts[0], Args: parts[1:]}, nil
}

// splitArgs splits on '/' that is not preceded by a backslash.
func splitArgs(s string) []string {
	var parts []string
	var cur strings.Builder
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && i+1 < len(s) && s[i+1] == '/':
			cur.WriteByte('/')
			i++
		case s[i] == '/':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(s[i])
		}
	}
	return append(parts, cur.String())
}

func checkShorthand(target string, value any) (types.HelperCall, error) {
	switch v := value.(type) {
	case string:
		return types.HelperCall{Target: target, Helper: "string_equal", Args: []string{v}}, nil
	case json.Number:
		if _, err := v.Int64(); err != nil {
			return types.HelperCall{}, fmt.Errorf("%w: %s: only integer values can be matched directly", types.ErrInvalidAsset, v)
		}
		return types.HelperCall{Target: target, Helper: "int_equal", Args: []string{v.String()}}, nil
	case bool:
		return types.HelperCall{Target: target, Helper: "cel_match", Args: []string{fmt.Sprintf("field == %t", v)}}, nil
	default:
		return types.HelperCall{}, fmt.Errorf("%w: unsupported value %v", types.ErrInvalidAsset, value)
	}
}

func normalizeShorthand(target string, value any) (types.HelperCall, error) {
	switch v := value.(type) {
	case string:
		return types.HelperCall{Target: target, Helper: "set", Args: []string{v}}, nil
	case json.Number:
		return types.HelperCall{Target: target, Helper: "set", Args: []string{v.String()}}, nil
	case bool:
		return types.HelperCall{Target: target, Helper: "set", Args: []string{fmt.Sprint(v)}}, nil
	default:
		return types.HelperCall{}, fmt.Errorf("%w: unsupported value %v", types.ErrInvalidAsset, value)
	}
}

// Compile builds every call of a and assembles the Expression.
// The first failing call aborts compilation; its *rules.BuildError is wrapped.
func Compile(a *types.Asset, b Builder) (*rules.Expression, error) {
	check, err := buildStage(a.Check, b)
	if err != nil {
		return nil, fmt.Errorf("%s: check: %w", a.Name, err)
	}
	normalize, err := buildStage(a.Normalize, b)
	if err != nil {
		return nil, fmt.Errorf("%s: normalize: %w", a.Name, err)
	}
	x, err := rules.NewExpression(a.Name, check, normalize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.Name, err)
	}
	return x, nil
}

func buildStage(calls []types.HelperCall, b Builder) ([]*rules.Term, error) {
	terms := make([]*rules.Term, 0, len(calls))
	for i, call := range calls {
		t, err := b.BuildCall(call)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		terms = append(terms, t)
	}
	return terms, nil
}
