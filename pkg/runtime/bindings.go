package runtime

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/lemonberrylabs/exprcalc/pkg/expr"
	"github.com/lemonberrylabs/exprcalc/pkg/types"
)

// LoadBindings parses a YAML mapping of names to values for seeding a
// session. Values may be integers, booleans, lists of values, or named
// results written as {name: f, args: [...]}.
//
//	limit: 10
//	enabled: true
//	allowed: [2, 3, 5]
func LoadBindings(source []byte) (map[string]types.Value, error) {
	var raw yaml.Node
	if err := yaml.Unmarshal(source, &raw); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	if raw.Kind == 0 {
		return map[string]types.Value{}, nil
	}
	if raw.Kind != yaml.DocumentNode || len(raw.Content) == 0 {
		return nil, fmt.Errorf("bindings must be a YAML document")
	}
	root := raw.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("bindings must be a YAML mapping (line %d)", root.Line)
	}

	bindings := make(map[string]types.Value, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, valNode := root.Content[i], root.Content[i+1]
		name := keyNode.Value
		if !IsIdentifier(name) {
			return nil, fmt.Errorf("line %d: %q is not a valid name", keyNode.Line, name)
		}
		if _, dup := bindings[name]; dup {
			return nil, fmt.Errorf("line %d: duplicate binding %q", keyNode.Line, name)
		}

		var decoded interface{}
		if err := valNode.Decode(&decoded); err != nil {
			return nil, fmt.Errorf("line %d: %w", valNode.Line, err)
		}
		v, err := types.ValueFromGo(decoded)
		if err != nil {
			return nil, fmt.Errorf("line %d: binding %q: %w", valNode.Line, name, err)
		}
		if v.IsAbsent() {
			return nil, fmt.Errorf("line %d: binding %q has no value", valNode.Line, name)
		}
		bindings[name] = v
	}
	return bindings, nil
}

// LoadBindingsFile reads and parses a bindings file.
func LoadBindingsFile(path string) (map[string]types.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bindings: %w", err)
	}
	return LoadBindings(data)
}

// MarshalBindings renders bindings as YAML with names in sorted order.
func MarshalBindings(bindings map[string]types.Value) ([]byte, error) {
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range names {
		var val yaml.Node
		if err := val.Encode(bindings[name].ToGoValue()); err != nil {
			return nil, fmt.Errorf("binding %q: %w", name, err)
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name}, &val)
	}
	return yaml.Marshal(root)
}

// IsIdentifier reports whether name scans as exactly one identifier token,
// so it can be referenced from an expression.
func IsIdentifier(name string) bool {
	n := 0
	for tok := range expr.NewLexer().Tokenize(name) {
		if tok.Type != expr.TokenID || tok.Value != name {
			return false
		}
		n++
	}
	return n == 1
}
