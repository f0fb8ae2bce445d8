package runtime

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lemonberrylabs/exprcalc/pkg/types"
)

func TestLoadBindings(t *testing.T) {
	bindings, err := LoadBindings([]byte(`
limit: 10
enabled: true
allowed: [2, 3, 5]
hex: 0x1F
call: {name: f, args: [1, 2]}
bare: {name: g}
`))
	if err != nil {
		t.Fatalf("load error: %v", err)
	}

	tests := []struct {
		name string
		want types.Value
	}{
		{"limit", types.NewInt(10)},
		{"enabled", types.NewBool(true)},
		{"allowed", types.NewList([]types.Value{types.NewInt(2), types.NewInt(3), types.NewInt(5)})},
		{"hex", types.NewInt(31)},
		{"call", types.NewNamed("f", types.NewList([]types.Value{types.NewInt(1), types.NewInt(2)}))},
		{"bare", types.NewNamed("g", types.Absent)},
	}
	for _, tt := range tests {
		got, ok := bindings[tt.name]
		if !ok {
			t.Errorf("%s not loaded", tt.name)
			continue
		}
		if got.Type() != tt.want.Type() || !got.Equal(tt.want) {
			t.Errorf("%s = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestLoadBindingsEmpty(t *testing.T) {
	bindings, err := LoadBindings(nil)
	if err != nil || len(bindings) != 0 {
		t.Errorf("got %v, %v", bindings, err)
	}
}

func TestLoadBindingsErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantErr string
	}{
		{"not a mapping", "- 1\n- 2", "must be a YAML mapping"},
		{"keyword name", "in: 1", "not a valid name"},
		{"numeric name", "1a: 1", "not a valid name"},
		{"string value", "a: hello", "unsupported value type"},
		{"fraction", "a: 1.5", "non-integral"},
		{"null value", "a: ~", "has no value"},
		{"duplicate", "a: 1\na: 2", `"a"`},
		{"bad yaml", "a: [1, 2", "YAML parse error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBindings([]byte(tt.source))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestBindingsRoundTrip(t *testing.T) {
	orig := map[string]types.Value{
		"b": types.NewList([]types.Value{types.NewInt(1), types.NewBool(false)}),
		"a": types.NewInt(-4),
		"f": types.NewNamed("f", types.Absent),
	}
	data, err := MarshalBindings(orig)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "a: -4\n") {
		t.Errorf("names not sorted:\n%s", data)
	}

	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadBindingsFile(path)
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	for name, want := range orig {
		if got := loaded[name]; !got.Equal(want) {
			t.Errorf("%s = %s, want %s", name, got, want)
		}
	}
}

func TestIsIdentifier(t *testing.T) {
	for name, want := range map[string]bool{
		"a":         true,
		"AAA_Bbb_@": true,
		"index":     true,
		"in":        false,
		"a b":       false,
		"1a":        false,
		"a$":        false,
		"":          false,
	} {
		if got := IsIdentifier(name); got != want {
			t.Errorf("IsIdentifier(%q) = %v, want %v", name, got, want)
		}
	}
}
