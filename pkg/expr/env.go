package expr

import (
	"sort"

	"github.com/lemonberrylabs/exprcalc/pkg/types"
)

// Environment holds the name bindings of one parser. It outlives individual
// Parse calls and is not safe for concurrent use.
type Environment struct {
	vars map[string]types.Value
}

// NewEnvironment creates an empty environment.
func NewEnvironment() *Environment {
	return &Environment{vars: make(map[string]types.Value)}
}

// Get returns the value bound to name.
func (e *Environment) Get(name string) (types.Value, bool) {
	v, ok := e.vars[name]
	return v, ok
}

// Set binds name to value, replacing any previous binding.
func (e *Environment) Set(name string, value types.Value) {
	e.vars[name] = value
}

// Delete removes the binding for name, if any.
func (e *Environment) Delete(name string) {
	delete(e.vars, name)
}

// Len returns the number of bindings.
func (e *Environment) Len() int {
	return len(e.vars)
}

// Names returns the bound names in sorted order.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.vars))
	for k := range e.vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a deep copy of the bindings.
func (e *Environment) Snapshot() map[string]types.Value {
	out := make(map[string]types.Value, len(e.vars))
	for k, v := range e.vars {
		out[k] = v.Clone()
	}
	return out
}
