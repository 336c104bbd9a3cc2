// Package registry implements the overloaded-name resolver shared by the
// four pluggable registries built on top of it: mappings/variables,
// functions, instructions, and error models.
//
// Name matching is case-sensitive for v3 and case-insensitive for v1; each
// Resolver is constructed with that choice and normalizes lookup keys
// accordingly.
package registry

import (
	"fmt"
	"strings"

	"cqasm/internal/types"
	"cqasm/internal/values"
)

// Overload is one registered signature: its parameter types and an opaque
// payload (a pure function transformer, or an instruction/error-model
// descriptor).
type Overload[T any] struct {
	ParamTypes []types.Type
	Payload    T
}

// Resolver is an insertion-ordered, name-keyed table of overloads shared by
// the function, instruction, and error-model registries.
type Resolver[T any] struct {
	caseSensitive bool
	overloads     map[string][]Overload[T]
	// names preserves registration order of distinct names only for
	// deterministic iteration (e.g. when listing "known instructions" in a
	// diagnostic); resolution order within a name is always reverse
	// insertion order
	names []string
}

// NewResolver constructs an empty resolver with the given case sensitivity.
func NewResolver[T any](caseSensitive bool) *Resolver[T] {
	return &Resolver[T]{caseSensitive: caseSensitive, overloads: make(map[string][]Overload[T])}
}

func (r *Resolver[T]) key(name string) string {
	if r.caseSensitive {
		return name
	}
	return strings.ToLower(name)
}

// Add appends a new overload. Duplicates (identical parameter types) are
// allowed; the latest registration wins on resolution.
func (r *Resolver[T]) Add(name string, payload T, paramTypes []types.Type) {
	k := r.key(name)
	if _, ok := r.overloads[k]; !ok {
		r.names = append(r.names, name)
	}
	r.overloads[k] = append(r.overloads[k], Overload[T]{ParamTypes: paramTypes, Payload: payload})
}

// Known reports whether any overload is registered under name.
func (r *Resolver[T]) Known(name string) bool {
	_, ok := r.overloads[r.key(name)]
	return ok
}

// Names returns the distinct registered names in registration order.
func (r *Resolver[T]) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// ErrUnknownName is returned by Resolve when no overload is registered under
// the given name at all (maps to diag.NameResolution).
type ErrUnknownName struct{ Name string }

func (e *ErrUnknownName) Error() string { return fmt.Sprintf("unknown name %q", e.Name) }

// ErrNoOverload is returned by Resolve when the name is known but no
// overload accepts the given argument types (maps to
// diag.OverloadResolution). ArgTypes is rendered for diagnostics exactly as
// requires ("the attempted argument type tuple rendered").
type ErrNoOverload struct {
	Name     string
	ArgTypes []types.Type
}

func (e *ErrNoOverload) Error() string {
	parts := make([]string, len(e.ArgTypes))
	for i, t := range e.ArgTypes {
		parts[i] = t.String()
	}
	return fmt.Sprintf("failed to resolve overload for %s with argument pack (%s)", e.Name, strings.Join(parts, ", "))
}

// Resolve finds the latest-added overload whose parameter arity matches len(args)
// and whose every parameter type accepts the corresponding argument under
// promotion, iterating overloads in reverse insertion order.
// It returns the payload and the promoted argument list.
func (r *Resolver[T]) Resolve(name string, args []values.Value) (T, []values.Value, error) {
	var zero T
	k := r.key(name)
	overloads, ok := r.overloads[k]
	if !ok {
		return zero, nil, &ErrUnknownName{Name: name}
	}
	for i := len(overloads) - 1; i >= 0; i-- {
		ov := overloads[i]
		if len(ov.ParamTypes) != len(args) {
			continue
		}
		promoted := make([]values.Value, len(args))
		match := true
		for j, p := range ov.ParamTypes {
			pv := values.Promote(args[j], p)
			if pv == nil {
				match = false
				break
			}
			promoted[j] = pv
		}
		if match {
			return ov.Payload, promoted, nil
		}
	}
	argTypes := make([]types.Type, len(args))
	for i, a := range args {
		argTypes[i] = a.Type()
	}
	return zero, nil, &ErrNoOverload{Name: name, ArgTypes: argTypes}
}

// Clone deep-clones the resolver so that an analyzer built from a shared
// default registry set never mutates another instance's tables.
func (r *Resolver[T]) Clone() *Resolver[T] {
	out := NewResolver[T](r.caseSensitive)
	out.names = append([]string(nil), r.names...)
	for k, ovs := range r.overloads {
		cp := make([]Overload[T], len(ovs))
		for i, ov := range ovs {
			pt := make([]types.Type, len(ov.ParamTypes))
			copy(pt, ov.ParamTypes)
			cp[i] = Overload[T]{ParamTypes: pt, Payload: ov.Payload}
		}
		out.overloads[k] = cp
	}
	return out
}
