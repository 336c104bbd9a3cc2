package registry

import (
	"cqasm/internal/srcloc"
	"cqasm/internal/types"
	"cqasm/internal/values"
)

// FunctionImpl is a pure constant-evaluating transformer: given promoted
// arguments it returns the folded result or an error (DivisionByZero,
// InvalidArgument). It never mutates its arguments.
type FunctionImpl func(args []values.Value, loc srcloc.Range) (values.Value, error)

// FunctionTable wraps the overloaded-name resolver with function-call
// semantics. Every registered operator is spelled "operator<sym>" so that
// `x + y` and a user-visible function named `add` cannot collide; the
// per-dialect default-registration routine populates this table with the
// operators and math functions a dialect recognizes.
type FunctionTable struct {
	resolver *Resolver[FunctionImpl]
}

// NewFunctionTable returns an empty function table with the given
// dialect case-sensitivity.
func NewFunctionTable(caseSensitive bool) *FunctionTable {
	return &FunctionTable{resolver: NewResolver[FunctionImpl](caseSensitive)}
}

// Add registers a new overload of name.
func (t *FunctionTable) Add(name string, paramTypes []types.Type, impl FunctionImpl) {
	t.resolver.Add(name, impl, paramTypes)
}

// Known reports whether any overload of name is registered.
func (t *FunctionTable) Known(name string) bool { return t.resolver.Known(name) }

// Call resolves name against args and invokes the matching implementation.
func (t *FunctionTable) Call(name string, args []values.Value, loc srcloc.Range) (values.Value, error) {
	impl, promoted, err := t.resolver.Resolve(name, args)
	if err != nil {
		return nil, err
	}
	return impl(promoted, loc)
}

// Clone deep-clones the table for a fresh analyzer instance.
func (t *FunctionTable) Clone() *FunctionTable {
	return &FunctionTable{resolver: t.resolver.Clone()}
}
