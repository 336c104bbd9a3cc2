package registry

import (
	"cqasm/internal/types"
	"cqasm/internal/values"
)

// Flags are the per-instruction rules governing whether a conditional
// prefix, parallel bundling, repeated qubit operands, or mismatched operand
// index-list lengths are permitted.
type Flags struct {
	AllowConditional         bool
	AllowParallel            bool
	AllowReusedQubits        bool
	AllowDifferentIndexSizes bool
}

// InstructionDescriptor is one registered instruction signature.
type InstructionDescriptor struct {
	Name       string
	ParamTypes []types.Type
	Flags      Flags
}

// InstructionTable resolves instruction names and argument lists to a
// descriptor, sharing the overloaded-name resolver with functions and error
// models.
type InstructionTable struct {
	resolver *Resolver[*InstructionDescriptor]
}

func NewInstructionTable(caseSensitive bool) *InstructionTable {
	return &InstructionTable{resolver: NewResolver[*InstructionDescriptor](caseSensitive)}
}

// Add registers an instruction overload.
func (t *InstructionTable) Add(name string, paramTypes []types.Type, flags Flags) {
	t.resolver.Add(name, &InstructionDescriptor{Name: name, ParamTypes: paramTypes, Flags: flags}, paramTypes)
}

// Known reports whether any overload of name is registered.
func (t *InstructionTable) Known(name string) bool { return t.resolver.Known(name) }

// Names lists registered instruction names in registration order.
func (t *InstructionTable) Names() []string { return t.resolver.Names() }

// Resolve finds the descriptor matching name and the argument types,
// returning the promoted argument list alongside it.
func (t *InstructionTable) Resolve(name string, args []values.Value) (*InstructionDescriptor, []values.Value, error) {
	return t.resolver.Resolve(name, args)
}

// Clone deep-clones the table.
func (t *InstructionTable) Clone() *InstructionTable {
	return &InstructionTable{resolver: t.resolver.Clone()}
}

// ErrorModelDescriptor is one registered error-model signature. Error
// models carry no behavioral flags, but share the same resolver machinery.
type ErrorModelDescriptor struct {
	Name       string
	ParamTypes []types.Type
}

// ErrorModelTable resolves error-model names.
type ErrorModelTable struct {
	resolver *Resolver[*ErrorModelDescriptor]
}

func NewErrorModelTable(caseSensitive bool) *ErrorModelTable {
	return &ErrorModelTable{resolver: NewResolver[*ErrorModelDescriptor](caseSensitive)}
}

func (t *ErrorModelTable) Add(name string, paramTypes []types.Type) {
	t.resolver.Add(name, &ErrorModelDescriptor{Name: name, ParamTypes: paramTypes}, paramTypes)
}

func (t *ErrorModelTable) Known(name string) bool { return t.resolver.Known(name) }

func (t *ErrorModelTable) Resolve(name string, args []values.Value) (*ErrorModelDescriptor, []values.Value, error) {
	return t.resolver.Resolve(name, args)
}

func (t *ErrorModelTable) Clone() *ErrorModelTable {
	return &ErrorModelTable{resolver: t.resolver.Clone()}
}
