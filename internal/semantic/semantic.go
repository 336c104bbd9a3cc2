// Package semantic defines the semantic tree: the
// name-resolved, type-checked, constant-folded output of the analyzer
// driver, as opposed to internal/ast's syntactic tree.
package semantic

import (
	"cqasm/internal/registry"
	"cqasm/internal/srcloc"
	"cqasm/internal/values"
)

// Annotation is an (interface, operation, operand-values) triple attached to
// its enclosing node and walked generically by consumers without
// interpretation by the analyzer.
type Annotation struct {
	Interface string
	Operation string
	Operands  []values.Value
	Loc       srcloc.Range
}

// Instruction is a resolved gate/operation call: its registered descriptor
// reference, the promoted operand list, an optional condition, and any
// annotations.
type Instruction struct {
	Ref         string // name of the resolved instruction overload
	Flags       registry.Flags
	Condition   values.Value // nil if unconditional
	Operands    []values.Value
	Annotations []Annotation
	Loc         srcloc.Range
}

// Bundle is a sequence of Instructions meant to execute in parallel; an
// unbundled instruction is a Bundle of one.
type Bundle struct {
	Instructions []*Instruction
	Loc          srcloc.Range
}

// Subcircuit owns a sequence of Bundles.
type Subcircuit struct {
	Name       string
	Iterations values.Value // nil means the implicit default of 1
	Bundles    []*Bundle
	Loc        srcloc.Range
}

// Mapping is a named constant binding recorded for introspection by
// consumers of the semantic tree (the binding itself already lives in the
// scope stack during analysis; this is the externally visible record).
type Mapping struct {
	Name  string
	Value values.Value
	Loc   srcloc.Range
}

// Variable is a declared (non-constant) register or v3 variable.
type Variable struct {
	Name string
	Type values.Value // a QubitRefs/BitRefs placeholder carrying the declared type and size
	Loc  srcloc.Range
}

// ErrorModel is a resolved `error_model name args...` declaration.
type ErrorModel struct {
	Name     string
	Operands []values.Value
	Loc      srcloc.Range
}

// Program is the semantic tree root.
type Program struct {
	APIVersion  string // the maximum version the analyzer was configured for
	Version     string // the source's declared version
	NumQubits   int
	NumBits     int
	ErrorModel  *ErrorModel // nil if absent
	Subcircuits []*Subcircuit
	Mappings    []*Mapping
	Variables   []*Variable
	Loc         srcloc.Range
}
