// Package values implements the semantic value system: a closed sum of
// constant and non-constant value nodes, the promotion relation lifted
// from internal/types to actual values, and deep cloning.
//
// Each concrete value type satisfies Value directly (not *Value): a variant
// implements an interface, so a type switch over Value is exhaustive and
// adding a new kind is a compile-time-checked change everywhere one matters
// (the folder, the serializer, the driver).
package values

import (
	"fmt"
	"math"

	"cqasm/internal/srcloc"
	"cqasm/internal/types"
)

// Kind discriminates the concrete Value implementation, used by code that
// wants a cheap switch without a type assertion (notably internal/serialize).
type Kind int

const (
	KindConstBool Kind = iota
	KindConstInt
	KindConstReal
	KindConstComplex
	KindConstString
	KindConstAxis
	KindConstRealMatrix
	KindConstComplexMatrix
	KindQubitRefs
	KindBitRefs
	KindFunctionCall
	KindVariableRef
)

// Value is the common interface of every node in the value sum type.
type Value interface {
	Kind() Kind
	Type() types.Type
	Location() srcloc.Range
	Clone() Value
	String() string
}

// base is embedded by every concrete value to carry its location without
// repeating the accessor.
type base struct {
	Loc srcloc.Range
}

func (b base) Location() srcloc.Range { return b.Loc }

// ---- scalar constants ----

type ConstBool struct {
	base
	Value bool
}

func NewConstBool(v bool, loc srcloc.Range) *ConstBool { return &ConstBool{base{loc}, v} }
func (c *ConstBool) Kind() Kind                        { return KindConstBool }
func (c *ConstBool) Type() types.Type                  { return types.Scalar(types.Bool) }
func (c *ConstBool) Clone() Value                      { return NewConstBool(c.Value, c.Loc) }
func (c *ConstBool) String() string                    { return fmt.Sprintf("%t", c.Value) }

type ConstInt struct {
	base
	Value int64
}

func NewConstInt(v int64, loc srcloc.Range) *ConstInt { return &ConstInt{base{loc}, v} }
func (c *ConstInt) Kind() Kind                        { return KindConstInt }
func (c *ConstInt) Type() types.Type                  { return types.Scalar(types.Int) }
func (c *ConstInt) Clone() Value                      { return NewConstInt(c.Value, c.Loc) }
func (c *ConstInt) String() string                    { return fmt.Sprintf("%d", c.Value) }

type ConstReal struct {
	base
	Value float64
}

func NewConstReal(v float64, loc srcloc.Range) *ConstReal { return &ConstReal{base{loc}, v} }
func (c *ConstReal) Kind() Kind                           { return KindConstReal }
func (c *ConstReal) Type() types.Type                     { return types.Scalar(types.Real) }
func (c *ConstReal) Clone() Value                         { return NewConstReal(c.Value, c.Loc) }
func (c *ConstReal) String() string                       { return fmt.Sprintf("%g", c.Value) }

type ConstComplex struct {
	base
	Value complex128
}

func NewConstComplex(v complex128, loc srcloc.Range) *ConstComplex {
	return &ConstComplex{base{loc}, v}
}
func (c *ConstComplex) Kind() Kind       { return KindConstComplex }
func (c *ConstComplex) Type() types.Type { return types.Scalar(types.Complex) }
func (c *ConstComplex) Clone() Value     { return NewConstComplex(c.Value, c.Loc) }
func (c *ConstComplex) String() string {
	return fmt.Sprintf("%g+%gi", real(c.Value), imag(c.Value))
}

type ConstString struct {
	base
	Value string
}

func NewConstString(v string, loc srcloc.Range) *ConstString { return &ConstString{base{loc}, v} }
func (c *ConstString) Kind() Kind                            { return KindConstString }
func (c *ConstString) Type() types.Type                      { return types.Scalar(types.String) }
func (c *ConstString) Clone() Value                          { return NewConstString(c.Value, c.Loc) }
func (c *ConstString) String() string                        { return fmt.Sprintf("%q", c.Value) }

// ConstAxis stores a normalized 3-vector (x, y, z), the operand type of
// rotation-axis instructions.
type ConstAxis struct {
	base
	X, Y, Z float64
}

func NewConstAxis(x, y, z float64, loc srcloc.Range) *ConstAxis {
	return &ConstAxis{base{loc}, x, y, z}
}
func (c *ConstAxis) Kind() Kind       { return KindConstAxis }
func (c *ConstAxis) Type() types.Type { return types.Scalar(types.Axis) }
func (c *ConstAxis) Clone() Value     { return NewConstAxis(c.X, c.Y, c.Z, c.Loc) }
func (c *ConstAxis) String() string   { return fmt.Sprintf("axis(%g, %g, %g)", c.X, c.Y, c.Z) }

// ---- matrix literals ----
//
// Matrices are stored column-count plus a flat row-major data slice so that
// serialization is trivial.

type ConstRealMatrix struct {
	base
	Cols int
	Data []float64
}

func NewConstRealMatrix(cols int, data []float64, loc srcloc.Range) *ConstRealMatrix {
	return &ConstRealMatrix{base{loc}, cols, data}
}
func (c *ConstRealMatrix) Kind() Kind { return KindConstRealMatrix }
func (c *ConstRealMatrix) Type() types.Type {
	return types.Scalar(types.RealMatrix)
}
func (c *ConstRealMatrix) Clone() Value {
	data := make([]float64, len(c.Data))
	copy(data, c.Data)
	return NewConstRealMatrix(c.Cols, data, c.Loc)
}
func (c *ConstRealMatrix) String() string {
	return fmt.Sprintf("real_matrix(cols=%d, n=%d)", c.Cols, len(c.Data))
}

type ConstComplexMatrix struct {
	base
	Cols int
	Data []complex128
}

func NewConstComplexMatrix(cols int, data []complex128, loc srcloc.Range) *ConstComplexMatrix {
	return &ConstComplexMatrix{base{loc}, cols, data}
}
func (c *ConstComplexMatrix) Kind() Kind { return KindConstComplexMatrix }
func (c *ConstComplexMatrix) Type() types.Type {
	return types.Scalar(types.ComplexMatrix)
}
func (c *ConstComplexMatrix) Clone() Value {
	data := make([]complex128, len(c.Data))
	copy(data, c.Data)
	return NewConstComplexMatrix(c.Cols, data, c.Loc)
}
func (c *ConstComplexMatrix) String() string {
	return fmt.Sprintf("complex_matrix(cols=%d, n=%d)", c.Cols, len(c.Data))
}

// ---- register references ----

// QubitRefs is an ordered sequence of qubit indices into the single
// program-wide register: the indices are the only
// identity a qubit has.
type QubitRefs struct {
	base
	Indices []int
}

func NewQubitRefs(indices []int, loc srcloc.Range) *QubitRefs {
	return &QubitRefs{base{loc}, indices}
}
func (q *QubitRefs) Kind() Kind       { return KindQubitRefs }
func (q *QubitRefs) Type() types.Type { return types.Array(types.QubitArray, len(q.Indices)) }
func (q *QubitRefs) Clone() Value {
	idx := make([]int, len(q.Indices))
	copy(idx, q.Indices)
	return NewQubitRefs(idx, q.Loc)
}
func (q *QubitRefs) String() string { return fmt.Sprintf("q%v", q.Indices) }

// BitRefs is the classical-register analogue of QubitRefs.
type BitRefs struct {
	base
	Indices []int
}

func NewBitRefs(indices []int, loc srcloc.Range) *BitRefs {
	return &BitRefs{base{loc}, indices}
}
func (b *BitRefs) Kind() Kind       { return KindBitRefs }
func (b *BitRefs) Type() types.Type { return types.Array(types.BitArray, len(b.Indices)) }
func (b *BitRefs) Clone() Value {
	idx := make([]int, len(b.Indices))
	copy(idx, b.Indices)
	return NewBitRefs(idx, b.Loc)
}
func (b *BitRefs) String() string { return fmt.Sprintf("b%v", b.Indices) }

// ---- indirect references ----

// FunctionCall represents a call result kept as a call rather than folded
// to a constant (the analyzer lowers `b = measure q` to an instruction, not
// to a FunctionCall). Ref is the callee's name, held as a name rather than
// as a pointer into a registry.
type FunctionCall struct {
	base
	Ref      string
	Args     []Value
	declared types.Type
}

func NewFunctionCall(ref string, args []Value, resultType types.Type, loc srcloc.Range) *FunctionCall {
	return &FunctionCall{base{loc}, ref, args, resultType}
}
func (f *FunctionCall) Kind() Kind       { return KindFunctionCall }
func (f *FunctionCall) Type() types.Type { return f.declared }
func (f *FunctionCall) Clone() Value {
	args := make([]Value, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.Clone()
	}
	return NewFunctionCall(f.Ref, args, f.declared, f.Loc)
}
func (f *FunctionCall) String() string { return fmt.Sprintf("%s(%v)", f.Ref, f.Args) }

// VariableRef names a declared (non-constant) variable rather than inlining
// its value, the way a mapping's value would be inlined. Resolved again by
// name at each use, never aliased.
type VariableRef struct {
	base
	Name     string
	declared types.Type
}

func NewVariableRef(name string, declaredType types.Type, loc srcloc.Range) *VariableRef {
	return &VariableRef{base{loc}, name, declaredType}
}
func (v *VariableRef) Kind() Kind       { return KindVariableRef }
func (v *VariableRef) Type() types.Type { return v.declared }
func (v *VariableRef) Clone() Value     { return NewVariableRef(v.Name, v.declared, v.Loc) }
func (v *VariableRef) String() string   { return v.Name }

// ---- promotion ----

// Promote returns a new value of type to if Type(v) <= to under the
// promotion relation (internal/types.CanPromote), or nil otherwise.
// Promotion is lossless: Int->Real->Complex are exact for the representable
// range, Bool->Int maps false->0/true->1, and scalar->Array(T,1) wraps.
func Promote(v Value, to types.Type) Value {
	from := v.Type()
	if from.Equal(to) {
		return v.Clone()
	}
	if !types.CanPromote(from, to) {
		return nil
	}
	switch to.Tag {
	case types.Int:
		if b, ok := v.(*ConstBool); ok {
			n := int64(0)
			if b.Value {
				n = 1
			}
			return NewConstInt(n, v.Location())
		}
	case types.Real:
		switch c := v.(type) {
		case *ConstBool:
			n := 0.0
			if c.Value {
				n = 1.0
			}
			return NewConstReal(n, v.Location())
		case *ConstInt:
			return NewConstReal(float64(c.Value), v.Location())
		}
	case types.Complex:
		switch c := v.(type) {
		case *ConstBool:
			n := 0.0
			if c.Value {
				n = 1.0
			}
			return NewConstComplex(complex(n, 0), v.Location())
		case *ConstInt:
			return NewConstComplex(complex(float64(c.Value), 0), v.Location())
		case *ConstReal:
			return NewConstComplex(complex(c.Value, 0), v.Location())
		}
	case types.QubitArray:
		if q, ok := v.(*QubitRefs); ok && to.Size == 1 && len(q.Indices) == 1 {
			return q.Clone()
		}
	case types.BitArray:
		if bt, ok := v.(*BitRefs); ok && to.Size == 1 && len(bt.Indices) == 1 {
			return bt.Clone()
		}
	}
	// from.Equal(to) already handled above; anything left that CanPromote
	// accepted but isn't covered by a concrete case is the scalar-to-
	// same-scalar-array wrap, which for every tag used here is represented
	// by the identity conversion (arrays of non-register scalars are not
	// part of the type system).
	return v.Clone()
}

// IntOf extracts the underlying integer from a Value that is, or promotes
// losslessly to, Int — used by index folding, where an index expression
// must collapse to a concrete integer before it can select register slots.
func IntOf(v Value) (int64, bool) {
	switch c := v.(type) {
	case *ConstInt:
		return c.Value, true
	case *ConstBool:
		if c.Value {
			return 1, true
		}
		return 0, true
	case *ConstReal:
		if c.Value == math.Trunc(c.Value) {
			return int64(c.Value), true
		}
	}
	return 0, false
}
