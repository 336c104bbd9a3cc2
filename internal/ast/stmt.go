package ast

import "cqasm/internal/srcloc"

// Stmt is any top-level or subcircuit-body statement.
type Stmt interface {
	Accept(v StmtVisitor) interface{}
	Location() srcloc.Range
}

type stmtBase struct {
	Loc srcloc.Range
}

func (s stmtBase) Location() srcloc.Range { return s.Loc }

// Annotation is `@interface.operation(arg, ...)`, attached to the enclosing
// node without interpretation by the parser.
type Annotation struct {
	Interface string
	Operation string
	Args      []Expr
	Loc       srcloc.Range
}

// RegisterDecl declares the qubit/bit register: v1's `qubits N` (Kind
// "qubits", no Name) or v3's `qubit[N] q` / `bit[N] b` (Kind "qubit"/"bit",
// Name required).
type RegisterDecl struct {
	stmtBase
	Kind string // "qubits" (v1) | "qubit" | "bit" (v3)
	Name string // empty for v1
	Size Expr
}

func (r *RegisterDecl) Accept(v StmtVisitor) interface{} { return v.VisitRegisterDecl(r) }

// Mapping is `map name = expr [@annot...]`.
type Mapping struct {
	stmtBase
	Name        string
	Value       Expr
	Annotations []Annotation
}

func (m *Mapping) Accept(v StmtVisitor) interface{} { return v.VisitMapping(m) }

// VariableDecl is a v3 variable declaration that is not the register
// itself, e.g. a second `bit[2] result` further down the program.
type VariableDecl struct {
	stmtBase
	TypeName string // "qubit" | "bit"
	Name     string
	Size     Expr
}

func (d *VariableDecl) Accept(v StmtVisitor) interface{} { return v.VisitVariableDecl(d) }

// Assignment is v3's `target = expr`, used for instruction-as-expression
// results such as `b = measure q`.
type Assignment struct {
	stmtBase
	Target Expr
	Value  Expr
}

func (a *Assignment) Accept(v StmtVisitor) interface{} { return v.VisitAssignment(a) }

// InstructionCall is `[condition:] name operand (, operand)* [@annot...]`.
type InstructionCall struct {
	stmtBase
	Name        string
	Condition   Expr // nil if unconditional
	Operands    []Expr
	Annotations []Annotation
}

func (i *InstructionCall) Accept(v StmtVisitor) interface{} { return v.VisitInstructionCall(i) }

// Bundle is a parallel instruction group: `{ instr | instr | ... }`. A
// single unbundled instruction is represented as a Bundle of one.
type Bundle struct {
	stmtBase
	Instructions []*InstructionCall
}

func (b *Bundle) Accept(v StmtVisitor) interface{} { return v.VisitBundle(b) }

// Subcircuit is `.name[(iterations)]`, a marker statement: everything up to
// the next Subcircuit header or end of program belongs to it, but the
// syntactic tree stays flat (Program's doc comment) rather than nesting
// those statements underneath.
type Subcircuit struct {
	stmtBase
	Name       string
	Iterations Expr // nil if absent (defaults to 1)
}

func (s *Subcircuit) Accept(v StmtVisitor) interface{} { return v.VisitSubcircuit(s) }

// ErrorModelDecl is `error_model name args...`.
type ErrorModelDecl struct {
	stmtBase
	Name string
	Args []Expr
}

func (e *ErrorModelDecl) Accept(v StmtVisitor) interface{} { return v.VisitErrorModelDecl(e) }

// StmtVisitor dispatches over the closed sum of statement nodes.
type StmtVisitor interface {
	VisitRegisterDecl(*RegisterDecl) interface{}
	VisitMapping(*Mapping) interface{}
	VisitVariableDecl(*VariableDecl) interface{}
	VisitAssignment(*Assignment) interface{}
	VisitInstructionCall(*InstructionCall) interface{}
	VisitBundle(*Bundle) interface{}
	VisitSubcircuit(*Subcircuit) interface{}
	VisitErrorModelDecl(*ErrorModelDecl) interface{}
}

func NewRegisterDecl(kind, name string, size Expr, loc srcloc.Range) *RegisterDecl {
	return &RegisterDecl{stmtBase{loc}, kind, name, size}
}
func NewMapping(name string, value Expr, annots []Annotation, loc srcloc.Range) *Mapping {
	return &Mapping{stmtBase{loc}, name, value, annots}
}
func NewVariableDecl(typeName, name string, size Expr, loc srcloc.Range) *VariableDecl {
	return &VariableDecl{stmtBase{loc}, typeName, name, size}
}
func NewAssignment(target, value Expr, loc srcloc.Range) *Assignment {
	return &Assignment{stmtBase{loc}, target, value}
}
func NewInstructionCall(name string, cond Expr, operands []Expr, annots []Annotation, loc srcloc.Range) *InstructionCall {
	return &InstructionCall{stmtBase{loc}, name, cond, operands, annots}
}
func NewBundle(instrs []*InstructionCall, loc srcloc.Range) *Bundle {
	return &Bundle{stmtBase{loc}, instrs}
}
func NewSubcircuit(name string, iterations Expr, loc srcloc.Range) *Subcircuit {
	return &Subcircuit{stmtBase: stmtBase{loc}, Name: name, Iterations: iterations}
}
func NewErrorModelDecl(name string, args []Expr, loc srcloc.Range) *ErrorModelDecl {
	return &ErrorModelDecl{stmtBase{loc}, name, args}
}

// Program is the syntactic tree root: the version header plus the top-level
// block of statements. Statements before any Subcircuit header
// belong to the implicit "default" subcircuit once the analyzer walks them;
// the syntactic tree itself is flat, matching what a parser naturally
// produces.
type Program struct {
	VersionSpec string // raw "M(.N)*" text as written, re-parsed by internal/version
	Statements  []Stmt
	Loc         srcloc.Range
}
