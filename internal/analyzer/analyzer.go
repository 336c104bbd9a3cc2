// Package analyzer implements the driver: the statement walk
// that turns a syntactic internal/ast.Program into a semantic.Program,
// wiring together the version gate, the scope stack, the default registries
// of defaults.go, and internal/folder for every expression it meets along
// the way.
package analyzer

import (
	"github.com/google/uuid"

	"cqasm/internal/ast"
	"cqasm/internal/diag"
	"cqasm/internal/dialect"
	"cqasm/internal/folder"
	"cqasm/internal/registry"
	"cqasm/internal/scope"
	"cqasm/internal/semantic"
	"cqasm/internal/srcloc"
	"cqasm/internal/values"
	"cqasm/internal/version"
)

// Config selects the dialect and the maximum accepted API version for one
// analysis run.
type Config struct {
	Dialect    dialect.Dialect
	MaxVersion version.Version
	FileName   string
}

// AnalysisResult is the outcome of one Analyze call: a best-effort semantic
// tree (possibly partial) alongside every diagnostic accumulated along the
// way.
type AnalysisResult struct {
	ID      string
	Program *semantic.Program
	Errors  *diag.Sink
}

// Unwrap converts the accumulated diagnostics into a single error for
// callers that want fail-fast rather than accumulation.
func (r *AnalysisResult) Unwrap() error { return r.Errors.Unwrap() }

// driver walks one ast.Program, implementing ast.StmtVisitor so the
// dispatch over the closed statement vocabulary is exhaustiveness-checked
// at compile time, the same shape internal/folder uses for expressions.
type driver struct {
	dialect  dialect.Dialect
	fileName string
	scope    *scope.Stack
	fold     *folder.Folder
	errs     *diag.Sink

	numQubits, numBits           int
	qubitsDeclared, bitsDeclared bool

	errorModelDeclared bool
	errorModel         *semantic.ErrorModel

	subcircuits       []*semantic.Subcircuit
	current           *semantic.Subcircuit
	inSubcircuitScope bool
	mappings          []*semantic.Mapping
	variables         []*semantic.Variable
}

// Analyze runs the full pipeline over prog under cfg, starting from the
// default registries for cfg.Dialect (internal/analyzer/defaults.go).
func Analyze(prog *ast.Program, cfg Config) *AnalysisResult {
	errs := &diag.Sink{}
	st := scope.NewStack(DefaultFunctions(cfg.Dialect), DefaultInstructions(cfg.Dialect), DefaultErrorModels(cfg.Dialect))
	fileName := cfg.FileName
	if fileName == "" {
		fileName = "<unknown>"
	}
	d := &driver{
		dialect:  cfg.Dialect,
		fileName: fileName,
		scope:    st,
		fold:     folder.New(st, errs),
		errs:     errs,
	}

	v, err := version.Parse("version " + prog.VersionSpec)
	if err != nil {
		errs.Addf(diag.ParseError, prog.Loc, "malformed version header: %s", err)
	} else if v.Exceeds(cfg.MaxVersion) {
		errs.Addf(diag.VersionMismatch, prog.Loc, "version %s exceeds the configured maximum %s", v, cfg.MaxVersion)
	}

	for _, stmt := range prog.Statements {
		stmt.Accept(d)
	}
	if d.inSubcircuitScope {
		d.scope.Pop()
	}

	sp := &semantic.Program{
		APIVersion:  cfg.MaxVersion.String(),
		Version:     prog.VersionSpec,
		NumQubits:   d.numQubits,
		NumBits:     d.numBits,
		ErrorModel:  d.errorModel,
		Subcircuits: d.subcircuits,
		Mappings:    d.mappings,
		Variables:   d.variables,
		Loc:         prog.Loc,
	}
	return &AnalysisResult{ID: uuid.NewString(), Program: sp, Errors: errs}
}

func sequential(start, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = start + i
	}
	return out
}

// ensureDefaultSubcircuit opens the implicit "default" subcircuit the first
// time a bundle is met outside any explicit `.name` header.
func (d *driver) ensureDefaultSubcircuit() {
	if d.current == nil {
		sc := &semantic.Subcircuit{Name: "default", Loc: srcloc.Unknown}
		d.subcircuits = append(d.subcircuits, sc)
		d.current = sc
	}
}

func (d *driver) VisitRegisterDecl(s *ast.RegisterDecl) interface{} {
	sizeVal := d.fold.Fold(s.Size)
	if sizeVal == nil {
		return nil
	}
	n, ok := values.IntOf(sizeVal)
	if !ok {
		d.errs.Addf(diag.TypePromotion, s.Location(), "register size must be an integer")
		return nil
	}
	kind := "bit"
	if s.Kind == "qubits" || s.Kind == "qubit" {
		kind = "qubit"
	}
	if n <= 0 {
		d.errs.Addf(diag.InvalidArgument, s.Location(), "declaring %s array of size <= 0", kind)
		return nil
	}
	name := s.Name
	switch kind {
	case "qubit":
		if d.qubitsDeclared {
			d.errs.Addf(diag.DuplicateDeclaration, s.Location(), "qubit register already declared")
			return nil
		}
		d.qubitsDeclared = true
		d.numQubits = int(n)
		if name == "" {
			name = "q"
		}
		v := values.NewQubitRefs(sequential(0, int(n)), s.Location())
		d.scope.AddMapping(name, v, s.Location())
		d.variables = append(d.variables, &semantic.Variable{Name: name, Type: v, Loc: s.Location()})
	case "bit":
		if d.bitsDeclared {
			d.errs.Addf(diag.DuplicateDeclaration, s.Location(), "bit register already declared")
			return nil
		}
		d.bitsDeclared = true
		d.numBits = int(n)
		if name == "" {
			name = "b"
		}
		v := values.NewBitRefs(sequential(0, int(n)), s.Location())
		d.scope.AddMapping(name, v, s.Location())
		d.variables = append(d.variables, &semantic.Variable{Name: name, Type: v, Loc: s.Location()})
	}
	return nil
}

func (d *driver) VisitVariableDecl(s *ast.VariableDecl) interface{} {
	sizeVal := d.fold.Fold(s.Size)
	if sizeVal == nil {
		return nil
	}
	n, ok := values.IntOf(sizeVal)
	if !ok {
		d.errs.Addf(diag.TypePromotion, s.Location(), "variable size must be an integer")
		return nil
	}
	if n <= 0 {
		d.errs.Addf(diag.InvalidArgument, s.Location(), "declaring %s array of size <= 0", s.TypeName)
		return nil
	}
	switch s.TypeName {
	case "qubit":
		if !d.qubitsDeclared {
			d.errs.Addf(diag.NameResolution, s.Location(), "no qubit register declared yet")
			return nil
		}
		idx := sequential(d.numQubits, int(n))
		d.numQubits += int(n)
		v := values.NewQubitRefs(idx, s.Location())
		d.scope.AddMapping(s.Name, v, s.Location())
		d.variables = append(d.variables, &semantic.Variable{Name: s.Name, Type: v, Loc: s.Location()})
	case "bit":
		if !d.bitsDeclared {
			d.errs.Addf(diag.NameResolution, s.Location(), "no bit register declared yet")
			return nil
		}
		idx := sequential(d.numBits, int(n))
		d.numBits += int(n)
		v := values.NewBitRefs(idx, s.Location())
		d.scope.AddMapping(s.Name, v, s.Location())
		d.variables = append(d.variables, &semantic.Variable{Name: s.Name, Type: v, Loc: s.Location()})
	default:
		d.errs.Addf(diag.ParseError, s.Location(), "unknown variable type %q", s.TypeName)
	}
	return nil
}

func (d *driver) VisitMapping(s *ast.Mapping) interface{} {
	val := d.fold.Fold(s.Value)
	if val == nil {
		return nil
	}
	// Duplicate names in the same frame replace the earlier entry rather
	// than erroring.
	d.scope.AddMapping(s.Name, val, s.Location())
	d.mappings = append(d.mappings, &semantic.Mapping{
		Name:  s.Name,
		Value: val,
		Loc:   s.Location(),
	})
	return nil
}

func (d *driver) VisitAssignment(s *ast.Assignment) interface{} {
	ident, targetIsIdent := s.Target.(*ast.Identifier)

	// v3 sugar: `b = measure q` assigns the result of an instruction, not an
	// expression — recognized by the callee name being a known instruction
	// and not a known function.
	if call, ok := s.Value.(*ast.CallExpr); ok {
		instrTable := d.scope.Instructions()
		fnTable := d.scope.Functions()
		if instrTable != nil && instrTable.Known(call.Name) && (fnTable == nil || !fnTable.Known(call.Name)) {
			instr := d.resolveInstruction(call.Name, call.Args, nil, nil, call.Location())
			if instr != nil {
				d.ensureDefaultSubcircuit()
				d.current.Bundles = append(d.current.Bundles, &semantic.Bundle{
					Instructions: []*semantic.Instruction{instr},
					Loc:          s.Location(),
				})
			}
			if targetIsIdent && !d.scope.DeclaredInCurrentFrame(ident.Name) {
				if _, ok := d.scope.ResolveMapping(ident.Name); !ok {
					d.errs.Addf(diag.NameResolution, s.Target.Location(), "unknown name %q", ident.Name)
				}
			}
			return nil
		}
	}

	val := d.fold.Fold(s.Value)
	if val == nil {
		return nil
	}
	if !targetIsIdent {
		d.errs.Addf(diag.InvalidArgument, s.Location(), "assignment target must be a name")
		return nil
	}
	d.scope.AddMapping(ident.Name, val, s.Location())
	return nil
}

func (d *driver) VisitInstructionCall(s *ast.InstructionCall) interface{} {
	instr := d.resolveInstruction(s.Name, s.Operands, s.Condition, s.Annotations, s.Location())
	if instr == nil {
		return nil
	}
	d.ensureDefaultSubcircuit()
	d.current.Bundles = append(d.current.Bundles, &semantic.Bundle{
		Instructions: []*semantic.Instruction{instr},
		Loc:          s.Location(),
	})
	return nil
}

func (d *driver) VisitBundle(s *ast.Bundle) interface{} {
	d.ensureDefaultSubcircuit()
	var instrs []*semantic.Instruction
	for _, ic := range s.Instructions {
		instr := d.resolveInstruction(ic.Name, ic.Operands, ic.Condition, ic.Annotations, ic.Location())
		if instr != nil {
			instrs = append(instrs, instr)
		}
	}
	if len(instrs) == 0 {
		return nil
	}
	if len(instrs) > 1 {
		for _, in := range instrs {
			if !in.Flags.AllowParallel {
				d.errs.Addf(diag.InstructionConstraint, s.Location(), "instruction %s does not allow parallel bundling", in.Ref)
			}
		}
		seen := map[int]bool{}
		for _, in := range instrs {
			for _, opv := range in.Operands {
				if qr, ok := opv.(*values.QubitRefs); ok {
					for _, idx := range qr.Indices {
						if seen[idx] {
							d.errs.Addf(diag.InstructionConstraint, s.Location(), "qubit %d used more than once in the same bundle", idx)
						}
						seen[idx] = true
					}
				}
			}
		}
	}
	d.current.Bundles = append(d.current.Bundles, &semantic.Bundle{Instructions: instrs, Loc: s.Location()})
	return nil
}

// VisitSubcircuit opens a new scope frame for the subcircuit's body,
// closing the previous explicit subcircuit's frame first if there was one:
// mappings declared inside one subcircuit must not outlive it, per the
// frame lifecycle internal/scope implements. The statement stream stays
// flat (ast.Subcircuit is a marker, not a container), so frame boundaries
// line up with subcircuit markers rather than with syntactic nesting; the
// final frame is closed by Analyze once the statement walk ends.
func (d *driver) VisitSubcircuit(s *ast.Subcircuit) interface{} {
	if d.inSubcircuitScope {
		d.scope.Pop()
	}
	d.scope.Push(s.Iterations != nil)
	d.inSubcircuitScope = true

	var itersVal values.Value
	if s.Iterations != nil {
		itersVal = d.fold.Fold(s.Iterations)
	}
	sc := &semantic.Subcircuit{Name: s.Name, Iterations: itersVal, Loc: s.Location()}
	d.subcircuits = append(d.subcircuits, sc)
	d.current = sc
	return nil
}

func (d *driver) VisitErrorModelDecl(s *ast.ErrorModelDecl) interface{} {
	if d.errorModelDeclared {
		d.errs.Addf(diag.DuplicateDeclaration, s.Location(), "error model already declared")
		return nil
	}
	args := make([]values.Value, 0, len(s.Args))
	ok := true
	for _, a := range s.Args {
		v := d.fold.Fold(a)
		if v == nil {
			ok = false
			continue
		}
		args = append(args, v)
	}
	if !ok {
		return nil
	}
	desc, promoted, err := d.scope.ErrorModels().Resolve(s.Name, args)
	if err != nil {
		d.reportResolutionError(s.Name, err, s.Location())
		return nil
	}
	d.errorModelDeclared = true
	d.errorModel = &semantic.ErrorModel{Name: desc.Name, Operands: promoted, Loc: s.Location()}
	return nil
}

// resolveInstruction folds operands and a condition (if any), resolves the
// overload, and applies the per-instruction constraint flags. It returns
// nil (having already recorded a diagnostic) on any failure.
func (d *driver) resolveInstruction(name string, operandExprs []ast.Expr, conditionExpr ast.Expr, annots []ast.Annotation, loc srcloc.Range) *semantic.Instruction {
	var condVal values.Value
	if conditionExpr != nil {
		condVal = d.fold.Fold(conditionExpr)
		if condVal == nil {
			return nil
		}
	}

	args := make([]values.Value, 0, len(operandExprs))
	ok := true
	for _, oe := range operandExprs {
		v := d.fold.Fold(oe)
		if v == nil {
			ok = false
			continue
		}
		args = append(args, v)
	}
	if !ok {
		return nil
	}

	desc, promoted, err := d.scope.Instructions().Resolve(name, args)
	if err != nil {
		d.reportResolutionError(name, err, loc)
		return nil
	}

	if conditionExpr != nil && !desc.Flags.AllowConditional {
		d.errs.Addf(diag.InstructionConstraint, loc, "instruction %s does not allow a conditional prefix", name)
	}

	if !desc.Flags.AllowReusedQubits {
		seen := map[int]bool{}
		for _, opv := range promoted {
			if qr, ok := opv.(*values.QubitRefs); ok {
				for _, idx := range qr.Indices {
					if seen[idx] {
						d.errs.Addf(diag.InstructionConstraint, loc, "qubit %d repeated in operands of %s", idx, name)
					}
					seen[idx] = true
				}
			}
		}
	}

	if !desc.Flags.AllowDifferentIndexSizes {
		size := -1
		for _, opv := range promoted {
			var n int
			switch v := opv.(type) {
			case *values.QubitRefs:
				n = len(v.Indices)
			case *values.BitRefs:
				n = len(v.Indices)
			default:
				continue
			}
			if size == -1 {
				size = n
			} else if n != size {
				d.errs.Addf(diag.InstructionConstraint, loc, "operands of %s have mismatched index-list lengths", name)
				break
			}
		}
	}

	return &semantic.Instruction{
		Ref:         desc.Name,
		Flags:       desc.Flags,
		Condition:   condVal,
		Operands:    promoted,
		Annotations: d.foldAnnotations(annots),
		Loc:         loc,
	}
}

func (d *driver) foldAnnotations(annots []ast.Annotation) []semantic.Annotation {
	if len(annots) == 0 {
		return nil
	}
	out := make([]semantic.Annotation, 0, len(annots))
	for _, a := range annots {
		operands := make([]values.Value, 0, len(a.Args))
		for _, e := range a.Args {
			if v := d.fold.Fold(e); v != nil {
				operands = append(operands, v)
			}
		}
		out = append(out, semantic.Annotation{
			Interface: a.Interface,
			Operation: a.Operation,
			Operands:  operands,
			Loc:       a.Loc,
		})
	}
	return out
}

func (d *driver) reportResolutionError(name string, err error, loc srcloc.Range) {
	switch e := err.(type) {
	case *registry.ErrUnknownName:
		d.errs.Addf(diag.NameResolution, loc, "unknown name %q", name)
	case *registry.ErrNoOverload:
		d.errs.Addf(diag.OverloadResolution, loc, "%s", e.Error())
	default:
		d.errs.Addf(diag.InvalidArgument, loc, "%s", err.Error())
	}
}
