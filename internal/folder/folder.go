// Package folder implements the constant-folder / expression resolver: it
// lowers syntactic expressions to value nodes against the current scope,
// dispatching operator and function application through the function table
// so constant folding falls out of ordinary overload resolution rather than
// needing a separate evaluator.
package folder

import (
	"cqasm/internal/ast"
	"cqasm/internal/diag"
	"cqasm/internal/registry"
	"cqasm/internal/scope"
	"cqasm/internal/srcloc"
	"cqasm/internal/values"
)

// Folder lowers ast.Expr nodes to values.Value against a live scope stack,
// reporting NameResolution/OverloadResolution/TypePromotion/IndexOutOfRange
// diagnostics into errs and continuing on failure.
type Folder struct {
	scope *scope.Stack
	errs  *diag.Sink
}

// New constructs a Folder bound to the given scope stack and diagnostic sink.
func New(s *scope.Stack, errs *diag.Sink) *Folder {
	return &Folder{scope: s, errs: errs}
}

// Fold lowers e, returning nil if folding failed (the failure has already
// been recorded in the sink).
func (f *Folder) Fold(e ast.Expr) values.Value {
	if e == nil {
		return nil
	}
	v := e.Accept(f)
	if v == nil {
		return nil
	}
	return v.(values.Value)
}

func (f *Folder) VisitLiteral(l *ast.Literal) interface{} {
	switch v := l.Value.(type) {
	case bool:
		return values.NewConstBool(v, l.Location())
	case int64:
		return values.NewConstInt(v, l.Location())
	case float64:
		return values.NewConstReal(v, l.Location())
	case string:
		return values.NewConstString(v, l.Location())
	default:
		f.errs.Addf(diag.ParseError, l.Location(), "malformed literal")
		return nil
	}
}

func (f *Folder) VisitIdentifier(i *ast.Identifier) interface{} {
	v, ok := f.scope.ResolveMapping(i.Name)
	if !ok {
		f.errs.Addf(diag.NameResolution, i.Location(), "unknown name %q", i.Name)
		return nil
	}
	return v
}

func (f *Folder) VisitIndex(idx *ast.Index) interface{} {
	obj := f.Fold(idx.Object)
	if obj == nil {
		return nil
	}
	switch reg := obj.(type) {
	case *values.QubitRefs:
		sel, ok := f.selectIndices(reg.Indices, idx.Arg, idx.Location())
		if !ok {
			return nil
		}
		return values.NewQubitRefs(sel, idx.Location())
	case *values.BitRefs:
		sel, ok := f.selectIndices(reg.Indices, idx.Arg, idx.Location())
		if !ok {
			return nil
		}
		return values.NewBitRefs(sel, idx.Location())
	default:
		f.errs.Addf(diag.TypePromotion, idx.Location(), "indexing is only defined on qubit/bit registers, got %s", obj.Type())
		return nil
	}
}

// selectIndices resolves an IndexArg against a register's live index list,
// bound-checking every index against the register's declared size.
func (f *Folder) selectIndices(indices []int, arg ast.IndexArg, loc srcloc.Range) ([]int, bool) {
	n := len(indices)
	switch a := arg.(type) {
	case ast.SingleIndex:
		k, ok := f.foldInt(a.Expr)
		if !ok {
			return nil, false
		}
		if k < 0 || k >= int64(n) {
			f.errs.Addf(diag.IndexOutOfRange, loc, "index %d out of range for register of size %d", k, n)
			return nil, false
		}
		return []int{indices[k]}, true
	case ast.RangeIndex:
		from, ok1 := f.foldInt(a.From)
		to, ok2 := f.foldInt(a.To)
		if !ok1 || !ok2 {
			return nil, false
		}
		if from < 0 || to >= int64(n) || from > to {
			f.errs.Addf(diag.IndexOutOfRange, loc, "range [%d:%d] out of range for register of size %d", from, to, n)
			return nil, false
		}
		return append([]int(nil), indices[from:to+1]...), true
	case ast.ListIndex:
		sel := make([]int, 0, len(a.Items))
		ok := true
		for _, item := range a.Items {
			k, kok := f.foldInt(item)
			if !kok {
				ok = false
				continue
			}
			if k < 0 || k >= int64(n) {
				f.errs.Addf(diag.IndexOutOfRange, item.Location(), "index %d out of range for register of size %d", k, n)
				ok = false
				continue
			}
			sel = append(sel, indices[k])
		}
		return sel, ok
	default:
		return nil, false
	}
}

func (f *Folder) foldInt(e ast.Expr) (int64, bool) {
	v := f.Fold(e)
	if v == nil {
		return 0, false
	}
	k, ok := values.IntOf(v)
	if !ok {
		f.errs.Addf(diag.TypePromotion, e.Location(), "expected an integer index, got %s", v.Type())
		return 0, false
	}
	return k, true
}

func (f *Folder) VisitBinary(b *ast.BinaryExpr) interface{} {
	left := f.Fold(b.Left)
	right := f.Fold(b.Right)
	if left == nil || right == nil {
		return nil
	}
	return f.callOperator(b.Op, []values.Value{left, right}, b.Location())
}

func (f *Folder) VisitUnary(u *ast.UnaryExpr) interface{} {
	operand := f.Fold(u.Operand)
	if operand == nil {
		return nil
	}
	return f.callOperator(u.Op, []values.Value{operand}, u.Location())
}

// VisitTernary evaluates the condition and folds only the taken branch: the
// ternary is a control construct, not an ordinary binary operator, so it is
// not routed through the function table (see DESIGN.md's note on
// "operator?:" for why no generic overload could express it) — this also
// gives it the short-circuit evaluation a reader would expect (the untaken
// branch is never folded, so e.g. a division by zero on the untaken side is
// not reported).
func (f *Folder) VisitTernary(t *ast.TernaryExpr) interface{} {
	cond := f.Fold(t.Cond)
	if cond == nil {
		return nil
	}
	b, ok := cond.(*values.ConstBool)
	if !ok {
		f.errs.Addf(diag.TypePromotion, t.Cond.Location(), "ternary condition must be bool, got %s", cond.Type())
		return nil
	}
	if b.Value {
		return f.Fold(t.Then)
	}
	return f.Fold(t.Else)
}

func (f *Folder) VisitCall(c *ast.CallExpr) interface{} {
	args := make([]values.Value, 0, len(c.Args))
	ok := true
	for _, a := range c.Args {
		v := f.Fold(a)
		if v == nil {
			ok = false
			continue
		}
		args = append(args, v)
	}
	if !ok {
		return nil
	}
	v, err := f.scope.Functions().Call(c.Name, args, c.Location())
	if err != nil {
		f.reportCallError(c.Name, err, c.Location())
		return nil
	}
	return v
}

func (f *Folder) callOperator(op string, args []values.Value, loc srcloc.Range) values.Value {
	name := "operator" + op
	v, err := f.scope.Functions().Call(name, args, loc)
	if err != nil {
		f.reportCallError(op, err, loc)
		return nil
	}
	return v
}

func (f *Folder) reportCallError(name string, err error, loc srcloc.Range) {
	switch e := err.(type) {
	case *registry.ErrUnknownName:
		f.errs.Addf(diag.NameResolution, loc, "unknown operator or function %q", name)
	case *registry.ErrNoOverload:
		f.errs.Addf(diag.OverloadResolution, loc, "%s", e.Error())
	case *diag.Diagnostic:
		// a function implementation (e.g. division by zero) already raised
		// its own typed diagnostic; keep its kind instead of flattening it.
		f.errs.Add(e)
	default:
		f.errs.Addf(diag.InvalidArgument, loc, "%s", err.Error())
	}
}
