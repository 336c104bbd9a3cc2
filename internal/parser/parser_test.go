package parser

import (
	"testing"

	"cqasm/internal/ast"
	"cqasm/internal/dialect"
	"cqasm/internal/lexer"
)

func parseString(t *testing.T, d dialect.Dialect, src string) (*ast.Program, []string) {
	t.Helper()
	sc := lexer.New(src, d)
	toks := sc.ScanTokens()
	p := New(toks, d, "<test>")
	prog, errs := p.Parse()
	msgs := make([]string, len(errs.Items()))
	for i, e := range errs.Items() {
		msgs[i] = e.Error()
	}
	return prog, msgs
}

func assertNoParseErrors(t *testing.T, errs []string) {
	t.Helper()
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
}

func TestSemicolonSeparatesStatementsLikeNewline(t *testing.T) {
	prog, errs := parseString(t, dialect.V1, "version 1.0; qubits 2; h q[0]; cnot q[0], q[1]; measure_all")
	assertNoParseErrors(t, errs)
	if prog.VersionSpec != "1.0" {
		t.Fatalf("VersionSpec = %q, want %q", prog.VersionSpec, "1.0")
	}
	if len(prog.Statements) != 4 {
		t.Fatalf("expected 4 statements (register decl + 3 instructions), got %d: %#v", len(prog.Statements), prog.Statements)
	}
}

func TestSemicolonAndNewlineAreInterchangeable(t *testing.T) {
	a, errsA := parseString(t, dialect.V1, "version 1.0\nqubits 2\nh q[0]\n")
	b, errsB := parseString(t, dialect.V1, "version 1.0; qubits 2; h q[0]")
	assertNoParseErrors(t, errsA)
	assertNoParseErrors(t, errsB)
	if len(a.Statements) != len(b.Statements) {
		t.Errorf("newline-separated and semicolon-separated programs should parse to the same statement count: %d vs %d", len(a.Statements), len(b.Statements))
	}
}

func TestV3MeasureSugarProducesSyntheticCall(t *testing.T) {
	prog, errs := parseString(t, dialect.V3, "version 3.0\nqubit[2] q\nbit[2] b\nb = measure q\n")
	assertNoParseErrors(t, errs)
	var assign *ast.Assignment
	for _, s := range prog.Statements {
		if a, ok := s.(*ast.Assignment); ok {
			assign = a
		}
	}
	if assign == nil {
		t.Fatalf("expected an Assignment statement, got %#v", prog.Statements)
	}
	call, ok := assign.Value.(*ast.CallExpr)
	if !ok {
		t.Fatalf("assignment value = %T, want *ast.CallExpr (the paren-less instruction sugar)", assign.Value)
	}
	if call.Name != "measure" {
		t.Errorf("call.Name = %q, want %q", call.Name, "measure")
	}
	if len(call.Args) != 1 {
		t.Fatalf("expected measure to carry its one operand, got %d", len(call.Args))
	}
	if ident, ok := call.Args[0].(*ast.Identifier); !ok || ident.Name != "q" {
		t.Errorf("measure's operand = %#v, want identifier q", call.Args[0])
	}
}

func TestPlainAliasAssignmentStaysIdentifier(t *testing.T) {
	prog, errs := parseString(t, dialect.V3, "version 3.0\nqubit[1] q\nbit[1] b\nb = q\n")
	assertNoParseErrors(t, errs)
	var assign *ast.Assignment
	for _, s := range prog.Statements {
		if a, ok := s.(*ast.Assignment); ok {
			assign = a
		}
	}
	if assign == nil {
		t.Fatal("expected an Assignment statement")
	}
	if _, ok := assign.Value.(*ast.Identifier); !ok {
		t.Errorf("a plain alias assignment's value should stay a bare Identifier, got %T", assign.Value)
	}
}

func TestOrdinaryFunctionCallUnaffectedBySugar(t *testing.T) {
	prog, errs := parseString(t, dialect.V1, "version 1.0\nqubits 1\nmap x = sqrt(4)\n")
	assertNoParseErrors(t, errs)
	mapping, ok := prog.Statements[1].(*ast.Mapping)
	if !ok {
		t.Fatalf("expected a Mapping statement, got %T", prog.Statements[1])
	}
	call, ok := mapping.Value.(*ast.CallExpr)
	if !ok {
		t.Fatalf("mapping value = %T, want *ast.CallExpr", mapping.Value)
	}
	if call.Name != "sqrt" || len(call.Args) != 1 {
		t.Errorf("unexpected call shape: %#v", call)
	}
}

func TestConditionalInstruction(t *testing.T) {
	prog, errs := parseString(t, dialect.V1, "version 1.0\nqubits 1\nmap c = true\nc: skip 1\n")
	assertNoParseErrors(t, errs)
	bundle, ok := prog.Statements[2].(*ast.Bundle)
	if !ok {
		t.Fatalf("expected a Bundle wrapping the conditional instruction, got %T", prog.Statements[2])
	}
	instr := bundle.Instructions[0]
	if instr.Name != "skip" {
		t.Errorf("instr.Name = %q, want %q", instr.Name, "skip")
	}
	if instr.Condition == nil {
		t.Error("expected a non-nil condition expression")
	}
}

func TestParallelBundle(t *testing.T) {
	prog, errs := parseString(t, dialect.V1, "version 1.0\nqubits 2\n{ h q[0] | h q[1] }\n")
	assertNoParseErrors(t, errs)
	bundle, ok := prog.Statements[1].(*ast.Bundle)
	if !ok {
		t.Fatalf("expected a Bundle statement, got %T", prog.Statements[1])
	}
	if len(bundle.Instructions) != 2 {
		t.Fatalf("expected 2 instructions in the bundle, got %d", len(bundle.Instructions))
	}
}

func TestOperatorPrecedence(t *testing.T) {
	prog, errs := parseString(t, dialect.V1, "version 1.0\nqubits 1\nmap x = 1 + 2 * 3\n")
	assertNoParseErrors(t, errs)
	mapping := prog.Statements[1].(*ast.Mapping)
	bin, ok := mapping.Value.(*ast.BinaryExpr)
	if !ok {
		t.Fatalf("expected a top-level BinaryExpr, got %T", mapping.Value)
	}
	if bin.Op != "+" {
		t.Fatalf("top-level operator = %q, want '+' (lower precedence should bind loosest)", bin.Op)
	}
	if _, ok := bin.Right.(*ast.BinaryExpr); !ok {
		t.Errorf("the multiplication should nest under the right side of +, got %T", bin.Right)
	}
}

func TestStarStarIsRightAssociative(t *testing.T) {
	prog, errs := parseString(t, dialect.V1, "version 1.0\nqubits 1\nmap x = 2 ** 3 ** 2\n")
	assertNoParseErrors(t, errs)
	mapping := prog.Statements[1].(*ast.Mapping)
	top, ok := mapping.Value.(*ast.BinaryExpr)
	if !ok {
		t.Fatalf("expected a BinaryExpr, got %T", mapping.Value)
	}
	if _, ok := top.Left.(*ast.Literal); !ok {
		t.Errorf("2 ** 3 ** 2 should nest on the right (2 ** (3 ** 2)), left operand was %T", top.Left)
	}
	if _, ok := top.Right.(*ast.BinaryExpr); !ok {
		t.Errorf("2 ** 3 ** 2 should nest on the right (2 ** (3 ** 2)), right operand was %T", top.Right)
	}
}

func TestTernaryParsesRightAssociatively(t *testing.T) {
	prog, errs := parseString(t, dialect.V1, "version 1.0\nqubits 1\nmap x = true ? 1 : false ? 2 : 3\n")
	assertNoParseErrors(t, errs)
	mapping := prog.Statements[1].(*ast.Mapping)
	top, ok := mapping.Value.(*ast.TernaryExpr)
	if !ok {
		t.Fatalf("expected a TernaryExpr, got %T", mapping.Value)
	}
	if _, ok := top.Else.(*ast.TernaryExpr); !ok {
		t.Errorf("a chained ternary should nest in the else branch, got %T", top.Else)
	}
}

func TestIndexForms(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want interface{}
	}{
		{"single", "q[0]", ast.SingleIndex{}},
		{"range", "q[0:2]", ast.RangeIndex{}},
		{"list", "q[0,1,2]", ast.ListIndex{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, errs := parseString(t, dialect.V1, "version 1.0\nqubits 4\nh "+tt.expr+"\n")
			assertNoParseErrors(t, errs)
			bundle := prog.Statements[1].(*ast.Bundle)
			idx := bundle.Instructions[0].Operands[0].(*ast.Index)
			switch tt.want.(type) {
			case ast.SingleIndex:
				if _, ok := idx.Arg.(ast.SingleIndex); !ok {
					t.Errorf("Arg = %T, want SingleIndex", idx.Arg)
				}
			case ast.RangeIndex:
				if _, ok := idx.Arg.(ast.RangeIndex); !ok {
					t.Errorf("Arg = %T, want RangeIndex", idx.Arg)
				}
			case ast.ListIndex:
				if _, ok := idx.Arg.(ast.ListIndex); !ok {
					t.Errorf("Arg = %T, want ListIndex", idx.Arg)
				}
			}
		})
	}
}

func TestAnnotation(t *testing.T) {
	prog, errs := parseString(t, dialect.V1, "version 1.0\nqubits 1\nh q[0] @foo.bar(1, 2)\n")
	assertNoParseErrors(t, errs)
	bundle := prog.Statements[1].(*ast.Bundle)
	annots := bundle.Instructions[0].Annotations
	if len(annots) != 1 {
		t.Fatalf("expected one annotation, got %d", len(annots))
	}
	if annots[0].Interface != "foo" || annots[0].Operation != "bar" {
		t.Errorf("annotation = %+v, want interface=foo operation=bar", annots[0])
	}
	if len(annots[0].Args) != 2 {
		t.Errorf("expected 2 annotation args, got %d", len(annots[0].Args))
	}
}

func TestSubcircuitHeader(t *testing.T) {
	prog, errs := parseString(t, dialect.V1, "version 1.0\nqubits 1\n.main(3)\nh q[0]\n")
	assertNoParseErrors(t, errs)
	sc, ok := prog.Statements[1].(*ast.Subcircuit)
	if !ok {
		t.Fatalf("expected a Subcircuit statement, got %T", prog.Statements[1])
	}
	if sc.Name != "main" {
		t.Errorf("sc.Name = %q, want %q", sc.Name, "main")
	}
	if sc.Iterations == nil {
		t.Error("expected a non-nil iteration count")
	}
}

func TestMalformedStatementRecoversAtNextLine(t *testing.T) {
	prog, errs := parseString(t, dialect.V1, "version 1.0\nqubits 1\n@ bad token here\nh q[0]\n")
	if len(errs) == 0 {
		t.Fatal("a malformed statement should report a parse error")
	}
	var sawH bool
	for _, s := range prog.Statements {
		if b, ok := s.(*ast.Bundle); ok && b.Instructions[0].Name == "h" {
			sawH = true
		}
	}
	if !sawH {
		t.Error("parsing should recover and still see the following valid statement")
	}
}

func TestFloatLiteralParsing(t *testing.T) {
	prog, errs := parseString(t, dialect.V1, "version 1.0\nqubits 1\nmap x = 3.5\n")
	assertNoParseErrors(t, errs)
	mapping := prog.Statements[1].(*ast.Mapping)
	lit := mapping.Value.(*ast.Literal)
	if f, ok := lit.Value.(float64); !ok || f != 3.5 {
		t.Errorf("literal value = %#v, want float64(3.5)", lit.Value)
	}
}

func TestUnaryOperators(t *testing.T) {
	prog, errs := parseString(t, dialect.V1, "version 1.0\nqubits 1\nmap x = !true\n")
	assertNoParseErrors(t, errs)
	mapping := prog.Statements[1].(*ast.Mapping)
	u, ok := mapping.Value.(*ast.UnaryExpr)
	if !ok || u.Op != "!" {
		t.Errorf("expected a UnaryExpr with op '!', got %#v", mapping.Value)
	}
}
