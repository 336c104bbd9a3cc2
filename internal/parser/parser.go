// Package parser implements the recursive-descent parser that turns a
// dialect-tokenized stream into the syntactic tree of internal/ast: a flat
// token slice, a cursor, a precedence-climbing expression parser, and an
// accumulated error slice instead of panicking on the first bad token.
package parser

import (
	"strconv"
	"strings"

	"github.com/mewmew/float"

	"cqasm/internal/ast"
	"cqasm/internal/dialect"
	"cqasm/internal/diag"
	"cqasm/internal/srcloc"
	"cqasm/internal/token"
)

// binaryPrecedence ranks binary operators low-to-high; `|` is deliberately
// absent because it is reserved for bundle separation (`{ a | b }`) and the
// registered operator set never lists bitwise-or.
var binaryPrecedence = map[token.Kind]int{
	token.KindOrOr:     1,
	token.KindAndAnd:   2,
	token.KindCaret:    3,
	token.KindAmp:      4,
	token.KindEqEq:     5,
	token.KindNotEq:    5,
	token.KindLT:       6,
	token.KindLE:       6,
	token.KindGT:       6,
	token.KindGE:       6,
	token.KindShl:      7,
	token.KindShr:      7,
	token.KindUShr:     7,
	token.KindPlus:     8,
	token.KindMinus:    8,
	token.KindStar:     9,
	token.KindSlash:    9,
	token.KindPercent:  9,
	token.KindStarStar: 10,
}

// Parser consumes a token stream for a single dialect and produces a
// syntactic Program plus any ParseError diagnostics. Unlike the folder and
// analyzer, it never fails fatally: a malformed statement is reported and
// skipped, and the parser resynchronizes at the next newline so a single
// typo does not swallow the rest of the file.
type Parser struct {
	tokens   []token.Token
	pos      int
	dialect  dialect.Dialect
	fileName string
	errs     diag.Sink
}

// New constructs a Parser over an already-scanned token stream.
func New(tokens []token.Token, d dialect.Dialect, fileName string) *Parser {
	return &Parser{tokens: tokens, dialect: d, fileName: fileName}
}

// Parse runs the parser to completion, always returning a Program (possibly
// missing statements it could not recover from) alongside accumulated
// ParseError diagnostics.
func (p *Parser) Parse() (*ast.Program, *diag.Sink) {
	start := p.peek()
	p.skipNewlines()
	versionSpec := p.parseVersionHeader()
	p.skipNewlines()

	var stmts []ast.Stmt
	for !p.check(token.KindEOF) {
		p.skipNewlines()
		if p.check(token.KindEOF) {
			break
		}
		stmt := p.parseStatement()
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
		if !p.check(token.KindEOF) && !p.check(token.KindNewline) && !p.check(token.KindSemi) {
			p.errorf(p.peek().Loc(p.fileName), "expected end of statement, found %s", p.peek().Kind)
			p.syncToNewline()
		}
		p.skipNewlines()
	}

	loc := srcloc.Span(start.Loc(p.fileName), p.previous().Loc(p.fileName))
	prog := &ast.Program{VersionSpec: versionSpec, Statements: stmts, Loc: loc}
	return prog, &p.errs
}

// parseVersionHeader consumes `version M(.N)*` and returns the raw
// dotted-number text verbatim; internal/version re-parses it so the parser
// itself need not understand version semantics.
func (p *Parser) parseVersionHeader() string {
	if !p.check(token.KindVersion) {
		p.errorf(p.peek().Loc(p.fileName), "expected 'version' header, found %s", p.peek().Kind)
		return ""
	}
	p.advance()
	var sb strings.Builder
	for !p.check(token.KindNewline) && !p.check(token.KindEOF) && !p.check(token.KindSemi) {
		sb.WriteString(p.advance().Lexeme)
	}
	return sb.String()
}

func (p *Parser) parseStatement() ast.Stmt {
	switch p.peek().Kind {
	case token.KindQubits:
		return p.parseV1Register()
	case token.KindQubitType, token.KindBitType:
		return p.parseV3Register()
	case token.KindMap, token.KindVar:
		return p.parseMapping()
	case token.KindErrorModel:
		return p.parseErrorModelDecl()
	case token.KindDot:
		return p.parseSubcircuit()
	case token.KindLBrace:
		return p.parseBundleStmt()
	default:
		return p.parseInstructionOrAssignment()
	}
}

// parseV1Register parses v1's `qubits N`.
func (p *Parser) parseV1Register() ast.Stmt {
	start := p.advance() // 'qubits'
	size := p.parseExpr()
	loc := p.spanFrom(start)
	return ast.NewRegisterDecl("qubits", "", size, loc)
}

// parseV3Register parses v3's `qubit[N] q` or `bit[N] b`.
func (p *Parser) parseV3Register() ast.Stmt {
	start := p.advance() // 'qubit' or 'bit'
	kind := "qubit"
	if start.Kind == token.KindBitType {
		kind = "bit"
	}
	p.consume(token.KindLBracket, "expected '[' after '%s'", kind)
	size := p.parseExpr()
	p.consume(token.KindRBracket, "expected ']' to close '%s[...'", kind)
	name := p.consume(token.KindIdent, "expected register name after '%s[...]'", kind).Lexeme
	return ast.NewRegisterDecl(kind, name, size, p.spanFrom(start))
}

// parseMapping parses `map name = expr` and also accepts v3's
// `var name = expr` with identical syntax (see DESIGN.md): both bind a name
// to a value in the current scope frame.
func (p *Parser) parseMapping() ast.Stmt {
	start := p.advance() // 'map' or 'var'
	name := p.consume(token.KindIdent, "expected name after '%s'", start.Lexeme).Lexeme
	p.consume(token.KindAssign, "expected '=' in mapping")
	value := p.parseExpr()
	annots := p.parseAnnotations()
	return ast.NewMapping(name, value, annots, p.spanFrom(start))
}

func (p *Parser) parseErrorModelDecl() ast.Stmt {
	start := p.advance() // 'error_model'
	name := p.consume(token.KindIdent, "expected error model name").Lexeme
	args := p.parseExprListUntilEndOfStatement()
	return ast.NewErrorModelDecl(name, args, p.spanFrom(start))
}

// parseSubcircuit parses `.name[(iterations)]`. The syntactic tree stays
// flat (ast.Program's doc comment): this node is a marker the analyzer uses
// to start a new subcircuit, not a container of its own body.
func (p *Parser) parseSubcircuit() ast.Stmt {
	start := p.advance() // '.'
	name := p.consume(token.KindIdent, "expected subcircuit name after '.'").Lexeme
	var iterations ast.Expr
	if p.match(token.KindLParen) {
		iterations = p.parseExpr()
		p.consume(token.KindRParen, "expected ')' to close subcircuit iteration count")
	}
	return ast.NewSubcircuit(name, iterations, p.spanFrom(start))
}

// parseBundleStmt parses `{ instr | instr | ... }`.
func (p *Parser) parseBundleStmt() ast.Stmt {
	start := p.advance() // '{'
	p.skipNewlines()
	var instrs []*ast.InstructionCall
	instrs = append(instrs, p.parseInstructionCall())
	p.skipNewlines()
	for p.match(token.KindPipe) {
		p.skipNewlines()
		instrs = append(instrs, p.parseInstructionCall())
		p.skipNewlines()
	}
	p.consume(token.KindRBrace, "expected '}' to close bundle")
	return ast.NewBundle(instrs, p.spanFrom(start))
}

// parseInstructionOrAssignment handles every statement that is not
// introduced by a distinguishing keyword: a conditional or unconditional
// instruction call, or a v3 assignment `target = expr`.
func (p *Parser) parseInstructionOrAssignment() ast.Stmt {
	start := p.peek()
	first := p.parseExpr()
	if p.match(token.KindColon) {
		name := p.consume(token.KindIdent, "expected instruction name after condition").Lexeme
		operands := p.parseOperandList()
		annots := p.parseAnnotations()
		instr := ast.NewInstructionCall(name, first, operands, annots, p.spanFrom(start))
		return ast.NewBundle([]*ast.InstructionCall{instr}, instr.Location())
	}
	if p.match(token.KindAssign) {
		value := p.parseExpr()
		// v3 sugar `b = measure q`: a bare callee name followed directly by
		// an operand list with no parentheses, as opposed to an ordinary
		// function call `f(x)` (already consumed by parseExpr/parsePrimary)
		// or a plain alias `b = q`, where nothing but a statement
		// separator follows.
		if ident, ok := value.(*ast.Identifier); ok && !p.atOperandListEnd() {
			operands := p.parseOperandList()
			value = ast.NewCall(ident.Name, operands, p.spanFrom(start))
		}
		return ast.NewAssignment(first, value, p.spanFrom(start))
	}
	if ident, ok := first.(*ast.Identifier); ok {
		operands := p.parseOperandList()
		annots := p.parseAnnotations()
		instr := ast.NewInstructionCall(ident.Name, nil, operands, annots, p.spanFrom(start))
		return ast.NewBundle([]*ast.InstructionCall{instr}, instr.Location())
	}
	p.errorf(first.Location(), "expected an instruction name, assignment target, or condition")
	return nil
}

// parseInstructionCall parses one `[condition:] name operand, ...
// [@annot...]`, used both at top level (wrapped in a one-instruction
// Bundle by the caller) and inside a parallel bundle.
func (p *Parser) parseInstructionCall() *ast.InstructionCall {
	start := p.peek()
	first := p.parseExpr()
	var condition ast.Expr
	name := ""
	if p.match(token.KindColon) {
		condition = first
		name = p.consume(token.KindIdent, "expected instruction name after condition").Lexeme
	} else if ident, ok := first.(*ast.Identifier); ok {
		name = ident.Name
	} else {
		p.errorf(first.Location(), "expected an instruction name")
	}
	operands := p.parseOperandList()
	annots := p.parseAnnotations()
	return ast.NewInstructionCall(name, condition, operands, annots, p.spanFrom(start))
}

// parseOperandList parses a comma-separated expression list up to the next
// statement/bundle/annotation boundary; an instruction with no operands
// (e.g. `measure_all`) returns nil.
func (p *Parser) parseOperandList() []ast.Expr {
	if p.atOperandListEnd() {
		return nil
	}
	return p.parseExprListUntilEndOfStatement()
}

func (p *Parser) parseExprListUntilEndOfStatement() []ast.Expr {
	if p.atOperandListEnd() {
		return nil
	}
	exprs := []ast.Expr{p.parseExpr()}
	for p.match(token.KindComma) {
		exprs = append(exprs, p.parseExpr())
	}
	return exprs
}

func (p *Parser) atOperandListEnd() bool {
	switch p.peek().Kind {
	case token.KindNewline, token.KindSemi, token.KindEOF, token.KindAt, token.KindPipe, token.KindRBrace:
		return true
	default:
		return false
	}
}

// parseAnnotations parses zero or more `@interface.operation(arg, ...)`.
func (p *Parser) parseAnnotations() []ast.Annotation {
	var annots []ast.Annotation
	for p.check(token.KindAt) {
		start := p.advance() // '@'
		iface := p.consume(token.KindIdent, "expected interface name after '@'").Lexeme
		p.consume(token.KindDot, "expected '.' between interface and operation name")
		op := p.consume(token.KindIdent, "expected operation name").Lexeme
		var args []ast.Expr
		if p.match(token.KindLParen) {
			if !p.check(token.KindRParen) {
				args = append(args, p.parseExpr())
				for p.match(token.KindComma) {
					args = append(args, p.parseExpr())
				}
			}
			p.consume(token.KindRParen, "expected ')' to close annotation arguments")
		}
		annots = append(annots, ast.Annotation{Interface: iface, Operation: op, Args: args, Loc: p.spanFrom(start)})
	}
	return annots
}

// --- expressions, precedence-climbing ---

func (p *Parser) parseExpr() ast.Expr {
	return p.parseTernary()
}

func (p *Parser) parseTernary() ast.Expr {
	start := p.peek()
	cond := p.parseBinary(1)
	if p.match(token.KindQuestion) {
		then := p.parseTernary()
		p.consume(token.KindColon, "expected ':' in ternary expression")
		els := p.parseTernary()
		return ast.NewTernary(cond, then, els, p.spanFrom(start))
	}
	return cond
}

func (p *Parser) parseBinary(minPrec int) ast.Expr {
	left := p.parseUnary()
	for {
		prec, ok := binaryPrecedence[p.peek().Kind]
		if !ok || prec < minPrec {
			return left
		}
		opTok := p.advance()
		nextMin := prec + 1
		if opTok.Kind == token.KindStarStar { // right-associative
			nextMin = prec
		}
		right := p.parseBinary(nextMin)
		left = ast.NewBinary(left, string(opTok.Kind), right, srcloc.Span(left.Location(), right.Location()))
	}
}

func (p *Parser) parseUnary() ast.Expr {
	switch p.peek().Kind {
	case token.KindMinus, token.KindBang, token.KindTilde:
		opTok := p.advance()
		operand := p.parseUnary()
		return ast.NewUnary(string(opTok.Kind), operand, srcloc.Span(opTok.Loc(p.fileName), operand.Location()))
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parsePostfix() ast.Expr {
	expr := p.parsePrimary()
	for p.check(token.KindLBracket) {
		start := p.advance() // '['
		arg := p.parseIndexArg()
		end := p.consume(token.KindRBracket, "expected ']' to close index")
		expr = ast.NewIndex(expr, arg, srcloc.Span(expr.Location(), srcloc.Span(start.Loc(p.fileName), end.Loc(p.fileName))))
	}
	return expr
}

func (p *Parser) parseIndexArg() ast.IndexArg {
	first := p.parseExpr()
	if p.match(token.KindColon) {
		to := p.parseExpr()
		return ast.RangeIndex{From: first, To: to}
	}
	if p.check(token.KindComma) {
		items := []ast.Expr{first}
		for p.match(token.KindComma) {
			items = append(items, p.parseExpr())
		}
		return ast.ListIndex{Items: items}
	}
	return ast.SingleIndex{Expr: first}
}

func (p *Parser) parsePrimary() ast.Expr {
	tok := p.peek()
	switch tok.Kind {
	case token.KindInt:
		p.advance()
		n, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			p.errorf(tok.Loc(p.fileName), "invalid integer literal %q", tok.Lexeme)
		}
		return ast.NewLiteral(n, tok.Loc(p.fileName))
	case token.KindFloat:
		p.advance()
		// Float64FromString rounds the decimal text to float64 once, through
		// an arbitrary-precision intermediate, rather than strconv's own
		// correctly-rounded-but-separately-specified decimal-to-binary path;
		// both agree for cQASM's literal grammar, but this keeps the route
		// the same arbitrary-precision value would take at any bit width.
		f, _, err := float.Float64FromString(tok.Lexeme)
		if err != nil {
			p.errorf(tok.Loc(p.fileName), "invalid floating-point literal %q", tok.Lexeme)
		}
		return ast.NewLiteral(f, tok.Loc(p.fileName))
	case token.KindString:
		p.advance()
		return ast.NewLiteral(tok.Lexeme, tok.Loc(p.fileName))
	case token.KindTrue:
		p.advance()
		return ast.NewLiteral(true, tok.Loc(p.fileName))
	case token.KindFalse:
		p.advance()
		return ast.NewLiteral(false, tok.Loc(p.fileName))
	case token.KindLParen:
		p.advance()
		inner := p.parseExpr()
		p.consume(token.KindRParen, "expected ')' to close parenthesized expression")
		return inner
	case token.KindIdent:
		p.advance()
		if p.check(token.KindLParen) {
			p.advance()
			var args []ast.Expr
			if !p.check(token.KindRParen) {
				args = append(args, p.parseExpr())
				for p.match(token.KindComma) {
					args = append(args, p.parseExpr())
				}
			}
			end := p.consume(token.KindRParen, "expected ')' to close call arguments")
			return ast.NewCall(tok.Lexeme, args, srcloc.Span(tok.Loc(p.fileName), end.Loc(p.fileName)))
		}
		return ast.NewIdentifier(tok.Lexeme, tok.Loc(p.fileName))
	default:
		p.errorf(tok.Loc(p.fileName), "unexpected token %s", tok.Kind)
		p.advance()
		return ast.NewLiteral(nil, tok.Loc(p.fileName))
	}
}

// --- token-stream plumbing ---

func (p *Parser) peek() token.Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // EOF
	}
	return p.tokens[p.pos]
}

func (p *Parser) previous() token.Token {
	if p.pos == 0 {
		return p.tokens[0]
	}
	return p.tokens[p.pos-1]
}

func (p *Parser) check(kind token.Kind) bool { return p.peek().Kind == kind }

func (p *Parser) advance() token.Token {
	tok := p.peek()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) match(kind token.Kind) bool {
	if p.check(kind) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consume(kind token.Kind, format string, args ...interface{}) token.Token {
	if p.check(kind) {
		return p.advance()
	}
	p.errorf(p.peek().Loc(p.fileName), format, args...)
	return p.peek()
}

// skipNewlines consumes statement separators: both newline tokens and the
// ';' a single line with multiple statements uses instead of one.
func (p *Parser) skipNewlines() {
	for p.match(token.KindNewline) || p.match(token.KindSemi) {
	}
}

// syncToNewline discards tokens until the next statement boundary so a
// single malformed statement does not cascade into spurious follow-on
// errors (the "beyond what the parser already performed" error recovery
// attributes to this external component).
func (p *Parser) syncToNewline() {
	for !p.check(token.KindNewline) && !p.check(token.KindEOF) && !p.check(token.KindSemi) {
		p.advance()
	}
}

func (p *Parser) spanFrom(start token.Token) srcloc.Range {
	return srcloc.Span(start.Loc(p.fileName), p.previous().Loc(p.fileName))
}

func (p *Parser) errorf(loc srcloc.Range, format string, args ...interface{}) {
	p.errs.Addf(diag.ParseError, loc, format, args...)
}
