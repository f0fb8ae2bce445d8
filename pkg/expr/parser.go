package expr

import (
	"errors"
	"fmt"
	"iter"

	"github.com/lemonberrylabs/exprcalc/pkg/types"
)

// errorRecoveryShifts is the number of tokens that must be consumed after a
// syntax error before another syntax error is reported. Errors inside that
// window belong to the same bad span.
const errorRecoveryShifts = 3

// ParseErrorKind distinguishes the records of the parser's error log.
type ParseErrorKind int

const (
	ErrSyntax    ParseErrorKind = iota // unexpected token
	ErrUndefined                       // reference to an unbound name
)

// ParseError is one record of the parser's error log.
type ParseError struct {
	Kind  ParseErrorKind
	Token Token  // offending token, or the identifier token for ErrUndefined
	Name  string // unbound name (ErrUndefined only)
}

// String renders the record for diagnostics.
func (e ParseError) String() string {
	if e.Kind == ErrUndefined {
		return fmt.Sprintf("undefined name %q at line %d", e.Name, e.Token.Line)
	}
	if e.Token.Type == TokenEOF {
		return "unexpected end of input"
	}
	return fmt.Sprintf("unexpected token %s", e.Token)
}

// syntaxError aborts the statement being parsed. It never escapes Parse.
type syntaxError struct {
	tok Token
}

func (e *syntaxError) Error() string {
	return fmt.Sprintf("unexpected token %s", e.tok)
}

// symbol is the semantic value of a reduced grammar symbol. An argument
// list can be a statement, the operand of in, or a call's arguments, but
// never the operand of another operator.
type symbol struct {
	value  types.Value
	isList bool
}

// Parser evaluates statements from a token sequence. Evaluation happens as
// rules are recognized; no tree is built. A Parser owns its Environment and
// error log and is not safe for concurrent use.
type Parser struct {
	env    *Environment
	errors []ParseError

	// Per-call state.
	next     func() (Token, bool)
	buf      []Token
	lastLine int
	quiet    int
}

// NewParser creates a parser with an empty environment.
func NewParser() *Parser {
	return NewParserWithEnv(NewEnvironment())
}

// NewParserWithEnv creates a parser that reads and binds names in env.
func NewParserWithEnv(env *Environment) *Parser {
	return &Parser{env: env}
}

// Env returns the parser's environment.
func (p *Parser) Env() *Environment {
	return p.env
}

// Errors returns the parser's error log in the order records were appended.
func (p *Parser) Errors() []ParseError {
	return p.errors
}

// Parse consumes tokens as one statement and returns its value. An
// assignment, or input that ends inside a syntax error, yields types.Absent.
//
// A syntax error is logged, the partial statement and the offending token
// are dropped, and parsing starts over with the following tokens. Undefined
// names are logged and read as 0. The returned error is non-nil only for an
// invalid operation (*types.EvalError), which fails the whole call.
func (p *Parser) Parse(tokens iter.Seq[Token]) (types.Value, error) {
	next, stop := iter.Pull(tokens)
	defer stop()

	p.next = next
	p.buf = p.buf[:0]
	p.lastLine = 1
	p.quiet = 0
	defer func() { p.next = nil }()

	for {
		val, err := p.statement()
		if err == nil {
			return val, nil
		}

		var serr *syntaxError
		if !errors.As(err, &serr) {
			return types.Absent, err
		}
		if p.quiet == 0 {
			p.errors = append(p.errors, ParseError{Kind: ErrSyntax, Token: serr.tok})
		}
		p.quiet = errorRecoveryShifts
		if serr.tok.Type == TokenEOF {
			return types.Absent, nil
		}
		p.discard()
	}
}

// --- Token access ---

func (p *Parser) fill(n int) {
	for len(p.buf) <= n {
		tok, ok := p.next()
		if !ok {
			return
		}
		p.lastLine = tok.Line
		p.buf = append(p.buf, tok)
	}
}

// lookahead returns the token n positions ahead of the current one.
func (p *Parser) lookahead(n int) Token {
	p.fill(n)
	if n >= len(p.buf) {
		return Token{Type: TokenEOF, Line: p.lastLine}
	}
	return p.buf[n]
}

func (p *Parser) current() Token {
	return p.lookahead(0)
}

func (p *Parser) peek() Token {
	return p.lookahead(1)
}

// advance consumes the current token as part of a statement.
func (p *Parser) advance() Token {
	tok := p.current()
	if len(p.buf) > 0 {
		p.buf = p.buf[1:]
	}
	if p.quiet > 0 {
		p.quiet--
	}
	return tok
}

// discard drops the current token during recovery.
func (p *Parser) discard() {
	p.current()
	if len(p.buf) > 0 {
		p.buf = p.buf[1:]
	}
}

// fail reports the current token as unexpected without consuming it.
func (p *Parser) fail() error {
	return &syntaxError{tok: p.current()}
}

func (p *Parser) expect(tt TokenType) error {
	if p.current().Type != tt {
		return p.fail()
	}
	p.advance()
	return nil
}

// --- Statements ---

// statement parses one of:
//
//	ID '=' expr
//	ID '(' [arglist] ')'
//	arglist
//	expr
//
// followed by the end of input.
func (p *Parser) statement() (types.Value, error) {
	if p.current().Type == TokenID {
		switch p.peek().Type {
		case TokenAssign:
			return p.assignment()
		case TokenLParen:
			return p.call()
		}
		// A leading name is only resolved once its follower is known to be
		// valid, so a misplaced name is not also reported as undefined.
		if !canFollowOperand(p.peek().Type) {
			p.advance()
			return types.Absent, p.fail()
		}
	}

	sym, err := p.arglistOrExpr(precLowest)
	if err != nil {
		return types.Absent, err
	}
	if !sym.isList && p.current().Type == TokenComma {
		if sym, err = p.listTail(sym.value, precLowest); err != nil {
			return types.Absent, err
		}
	}
	if err := p.expect(TokenEOF); err != nil {
		return types.Absent, err
	}
	return sym.value, nil
}

func (p *Parser) assignment() (types.Value, error) {
	name := p.advance().Value
	p.advance() // consume =

	val, err := p.expression(precLowest)
	if err != nil {
		return types.Absent, err
	}
	if err := p.expect(TokenEOF); err != nil {
		return types.Absent, err
	}
	p.env.Set(name, val)
	return types.Absent, nil
}

func (p *Parser) call() (types.Value, error) {
	name := p.advance().Value

	args, err := p.group()
	if err != nil {
		return types.Absent, err
	}
	if !args.isList {
		args = symbol{value: types.NewList([]types.Value{args.value}), isList: true}
	}
	if err := p.expect(TokenEOF); err != nil {
		return types.Absent, err
	}
	return types.NewNamed(name, args.value), nil
}

// --- Argument lists ---

// group parses '(' [arglist] ')' or '(' expr ')'. An empty group is an
// absent argument list; a single expression without commas is a
// parenthesized expression.
func (p *Parser) group() (symbol, error) {
	if err := p.expect(TokenLParen); err != nil {
		return symbol{}, err
	}
	if p.current().Type == TokenRParen {
		p.advance()
		return symbol{value: types.Absent, isList: true}, nil
	}

	inner, err := p.arglistOrExpr(precLowest)
	if err != nil {
		return symbol{}, err
	}
	if !inner.isList && p.current().Type == TokenComma {
		if inner, err = p.listTail(inner.value, precLowest); err != nil {
			return symbol{}, err
		}
	}
	if err := p.expect(TokenRParen); err != nil {
		return symbol{}, err
	}
	return inner, nil
}

// arglistOrExpr parses a position where either an argument list or an
// expression binding at least minPrec may appear. A parenthesized
// expression found here keeps going as the left operand of what follows.
func (p *Parser) arglistOrExpr(minPrec precedence) (symbol, error) {
	if p.current().Type != TokenLParen {
		val, err := p.expression(minPrec)
		return symbol{value: val}, err
	}

	inner, err := p.group()
	if err != nil || inner.isList {
		return inner, err
	}
	val, err := p.infix(inner.value, minPrec)
	return symbol{value: val}, err
}

// listTail collects { ',' expr } after the first element.
func (p *Parser) listTail(first types.Value, elemPrec precedence) (symbol, error) {
	items := []types.Value{first}
	for p.current().Type == TokenComma {
		p.advance()
		val, err := p.expression(elemPrec)
		if err != nil {
			return symbol{}, err
		}
		items = append(items, val)
	}
	return symbol{value: types.NewList(items), isList: true}, nil
}

// membershipList parses the argument list on the right of in. A single
// operand is a one-element list even when its value is itself a list.
func (p *Parser) membershipList(elemPrec precedence) (types.Value, error) {
	sym, err := p.arglistOrExpr(elemPrec)
	if err != nil || sym.isList {
		return sym.value, err
	}
	sym, err = p.listTail(sym.value, elemPrec)
	return sym.value, err
}

// --- Expressions ---

// expression parses an expression whose operators bind at least minPrec.
func (p *Parser) expression(minPrec precedence) (types.Value, error) {
	left, err := p.unary()
	if err != nil {
		return types.Absent, err
	}
	return p.infix(left, minPrec)
}

// infix folds binary operators onto left while they bind at least minPrec.
func (p *Parser) infix(left types.Value, minPrec precedence) (types.Value, error) {
	for {
		op := p.current()
		b, ok := infixPrecedence[op.Type]
		if !ok || b.prec < minPrec {
			return left, nil
		}
		p.advance()

		var err error
		if op.Type == TokenIn {
			var list types.Value
			if list, err = p.membershipList(b.operandMin()); err != nil {
				return types.Absent, err
			}
			left, err = evalIn(left, list)
		} else {
			var right types.Value
			if right, err = p.expression(b.operandMin()); err != nil {
				return types.Absent, err
			}
			left, err = evalBinary(op.Type, left, right)
		}
		if err != nil {
			return types.Absent, err
		}
	}
}

func (p *Parser) unary() (types.Value, error) {
	op := p.current()
	b, ok := prefixPrecedence[op.Type]
	if !ok {
		return p.primary()
	}
	p.advance()

	operand, err := p.expression(b.operandMin())
	if err != nil {
		return types.Absent, err
	}
	return evalUnary(op.Type, operand)
}

func (p *Parser) primary() (types.Value, error) {
	tok := p.current()

	switch tok.Type {
	case TokenNumber:
		p.advance()
		return types.NewInt(tok.IntVal), nil
	case TokenID:
		p.advance()
		return p.lookup(tok), nil
	case TokenLParen:
		p.advance()
		val, err := p.expression(precLowest)
		if err != nil {
			return types.Absent, err
		}
		if err := p.expect(TokenRParen); err != nil {
			return types.Absent, err
		}
		return val, nil
	default:
		return types.Absent, p.fail()
	}
}

// lookup resolves a name, logging it and substituting 0 when unbound.
func (p *Parser) lookup(tok Token) types.Value {
	if v, ok := p.env.Get(tok.Value); ok {
		return v
	}
	p.errors = append(p.errors, ParseError{Kind: ErrUndefined, Token: tok, Name: tok.Value})
	return types.NewInt(0)
}
