package expr

import (
	"iter"
	"strconv"
	"unicode/utf8"
)

// LexError records input the lexer could not classify and skipped.
type LexError struct {
	Text string // the skipped character, or the whole literal when it overflows int64
	Pos  int    // byte offset in the scanned text
	Line int
}

// Lexer tokenizes expression lines. Its error log accumulates across every
// scan it performs and is only reset by creating a new Lexer.
type Lexer struct {
	errors []LexError
}

// NewLexer creates a new lexer with an empty error log.
func NewLexer() *Lexer {
	return &Lexer{}
}

// Errors returns the lexer's error log in the order records were appended.
func (l *Lexer) Errors() []LexError {
	return l.errors
}

// Tokenize returns a lazy token sequence for input. Each range over the
// sequence scans input again from the start. Unrecognized characters are
// appended to the error log as they are reached and scanning continues with
// the next character.
func (l *Lexer) Tokenize(input string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		s := &scanner{lexer: l, input: input, line: 1}
		for {
			tok, ok := s.next()
			if !ok || !yield(tok) {
				return
			}
		}
	}
}

// scanner holds the state of a single pass over the input.
type scanner struct {
	lexer *Lexer
	input string
	pos   int
	line  int
}

// next returns the next token, or false at the end of the input.
func (s *scanner) next() (Token, bool) {
	for s.pos < len(s.input) {
		ch := s.input[s.pos]

		switch {
		case ch == ' ' || ch == '\t':
			s.pos++
			continue
		case ch == '\n':
			s.line++
			s.pos++
			continue
		case ch == '#':
			for s.pos < len(s.input) && s.input[s.pos] != '\n' {
				s.pos++
			}
			continue
		case isDigit(ch):
			if tok, ok := s.readNumber(); ok {
				return tok, true
			}
			continue
		case isIdentStart(ch):
			return s.readIdentifier(), true
		}

		if tok, ok := s.readOperator(); ok {
			return tok, true
		}

		r, size := utf8.DecodeRuneInString(s.input[s.pos:])
		s.lexer.errors = append(s.lexer.errors, LexError{Text: string(r), Pos: s.pos, Line: s.line})
		s.pos += size
	}
	return Token{}, false
}

// readOperator reads symbolic operators and parentheses, preferring the
// two-character forms.
func (s *scanner) readOperator() (Token, bool) {
	if s.pos+1 < len(s.input) {
		var tt TokenType
		switch s.input[s.pos : s.pos+2] {
		case "==":
			tt = TokenEQ
		case "!=":
			tt = TokenNE
		case ">=":
			tt = TokenGE
		case "<=":
			tt = TokenLE
		default:
			tt = TokenEOF
		}
		if tt != TokenEOF {
			return s.emit(tt, 2), true
		}
	}

	switch s.input[s.pos] {
	case '+':
		return s.emit(TokenPlus, 1), true
	case '-':
		return s.emit(TokenMinus, 1), true
	case '*':
		return s.emit(TokenTimes, 1), true
	case '/':
		return s.emit(TokenDivide, 1), true
	case '=':
		return s.emit(TokenAssign, 1), true
	case ',':
		return s.emit(TokenComma, 1), true
	case '>':
		return s.emit(TokenGT, 1), true
	case '<':
		return s.emit(TokenLT, 1), true
	case '(':
		return s.emit(TokenLParen, 1), true
	case ')':
		return s.emit(TokenRParen, 1), true
	}
	return Token{}, false
}

func (s *scanner) emit(tt TokenType, width int) Token {
	tok := Token{Type: tt, Value: s.input[s.pos : s.pos+width], Line: s.line, Pos: s.pos}
	s.pos += width
	return tok
}

// readNumber reads 0x<hex>, 0b<binary> or a decimal run, in that order. A
// literal that does not fit in int64 is logged as a single error and skipped.
func (s *scanner) readNumber() (Token, bool) {
	start := s.pos
	base := 10
	digits := start

	if s.input[start] == '0' && start+2 < len(s.input) {
		switch s.input[start+1] {
		case 'x':
			if isHexDigit(s.input[start+2]) {
				base = 16
			}
		case 'b':
			if isBinDigit(s.input[start+2]) {
				base = 2
			}
		}
	}

	if base != 10 {
		digits = start + 2
		s.pos = digits
	}
	for s.pos < len(s.input) && isBaseDigit(s.input[s.pos], base) {
		s.pos++
	}

	raw := s.input[start:s.pos]
	n, err := strconv.ParseInt(s.input[digits:s.pos], base, 64)
	if err != nil {
		s.lexer.errors = append(s.lexer.errors, LexError{Text: raw, Pos: start, Line: s.line})
		return Token{}, false
	}
	return Token{Type: TokenNumber, Value: raw, IntVal: n, Line: s.line, Pos: start}, true
}

// readIdentifier reads the longest identifier and then classifies it. A word
// is a keyword operator only when the whole word matches the keyword, so
// "index" and "order" are identifiers.
func (s *scanner) readIdentifier() Token {
	start := s.pos
	for s.pos < len(s.input) && isIdentPart(s.input[s.pos]) {
		s.pos++
	}

	word := s.input[start:s.pos]
	tok := Token{Type: TokenID, Value: word, Line: s.line, Pos: start}
	switch word {
	case "and":
		tok.Type = TokenAnd
	case "or":
		tok.Type = TokenOr
	case "not":
		tok.Type = TokenNot
	case "in":
		tok.Type = TokenIn
	}
	return tok
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func isBinDigit(ch byte) bool {
	return ch == '0' || ch == '1'
}

func isBaseDigit(ch byte, base int) bool {
	switch base {
	case 16:
		return isHexDigit(ch)
	case 2:
		return isBinDigit(ch)
	default:
		return isDigit(ch)
	}
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '@'
}
