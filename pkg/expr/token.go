// Package expr implements the line-oriented expression language: a
// tokenizer with per-character error recovery and a precedence-driven
// grammar engine that evaluates while it parses.
package expr

import "fmt"

// TokenType represents the type of a lexical token.
type TokenType int

const (
	TokenID     TokenType = iota // identifier
	TokenNumber                  // integer literal (decimal, 0x hex, 0b binary)

	// Arithmetic
	TokenPlus   // +
	TokenMinus  // -
	TokenTimes  // *
	TokenDivide // /

	// Comparison
	TokenEQ // ==
	TokenNE // !=
	TokenGT // >
	TokenLT // <
	TokenGE // >=
	TokenLE // <=

	// Keyword operators
	TokenAnd // and
	TokenOr  // or
	TokenNot // not
	TokenIn  // in

	TokenAssign // =
	TokenComma  // ,
	TokenLParen // (
	TokenRParen // )

	// TokenEOF is never produced by the lexer. The parser synthesizes it to
	// report a statement that ends too early.
	TokenEOF
)

// Token represents a single lexical token.
type Token struct {
	Type   TokenType
	Value  string // raw source text
	IntVal int64  // decoded value (for TokenNumber)
	Line   int    // 1-based source line
	Pos    int    // byte offset in the scanned text
}

// String renders the token for diagnostics.
func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenNumber:
		return fmt.Sprintf("NUMBER(%d) at line %d", t.IntVal, t.Line)
	default:
		return fmt.Sprintf("%s(%q) at line %d", t.Type, t.Value, t.Line)
	}
}

// String returns a debug-friendly representation of the token type.
func (t TokenType) String() string {
	switch t {
	case TokenID:
		return "ID"
	case TokenNumber:
		return "NUMBER"
	case TokenPlus:
		return "PLUS"
	case TokenMinus:
		return "MINUS"
	case TokenTimes:
		return "TIMES"
	case TokenDivide:
		return "DIVIDE"
	case TokenEQ:
		return "EQ"
	case TokenNE:
		return "NE"
	case TokenGT:
		return "GT"
	case TokenLT:
		return "LT"
	case TokenGE:
		return "GE"
	case TokenLE:
		return "LE"
	case TokenAnd:
		return "AND"
	case TokenOr:
		return "OR"
	case TokenNot:
		return "NOT"
	case TokenIn:
		return "IN"
	case TokenAssign:
		return "ASSIGN"
	case TokenComma:
		return "COMMA"
	case TokenLParen:
		return "LPAREN"
	case TokenRParen:
		return "RPAREN"
	case TokenEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}
