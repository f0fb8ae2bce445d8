package expr

import (
	"slices"
	"testing"
)

func collect(l *Lexer, input string) []Token {
	return slices.Collect(l.Tokenize(input))
}

func tokenTypes(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func TestTokenizeOperators(t *testing.T) {
	tests := []struct {
		input string
		want  []TokenType
	}{
		{"a = 1", []TokenType{TokenID, TokenAssign, TokenNumber}},
		{"1 == 2", []TokenType{TokenNumber, TokenEQ, TokenNumber}},
		{"1 != 2", []TokenType{TokenNumber, TokenNE, TokenNumber}},
		{"1 >= 2 <= 3", []TokenType{TokenNumber, TokenGE, TokenNumber, TokenLE, TokenNumber}},
		{"1>2<3", []TokenType{TokenNumber, TokenGT, TokenNumber, TokenLT, TokenNumber}},
		{"1+2-3*4/5", []TokenType{TokenNumber, TokenPlus, TokenNumber, TokenMinus, TokenNumber,
			TokenTimes, TokenNumber, TokenDivide, TokenNumber}},
		{"f(1, 2)", []TokenType{TokenID, TokenLParen, TokenNumber, TokenComma, TokenNumber, TokenRParen}},
		{"not a and b or c in d", []TokenType{TokenNot, TokenID, TokenAnd, TokenID, TokenOr,
			TokenID, TokenIn, TokenID}},
		{"a ==b", []TokenType{TokenID, TokenEQ, TokenID}},
		{"a===b", []TokenType{TokenID, TokenEQ, TokenAssign, TokenID}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			l := NewLexer()
			got := tokenTypes(collect(l, tt.input))
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if len(l.Errors()) != 0 {
				t.Errorf("unexpected lexer errors: %v", l.Errors())
			}
		})
	}
}

func TestTokenizeNumbers(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"10", 10},
		{"0", 0},
		{"007", 7},
		{"0xA", 10},
		{"0xa", 10},
		{"0xFF", 255},
		{"0b1010", 10},
		{"0b0", 0},
		{"9223372036854775807", 9223372036854775807},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			toks := collect(NewLexer(), tt.input)
			if len(toks) != 1 {
				t.Fatalf("expected 1 token, got %v", toks)
			}
			if toks[0].Type != TokenNumber || toks[0].IntVal != tt.want {
				t.Errorf("got %s %d, want NUMBER %d", toks[0].Type, toks[0].IntVal, tt.want)
			}
			if toks[0].Value != tt.input {
				t.Errorf("raw value = %q, want %q", toks[0].Value, tt.input)
			}
		})
	}
}

func TestTokenizeIncompletePrefixes(t *testing.T) {
	// A base prefix without digits falls back to decimal 0 followed by an identifier.
	toks := collect(NewLexer(), "0x 0b2")
	want := []TokenType{TokenNumber, TokenID, TokenNumber, TokenID}
	if got := tokenTypes(toks); !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if toks[1].Value != "x" || toks[3].Value != "b2" {
		t.Errorf("unexpected identifiers %q and %q", toks[1].Value, toks[3].Value)
	}
}

func TestTokenizeNumberOverflow(t *testing.T) {
	l := NewLexer()
	toks := collect(l, "99999999999999999999 + 1")
	want := []TokenType{TokenPlus, TokenNumber}
	if got := tokenTypes(toks); !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	errs := l.Errors()
	if len(errs) != 1 || errs[0].Text != "99999999999999999999" || errs[0].Pos != 0 {
		t.Errorf("unexpected errors: %+v", errs)
	}
}

func TestTokenizeIdentifiersAndKeywords(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
	}{
		{"and", TokenAnd},
		{"or", TokenOr},
		{"not", TokenNot},
		{"in", TokenIn},
		{"index", TokenID},
		{"order", TokenID},
		{"nothing", TokenID},
		{"android", TokenID},
		{"And", TokenID},
		{"_x", TokenID},
		{"AAA_Bbb_@", TokenID},
		{"a1@b2", TokenID},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			toks := collect(NewLexer(), tt.input)
			if len(toks) != 1 {
				t.Fatalf("expected 1 token, got %v", toks)
			}
			if toks[0].Type != tt.typ || toks[0].Value != tt.input {
				t.Errorf("got %s %q, want %s %q", toks[0].Type, toks[0].Value, tt.typ, tt.input)
			}
		})
	}
}

func TestTokenizeSkipsCommentsAndCountsLines(t *testing.T) {
	l := NewLexer()
	toks := collect(l, "a # ignored ) (\n\n  b\t+ 1 # trailing")
	want := []TokenType{TokenID, TokenID, TokenPlus, TokenNumber}
	if got := tokenTypes(toks); !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if toks[0].Line != 1 || toks[1].Line != 3 || toks[3].Line != 3 {
		t.Errorf("unexpected lines: %d %d %d", toks[0].Line, toks[1].Line, toks[3].Line)
	}
	if toks[1].Pos != 19 {
		t.Errorf("b position = %d, want 19", toks[1].Pos)
	}
	if len(l.Errors()) != 0 {
		t.Errorf("unexpected lexer errors: %v", l.Errors())
	}
}

func TestTokenizeSkipsUnknownCharacters(t *testing.T) {
	l := NewLexer()
	toks := collect(l, "[8, 9]; $é")
	want := []TokenType{TokenNumber, TokenComma, TokenNumber}
	if got := tokenTypes(toks); !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	errs := l.Errors()
	wantText := []string{"[", "]", ";", "$", "é"}
	if len(errs) != len(wantText) {
		t.Fatalf("got %d errors, want %d: %+v", len(errs), len(wantText), errs)
	}
	for i, e := range errs {
		if e.Text != wantText[i] {
			t.Errorf("error %d: got %q, want %q", i, e.Text, wantText[i])
		}
	}
	if errs[0].Pos != 0 || errs[1].Pos != 5 {
		t.Errorf("unexpected positions: %d %d", errs[0].Pos, errs[1].Pos)
	}
}

func TestTokenizeIsRestartable(t *testing.T) {
	l := NewLexer()
	seq := l.Tokenize("1 + [2]")

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if !slices.Equal(first, second) {
		t.Fatalf("rescans differ: %v vs %v", first, second)
	}
	// Each scan logs its own errors; the log is append-only.
	if len(l.Errors()) != 4 {
		t.Errorf("expected 4 errors after two scans, got %d", len(l.Errors()))
	}
}

func TestTokenizeIsLazy(t *testing.T) {
	l := NewLexer()
	for tok := range l.Tokenize("1 [ 2 ]") {
		if tok.Type == TokenNumber {
			break
		}
	}
	if len(l.Errors()) != 0 {
		t.Errorf("scanning past the first token: %v", l.Errors())
	}
}
