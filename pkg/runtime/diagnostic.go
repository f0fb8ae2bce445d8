package runtime

import "github.com/lemonberrylabs/exprcalc/pkg/expr"

// Diagnostic kinds.
const (
	DiagnosticLexical   = "LEXICAL"
	DiagnosticSyntax    = "SYNTAX"
	DiagnosticUndefined = "UNDEFINED"
)

// Diagnostic is a transport-neutral rendering of one log record.
type Diagnostic struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Text    string `json:"text,omitempty"`
	Line    int    `json:"line"`
	Pos     int    `json:"pos"`
}

// Diagnostics flattens the result's lexer records followed by its parser
// records.
func (r Result) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, 0, len(r.LexErrors)+len(r.ParseErrors))
	for _, e := range r.LexErrors {
		msg := "illegal character " + quote(e.Text)
		if e.Text != "" && e.Text[0] >= '0' && e.Text[0] <= '9' {
			msg = "integer literal " + e.Text + " out of range"
		}
		out = append(out, Diagnostic{
			Kind:    DiagnosticLexical,
			Message: msg,
			Text:    e.Text,
			Line:    e.Line,
			Pos:     e.Pos,
		})
	}
	for _, e := range r.ParseErrors {
		d := Diagnostic{
			Kind:    DiagnosticSyntax,
			Message: e.String(),
			Text:    e.Token.Value,
			Line:    e.Token.Line,
			Pos:     e.Token.Pos,
		}
		if e.Kind == expr.ErrUndefined {
			d.Kind = DiagnosticUndefined
			d.Text = e.Name
		}
		out = append(out, d)
	}
	return out
}

func quote(s string) string {
	return "'" + s + "'"
}
