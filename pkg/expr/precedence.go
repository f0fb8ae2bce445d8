package expr

// precedence is an operator binding power; higher binds tighter.
type precedence int

const (
	precLowest  precedence = iota // statement level, list elements
	precOr                        // or
	precAnd                       // and
	precNot                       // prefix not
	precCompare                   // in < <= > >= == !=
	precSum                       // + -
	precProduct                   // * /
	precUnary                     // prefix -
)

type associativity int

const (
	assocLeft associativity = iota
	assocRight
)

// binding is one row of the operator table.
type binding struct {
	prec  precedence
	assoc associativity
}

// operandMin is the minimum precedence an operator accepted inside the
// operand to the right of this one must have. Left-associative operators
// stop at their own level, so a <= b < c folds as (a <= b) < c.
func (b binding) operandMin() precedence {
	if b.assoc == assocLeft {
		return b.prec + 1
	}
	return b.prec
}

// infixPrecedence maps a binary operator to its binding.
var infixPrecedence = map[TokenType]binding{
	TokenOr:     {precOr, assocLeft},
	TokenAnd:    {precAnd, assocLeft},
	TokenIn:     {precCompare, assocLeft},
	TokenLT:     {precCompare, assocLeft},
	TokenLE:     {precCompare, assocLeft},
	TokenGT:     {precCompare, assocLeft},
	TokenGE:     {precCompare, assocLeft},
	TokenEQ:     {precCompare, assocLeft},
	TokenNE:     {precCompare, assocLeft},
	TokenPlus:   {precSum, assocLeft},
	TokenMinus:  {precSum, assocLeft},
	TokenTimes:  {precProduct, assocLeft},
	TokenDivide: {precProduct, assocLeft},
}

// prefixPrecedence maps a prefix operator to its binding.
var prefixPrecedence = map[TokenType]binding{
	TokenNot:   {precNot, assocRight},
	TokenMinus: {precUnary, assocRight},
}

// canFollowOperand reports whether tt may directly follow a complete
// operand.
func canFollowOperand(tt TokenType) bool {
	if _, ok := infixPrecedence[tt]; ok {
		return true
	}
	switch tt {
	case TokenComma, TokenRParen, TokenEOF:
		return true
	}
	return false
}
