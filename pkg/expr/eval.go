package expr

import (
	"fmt"
	"math"

	"github.com/lemonberrylabs/exprcalc/pkg/types"
)

// evalBinary applies a binary operator to two already evaluated operands.
// Both operands of and/or are always evaluated.
func evalBinary(op TokenType, left, right types.Value) (types.Value, error) {
	switch op {
	case TokenPlus:
		return evalArith(op, left, right, addInt)
	case TokenMinus:
		return evalArith(op, left, right, subInt)
	case TokenTimes:
		return evalArith(op, left, right, mulInt)
	case TokenDivide:
		return evalArith(op, left, right, divInt)
	case TokenEQ:
		return types.NewBool(left.Equal(right)), nil
	case TokenNE:
		return types.NewBool(!left.Equal(right)), nil
	case TokenLT:
		return evalCompare(left, right, func(c int) bool { return c < 0 })
	case TokenGT:
		return evalCompare(left, right, func(c int) bool { return c > 0 })
	case TokenLE:
		return evalCompare(left, right, func(c int) bool { return c <= 0 })
	case TokenGE:
		return evalCompare(left, right, func(c int) bool { return c >= 0 })
	case TokenAnd:
		return types.NewBool(left.Truthy() && right.Truthy()), nil
	case TokenOr:
		return types.NewBool(left.Truthy() || right.Truthy()), nil
	default:
		return types.Absent, fmt.Errorf("unsupported binary operator: %s", op)
	}
}

func evalUnary(op TokenType, operand types.Value) (types.Value, error) {
	switch op {
	case TokenMinus:
		n, ok := operand.AsNumber()
		if !ok {
			return types.Absent, types.NewTypeError(
				fmt.Sprintf("unary minus not supported for %s", operand.Type()))
		}
		if n == math.MinInt64 {
			return types.Absent, types.NewOverflowError("integer negation overflows int64")
		}
		return types.NewInt(-n), nil
	case TokenNot:
		return types.NewBool(!operand.Truthy()), nil
	default:
		return types.Absent, fmt.Errorf("unsupported unary operator: %s", op)
	}
}

// evalIn reports whether val structurally equals an element of list.
func evalIn(val, list types.Value) (types.Value, error) {
	if list.Type() != types.TypeList {
		return types.Absent, types.NewTypeError(
			fmt.Sprintf("'in' requires an argument list, got %s", list.Type()))
	}
	for _, item := range list.AsList() {
		if val.Equal(item) {
			return types.NewBool(true), nil
		}
	}
	return types.NewBool(false), nil
}

func evalCompare(left, right types.Value, test func(int) bool) (types.Value, error) {
	cmp, err := types.Compare(left, right)
	if err != nil {
		return types.Absent, err
	}
	return types.NewBool(test(cmp)), nil
}

// evalArith applies an integer operation. Bools take part as 0 and 1.
func evalArith(op TokenType, left, right types.Value, intOp func(int64, int64) (int64, error)) (types.Value, error) {
	a, aOk := left.AsNumber()
	b, bOk := right.AsNumber()
	if !aOk || !bOk {
		return types.Absent, types.NewTypeError(
			fmt.Sprintf("unsupported operand types for %s: %s and %s", op, left.Type(), right.Type()))
	}
	r, err := intOp(a, b)
	if err != nil {
		return types.Absent, err
	}
	return types.NewInt(r), nil
}

func addInt(a, b int64) (int64, error) {
	r := a + b
	if (a > 0 && b > 0 && r < 0) || (a < 0 && b < 0 && r >= 0) {
		return 0, types.NewOverflowError(fmt.Sprintf("%d + %d overflows int64", a, b))
	}
	return r, nil
}

func subInt(a, b int64) (int64, error) {
	r := a - b
	if (a >= 0 && b < 0 && r < 0) || (a < 0 && b > 0 && r >= 0) {
		return 0, types.NewOverflowError(fmt.Sprintf("%d - %d overflows int64", a, b))
	}
	return r, nil
}

func mulInt(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	r := a * b
	if r/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, types.NewOverflowError(fmt.Sprintf("%d * %d overflows int64", a, b))
	}
	return r, nil
}

// divInt truncates toward zero, like Go's integer division.
func divInt(a, b int64) (int64, error) {
	if b == 0 {
		return 0, types.NewZeroDivisionError()
	}
	if a == math.MinInt64 && b == -1 {
		return 0, types.NewOverflowError(fmt.Sprintf("%d / %d overflows int64", a, b))
	}
	return a / b, nil
}
