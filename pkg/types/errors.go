package types

import (
	"fmt"
	"strings"
)

// Error tag constants.
const (
	TagTypeError         = "TypeError"
	TagZeroDivisionError = "ZeroDivisionError"
	TagOverflowError     = "OverflowError"
)

// EvalError is an invalid operation detected while evaluating a statement,
// such as division by zero or integer overflow. It fails the whole parse
// call rather than being recorded and defaulted.
type EvalError struct {
	Message string
	Tags    []string
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	return fmt.Sprintf("%s (tags=[%s])", e.Message, strings.Join(e.Tags, ", "))
}

// HasTag returns true if the error has the specified tag.
func (e *EvalError) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// NewTypeError creates a TypeError.
func NewTypeError(msg string) *EvalError {
	return &EvalError{Message: msg, Tags: []string{TagTypeError}}
}

// NewZeroDivisionError creates a ZeroDivisionError.
func NewZeroDivisionError() *EvalError {
	return &EvalError{Message: "division by zero", Tags: []string{TagZeroDivisionError}}
}

// NewOverflowError creates an OverflowError for results outside int64.
func NewOverflowError(msg string) *EvalError {
	return &EvalError{Message: msg, Tags: []string{TagOverflowError}}
}
