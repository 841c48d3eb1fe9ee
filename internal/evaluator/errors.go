package evaluator

import (
	"fmt"

	"braid/internal/object"
)

// NewError builds a RuntimeError annotated with the current source
// position and a trace reconstructed from the dynamic caller chain.
func (e *Evaluator) NewError(format string, a ...interface{}) *object.RuntimeError {
	return &object.RuntimeError{
		Message:    fmt.Sprintf(format, a...),
		Pos:        &object.StackFrame{File: e.RT.File, Line: e.line},
		StackTrace: e.CurrentEnv().CallerChain(),
	}
}

// WrapError lifts a host error into the runtime taxonomy. The cause is
// part of the user-facing message, not just the Unwrap chain.
func (e *Evaluator) WrapError(err error, format string, a ...interface{}) *object.RuntimeError {
	re := e.NewError(format, a...)
	re.Message = fmt.Sprintf("%s: %v", re.Message, err)
	re.Wrapped = err
	return re
}

func (e *Evaluator) cancellationError() *object.RuntimeError {
	re := e.NewError("operation cancelled")
	re.Wrapped = e.RT.Ctx.Err()
	return re
}

func (e *Evaluator) newException(payload object.Object) *object.UserException {
	return &object.UserException{
		Payload:    payload,
		StackTrace: e.CurrentEnv().CallerChain(),
	}
}
