package evaluator

import "braid/internal/object"

// expandAndEval runs a macro body over the raw argument forms in the
// macro's own defining environment, then evaluates the produced expression
// in the caller's environment. Macros are scope-transparent: they never
// introduce a frame around the expansion.
func (e *Evaluator) expandAndEval(name string, mac *object.Macro, rawArgs []object.Object) object.Object {
	expansion := e.Expand(name, mac, rawArgs)
	if object.IsAbrupt(expansion) {
		return expansion
	}
	return e.Eval(expansion)
}

// Expand produces the expansion without evaluating it (macroexpand).
func (e *Evaluator) Expand(name string, mac *object.Macro, rawArgs []object.Object) object.Object {
	if mac.RestParam == nil && len(rawArgs) != len(mac.Params) {
		return e.NewError("wrong number of arguments to macro `%s`: got %d, want %d",
			name, len(rawArgs), len(mac.Params))
	}
	frame := e.newCallFrame(name, mac.Env)
	bindParams(frame, mac.Params, mac.RestParam, rawArgs)

	e.PushEnv(frame)
	expansion := e.evalBody(mac.Body)
	e.PopEnv()

	if rv, ok := expansion.(*object.ReturnValue); ok {
		expansion = rv.Value
	}
	return expansion
}
