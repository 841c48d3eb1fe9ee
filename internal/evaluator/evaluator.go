// Package evaluator implements the Braid core: a direct tree-walking
// evaluator over cons lists, with special-form/macro/function dispatch,
// flow-control sentinels as plain values, a clause-based pattern compiler
// and task concurrency over forked environments.
package evaluator

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"braid/internal/object"
)

// Runtime is the state shared by every evaluator of one interpreter
// instance: the cancellation context, handle/launch counters and the
// pluggable type factory.
type Runtime struct {
	Ctx   context.Context
	File  string
	Types object.TypeFactory

	nextHandle atomic.Int64
	launchSeq  atomic.Int64
}

func NewRuntime(ctx context.Context) *Runtime {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Runtime{Ctx: ctx, File: "<input>", Types: object.NewMapTypeFactory()}
}

func (r *Runtime) NextHandleID() int64 { return r.nextHandle.Add(1) }

// Evaluator walks expression trees for one call stack. Evaluation is
// single-threaded per instance; spawned tasks get their own Evaluator
// over a forked frame.
type Evaluator struct {
	RT       *Runtime
	envStack []*object.Environment
	line     int
}

func New(rt *Runtime, global *object.Environment) *Evaluator {
	e := &Evaluator{RT: rt}
	e.PushEnv(global)
	return e
}

func (e *Evaluator) PushEnv(env *object.Environment) {
	e.envStack = append(e.envStack, env)
}

func (e *Evaluator) PopEnv() {
	if len(e.envStack) == 0 {
		panic("environment stack underflow")
	}
	e.envStack = e.envStack[:len(e.envStack)-1]
}

func (e *Evaluator) CurrentEnv() *object.Environment {
	if len(e.envStack) == 0 {
		panic("environment stack is empty")
	}
	return e.envStack[len(e.envStack)-1]
}

func (e *Evaluator) Cancelled() bool {
	return e.RT.Ctx.Err() != nil
}

func (e *Evaluator) NextHandleID() int64 { return e.RT.NextHandleID() }

// Eval evaluates one expression in the current environment.
//
// Atoms self-evaluate. Symbols resolve along the lexical chain (keywords
// and type tags self-evaluate). Compound forms dispatch on the resolved
// head: special forms get raw arguments, macros expand and re-evaluate in
// the caller's scope, everything else is evaluated left-to-right and
// applied.
func (e *Evaluator) Eval(node object.Object) object.Object {
	switch node := node.(type) {
	case *object.Symbol:
		return e.evalSymbol(node)

	case *object.Pair:
		return e.evalPair(node)

	case *object.Vector:
		elements := make([]object.Object, len(node.Elements))
		for i, el := range node.Elements {
			v := e.Eval(el)
			if object.IsAbrupt(v) {
				return v
			}
			elements[i] = v
		}
		return &object.Vector{Elements: elements}

	case nil:
		return object.NIL

	default:
		// Numbers, strings, booleans, nil, callables, handles.
		return node
	}
}

// EvalIn evaluates node with env as the current frame.
func (e *Evaluator) EvalIn(node object.Object, env *object.Environment) object.Object {
	e.PushEnv(env)
	defer e.PopEnv()
	return e.Eval(node)
}

// selfEvaluating covers keywords (:ok) and type tags (@num).
func selfEvaluating(sym *object.Symbol) bool {
	return strings.HasPrefix(sym.Name, ":") || strings.HasPrefix(sym.Name, "@")
}

func (e *Evaluator) evalSymbol(sym *object.Symbol) object.Object {
	if selfEvaluating(sym) {
		return sym
	}
	v, ok := e.CurrentEnv().Resolve(sym)
	if !ok {
		return e.NewError("unbound symbol `%s`", sym.Name)
	}
	return e.readVariable(v)
}

// readVariable applies the getter hook, if any, to the stored value.
func (e *Evaluator) readVariable(v *object.Variable) object.Object {
	if v.Getter != nil {
		return e.Apply(v.Sym.Name+".getter", v.Getter, []object.Object{v.Value})
	}
	return v.Value
}

func (e *Evaluator) evalPair(pair *object.Pair) object.Object {
	if pair.IsQuoted {
		data := *pair
		data.IsQuoted = false
		return &data
	}
	if pair.IsLambda {
		return e.lambdaFromLiteral(pair)
	}
	if pair.Line > 0 {
		e.line = pair.Line
	}
	if e.Cancelled() {
		return e.cancellationError()
	}

	rawArgs := pair.Tail.Slice()

	// A symbol head resolves first so special forms and macros see their
	// arguments unevaluated.
	if sym, ok := pair.Head.(*object.Symbol); ok && !selfEvaluating(sym) {
		if v, found := e.CurrentEnv().Resolve(sym); found {
			switch head := v.Value.(type) {
			case *object.SpecialForm:
				return head.Fn(e, rawArgs)
			case *object.Macro:
				return e.expandAndEval(sym.Name, head, rawArgs)
			}
		}
	}

	head := e.Eval(pair.Head)
	if object.IsAbrupt(head) {
		return head
	}
	switch h := head.(type) {
	case *object.SpecialForm:
		return h.Fn(e, rawArgs)
	case *object.Macro:
		return e.expandAndEval(h.Name, h, rawArgs)
	}

	args := make([]object.Object, len(rawArgs))
	for i, raw := range rawArgs {
		v := e.Eval(raw)
		if object.IsAbrupt(v) {
			return v
		}
		args[i] = v
	}
	return e.Apply(callableName(pair.Head, head), head, args)
}

func callableName(headExpr, headVal object.Object) string {
	if sym, ok := headExpr.(*object.Symbol); ok {
		return sym.Name
	}
	switch f := headVal.(type) {
	case *object.Function:
		return f.Name
	case *object.PatternFunction:
		return f.Name
	case *object.Foreign:
		return f.Name
	}
	return "<anonymous>"
}

// Apply invokes a callable with already-evaluated arguments. A single
// argument given to a multi-argument callable yields a curried partial
// application instead of an arity error.
func (e *Evaluator) Apply(fnName string, fn object.Object, args []object.Object) object.Object {
	if e.Cancelled() {
		return e.cancellationError()
	}
	switch fn := fn.(type) {
	case *object.Function:
		return e.applyFunction(fnName, fn, args, true)

	case *object.PatternFunction:
		return e.applyPatternFunction(fnName, fn, args, true)

	case *object.Foreign:
		if len(args) == 1 && fn.MinArity > 1 {
			return &object.Partial{Fn: fn, Applied: args}
		}
		return fn.Fn(e, args...)

	case *object.Partial:
		combined := make([]object.Object, 0, len(fn.Applied)+len(args))
		combined = append(combined, fn.Applied...)
		combined = append(combined, args...)
		// Still undersupplied after combining: curry again so chained
		// one-argument applications keep accumulating.
		if len(args) == 1 && underApplied(fn.Fn, len(combined)) {
			return &object.Partial{Fn: fn.Fn, Applied: combined}
		}
		return e.Apply(fnName, fn.Fn, combined)

	case *object.TypeHandle:
		return e.constructInstance(fn, args)

	case *object.Macro:
		return e.NewError("macro `%s` cannot be applied as a value", fnName)

	case *object.SpecialForm:
		return e.NewError("special form `%s` cannot be applied as a value", fnName)

	default:
		return e.NewError("`%s` is not callable (%s)", fnName, fn.Type())
	}
}

// ApplyCallback invokes a user callback on behalf of a builtin. A
// callback is not a return boundary: a Return sentinel raised inside it
// is forwarded so it unwinds the enclosing user function, not just the
// callback.
func (e *Evaluator) ApplyCallback(fnName string, fn object.Object, args []object.Object) object.Object {
	switch fn := fn.(type) {
	case *object.Function:
		return e.applyFunction(fnName, fn, args, false)
	case *object.PatternFunction:
		return e.applyPatternFunction(fnName, fn, args, false)
	case *object.Partial:
		combined := make([]object.Object, 0, len(fn.Applied)+len(args))
		combined = append(combined, fn.Applied...)
		combined = append(combined, args...)
		if len(args) == 1 && underApplied(fn.Fn, len(combined)) {
			return &object.Partial{Fn: fn.Fn, Applied: combined}
		}
		return e.ApplyCallback(fnName, fn.Fn, combined)
	default:
		return e.Apply(fnName, fn, args)
	}
}

// underApplied reports whether count arguments still undersupply fn, in
// which case a single-argument application curries rather than calls.
func underApplied(fn object.Object, count int) bool {
	switch fn := fn.(type) {
	case *object.Function:
		return count < len(fn.Params)
	case *object.PatternFunction:
		return count < fn.MinArity
	case *object.Foreign:
		return count < fn.MinArity
	}
	return false
}

func (e *Evaluator) applyFunction(fnName string, fn *object.Function, args []object.Object, consumeReturn bool) object.Object {
	if len(args) == 1 && len(fn.Params) > 1 {
		return &object.Partial{Fn: fn, Applied: args}
	}
	if err := checkFunctionArity(e, fnName, fn, args); err != nil {
		return err
	}

	for {
		frame := e.newCallFrame(fnName, fn.Env)
		bindParams(frame, fn.Params, fn.RestParam, args)

		e.PushEnv(frame)
		result := e.evalBody(fn.Body)
		e.PopEnv()

		switch r := result.(type) {
		case *object.ReturnValue:
			// The function-call boundary consumes returns; a callback
			// boundary forwards them to the enclosing function instead.
			if !consumeReturn {
				return result
			}
			return r.Value
		case *object.RecurValue:
			if r.Target != nil && recurTargets(r, fn, fnName) {
				// recur-to back into this function: rebind and go again
				// without growing the native stack.
				if err := checkFunctionArity(e, fnName, fn, r.Args); err != nil {
					return err
				}
				args = r.Args
				continue
			}
			return result
		default:
			return result
		}
	}
}

func recurTargets(r *object.RecurValue, fn *object.Function, fnName string) bool {
	if r.Target == fn {
		return true
	}
	if sym, ok := r.Target.(*object.Symbol); ok {
		return strings.EqualFold(sym.Name, fnName) || strings.EqualFold(sym.Name, fn.Name)
	}
	return false
}

func checkFunctionArity(e *Evaluator, fnName string, fn *object.Function, args []object.Object) object.Object {
	if fn.RestParam != nil {
		if len(args) < len(fn.Params) {
			return e.NewError("wrong number of arguments to `%s`: got %d, want at least %d",
				fnName, len(args), len(fn.Params))
		}
		return nil
	}
	if len(args) != len(fn.Params) {
		return e.NewError("wrong number of arguments to `%s`: got %d, want %d",
			fnName, len(args), len(fn.Params))
	}
	return nil
}

// newCallFrame builds the activation frame: lexical parent is the
// closure's defining environment, the caller link records the dynamic
// chain for stack traces and dynamic-scope lookups.
func (e *Evaluator) newCallFrame(fnName string, defEnv *object.Environment) *object.Environment {
	frame := object.NewEnclosedEnvironment(defEnv, &object.StackFrame{
		Function: fnName,
		File:     e.RT.File,
		Line:     e.line,
	})
	frame.Caller = e.CurrentEnv()
	return frame
}

func bindParams(frame *object.Environment, params []*object.Symbol, rest *object.Symbol, args []object.Object) {
	for i, p := range params {
		if i < len(args) {
			frame.SetLocal(p, args[i])
		} else {
			frame.SetLocal(p, object.NIL)
		}
	}
	if rest != nil {
		var extra []object.Object
		if len(args) > len(params) {
			extra = args[len(params):]
		}
		if lst := object.ListFromSlice(extra); lst != nil {
			frame.SetLocal(rest, lst)
		} else {
			frame.SetLocal(rest, object.NIL)
		}
	}
}

// evalBody evaluates forms sequentially, forwarding any sentinel, error
// or exit unchanged. The last ordinary value is the result.
func (e *Evaluator) evalBody(body []object.Object) object.Object {
	var result object.Object = object.NIL
	for _, form := range body {
		result = e.Eval(form)
		if object.IsAbrupt(result) {
			return result
		}
	}
	return result
}

// lambdaFromLiteral converts a \(params -> body) literal into a closure.
func (e *Evaluator) lambdaFromLiteral(pair *object.Pair) object.Object {
	items := pair.Slice()
	arrow := -1
	for i, item := range items {
		if sym, ok := item.(*object.Symbol); ok && sym.Name == "->" {
			arrow = i
			break
		}
	}
	if arrow < 0 {
		return e.NewError("lambda literal needs a -> separating parameters from body")
	}
	params, rest, err := paramSymbols(e, items[:arrow])
	if err != nil {
		return err
	}
	return &object.Function{
		Name:      "<lambda>",
		Params:    params,
		RestParam: rest,
		Body:      items[arrow+1:],
		Env:       e.CurrentEnv(),
	}
}

func paramSymbols(e *Evaluator, forms []object.Object) ([]*object.Symbol, *object.Symbol, object.Object) {
	var params []*object.Symbol
	var rest *object.Symbol
	for i, form := range forms {
		sym, ok := form.(*object.Symbol)
		if !ok {
			return nil, nil, e.NewError("parameter %d is not a symbol", i)
		}
		if strings.HasPrefix(sym.Name, "&") {
			if i != len(forms)-1 {
				return nil, nil, e.NewError("rest parameter `%s` must be last", sym.Name)
			}
			rest = object.Intern(strings.TrimPrefix(sym.Name, "&"))
			break
		}
		params = append(params, sym)
	}
	return params, rest, nil
}

// constructInstance builds a value from a type-factory handle. Fields come
// from an optional map argument; enum handles resolve a variant symbol.
func (e *Evaluator) constructInstance(th *object.TypeHandle, args []object.Object) object.Object {
	switch th.Kind {
	case "interface":
		return e.NewError("cannot construct interface `%s`", th.Name)
	case "enum":
		if len(args) != 1 {
			return e.NewError("enum `%s` takes one variant argument", th.Name)
		}
		want, ok := args[0].(*object.Symbol)
		if !ok {
			return e.NewError("enum variant must be a symbol")
		}
		for _, v := range th.Variants {
			if v == want || strings.EqualFold(v.Name, strings.TrimPrefix(want.Name, ":")) {
				fields := object.NewMap()
				fields.Set(object.Intern(":variant"), v)
				return &object.TypeInstance{Handle: th, Fields: fields}
			}
		}
		return e.NewError("enum `%s` has no variant %s", th.Name, want.Name)
	}

	fields := object.NewMap()
	if len(args) > 1 {
		return e.NewError("type `%s` takes at most one field-map argument", th.Name)
	}
	if len(args) == 1 {
		m, ok := args[0].(*object.Map)
		if !ok {
			return e.NewError("type `%s` constructor wants a map, got %s", th.Name, args[0].Type())
		}
		for _, pair := range m.Pairs() {
			fields.Set(pair.Key.(object.Hashable), pair.Value)
		}
	}
	return &object.TypeInstance{Handle: th, Fields: fields}
}

// EvalProgram runs top-level forms, stopping on error or exit. Top-level
// sentinels are a correctness bug in user code and reported as errors.
func (e *Evaluator) EvalProgram(forms []object.Object) object.Object {
	var result object.Object = object.NIL
	for _, form := range forms {
		result = e.Eval(form)
		switch result.(type) {
		case *object.RuntimeError, *object.UserException, *object.ExitSignal:
			return result
		}
		if object.IsFlow(result) {
			slog.Warn("flow sentinel escaped to top level",
				slog.String("sentinel", string(result.Type())))
			return e.NewError("`%s` used outside of any enclosing construct",
				strings.ToLower(string(result.Type())))
		}
	}
	return result
}
