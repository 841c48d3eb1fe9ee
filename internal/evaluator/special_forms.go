package evaluator

import (
	"braid/internal/object"
)

// Special forms receive their argument forms unevaluated and implement
// their own evaluation order. They are ordinary bindings in the global
// frame, so user code can shadow them locally.

func special(name string, fn func(e *Evaluator, args []object.Object) object.Object) *object.SpecialForm {
	return &object.SpecialForm{
		Name: name,
		Fn: func(ctx object.EvaluatorContext, args []object.Object) object.Object {
			return fn(ctx.(*Evaluator), args)
		},
	}
}

func installSpecialForms(env *object.Environment) {
	forms := []*object.SpecialForm{
		special("quote", sfQuote),
		special("if", sfIf),
		special("if-not", sfIfNot),
		special("do", sfDo),
		special("with", sfWith),
		special("let", sfLet),
		special("def", sfLet), // def and let share binding semantics
		special("const", sfConst),
		special("global", sfGlobal),
		special("set", sfSet),
		special("declare", sfDeclare),
		special("sink", sfSink),
		special("tie", sfTie),
		special("and", sfAnd),
		special("or", sfOr),
		special("while", sfWhile),
		special("while-all", sfWhileAll),
		special("loop", sfLoop),
		special("repeat", sfRepeat),
		special("repeat-all", sfRepeatAll),
		special("foreach", sfForeach),
		special("forall", sfForall),
		special("cond", sfCond),
		special("try", sfTry),
		special("fn", sfFn),
		special("lambda", sfFn),
		special("defn", sfDefn),
		special("defmacro", sfDefmacro),
		special("matchp", sfMatchp),
		special("break", sfBreak),
		special("continue", sfContinue),
		special("return", sfReturn),
		special("recur", sfRecur),
		special("recur-to", sfRecurTo),
		special("throw", sfThrow),
		special("quit", sfQuit),
		special("get-dynamic", sfGetDynamic),
		special("upvar", sfUpvar),
		special("type-alias", sfTypeAlias),
		special("deftype", sfDeftype),
		special("definterface", sfDefinterface),
		special("defenum", sfDefenum),
		special("spawn", sfSpawn),
		special("continue-with", sfContinueWith),
	}
	for _, sf := range forms {
		env.Declare(&object.Variable{Sym: object.Intern(sf.Name), Value: sf, Const: true})
	}
}

func sfQuote(e *Evaluator, args []object.Object) object.Object {
	if len(args) != 1 {
		return e.NewError("quote takes exactly one form")
	}
	if pair, ok := args[0].(*object.Pair); ok && pair.IsQuoted {
		data := *pair
		data.IsQuoted = false
		return &data
	}
	return args[0]
}

func sfIf(e *Evaluator, args []object.Object) object.Object {
	return evalIf(e, args, false)
}

func sfIfNot(e *Evaluator, args []object.Object) object.Object {
	return evalIf(e, args, true)
}

func evalIf(e *Evaluator, args []object.Object, negate bool) object.Object {
	if len(args) < 2 || len(args) > 3 {
		return e.NewError("if wants condition, consequence and optional alternative")
	}
	cond := e.Eval(args[0])
	if object.IsAbrupt(cond) {
		return cond
	}
	taken := object.IsTruthy(cond)
	if negate {
		taken = !taken
	}
	if taken {
		return e.Eval(args[1])
	}
	if len(args) == 3 {
		return e.Eval(args[2])
	}
	return object.NIL
}

// do evaluates sequentially in the current frame; no new scope.
func sfDo(e *Evaluator, args []object.Object) object.Object {
	return e.evalBody(args)
}

// with introduces a frame and binds [sym val ...] pairs before the body.
func sfWith(e *Evaluator, args []object.Object) object.Object {
	if len(args) == 0 {
		return e.NewError("with wants a binding vector")
	}
	bindings, ok := args[0].(*object.Vector)
	if !ok {
		return e.NewError("with bindings must be a vector, got %s", args[0].Type())
	}
	if len(bindings.Elements)%2 != 0 {
		return e.NewError("with bindings must pair symbols with values")
	}

	frame := object.NewEnclosedEnvironment(e.CurrentEnv(), nil)
	frame.Caller = e.CurrentEnv().Caller
	e.PushEnv(frame)
	defer e.PopEnv()

	for i := 0; i < len(bindings.Elements); i += 2 {
		sym, ok := bindings.Elements[i].(*object.Symbol)
		if !ok {
			return e.NewError("with binding %d is not a symbol", i/2)
		}
		val := e.Eval(bindings.Elements[i+1])
		if object.IsAbrupt(val) {
			return val
		}
		if errObj := e.bindLocal(frame, sym, val, false); errObj != nil {
			return errObj
		}
	}
	return e.evalBody(args[1:])
}

// let binds name/value pairs in the current frame. Compound symbols
// destructure sequences across their components.
func sfLet(e *Evaluator, args []object.Object) object.Object {
	return evalBindingPairs(e, args, func(sym *object.Symbol, val object.Object) object.Object {
		return e.bindLocal(e.CurrentEnv(), sym, val, false)
	})
}

func sfConst(e *Evaluator, args []object.Object) object.Object {
	return evalBindingPairs(e, args, func(sym *object.Symbol, val object.Object) object.Object {
		return e.bindLocal(e.CurrentEnv(), sym, val, true)
	})
}

func sfGlobal(e *Evaluator, args []object.Object) object.Object {
	root := e.CurrentEnv().Root()
	return evalBindingPairs(e, args, func(sym *object.Symbol, val object.Object) object.Object {
		return e.bindLocal(root, sym, val, false)
	})
}

func evalBindingPairs(e *Evaluator, args []object.Object, bind func(*object.Symbol, object.Object) object.Object) object.Object {
	if len(args) == 0 || len(args)%2 != 0 {
		return e.NewError("binding form wants name/value pairs")
	}
	var last object.Object = object.NIL
	for i := 0; i < len(args); i += 2 {
		sym, ok := args[i].(*object.Symbol)
		if !ok {
			return e.NewError("cannot bind to %s", object.Inspect(args[i]))
		}
		val := e.Eval(args[i+1])
		if object.IsAbrupt(val) {
			return val
		}
		if errObj := bind(sym, val); errObj != nil {
			return errObj
		}
		last = val
	}
	return last
}

// bindLocal installs a binding in frame, destructuring compound symbols.
// Rebinding an existing const is fatal.
func (e *Evaluator) bindLocal(frame *object.Environment, sym *object.Symbol, val object.Object, isConst bool) object.Object {
	if sym.IsCompound() {
		scratch := object.NewEnclosedEnvironment(frame, nil)
		ok, errObj := e.bindCompound(scratch, sym, val)
		if errObj != nil {
			return errObj
		}
		if !ok {
			return e.NewError("cannot destructure %s into `%s`", object.Inspect(val), sym.Name)
		}
		for _, v := range scratch.Locals() {
			v.Const = isConst
			if existing, bound := frame.ResolveLocal(v.Sym); bound && existing.Const {
				return e.NewError("cannot rebind const `%s`", v.Sym.Name)
			}
			frame.Declare(v)
		}
		return nil
	}
	if existing, bound := frame.ResolveLocal(sym); bound && existing.Const {
		return e.NewError("cannot rebind const `%s`", sym.Name)
	}
	frame.Declare(&object.Variable{Sym: sym, Value: val, Const: isConst})
	return nil
}

// set assigns along the lexical chain, honoring const, sink, setter hooks
// and type constraints. An unbound name is created in the parent of the
// invoking frame, not the current frame; this surprising placement is a
// deliberate compatibility contract.
func sfSet(e *Evaluator, args []object.Object) object.Object {
	if len(args) != 2 {
		return e.NewError("set wants a name and a value")
	}
	sym, ok := args[0].(*object.Symbol)
	if !ok {
		return e.NewError("set target must be a symbol, got %s", object.Inspect(args[0]))
	}
	val := e.Eval(args[1])
	if object.IsAbrupt(val) {
		return val
	}
	if sym.IsCompound() {
		scratch := object.NewEnclosedEnvironment(e.CurrentEnv(), nil)
		ok, errObj := e.bindCompound(scratch, sym, val)
		if errObj != nil {
			return errObj
		}
		if !ok {
			return e.NewError("cannot destructure %s into `%s`", object.Inspect(val), sym.Name)
		}
		for _, v := range scratch.Locals() {
			if r := e.assign(v.Sym, v.Value); object.IsAbrupt(r) {
				return r
			}
		}
		return val
	}
	return e.assign(sym, val)
}

func (e *Evaluator) assign(sym *object.Symbol, val object.Object) object.Object {
	env := e.CurrentEnv()
	if v, found := env.Resolve(sym); found {
		if v.Const {
			return e.NewError("cannot rebind const `%s`", sym.Name)
		}
		if v.Sink {
			return val // silently absorbed
		}
		if v.Setter != nil {
			val = e.Apply(sym.Name+".setter", v.Setter, []object.Object{val})
			if object.IsAbrupt(val) {
				return val
			}
		}
		if v.TypeConstraint != nil && !e.typeMatches(v.TypeConstraint, val) {
			return e.NewError("value %s violates type constraint on `%s`",
				object.Inspect(val), sym.Name)
		}
		v.Value = val
		return val
	}
	env.DefineTarget().SetLocal(sym, val)
	return val
}

// declare introduces a type-constrained variable: (declare x @num 0).
func sfDeclare(e *Evaluator, args []object.Object) object.Object {
	if len(args) < 2 || len(args) > 3 {
		return e.NewError("declare wants name, type and optional initial value")
	}
	sym, ok := args[0].(*object.Symbol)
	if !ok {
		return e.NewError("declare target must be a symbol")
	}
	constraint, errObj := e.constraintForm(args[1])
	if errObj != nil {
		return errObj
	}
	var init object.Object = object.NIL
	if len(args) == 3 {
		init = e.Eval(args[2])
		if object.IsAbrupt(init) {
			return init
		}
		if !e.typeMatches(constraint, init) {
			return e.NewError("initial value %s violates type constraint on `%s`",
				object.Inspect(init), sym.Name)
		}
	}
	e.CurrentEnv().Declare(&object.Variable{Sym: sym, Value: init, TypeConstraint: constraint})
	return init
}

// sink declares a write-absorbing variable.
func sfSink(e *Evaluator, args []object.Object) object.Object {
	if len(args) != 1 {
		return e.NewError("sink wants a name")
	}
	sym, ok := args[0].(*object.Symbol)
	if !ok {
		return e.NewError("sink target must be a symbol")
	}
	e.CurrentEnv().Declare(&object.Variable{Sym: sym, Value: object.NIL, Sink: true})
	return object.NIL
}

// tie declares a computed variable with getter and optional setter hooks.
func sfTie(e *Evaluator, args []object.Object) object.Object {
	if len(args) < 2 || len(args) > 3 {
		return e.NewError("tie wants name, getter and optional setter")
	}
	sym, ok := args[0].(*object.Symbol)
	if !ok {
		return e.NewError("tie target must be a symbol")
	}
	getter := e.Eval(args[1])
	if object.IsAbrupt(getter) {
		return getter
	}
	v := &object.Variable{Sym: sym, Value: object.NIL, Getter: getter}
	if len(args) == 3 {
		setter := e.Eval(args[2])
		if object.IsAbrupt(setter) {
			return setter
		}
		v.Setter = setter
	}
	e.CurrentEnv().Declare(v)
	return object.NIL
}

func sfAnd(e *Evaluator, args []object.Object) object.Object {
	var result object.Object = object.TRUE
	for _, form := range args {
		result = e.Eval(form)
		if object.IsAbrupt(result) {
			return result
		}
		if !object.IsTruthy(result) {
			return result
		}
	}
	return result
}

func sfOr(e *Evaluator, args []object.Object) object.Object {
	var result object.Object = object.NIL
	for _, form := range args {
		result = e.Eval(form)
		if object.IsAbrupt(result) {
			return result
		}
		if object.IsTruthy(result) {
			return result
		}
	}
	return result
}

func sfWhile(e *Evaluator, args []object.Object) object.Object {
	return evalWhile(e, args, false)
}

func sfWhileAll(e *Evaluator, args []object.Object) object.Object {
	return evalWhile(e, args, true)
}

func evalWhile(e *Evaluator, args []object.Object, accumulate bool) object.Object {
	if len(args) < 1 {
		return e.NewError("while wants a condition")
	}
	var acc []object.Object
	for {
		if e.Cancelled() {
			return e.cancellationError()
		}
		cond := e.Eval(args[0])
		if object.IsAbrupt(cond) {
			return cond
		}
		if !object.IsTruthy(cond) {
			break
		}
		result := e.evalBody(args[1:])
		switch r := result.(type) {
		case *object.ContinueValue:
			continue
		case *object.BreakValue:
			if r.Value != nil {
				return r.Value
			}
			return whileResult(accumulate, acc)
		default:
			if object.IsAbrupt(result) {
				return result // Return/Recur/error forwarded untouched
			}
			if accumulate {
				acc = append(acc, result)
			}
		}
	}
	return whileResult(accumulate, acc)
}

func whileResult(accumulate bool, acc []object.Object) object.Object {
	if accumulate {
		return &object.Vector{Elements: acc}
	}
	return object.NIL
}

// loop binds [sym init ...] in a fresh frame and runs the body once;
// a recur sentinel rebinds the loop variables in place and restarts the
// body without growing the native call stack.
func sfLoop(e *Evaluator, args []object.Object) object.Object {
	if len(args) < 1 {
		return e.NewError("loop wants a binding vector")
	}
	bindings, ok := args[0].(*object.Vector)
	if !ok || len(bindings.Elements)%2 != 0 {
		return e.NewError("loop bindings must be a vector of name/value pairs")
	}

	frame := object.NewEnclosedEnvironment(e.CurrentEnv(), nil)
	frame.Caller = e.CurrentEnv().Caller
	e.PushEnv(frame)
	defer e.PopEnv()

	syms := make([]*object.Symbol, 0, len(bindings.Elements)/2)
	for i := 0; i < len(bindings.Elements); i += 2 {
		sym, ok := bindings.Elements[i].(*object.Symbol)
		if !ok {
			return e.NewError("loop binding %d is not a symbol", i/2)
		}
		val := e.Eval(bindings.Elements[i+1])
		if object.IsAbrupt(val) {
			return val
		}
		frame.SetLocal(sym, val)
		syms = append(syms, sym)
	}

	body := args[1:]
	for {
		if e.Cancelled() {
			return e.cancellationError()
		}
		result := e.evalBody(body)
		switch r := result.(type) {
		case *object.RecurValue:
			if r.Target != nil {
				return result // recur-to belongs to an outer call site
			}
			if len(r.Args) != len(syms) {
				return e.NewError("recur wants %d values, got %d", len(syms), len(r.Args))
			}
			for i, sym := range syms {
				frame.SetLocal(sym, r.Args[i])
			}
		case *object.ContinueValue:
			// restart the body with current bindings
		case *object.BreakValue:
			if r.Value != nil {
				return r.Value
			}
			return object.NIL
		default:
			return result
		}
	}
}

func sfRepeat(e *Evaluator, args []object.Object) object.Object {
	return evalRepeat(e, args, false)
}

func sfRepeatAll(e *Evaluator, args []object.Object) object.Object {
	return evalRepeat(e, args, true)
}

func evalRepeat(e *Evaluator, args []object.Object, accumulate bool) object.Object {
	if len(args) < 1 {
		return e.NewError("repeat wants a count")
	}
	countVal := e.Eval(args[0])
	if object.IsAbrupt(countVal) {
		return countVal
	}
	num, ok := countVal.(*object.Number)
	if !ok {
		return e.NewError("repeat count must be a number, got %s", countVal.Type())
	}
	n := num.Value.Int64()

	var acc []object.Object
	var last object.Object = object.NIL
	for i := int64(0); i < n; i++ {
		if e.Cancelled() {
			return e.cancellationError()
		}
		result := e.evalBody(args[1:])
		switch r := result.(type) {
		case *object.ContinueValue:
			continue
		case *object.BreakValue:
			if r.Value != nil {
				return r.Value
			}
			if accumulate {
				return &object.Vector{Elements: acc}
			}
			return last
		default:
			if object.IsAbrupt(result) {
				return result
			}
			last = result
			if accumulate {
				acc = append(acc, result)
			}
		}
	}
	if accumulate {
		return &object.Vector{Elements: acc}
	}
	return last
}

// foreach is side-effecting and returns nil.
func sfForeach(e *Evaluator, args []object.Object) object.Object {
	if len(args) < 2 {
		return e.NewError("foreach wants a binding symbol and a collection")
	}
	sym, ok := args[0].(*object.Symbol)
	if !ok {
		return e.NewError("foreach binding must be a symbol")
	}
	coll := e.Eval(args[1])
	if object.IsAbrupt(coll) {
		return coll
	}
	next, errObj := e.iterator(coll)
	if errObj != nil {
		return errObj
	}

	frame := object.NewEnclosedEnvironment(e.CurrentEnv(), nil)
	frame.Caller = e.CurrentEnv().Caller
	e.PushEnv(frame)
	defer e.PopEnv()

	for {
		if e.Cancelled() {
			return e.cancellationError()
		}
		item, ok := next()
		if !ok {
			break
		}
		if object.IsAbrupt(item) {
			return item
		}
		if errObj := e.bindLocal(frame, sym, item, false); errObj != nil {
			return errObj
		}
		result := e.evalBody(args[2:])
		switch r := result.(type) {
		case *object.ContinueValue:
			continue
		case *object.BreakValue:
			if r.Value != nil {
				return r.Value
			}
			return object.NIL
		default:
			if object.IsAbrupt(result) {
				return result
			}
		}
	}
	return object.NIL
}

// forall accumulates non-nil body results; (forall x coll :flatten ...)
// splices one level of sequence results.
func sfForall(e *Evaluator, args []object.Object) object.Object {
	if len(args) < 2 {
		return e.NewError("forall wants a binding symbol and a collection")
	}
	sym, ok := args[0].(*object.Symbol)
	if !ok {
		return e.NewError("forall binding must be a symbol")
	}
	coll := e.Eval(args[1])
	if object.IsAbrupt(coll) {
		return coll
	}
	body := args[2:]
	flatten := false
	if len(body) > 0 {
		// Identity, not name: interning keeps the first-seen spelling.
		if kw, ok := body[0].(*object.Symbol); ok && kw == object.Intern(":flatten") {
			flatten = true
			body = body[1:]
		}
	}
	next, errObj := e.iterator(coll)
	if errObj != nil {
		return errObj
	}

	frame := object.NewEnclosedEnvironment(e.CurrentEnv(), nil)
	frame.Caller = e.CurrentEnv().Caller
	e.PushEnv(frame)
	defer e.PopEnv()

	var acc []object.Object
	for {
		if e.Cancelled() {
			return e.cancellationError()
		}
		item, ok := next()
		if !ok {
			break
		}
		if object.IsAbrupt(item) {
			return item
		}
		if errObj := e.bindLocal(frame, sym, item, false); errObj != nil {
			return errObj
		}
		result := e.evalBody(body)
		switch r := result.(type) {
		case *object.ContinueValue:
			continue
		case *object.BreakValue:
			if r.Value != nil {
				return r.Value
			}
			return &object.Vector{Elements: acc}
		default:
			if object.IsAbrupt(result) {
				return result
			}
			if result == object.NIL {
				continue
			}
			if flatten {
				acc = append(acc, sequenceElements(result)...)
			} else {
				acc = append(acc, result)
			}
		}
	}
	return &object.Vector{Elements: acc}
}

func sequenceElements(obj object.Object) []object.Object {
	switch v := obj.(type) {
	case *object.Vector:
		return v.Elements
	case *object.Pair:
		return v.Slice()
	default:
		return []object.Object{obj}
	}
}

// cond scans condition/action pairs; an unpaired trailing form is the
// default.
func sfCond(e *Evaluator, args []object.Object) object.Object {
	i := 0
	for ; i+1 < len(args); i += 2 {
		cond := e.Eval(args[i])
		if object.IsAbrupt(cond) {
			return cond
		}
		if object.IsTruthy(cond) {
			return e.Eval(args[i+1])
		}
	}
	if i < len(args) {
		return e.Eval(args[i])
	}
	return object.NIL
}

// try wraps body evaluation; trailing (catch e ...) and (finally ...)
// clauses handle errors. Only RuntimeError and UserException are caught;
// flow sentinels and exit signals pass through, though finally always
// runs.
func sfTry(e *Evaluator, args []object.Object) object.Object {
	var body []object.Object
	var catchClause, finallyClause *object.Pair
	for _, form := range args {
		if pair, ok := form.(*object.Pair); ok && !pair.IsQuoted {
			if head, ok := pair.Head.(*object.Symbol); ok {
				switch head {
				case object.Intern("catch"):
					catchClause = pair
					continue
				case object.Intern("finally"):
					finallyClause = pair
					continue
				}
			}
		}
		if catchClause != nil || finallyClause != nil {
			return e.NewError("try body forms must precede catch/finally")
		}
		body = append(body, form)
	}

	result := e.evalBody(body)

	switch err := result.(type) {
	case *object.RuntimeError:
		if catchClause != nil {
			result = e.runCatch(catchClause, err)
		}
	case *object.UserException:
		if catchClause != nil {
			result = e.runCatch(catchClause, err.Payload)
		}
	}

	if finallyClause != nil {
		cleanup := e.evalBody(finallyClause.Tail.Slice())
		if object.IsAbrupt(cleanup) {
			return cleanup
		}
	}
	return result
}

func (e *Evaluator) runCatch(clause *object.Pair, errVal object.Object) object.Object {
	items := clause.Tail.Slice()
	if len(items) == 0 {
		return object.NIL
	}
	sym, ok := items[0].(*object.Symbol)
	if !ok {
		return e.NewError("catch wants a binding symbol")
	}
	frame := object.NewEnclosedEnvironment(e.CurrentEnv(), nil)
	frame.Caller = e.CurrentEnv().Caller
	frame.SetLocal(sym, errVal)
	e.PushEnv(frame)
	defer e.PopEnv()
	return e.evalBody(items[1:])
}

// fn builds a closure: (fn [params] body...) or (fn name [params] body...).
func sfFn(e *Evaluator, args []object.Object) object.Object {
	name := "<lambda>"
	if len(args) > 0 {
		if sym, ok := args[0].(*object.Symbol); ok {
			name = sym.Name
			args = args[1:]
		}
	}
	if len(args) == 0 {
		return e.NewError("fn wants a parameter vector")
	}
	paramVec, ok := args[0].(*object.Vector)
	if !ok {
		return e.NewError("fn parameters must be a vector, got %s", object.Inspect(args[0]))
	}
	params, rest, errObj := paramSymbols(e, paramVec.Elements)
	if errObj != nil {
		return errObj
	}
	return &object.Function{
		Name:      name,
		Params:    params,
		RestParam: rest,
		Body:      args[1:],
		Env:       e.CurrentEnv(),
	}
}

// defn defines either a plain function or, when clauses are introduced by
// `|`, a pattern-matching function.
func sfDefn(e *Evaluator, args []object.Object) object.Object {
	if len(args) < 2 {
		return e.NewError("defn wants a name and a body")
	}
	sym, ok := args[0].(*object.Symbol)
	if !ok {
		return e.NewError("defn name must be a symbol")
	}

	var fnObj object.Object
	if isPipe(args[1]) {
		clauses, minA, maxA, errObj := e.compileClauses(args[1:])
		if errObj != nil {
			return errObj
		}
		fnObj = &object.PatternFunction{
			Name:     sym.Name,
			Clauses:  clauses,
			MinArity: minA,
			MaxArity: maxA,
			Env:      e.CurrentEnv(),
		}
	} else {
		fnObj = sfFn(e, args)
		if object.IsAbrupt(fnObj) {
			return fnObj
		}
	}
	if errObj := e.bindLocal(e.CurrentEnv(), sym, fnObj, false); errObj != nil {
		return errObj
	}
	return fnObj
}

func sfDefmacro(e *Evaluator, args []object.Object) object.Object {
	if len(args) < 2 {
		return e.NewError("defmacro wants a name and a parameter vector")
	}
	sym, ok := args[0].(*object.Symbol)
	if !ok {
		return e.NewError("defmacro name must be a symbol")
	}
	paramVec, ok := args[1].(*object.Vector)
	if !ok {
		return e.NewError("defmacro parameters must be a vector")
	}
	params, rest, errObj := paramSymbols(e, paramVec.Elements)
	if errObj != nil {
		return errObj
	}
	mac := &object.Macro{
		Name:      sym.Name,
		Params:    params,
		RestParam: rest,
		Body:      args[2:],
		Env:       e.CurrentEnv(),
	}
	if errObj := e.bindLocal(e.CurrentEnv(), sym, mac, false); errObj != nil {
		return errObj
	}
	return mac
}

// matchp applies the clause compiler to a fixed input instead of call
// arguments: expression-level pattern matching. A vector input is treated
// as a tuple when a clause expects several positions.
func sfMatchp(e *Evaluator, args []object.Object) object.Object {
	if len(args) < 2 {
		return e.NewError("matchp wants a value and at least one clause")
	}
	value := e.Eval(args[0])
	if object.IsAbrupt(value) {
		return value
	}
	clauses, _, _, errObj := e.compileClauses(args[1:])
	if errObj != nil {
		return errObj
	}

	tuple := []object.Object{value}
	if vec, ok := value.(*object.Vector); ok {
		tuple = vec.Elements
	}

	for _, clause := range clauses {
		candidate := tuple
		if clause.Splat == nil && clause.Arity() == 1 {
			candidate = []object.Object{value}
		}
		if clause.Splat == nil && len(candidate) != clause.Arity() {
			continue
		}
		if clause.Splat != nil && len(candidate) < clause.Arity() {
			continue
		}
		frame := object.NewEnclosedEnvironment(e.CurrentEnv(), nil)
		frame.Caller = e.CurrentEnv().Caller
		ok, errObj := e.matchClauseInto(frame, clause, candidate)
		if errObj != nil {
			return errObj
		}
		if !ok {
			continue
		}
		e.PushEnv(frame)
		result := e.evalBody(clause.Body)
		e.PopEnv()
		return result
	}
	return e.NewError("no clause matches %s", object.Inspect(value))
}

func sfBreak(e *Evaluator, args []object.Object) object.Object {
	if len(args) > 1 {
		return e.NewError("break takes at most one value")
	}
	bv := &object.BreakValue{}
	if len(args) == 1 {
		v := e.Eval(args[0])
		if object.IsAbrupt(v) {
			return v
		}
		bv.Value = v
	}
	return bv
}

func sfContinue(e *Evaluator, args []object.Object) object.Object {
	if len(args) != 0 {
		return e.NewError("continue takes no arguments")
	}
	return &object.ContinueValue{}
}

func sfReturn(e *Evaluator, args []object.Object) object.Object {
	rv := &object.ReturnValue{Value: object.NIL}
	if len(args) == 1 {
		v := e.Eval(args[0])
		if object.IsAbrupt(v) {
			return v
		}
		rv.Value = v
	} else if len(args) > 1 {
		return e.NewError("return takes at most one value")
	}
	return rv
}

func sfRecur(e *Evaluator, args []object.Object) object.Object {
	vals := make([]object.Object, len(args))
	for i, form := range args {
		v := e.Eval(form)
		if object.IsAbrupt(v) {
			return v
		}
		vals[i] = v
	}
	return &object.RecurValue{Args: vals}
}

// recur-to names the callable whose invocation site should trampoline.
func sfRecurTo(e *Evaluator, args []object.Object) object.Object {
	if len(args) < 1 {
		return e.NewError("recur-to wants a target")
	}
	target, ok := args[0].(*object.Symbol)
	if !ok {
		return e.NewError("recur-to target must be a symbol")
	}
	vals := make([]object.Object, len(args)-1)
	for i, form := range args[1:] {
		v := e.Eval(form)
		if object.IsAbrupt(v) {
			return v
		}
		vals[i] = v
	}
	return &object.RecurValue{Target: target, Args: vals}
}

func sfThrow(e *Evaluator, args []object.Object) object.Object {
	var payload object.Object = object.NIL
	if len(args) == 1 {
		payload = e.Eval(args[0])
		if object.IsAbrupt(payload) {
			return payload
		}
	}
	return e.newException(payload)
}

// quit unwinds unconditionally; try never intercepts it.
func sfQuit(e *Evaluator, args []object.Object) object.Object {
	code := 0
	if len(args) == 1 {
		v := e.Eval(args[0])
		if object.IsAbrupt(v) {
			return v
		}
		if num, ok := v.(*object.Number); ok {
			code = int(num.Value.Int64())
		}
	}
	return &object.ExitSignal{Code: code}
}

// get-dynamic resolves along the caller chain instead of the lexical one.
func sfGetDynamic(e *Evaluator, args []object.Object) object.Object {
	if len(args) != 1 {
		return e.NewError("get-dynamic wants a symbol")
	}
	sym, ok := args[0].(*object.Symbol)
	if !ok {
		return e.NewError("get-dynamic wants a symbol, got %s", object.Inspect(args[0]))
	}
	v, found := e.CurrentEnv().GetDynamic(sym)
	if !found {
		return e.NewError("`%s` is not bound anywhere on the call stack", sym.Name)
	}
	return e.readVariable(v)
}

// upvar aliases a caller-chain variable into the current frame; the slot
// is shared, so writes through the alias are visible to the owner.
func sfUpvar(e *Evaluator, args []object.Object) object.Object {
	if len(args) < 1 || len(args) > 2 {
		return e.NewError("upvar wants a name and an optional alias")
	}
	sym, ok := args[0].(*object.Symbol)
	if !ok {
		return e.NewError("upvar wants a symbol")
	}
	alias := sym
	if len(args) == 2 {
		if alias, ok = args[1].(*object.Symbol); !ok {
			return e.NewError("upvar alias must be a symbol")
		}
	}
	v, found := e.CurrentEnv().GetDynamic(sym)
	if !found {
		return e.NewError("`%s` is not bound anywhere on the call stack", sym.Name)
	}
	// Same slot, so mutation flows both ways.
	e.CurrentEnv().Alias(alias, v)
	return v.Value
}

func sfTypeAlias(e *Evaluator, args []object.Object) object.Object {
	if len(args) != 2 {
		return e.NewError("type-alias wants a name and a type")
	}
	sym, ok := args[0].(*object.Symbol)
	if !ok {
		return e.NewError("type-alias name must be a symbol")
	}
	t := e.Eval(args[1])
	if object.IsAbrupt(t) {
		return t
	}
	e.CurrentEnv().DefineTypeAlias(sym.Name, t)
	return t
}
