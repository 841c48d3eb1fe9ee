package evaluator

import (
	"strings"
	"time"

	"braid/internal/number"
	"braid/internal/object"
	"braid/internal/parser"
)

// Builtins are Foreign values: invoked with evaluated arguments, free to
// call back into the interpreter through the context. A flow sentinel
// produced by a user callback must escape the builtin unchanged.

var builtins = map[string]*object.Foreign{}

func register(name string, fn func(ctx object.EvaluatorContext, args ...object.Object) object.Object) {
	builtins[name] = &object.Foreign{Name: name, Fn: fn}
}

// registerN records the builtin's minimum arity so a one-argument call
// curries into a partial instead of failing the arity check.
func registerN(name string, minArity int, fn func(ctx object.EvaluatorContext, args ...object.Object) object.Object) {
	builtins[name] = &object.Foreign{Name: name, MinArity: minArity, Fn: fn}
}

func init() {
	// arithmetic
	register("+", funcAdd)
	register("-", funcSub)
	register("*", funcMul)
	register("/", funcDiv)
	register("%", funcMod)
	register("++", funcInc)
	register("--", funcDec)

	// comparison
	registerN("==", 2, funcEq)
	registerN("!=", 2, funcNeq)
	registerN("<", 2, cmpFn("<", func(c int) bool { return c < 0 }))
	registerN("<=", 2, cmpFn("<=", func(c int) bool { return c <= 0 }))
	registerN(">", 2, cmpFn(">", func(c int) bool { return c > 0 }))
	registerN(">=", 2, cmpFn(">=", func(c int) bool { return c >= 0 }))
	register("not", funcNot)

	// core
	register("type", funcType)
	register("len", funcLen)
	register("str", funcStr)
	register("gensym", funcGensym)
	register("intern", funcIntern)
	register("symbol-name", funcSymbolName)
	register("bound?", funcBoundP)
	register("eval", funcEval)
	register("read-string", funcReadString)
	registerN("apply", 2, funcApply)

	// lists and vectors
	register("list", funcList)
	register("vector", funcVector)
	registerN("cons", 2, funcCons)
	register("head", funcHead)
	register("tail", funcTail)
	registerN("nth", 2, funcNth)
	register("append", funcAppend)
	register("concat", funcConcat)
	register("reverse", funcReverse)
	register("range", funcRange)
	registerN("take", 2, funcTake)
	registerN("drop", 2, funcDrop)
	register("flatten", funcFlatten)

	// maps
	register("hash-map", funcHashMap)
	registerN("get", 2, funcGet)
	registerN("put", 3, funcPut)
	registerN("remove", 2, funcRemove)
	register("keys", funcKeys)
	register("vals", funcVals)
	registerN("contains?", 2, funcContainsP)

	// strings
	register("trim", funcTrim)
	registerN("split", 2, funcSplit)
	registerN("join", 2, funcJoin)
	register("upper", strFn("upper", strings.ToUpper))
	register("lower", strFn("lower", strings.ToLower))
	registerN("starts-with", 2, strPredFn("starts-with", strings.HasPrefix))
	registerN("ends-with", 2, strPredFn("ends-with", strings.HasSuffix))
	registerN("index-of", 2, funcIndexOf)

	// higher-order, strict
	registerN("map", 2, funcMap)
	registerN("filter", 2, funcFilter)
	registerN("each", 2, funcEach)
	registerN("reduce", 3, funcReduce)

	// lazy pipeline (lazy.go)
	registerN("lazy-map", 2, funcLazyMap)
	registerN("lazy-filter", 2, funcLazyFilter)
	registerN("lazy-flatmap", 2, funcLazyFlatmap)
	register("realize", funcRealize)

	// tasks (task.go)
	register("await", builtinAwait)
	register("await-all", builtinAwait)

	register("sleep", funcSleep)
}

// sleep pauses for the given milliseconds, waking early on cancellation.
func funcSleep(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 1 {
		return arityError(ctx, "sleep", len(args), 1)
	}
	n, errObj := numberArg(ctx, "sleep", args[0])
	if errObj != nil {
		return errObj
	}
	e := ctx.(*Evaluator)
	select {
	case <-time.After(time.Duration(n.Value.Int64()) * time.Millisecond):
		return object.NIL
	case <-e.RT.Ctx.Done():
		return e.cancellationError()
	}
}

// NewGlobalEnv builds the root frame: special forms and builtins, all
// const so user code must shadow rather than clobber them.
func NewGlobalEnv() *object.Environment {
	env := object.NewEnvironment()
	installSpecialForms(env)
	for name, fn := range builtins {
		env.Declare(&object.Variable{Sym: object.Intern(name), Value: fn, Const: true})
	}
	return env
}

func arityError(ctx object.EvaluatorContext, name string, got, want int) object.Object {
	return ctx.NewError("wrong number of arguments to `%s`: got %d, want %d", name, got, want)
}

func numberArg(ctx object.EvaluatorContext, name string, arg object.Object) (*object.Number, object.Object) {
	num, ok := arg.(*object.Number)
	if !ok {
		return nil, ctx.NewError("argument to `%s` must be a number, got %s", name, arg.Type())
	}
	return num, nil
}

func stringArg(ctx object.EvaluatorContext, name string, arg object.Object) (*object.String, object.Object) {
	s, ok := arg.(*object.String)
	if !ok {
		return nil, ctx.NewError("argument to `%s` must be a string, got %s", name, arg.Type())
	}
	return s, nil
}

func funcAdd(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) == 0 {
		return &object.Number{Value: number.FromInt64(0)}
	}
	acc, errObj := numberArg(ctx, "+", args[0])
	if errObj != nil {
		return errObj
	}
	sum := acc.Value
	for _, arg := range args[1:] {
		n, errObj := numberArg(ctx, "+", arg)
		if errObj != nil {
			return errObj
		}
		sum = number.Add(sum, n.Value)
	}
	return &object.Number{Value: sum}
}

func funcSub(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) == 0 {
		return arityError(ctx, "-", 0, 1)
	}
	first, errObj := numberArg(ctx, "-", args[0])
	if errObj != nil {
		return errObj
	}
	if len(args) == 1 {
		return &object.Number{Value: number.Neg(first.Value)}
	}
	acc := first.Value
	for _, arg := range args[1:] {
		n, errObj := numberArg(ctx, "-", arg)
		if errObj != nil {
			return errObj
		}
		acc = number.Sub(acc, n.Value)
	}
	return &object.Number{Value: acc}
}

func funcMul(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	acc := number.FromInt64(1)
	for _, arg := range args {
		n, errObj := numberArg(ctx, "*", arg)
		if errObj != nil {
			return errObj
		}
		acc = number.Mul(acc, n.Value)
	}
	return &object.Number{Value: acc}
}

func funcDiv(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) < 2 {
		return arityError(ctx, "/", len(args), 2)
	}
	first, errObj := numberArg(ctx, "/", args[0])
	if errObj != nil {
		return errObj
	}
	acc := first.Value
	for _, arg := range args[1:] {
		n, errObj := numberArg(ctx, "/", arg)
		if errObj != nil {
			return errObj
		}
		q, err := number.Div(acc, n.Value)
		if err != nil {
			return ctx.NewError("%s", err.Error())
		}
		acc = q
	}
	return &object.Number{Value: acc}
}

func funcMod(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 2 {
		return arityError(ctx, "%", len(args), 2)
	}
	a, errObj := numberArg(ctx, "%", args[0])
	if errObj != nil {
		return errObj
	}
	b, errObj := numberArg(ctx, "%", args[1])
	if errObj != nil {
		return errObj
	}
	m, err := number.Mod(a.Value, b.Value)
	if err != nil {
		return ctx.NewError("%s", err.Error())
	}
	return &object.Number{Value: m}
}

func funcInc(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 1 {
		return arityError(ctx, "++", len(args), 1)
	}
	n, errObj := numberArg(ctx, "++", args[0])
	if errObj != nil {
		return errObj
	}
	return &object.Number{Value: number.Add(n.Value, number.FromInt64(1))}
}

func funcDec(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 1 {
		return arityError(ctx, "--", len(args), 1)
	}
	n, errObj := numberArg(ctx, "--", args[0])
	if errObj != nil {
		return errObj
	}
	return &object.Number{Value: number.Sub(n.Value, number.FromInt64(1))}
}

func funcEq(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 2 {
		return arityError(ctx, "==", len(args), 2)
	}
	return object.NativeBoolToBooleanObject(object.Equal(args[0], args[1]))
}

func funcNeq(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 2 {
		return arityError(ctx, "!=", len(args), 2)
	}
	return object.NativeBoolToBooleanObject(!object.Equal(args[0], args[1]))
}

// cmpFn orders numbers numerically and strings lexically.
func cmpFn(name string, accept func(int) bool) func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	return func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
		if len(args) != 2 {
			return arityError(ctx, name, len(args), 2)
		}
		switch a := args[0].(type) {
		case *object.Number:
			b, errObj := numberArg(ctx, name, args[1])
			if errObj != nil {
				return errObj
			}
			return object.NativeBoolToBooleanObject(accept(number.Compare(a.Value, b.Value)))
		case *object.String:
			b, errObj := stringArg(ctx, name, args[1])
			if errObj != nil {
				return errObj
			}
			return object.NativeBoolToBooleanObject(accept(strings.Compare(a.Value, b.Value)))
		default:
			return ctx.NewError("`%s` cannot order %s values", name, args[0].Type())
		}
	}
}

func funcNot(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 1 {
		return arityError(ctx, "not", len(args), 1)
	}
	return object.NativeBoolToBooleanObject(!object.IsTruthy(args[0]))
}

func funcType(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 1 {
		return arityError(ctx, "type", len(args), 1)
	}
	if inst, ok := args[0].(*object.TypeInstance); ok {
		return inst.Handle
	}
	return object.Intern(object.TagOf(args[0]))
}

func funcLen(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 1 {
		return arityError(ctx, "len", len(args), 1)
	}
	switch v := args[0].(type) {
	case *object.Nil:
		return &object.Number{Value: number.FromInt64(0)}
	case *object.String:
		return &object.Number{Value: number.FromInt(len([]rune(v.Value)))}
	case *object.Pair:
		return &object.Number{Value: number.FromInt(v.Len())}
	case *object.Vector:
		return &object.Number{Value: number.FromInt(len(v.Elements))}
	case *object.Map:
		return &object.Number{Value: number.FromInt(v.Len())}
	default:
		return ctx.NewError("`len` not supported on %s", args[0].Type())
	}
}

// str renders and concatenates; strings contribute their raw text.
func funcStr(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	var out strings.Builder
	for _, arg := range args {
		if s, ok := arg.(*object.String); ok {
			out.WriteString(s.Value)
		} else {
			out.WriteString(arg.Inspect())
		}
	}
	return &object.String{Value: out.String()}
}

func funcGensym(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 0 {
		return arityError(ctx, "gensym", len(args), 0)
	}
	return object.FreshSymbol()
}

func funcIntern(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 1 {
		return arityError(ctx, "intern", len(args), 1)
	}
	s, errObj := stringArg(ctx, "intern", args[0])
	if errObj != nil {
		return errObj
	}
	if s.Value == "" {
		return ctx.NewError("cannot intern the empty string")
	}
	return object.Intern(s.Value)
}

func funcSymbolName(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 1 {
		return arityError(ctx, "symbol-name", len(args), 1)
	}
	sym, ok := args[0].(*object.Symbol)
	if !ok {
		return ctx.NewError("argument to `symbol-name` must be a symbol, got %s", args[0].Type())
	}
	return &object.String{Value: sym.Name}
}

func funcBoundP(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 1 {
		return arityError(ctx, "bound?", len(args), 1)
	}
	sym, ok := args[0].(*object.Symbol)
	if !ok {
		return ctx.NewError("argument to `bound?` must be a symbol, got %s", args[0].Type())
	}
	return object.NativeBoolToBooleanObject(ctx.CurrentEnv().IsBound(sym))
}

func funcEval(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 1 {
		return arityError(ctx, "eval", len(args), 1)
	}
	return ctx.Eval(args[0])
}

func funcReadString(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 1 {
		return arityError(ctx, "read-string", len(args), 1)
	}
	s, errObj := stringArg(ctx, "read-string", args[0])
	if errObj != nil {
		return errObj
	}
	forms, err := parser.ParseString(s.Value)
	if err != nil {
		return ctx.NewError("read-string: %s", err.Error())
	}
	if len(forms) == 0 {
		return object.NIL
	}
	if len(forms) == 1 {
		return forms[0]
	}
	return &object.Vector{Elements: forms}
}

func funcApply(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) < 2 {
		return arityError(ctx, "apply", len(args), 2)
	}
	callArgs := append([]object.Object{}, args[1:len(args)-1]...)
	switch last := args[len(args)-1].(type) {
	case *object.Pair:
		callArgs = append(callArgs, last.Slice()...)
	case *object.Vector:
		callArgs = append(callArgs, last.Elements...)
	case *object.Nil:
	default:
		return ctx.NewError("last argument to `apply` must be a sequence, got %s", last.Type())
	}
	return ctx.Apply(object.Inspect(args[0]), args[0], callArgs)
}

func funcList(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if lst := object.ListFromSlice(args); lst != nil {
		return lst
	}
	return object.NIL
}

func funcVector(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	return &object.Vector{Elements: append([]object.Object{}, args...)}
}

func funcCons(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 2 {
		return arityError(ctx, "cons", len(args), 2)
	}
	switch tail := args[1].(type) {
	case *object.Pair:
		return &object.Pair{Head: args[0], Tail: tail}
	case *object.Nil:
		return &object.Pair{Head: args[0]}
	default:
		return ctx.NewError("second argument to `cons` must be a list, got %s", args[1].Type())
	}
}

func funcHead(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 1 {
		return arityError(ctx, "head", len(args), 1)
	}
	switch v := args[0].(type) {
	case *object.Nil:
		return object.NIL
	case *object.Pair:
		return v.Head
	case *object.Vector:
		if len(v.Elements) == 0 {
			return object.NIL
		}
		return v.Elements[0]
	default:
		return ctx.NewError("argument to `head` must be a sequence, got %s", args[0].Type())
	}
}

func funcTail(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 1 {
		return arityError(ctx, "tail", len(args), 1)
	}
	switch v := args[0].(type) {
	case *object.Nil:
		return object.NIL
	case *object.Pair:
		if v.Tail == nil {
			return object.NIL
		}
		return v.Tail
	case *object.Vector:
		if len(v.Elements) == 0 {
			return object.NIL
		}
		return &object.Vector{Elements: v.Elements[1:]}
	default:
		return ctx.NewError("argument to `tail` must be a sequence, got %s", args[0].Type())
	}
}

func funcNth(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 2 {
		return arityError(ctx, "nth", len(args), 2)
	}
	n, errObj := numberArg(ctx, "nth", args[1])
	if errObj != nil {
		return errObj
	}
	i := int(n.Value.Int64())
	if i < 0 {
		return object.NIL
	}
	switch v := args[0].(type) {
	case *object.Nil:
		return object.NIL
	case *object.Vector:
		if i >= len(v.Elements) {
			return object.NIL
		}
		return v.Elements[i]
	case *object.Pair:
		for cur := v; cur != nil; cur = cur.Tail {
			if i == 0 {
				return cur.Head
			}
			i--
		}
		return object.NIL
	case *object.String:
		runes := []rune(v.Value)
		if i >= len(runes) {
			return object.NIL
		}
		return &object.String{Value: string(runes[i])}
	default:
		return ctx.NewError("argument to `nth` must be a sequence, got %s", args[0].Type())
	}
}

// append is non-destructive: a fresh vector (or list) with the extra items.
func funcAppend(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) < 1 {
		return arityError(ctx, "append", len(args), 2)
	}
	switch v := args[0].(type) {
	case *object.Vector:
		elems := make([]object.Object, 0, len(v.Elements)+len(args)-1)
		elems = append(elems, v.Elements...)
		elems = append(elems, args[1:]...)
		return &object.Vector{Elements: elems}
	case *object.Pair:
		items := append(v.Slice(), args[1:]...)
		return object.ListFromSlice(items)
	case *object.Nil:
		if lst := object.ListFromSlice(args[1:]); lst != nil {
			return lst
		}
		return object.NIL
	default:
		return ctx.NewError("first argument to `append` must be a sequence, got %s", args[0].Type())
	}
}

func funcConcat(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	var out []object.Object
	vectorResult := false
	for _, arg := range args {
		switch v := arg.(type) {
		case *object.Nil:
		case *object.Pair:
			out = append(out, v.Slice()...)
		case *object.Vector:
			vectorResult = true
			out = append(out, v.Elements...)
		default:
			return ctx.NewError("`concat` wants sequences, got %s", arg.Type())
		}
	}
	if vectorResult {
		return &object.Vector{Elements: out}
	}
	if lst := object.ListFromSlice(out); lst != nil {
		return lst
	}
	return object.NIL
}

func funcReverse(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 1 {
		return arityError(ctx, "reverse", len(args), 1)
	}
	switch v := args[0].(type) {
	case *object.Nil:
		return object.NIL
	case *object.Pair:
		items := v.Slice()
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
		return object.ListFromSlice(items)
	case *object.Vector:
		items := make([]object.Object, len(v.Elements))
		for i, el := range v.Elements {
			items[len(items)-1-i] = el
		}
		return &object.Vector{Elements: items}
	default:
		return ctx.NewError("argument to `reverse` must be a sequence, got %s", args[0].Type())
	}
}

// range produces [start, end) stepping by step (default 1).
func funcRange(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) < 1 || len(args) > 3 {
		return ctx.NewError("`range` wants end, start/end or start/end/step")
	}
	nums := make([]int64, len(args))
	for i, arg := range args {
		n, errObj := numberArg(ctx, "range", arg)
		if errObj != nil {
			return errObj
		}
		nums[i] = n.Value.Int64()
	}
	start, end, step := int64(0), nums[0], int64(1)
	if len(args) >= 2 {
		start, end = nums[0], nums[1]
	}
	if len(args) == 3 {
		step = nums[2]
	}
	if step == 0 {
		return ctx.NewError("`range` step must not be zero")
	}
	var out []object.Object
	for i := start; (step > 0 && i < end) || (step < 0 && i > end); i += step {
		if ctx.Cancelled() {
			return ctx.NewError("evaluation cancelled")
		}
		out = append(out, &object.Number{Value: number.FromInt64(i)})
	}
	return &object.Vector{Elements: out}
}

func funcTake(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	return takeDrop(ctx, "take", true, args)
}

func funcDrop(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	return takeDrop(ctx, "drop", false, args)
}

func takeDrop(ctx object.EvaluatorContext, name string, take bool, args []object.Object) object.Object {
	if len(args) != 2 {
		return arityError(ctx, name, len(args), 2)
	}
	n, errObj := numberArg(ctx, name, args[0])
	if errObj != nil {
		return errObj
	}
	count := int(n.Value.Int64())
	if count < 0 {
		count = 0
	}

	// take on a lazy seq stays lazy; everything else realizes eagerly.
	if lz, ok := args[1].(*object.LazySeq); ok && take {
		remaining := count
		return &object.LazySeq{NextFn: func() (object.Object, bool) {
			if remaining == 0 {
				return nil, false
			}
			remaining--
			return lz.Next()
		}}
	}

	e := ctx.(*Evaluator)
	next, errItr := e.iterator(args[1])
	if errItr != nil {
		return errItr
	}
	var out []object.Object
	i := 0
	for {
		item, ok := next()
		if !ok {
			break
		}
		if object.IsAbrupt(item) {
			return item
		}
		if take && i >= count {
			break
		}
		if take || i >= count {
			out = append(out, item)
		}
		i++
	}
	return &object.Vector{Elements: out}
}

func funcFlatten(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 1 {
		return arityError(ctx, "flatten", len(args), 1)
	}
	var out []object.Object
	var walk func(object.Object)
	walk = func(o object.Object) {
		switch v := o.(type) {
		case *object.Nil:
		case *object.Pair:
			for cur := v; cur != nil; cur = cur.Tail {
				walk(cur.Head)
			}
		case *object.Vector:
			for _, el := range v.Elements {
				walk(el)
			}
		default:
			out = append(out, o)
		}
	}
	walk(args[0])
	return &object.Vector{Elements: out}
}

func funcHashMap(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args)%2 != 0 {
		return ctx.NewError("`hash-map` wants key/value pairs, got %d arguments", len(args))
	}
	m := object.NewMap()
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(object.Hashable)
		if !ok {
			return ctx.NewError("%s is not usable as a map key", args[i].Type())
		}
		m.Set(key, args[i+1])
	}
	return m
}

func funcGet(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) < 2 || len(args) > 3 {
		return arityError(ctx, "get", len(args), 2)
	}
	var fallback object.Object = object.NIL
	if len(args) == 3 {
		fallback = args[2]
	}
	switch src := args[0].(type) {
	case *object.Map:
		key, ok := args[1].(object.Hashable)
		if !ok {
			return ctx.NewError("%s is not usable as a map key", args[1].Type())
		}
		if v, found := src.Get(key); found {
			return v
		}
		return fallback
	case *object.TypeInstance:
		key, ok := args[1].(object.Hashable)
		if !ok {
			return ctx.NewError("%s is not usable as a field key", args[1].Type())
		}
		if v, found := src.Fields.Get(key); found {
			return v
		}
		return fallback
	case *object.Vector, *object.Pair, *object.String:
		v := funcNth(ctx, args[0], args[1])
		if v == object.NIL {
			return fallback
		}
		return v
	case *object.Nil:
		return fallback
	default:
		return ctx.NewError("`get` not supported on %s", args[0].Type())
	}
}

// put is non-destructive: a fresh map with the entry added.
func funcPut(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 3 {
		return arityError(ctx, "put", len(args), 3)
	}
	src, ok := args[0].(*object.Map)
	if !ok {
		return ctx.NewError("first argument to `put` must be a map, got %s", args[0].Type())
	}
	key, ok := args[1].(object.Hashable)
	if !ok {
		return ctx.NewError("%s is not usable as a map key", args[1].Type())
	}
	out := object.NewMap()
	for _, pair := range src.Pairs() {
		out.Set(pair.Key.(object.Hashable), pair.Value)
	}
	out.Set(key, args[2])
	return out
}

func funcRemove(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 2 {
		return arityError(ctx, "remove", len(args), 2)
	}
	src, ok := args[0].(*object.Map)
	if !ok {
		return ctx.NewError("first argument to `remove` must be a map, got %s", args[0].Type())
	}
	key, ok := args[1].(object.Hashable)
	if !ok {
		return ctx.NewError("%s is not usable as a map key", args[1].Type())
	}
	out := object.NewMap()
	for _, pair := range src.Pairs() {
		out.Set(pair.Key.(object.Hashable), pair.Value)
	}
	out.Delete(key)
	return out
}

func funcKeys(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 1 {
		return arityError(ctx, "keys", len(args), 1)
	}
	src, ok := args[0].(*object.Map)
	if !ok {
		return ctx.NewError("argument to `keys` must be a map, got %s", args[0].Type())
	}
	out := make([]object.Object, 0, src.Len())
	for _, pair := range src.Pairs() {
		out = append(out, pair.Key)
	}
	return &object.Vector{Elements: out}
}

func funcVals(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 1 {
		return arityError(ctx, "vals", len(args), 1)
	}
	src, ok := args[0].(*object.Map)
	if !ok {
		return ctx.NewError("argument to `vals` must be a map, got %s", args[0].Type())
	}
	out := make([]object.Object, 0, src.Len())
	for _, pair := range src.Pairs() {
		out = append(out, pair.Value)
	}
	return &object.Vector{Elements: out}
}

func funcContainsP(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 2 {
		return arityError(ctx, "contains?", len(args), 2)
	}
	switch src := args[0].(type) {
	case *object.Map:
		key, ok := args[1].(object.Hashable)
		if !ok {
			return object.FALSE
		}
		_, found := src.Get(key)
		return object.NativeBoolToBooleanObject(found)
	case *object.Vector:
		for _, el := range src.Elements {
			if object.Equal(el, args[1]) {
				return object.TRUE
			}
		}
		return object.FALSE
	case *object.Pair:
		for cur := src; cur != nil; cur = cur.Tail {
			if object.Equal(cur.Head, args[1]) {
				return object.TRUE
			}
		}
		return object.FALSE
	case *object.String:
		sub, errObj := stringArg(ctx, "contains?", args[1])
		if errObj != nil {
			return errObj
		}
		return object.NativeBoolToBooleanObject(strings.Contains(src.Value, sub.Value))
	case *object.Nil:
		return object.FALSE
	default:
		return ctx.NewError("`contains?` not supported on %s", args[0].Type())
	}
}

func funcTrim(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 1 {
		return arityError(ctx, "trim", len(args), 1)
	}
	s, errObj := stringArg(ctx, "trim", args[0])
	if errObj != nil {
		return errObj
	}
	return &object.String{Value: strings.TrimSpace(s.Value)}
}

func funcSplit(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 2 {
		return arityError(ctx, "split", len(args), 2)
	}
	s, errObj := stringArg(ctx, "split", args[0])
	if errObj != nil {
		return errObj
	}
	sep, errObj := stringArg(ctx, "split", args[1])
	if errObj != nil {
		return errObj
	}
	parts := strings.Split(s.Value, sep.Value)
	out := make([]object.Object, len(parts))
	for i, p := range parts {
		out[i] = &object.String{Value: p}
	}
	return &object.Vector{Elements: out}
}

func funcJoin(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 2 {
		return arityError(ctx, "join", len(args), 2)
	}
	sep, errObj := stringArg(ctx, "join", args[1])
	if errObj != nil {
		return errObj
	}
	e := ctx.(*Evaluator)
	next, errItr := e.iterator(args[0])
	if errItr != nil {
		return errItr
	}
	var parts []string
	for {
		item, ok := next()
		if !ok {
			break
		}
		if object.IsAbrupt(item) {
			return item
		}
		if s, ok := item.(*object.String); ok {
			parts = append(parts, s.Value)
		} else {
			parts = append(parts, item.Inspect())
		}
	}
	return &object.String{Value: strings.Join(parts, sep.Value)}
}

func strFn(name string, fn func(string) string) func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	return func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
		if len(args) != 1 {
			return arityError(ctx, name, len(args), 1)
		}
		s, errObj := stringArg(ctx, name, args[0])
		if errObj != nil {
			return errObj
		}
		return &object.String{Value: fn(s.Value)}
	}
}

func strPredFn(name string, fn func(string, string) bool) func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	return func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
		if len(args) != 2 {
			return arityError(ctx, name, len(args), 2)
		}
		s, errObj := stringArg(ctx, name, args[0])
		if errObj != nil {
			return errObj
		}
		sub, errObj := stringArg(ctx, name, args[1])
		if errObj != nil {
			return errObj
		}
		return object.NativeBoolToBooleanObject(fn(s.Value, sub.Value))
	}
}

func funcIndexOf(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 2 {
		return arityError(ctx, "index-of", len(args), 2)
	}
	s, errObj := stringArg(ctx, "index-of", args[0])
	if errObj != nil {
		return errObj
	}
	sub, errObj := stringArg(ctx, "index-of", args[1])
	if errObj != nil {
		return errObj
	}
	return &object.Number{Value: number.FromInt(strings.Index(s.Value, sub.Value))}
}

// map/filter/each/reduce are strict and element-ordered. Flow sentinels
// (a `return` reaching up through the callback included) escape the
// builtin unchanged so the enclosing function sees them.

func funcMap(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 2 {
		return arityError(ctx, "map", len(args), 2)
	}
	e := ctx.(*Evaluator)
	next, errItr := e.iterator(args[1])
	if errItr != nil {
		return errItr
	}
	var out []object.Object
	for {
		if ctx.Cancelled() {
			return e.cancellationError()
		}
		item, ok := next()
		if !ok {
			break
		}
		if object.IsAbrupt(item) {
			return item
		}
		mapped := ctx.ApplyCallback("map callback", args[0], []object.Object{item})
		if object.IsAbrupt(mapped) {
			return mapped
		}
		out = append(out, mapped)
	}
	return &object.Vector{Elements: out}
}

func funcFilter(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 2 {
		return arityError(ctx, "filter", len(args), 2)
	}
	e := ctx.(*Evaluator)
	next, errItr := e.iterator(args[1])
	if errItr != nil {
		return errItr
	}
	var out []object.Object
	for {
		if ctx.Cancelled() {
			return e.cancellationError()
		}
		item, ok := next()
		if !ok {
			break
		}
		if object.IsAbrupt(item) {
			return item
		}
		keep := ctx.ApplyCallback("filter callback", args[0], []object.Object{item})
		if object.IsAbrupt(keep) {
			return keep
		}
		if object.IsTruthy(keep) {
			out = append(out, item)
		}
	}
	return &object.Vector{Elements: out}
}

func funcEach(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 2 {
		return arityError(ctx, "each", len(args), 2)
	}
	e := ctx.(*Evaluator)
	next, errItr := e.iterator(args[1])
	if errItr != nil {
		return errItr
	}
	for {
		if ctx.Cancelled() {
			return e.cancellationError()
		}
		item, ok := next()
		if !ok {
			break
		}
		if object.IsAbrupt(item) {
			return item
		}
		result := ctx.ApplyCallback("each callback", args[0], []object.Object{item})
		if object.IsAbrupt(result) {
			return result
		}
	}
	return object.NIL
}

func funcReduce(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 3 {
		return arityError(ctx, "reduce", len(args), 3)
	}
	e := ctx.(*Evaluator)
	next, errItr := e.iterator(args[2])
	if errItr != nil {
		return errItr
	}
	acc := args[1]
	for {
		if ctx.Cancelled() {
			return e.cancellationError()
		}
		item, ok := next()
		if !ok {
			break
		}
		if object.IsAbrupt(item) {
			return item
		}
		acc = ctx.ApplyCallback("reduce callback", args[0], []object.Object{acc, item})
		if object.IsAbrupt(acc) {
			return acc
		}
	}
	return acc
}
