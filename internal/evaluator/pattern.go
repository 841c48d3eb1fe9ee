package evaluator

import (
	"strings"

	"braid/internal/object"
)

// Pattern-matching function compiler. Clauses are introduced by `|` and
// read `| pattern... -> body...`. Matcher kinds per position: literal
// equality, plain-symbol binding, typed binding `(@num n)`, nested
// vector/list destructuring, map property shape and a trailing `&rest`
// splat. Bindings are buffered in a scratch frame and committed atomically
// only when the whole clause matches.

// compileClauses turns the raw forms after a `|` marker into clause
// records and computes the min/max arity across them. MaxArity is -1 when
// any clause has a splat.
func (e *Evaluator) compileClauses(raw []object.Object) ([]*object.PatternClause, int, int, object.Object) {
	var clauses []*object.PatternClause
	minArity, maxArity := -1, 0

	i := 0
	for i < len(raw) {
		if !isPipe(raw[i]) {
			return nil, 0, 0, e.NewError("pattern clauses must start with |")
		}
		i++
		start := i
		arrow := -1
		for i < len(raw) && !isPipe(raw[i]) {
			if sym, ok := raw[i].(*object.Symbol); ok && sym.Name == "->" && arrow < 0 {
				arrow = i
			}
			i++
		}
		if arrow < 0 {
			return nil, 0, 0, e.NewError("pattern clause is missing ->")
		}

		clause := &object.PatternClause{Body: raw[arrow+1 : i]}
		for _, pat := range raw[start:arrow] {
			if sym, ok := pat.(*object.Symbol); ok && strings.HasPrefix(sym.Name, "&") {
				clause.Splat = object.Intern(strings.TrimPrefix(sym.Name, "&"))
				continue
			}
			if clause.Splat != nil {
				return nil, 0, 0, e.NewError("splat pattern must be last in its clause")
			}
			clause.Patterns = append(clause.Patterns, pat)
		}
		clauses = append(clauses, clause)

		n := clause.Arity()
		if minArity < 0 || n < minArity {
			minArity = n
		}
		if clause.Splat != nil {
			maxArity = -1
		} else if maxArity >= 0 && n > maxArity {
			maxArity = n
		}
	}
	if len(clauses) == 0 {
		return nil, 0, 0, e.NewError("pattern function needs at least one clause")
	}
	if minArity < 0 {
		minArity = 0
	}
	return clauses, minArity, maxArity, nil
}

func isPipe(form object.Object) bool {
	sym, ok := form.(*object.Symbol)
	return ok && sym.Name == "|"
}

// applyPatternFunction checks arity before any structural matching, then
// tries clauses in source order.
func (e *Evaluator) applyPatternFunction(fnName string, fn *object.PatternFunction, args []object.Object, consumeReturn bool) object.Object {
	if len(args) == 1 && fn.MinArity > 1 {
		return &object.Partial{Fn: fn, Applied: args}
	}
	if len(args) < fn.MinArity || (fn.MaxArity >= 0 && len(args) > fn.MaxArity) {
		if fn.MaxArity < 0 {
			return e.NewError("wrong number of arguments to `%s`: got %d, want at least %d",
				fnName, len(args), fn.MinArity)
		}
		if fn.MinArity == fn.MaxArity {
			return e.NewError("wrong number of arguments to `%s`: got %d, want %d",
				fnName, len(args), fn.MinArity)
		}
		return e.NewError("wrong number of arguments to `%s`: got %d, want %d to %d",
			fnName, len(args), fn.MinArity, fn.MaxArity)
	}

	for {
		result, matched := e.dispatchClauses(fnName, fn, args)
		if !matched {
			return e.NewError("no clause of `%s` matches %s", fnName, inspectArgs(args))
		}
		switch r := result.(type) {
		case *object.ReturnValue:
			if !consumeReturn {
				return result
			}
			return r.Value
		case *object.RecurValue:
			if r.Target != nil && patternRecurTargets(r, fn, fnName) {
				args = r.Args
				continue
			}
			return result
		default:
			return result
		}
	}
}

func patternRecurTargets(r *object.RecurValue, fn *object.PatternFunction, fnName string) bool {
	if r.Target == fn {
		return true
	}
	if sym, ok := r.Target.(*object.Symbol); ok {
		return strings.EqualFold(sym.Name, fnName) || strings.EqualFold(sym.Name, fn.Name)
	}
	return false
}

func (e *Evaluator) dispatchClauses(fnName string, fn *object.PatternFunction, args []object.Object) (object.Object, bool) {
	for _, clause := range fn.Clauses {
		if clause.Splat == nil && len(args) != clause.Arity() {
			continue
		}
		if clause.Splat != nil && len(args) < clause.Arity() {
			continue
		}

		frame := e.newCallFrame(fnName, fn.Env)
		ok, errObj := e.matchClauseInto(frame, clause, args)
		if errObj != nil {
			return errObj, true
		}
		if !ok {
			continue
		}
		e.PushEnv(frame)
		result := e.evalBody(clause.Body)
		e.PopEnv()
		return result, true
	}
	return nil, false
}

// matchClauseInto matches every position against a scratch frame and
// commits the bindings into target only on full success, so a failed
// clause leaves no bindings visible.
func (e *Evaluator) matchClauseInto(target *object.Environment, clause *object.PatternClause, args []object.Object) (bool, object.Object) {
	scratch := object.NewEnclosedEnvironment(target, nil)
	for i, pat := range clause.Patterns {
		ok, errObj := e.matchPattern(scratch, pat, args[i])
		if errObj != nil || !ok {
			return ok, errObj
		}
	}
	if clause.Splat != nil {
		rest := args[clause.Arity():]
		var restVal object.Object = object.NIL
		if lst := object.ListFromSlice(rest); lst != nil {
			restVal = lst
		}
		scratch.SetLocal(clause.Splat, restVal)
	}
	commitBindings(scratch, target)
	return true, nil
}

func commitBindings(scratch, target *object.Environment) {
	for _, v := range scratch.Locals() {
		target.Declare(v)
	}
}

// matchPattern matches one position, buffering bindings into scratch.
// A returned non-nil second value is an abrupt result (error).
func (e *Evaluator) matchPattern(scratch *object.Environment, pattern, value object.Object) (bool, object.Object) {
	switch pat := pattern.(type) {
	case *object.Symbol:
		switch {
		case pat.Name == "_":
			return true, nil
		case strings.HasPrefix(pat.Name, ":"):
			// Keywords are literals.
			return object.Equal(pat, value), nil
		case strings.HasPrefix(pat.Name, "@"):
			// Bare tag: typed wildcard.
			return e.typeMatches(pat, value), nil
		case pat.IsCompound():
			return e.bindCompound(scratch, pat, value)
		default:
			scratch.SetLocal(pat, value)
			return true, nil
		}

	case *object.Number, *object.String, *object.Boolean, *object.Nil:
		return object.Equal(pattern, value), nil

	case *object.Vector:
		return e.matchSequence(scratch, pat.Elements, value)

	case *object.Pair:
		if pat.IsQuoted {
			data := *pat
			data.IsQuoted = false
			return object.Equal(&data, value), nil
		}
		items := pat.Slice()
		if head, ok := items[0].(*object.Symbol); ok {
			switch {
			case head == object.Intern("quote") && len(items) == 2:
				return object.Equal(items[1], value), nil
			case head == object.Intern("hash-map"):
				return e.matchShape(scratch, items[1:], value)
			case e.isTypeDesignator(head) && len(items) == 2:
				// Typed binding: (@num n).
				if !e.typeMatches(head, value) {
					return false, nil
				}
				return e.matchPattern(scratch, items[1], value)
			}
		}
		return e.matchSequence(scratch, items, value)
	}
	return false, e.NewError("unsupported pattern %s", object.Inspect(pattern))
}

// matchSequence destructures list or vector values positionally, honoring
// a trailing &rest splat and nesting.
func (e *Evaluator) matchSequence(scratch *object.Environment, pats []object.Object, value object.Object) (bool, object.Object) {
	var elements []object.Object
	isVector := false
	switch v := value.(type) {
	case *object.Vector:
		elements = v.Elements
		isVector = true
	case *object.Pair:
		elements = v.Slice()
	case *object.Nil:
		elements = nil
	default:
		return false, nil
	}

	var splat *object.Symbol
	if n := len(pats); n > 0 {
		if sym, ok := pats[n-1].(*object.Symbol); ok && strings.HasPrefix(sym.Name, "&") {
			splat = object.Intern(strings.TrimPrefix(sym.Name, "&"))
			pats = pats[:n-1]
		}
	}
	if splat == nil && len(elements) != len(pats) {
		return false, nil
	}
	if splat != nil && len(elements) < len(pats) {
		return false, nil
	}

	for i, pat := range pats {
		ok, errObj := e.matchPattern(scratch, pat, elements[i])
		if errObj != nil || !ok {
			return ok, errObj
		}
	}
	if splat != nil {
		rest := elements[len(pats):]
		var restVal object.Object
		if isVector {
			restVal = &object.Vector{Elements: append([]object.Object{}, rest...)}
		} else if lst := object.ListFromSlice(rest); lst != nil {
			restVal = lst
		} else {
			restVal = object.NIL
		}
		scratch.SetLocal(splat, restVal)
	}
	return true, nil
}

// matchShape checks a property-shaped pattern {key subpat ...} against a
// map or a type instance's fields. Extra keys in the value are allowed.
func (e *Evaluator) matchShape(scratch *object.Environment, kvForms []object.Object, value object.Object) (bool, object.Object) {
	var m *object.Map
	switch v := value.(type) {
	case *object.Map:
		m = v
	case *object.TypeInstance:
		m = v.Fields
	default:
		return false, nil
	}
	if len(kvForms)%2 != 0 {
		return false, e.NewError("shape pattern needs key/pattern pairs")
	}
	for i := 0; i < len(kvForms); i += 2 {
		key := e.Eval(kvForms[i])
		if object.IsAbrupt(key) {
			return false, key
		}
		hk, ok := key.(object.Hashable)
		if !ok {
			return false, e.NewError("shape pattern key %s is not hashable", object.Inspect(key))
		}
		got, found := m.Get(hk)
		if !found {
			return false, nil
		}
		ok2, errObj := e.matchPattern(scratch, kvForms[i+1], got)
		if errObj != nil || !ok2 {
			return ok2, errObj
		}
	}
	return true, nil
}

// bindCompound implements multiple assignment through a compound symbol:
// a:b:c spreads a sequence across the components, with excess values
// gathered into the last name unless the symbol opts out.
func (e *Evaluator) bindCompound(scratch *object.Environment, sym *object.Symbol, value object.Object) (bool, object.Object) {
	var elements []object.Object
	switch v := value.(type) {
	case *object.Pair:
		elements = v.Slice()
	case *object.Vector:
		elements = v.Elements
	case *object.Nil:
		elements = nil
	default:
		return false, nil
	}

	comps := sym.ComponentSymbols
	for i, comp := range comps {
		last := i == len(comps)-1
		switch {
		case last && sym.BindRestToLast:
			rest := elements[min(i, len(elements)):]
			if lst := object.ListFromSlice(rest); lst != nil {
				scratch.SetLocal(comp, lst)
			} else {
				scratch.SetLocal(comp, object.NIL)
			}
		case i < len(elements):
			scratch.SetLocal(comp, elements[i])
		default:
			scratch.SetLocal(comp, object.NIL)
		}
	}
	return true, nil
}

// isTypeDesignator reports whether sym names a type: a built-in tag, a
// type alias in scope, or a factory-defined type.
func (e *Evaluator) isTypeDesignator(sym *object.Symbol) bool {
	if strings.HasPrefix(sym.Name, "@") {
		return true
	}
	if _, ok := e.CurrentEnv().ResolveTypeAlias(sym.Name); ok {
		return true
	}
	_, ok := e.RT.Types.Lookup(sym.Name)
	return ok
}

// typeMatches resolves a type designator and checks value membership.
func (e *Evaluator) typeMatches(designator object.Object, value object.Object) bool {
	switch d := designator.(type) {
	case *object.TypeHandle:
		inst, ok := value.(*object.TypeInstance)
		return ok && inst.Handle.Extends(d)
	case *object.Symbol:
		if t, ok := e.CurrentEnv().ResolveTypeAlias(d.Name); ok && t != designator {
			return e.typeMatches(t, value)
		}
		if strings.HasPrefix(d.Name, "@") {
			if d.Name == object.TagAny {
				return true
			}
			return object.TagOf(value) == strings.ToLower(d.Name)
		}
		if th, ok := e.RT.Types.Lookup(d.Name); ok {
			return e.typeMatches(th, value)
		}
	}
	return false
}

func inspectArgs(args []object.Object) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = object.Inspect(a)
	}
	return "(" + strings.Join(parts, " ") + ")"
}
