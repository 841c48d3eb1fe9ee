package evaluator

import (
	"braid/internal/object"
)

// Type definition forms delegate to the runtime's TypeFactory and bind
// the resulting opaque handle like any other const.

// deftype: (deftype Name [Base Iface...] member value ...). Members are
// evaluated in the current environment; method values are ordinary
// closures.
func sfDeftype(e *Evaluator, args []object.Object) object.Object {
	name, parents, rest, errObj := typeHeader(e, "deftype", args)
	if errObj != nil {
		return errObj
	}
	var base *object.TypeHandle
	var ifaces []*object.TypeHandle
	for _, p := range parents {
		switch p.Kind {
		case "interface":
			ifaces = append(ifaces, p)
		case "type":
			if base != nil {
				return e.NewError("type `%s` can extend at most one base type", name.Name)
			}
			base = p
		default:
			return e.NewError("type `%s` cannot extend %s `%s`", name.Name, p.Kind, p.Name)
		}
	}

	members, errObj := memberPairs(e, name.Name, rest)
	if errObj != nil {
		return errObj
	}
	return e.defineType(name, "type", base, ifaces, members, nil)
}

// definterface: (definterface Name [Base...] member ...). Members are
// names only; implementors supply the values.
func sfDefinterface(e *Evaluator, args []object.Object) object.Object {
	name, parents, rest, errObj := typeHeader(e, "definterface", args)
	if errObj != nil {
		return errObj
	}
	var ifaces []*object.TypeHandle
	for _, p := range parents {
		if p.Kind != "interface" {
			return e.NewError("interface `%s` can only extend interfaces, not %s `%s`",
				name.Name, p.Kind, p.Name)
		}
		ifaces = append(ifaces, p)
	}
	members := map[*object.Symbol]object.Object{}
	for _, form := range rest {
		sym, ok := form.(*object.Symbol)
		if !ok {
			return e.NewError("interface member must be a symbol, got %s", object.Inspect(form))
		}
		members[sym] = object.NIL
	}
	return e.defineType(name, "interface", nil, ifaces, members, nil)
}

// defenum: (defenum Name :a :b :c).
func sfDefenum(e *Evaluator, args []object.Object) object.Object {
	if len(args) < 2 {
		return e.NewError("defenum wants a name and at least one variant")
	}
	name, ok := args[0].(*object.Symbol)
	if !ok {
		return e.NewError("defenum name must be a symbol")
	}
	variants := make([]*object.Symbol, 0, len(args)-1)
	for _, form := range args[1:] {
		sym, ok := form.(*object.Symbol)
		if !ok {
			return e.NewError("enum variant must be a symbol, got %s", object.Inspect(form))
		}
		variants = append(variants, sym)
	}
	return e.defineType(name, "enum", nil, nil, nil, variants)
}

func (e *Evaluator) defineType(name *object.Symbol, kind string, base *object.TypeHandle,
	ifaces []*object.TypeHandle, members map[*object.Symbol]object.Object,
	variants []*object.Symbol) object.Object {

	th, err := e.RT.Types.Define(name.Name, kind, base, ifaces, members, variants)
	if err != nil {
		return e.WrapError(err, "cannot define %s `%s`", kind, name.Name)
	}
	if errObj := e.bindLocal(e.CurrentEnv(), name, th, true); errObj != nil {
		return errObj
	}
	return th
}

// typeHeader parses `Name [parents...]` and resolves parent names to
// handles. The parent vector may be omitted.
func typeHeader(e *Evaluator, form string, args []object.Object) (*object.Symbol, []*object.TypeHandle, []object.Object, object.Object) {
	if len(args) < 1 {
		return nil, nil, nil, e.NewError("%s wants a name", form)
	}
	name, ok := args[0].(*object.Symbol)
	if !ok {
		return nil, nil, nil, e.NewError("%s name must be a symbol", form)
	}
	rest := args[1:]
	var parents []*object.TypeHandle
	if len(rest) > 0 {
		if vec, ok := rest[0].(*object.Vector); ok {
			for _, p := range vec.Elements {
				psym, ok := p.(*object.Symbol)
				if !ok {
					return nil, nil, nil, e.NewError("parent of `%s` must be a symbol", name.Name)
				}
				ph, errObj := e.resolveTypeHandle(psym)
				if errObj != nil {
					return nil, nil, nil, errObj
				}
				parents = append(parents, ph)
			}
			rest = rest[1:]
		}
	}
	return name, parents, rest, nil
}

// constraintForm resolves the type argument of `declare`. A symbol that
// names a type (tag, alias in scope, factory type) is the constraint
// itself; anything else evaluates normally.
func (e *Evaluator) constraintForm(form object.Object) (object.Object, object.Object) {
	if sym, ok := form.(*object.Symbol); ok && e.isTypeDesignator(sym) {
		return sym, nil
	}
	v := e.Eval(form)
	if object.IsAbrupt(v) {
		return nil, v
	}
	return v, nil
}

func (e *Evaluator) resolveTypeHandle(sym *object.Symbol) (*object.TypeHandle, object.Object) {
	if val, ok := e.CurrentEnv().Get(sym); ok {
		if th, ok := val.(*object.TypeHandle); ok {
			return th, nil
		}
	}
	if th, ok := e.RT.Types.Lookup(sym.Name); ok {
		return th, nil
	}
	return nil, e.NewError("`%s` does not name a type", sym.Name)
}

func memberPairs(e *Evaluator, typeName string, forms []object.Object) (map[*object.Symbol]object.Object, object.Object) {
	if len(forms)%2 != 0 {
		return nil, e.NewError("members of `%s` must be name/value pairs", typeName)
	}
	members := map[*object.Symbol]object.Object{}
	for i := 0; i < len(forms); i += 2 {
		sym, ok := forms[i].(*object.Symbol)
		if !ok {
			return nil, e.NewError("member name of `%s` must be a symbol", typeName)
		}
		val := e.Eval(forms[i+1])
		if object.IsAbrupt(val) {
			return nil, val
		}
		members[sym] = val
	}
	return members, nil
}
