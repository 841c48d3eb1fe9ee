package evaluator

import (
	"braid/internal/object"
)

// iterator builds a pull-based cursor over any sequence value. Maps yield
// [key value] vectors in insertion order, strings yield one-rune strings.
// Lazy sequences are single-pass: iterating one consumes it.
func (e *Evaluator) iterator(coll object.Object) (func() (object.Object, bool), object.Object) {
	switch src := coll.(type) {
	case *object.Nil:
		return func() (object.Object, bool) { return nil, false }, nil

	case *object.Pair:
		cur := src
		return func() (object.Object, bool) {
			if cur == nil {
				return nil, false
			}
			item := cur.Head
			cur = cur.Tail
			return item, true
		}, nil

	case *object.Vector:
		i := 0
		return func() (object.Object, bool) {
			if i >= len(src.Elements) {
				return nil, false
			}
			item := src.Elements[i]
			i++
			return item, true
		}, nil

	case *object.Map:
		pairs := src.Pairs()
		i := 0
		return func() (object.Object, bool) {
			if i >= len(pairs) {
				return nil, false
			}
			p := pairs[i]
			i++
			return &object.Vector{Elements: []object.Object{p.Key, p.Value}}, true
		}, nil

	case *object.String:
		runes := []rune(src.Value)
		i := 0
		return func() (object.Object, bool) {
			if i >= len(runes) {
				return nil, false
			}
			item := &object.String{Value: string(runes[i])}
			i++
			return item, true
		}, nil

	case *object.LazySeq:
		return src.Next, nil

	default:
		return nil, e.NewError("cannot iterate %s", coll.Type())
	}
}

// Lazy pipeline stages. Each stage wraps its upstream cursor; nothing is
// computed until a consumer pulls. Callback errors surface as elements and
// abort the consumer.

func funcLazyMap(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 2 {
		return arityError(ctx, "lazy-map", len(args), 2)
	}
	e := ctx.(*Evaluator)
	next, errItr := e.iterator(args[1])
	if errItr != nil {
		return errItr
	}
	fn := args[0]
	return &object.LazySeq{NextFn: func() (object.Object, bool) {
		item, ok := next()
		if !ok {
			return nil, false
		}
		if object.IsAbrupt(item) {
			return item, true
		}
		return ctx.ApplyCallback("lazy-map callback", fn, []object.Object{item}), true
	}}
}

func funcLazyFilter(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 2 {
		return arityError(ctx, "lazy-filter", len(args), 2)
	}
	e := ctx.(*Evaluator)
	next, errItr := e.iterator(args[1])
	if errItr != nil {
		return errItr
	}
	fn := args[0]
	return &object.LazySeq{NextFn: func() (object.Object, bool) {
		for {
			item, ok := next()
			if !ok {
				return nil, false
			}
			if object.IsAbrupt(item) {
				return item, true
			}
			keep := ctx.ApplyCallback("lazy-filter callback", fn, []object.Object{item})
			if object.IsAbrupt(keep) {
				return keep, true
			}
			if object.IsTruthy(keep) {
				return item, true
			}
		}
	}}
}

func funcLazyFlatmap(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 2 {
		return arityError(ctx, "lazy-flatmap", len(args), 2)
	}
	e := ctx.(*Evaluator)
	next, errItr := e.iterator(args[1])
	if errItr != nil {
		return errItr
	}
	fn := args[0]
	var inner func() (object.Object, bool)
	return &object.LazySeq{NextFn: func() (object.Object, bool) {
		for {
			if inner != nil {
				if item, ok := inner(); ok {
					return item, true
				}
				inner = nil
			}
			item, ok := next()
			if !ok {
				return nil, false
			}
			if object.IsAbrupt(item) {
				return item, true
			}
			mapped := ctx.ApplyCallback("lazy-flatmap callback", fn, []object.Object{item})
			if object.IsAbrupt(mapped) {
				return mapped, true
			}
			cursor, errObj := e.iterator(mapped)
			if errObj != nil {
				// scalar results pass through unflattened
				return mapped, true
			}
			inner = cursor
		}
	}}
}

// realize drains a lazy sequence into a vector. Ordinary sequences pass
// through a copy so the result is always realized.
func funcRealize(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	if len(args) != 1 {
		return arityError(ctx, "realize", len(args), 1)
	}
	e := ctx.(*Evaluator)
	next, errItr := e.iterator(args[0])
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
		out = append(out, item)
	}
	return &object.Vector{Elements: out}
}
