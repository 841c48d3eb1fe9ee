package object

import "braid/internal/number"

// IsTruthy: nil and false are falsy, zero is falsy, everything else truthy.
func IsTruthy(obj Object) bool {
	switch o := obj.(type) {
	case nil:
		return false
	case *Nil:
		return false
	case *Boolean:
		return o.Value
	case *Number:
		return !o.Value.IsZero()
	default:
		return true
	}
}

// IsFlow reports whether obj is a flow-control sentinel. Sentinels are
// ordinary values; they are tested at every body-walking site and either
// consumed or forwarded, never dropped.
func IsFlow(obj Object) bool {
	switch obj.(type) {
	case *BreakValue, *ContinueValue, *ReturnValue, *RecurValue:
		return true
	}
	return false
}

// IsAbrupt reports flow sentinels plus error and exit values, i.e.
// anything that aborts ordinary left-to-right evaluation.
func IsAbrupt(obj Object) bool {
	if IsFlow(obj) {
		return true
	}
	switch obj.(type) {
	case *RuntimeError, *UserException, *ExitSignal:
		return true
	}
	return false
}

func IsError(obj Object) bool {
	switch obj.(type) {
	case *RuntimeError, *UserException, *ExitSignal:
		return true
	}
	return false
}

func NativeBoolToBooleanObject(input bool) *Boolean {
	if input {
		return TRUE
	}
	return FALSE
}

// Equal is structural equality: symbols by identity, numbers across tags,
// lists/vectors/maps element-wise.
func Equal(a, b Object) bool {
	switch av := a.(type) {
	case *Nil:
		_, ok := b.(*Nil)
		return ok
	case *Boolean:
		bv, ok := b.(*Boolean)
		return ok && av.Value == bv.Value
	case *Number:
		bv, ok := b.(*Number)
		return ok && number.Equal(av.Value, bv.Value)
	case *String:
		bv, ok := b.(*String)
		return ok && av.Value == bv.Value
	case *Symbol:
		bv, ok := b.(*Symbol)
		return ok && av == bv
	case *Pair:
		bv, ok := b.(*Pair)
		if !ok {
			return false
		}
		ac, bc := av, bv
		for ac != nil && bc != nil {
			if !Equal(ac.Head, bc.Head) {
				return false
			}
			ac, bc = ac.Tail, bc.Tail
		}
		return ac == nil && bc == nil
	case *Vector:
		bv, ok := b.(*Vector)
		if !ok || len(av.Elements) != len(bv.Elements) {
			return false
		}
		for i := range av.Elements {
			if !Equal(av.Elements[i], bv.Elements[i]) {
				return false
			}
		}
		return true
	case *Map:
		bv, ok := b.(*Map)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for _, pair := range av.Pairs() {
			other, found := bv.Get(pair.Key.(Hashable))
			if !found || !Equal(pair.Value, other) {
				return false
			}
		}
		return true
	}
	return a == b
}

// TagOf returns the built-in type tag for a value.
func TagOf(obj Object) string {
	switch obj.(type) {
	case *Nil:
		return TagNil
	case *Boolean:
		return TagBool
	case *Number:
		return TagNum
	case *String:
		return TagStr
	case *Symbol:
		return TagSym
	case *Pair:
		return TagList
	case *Vector:
		return TagVec
	case *Map:
		return TagMap
	case *Function, *PatternFunction, *Foreign, *Partial:
		return TagFun
	case *TaskHandle:
		return TagTask
	}
	return TagAny
}
