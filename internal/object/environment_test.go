package object

import (
	"testing"

	"braid/internal/number"
)

func num(i int64) *Number { return &Number{Value: number.FromInt64(i)} }

func TestGetWalksLexicalChain(t *testing.T) {
	outer := NewEnvironment()
	inner := NewEnclosedEnvironment(outer, nil)

	sym := Intern("lex-walk-x")
	outer.SetLocal(sym, num(1))

	got, ok := inner.Get(sym)
	if !ok {
		t.Fatalf("inner frame should see outer binding")
	}
	if !Equal(got, num(1)) {
		t.Errorf("got %s, want 1", got.Inspect())
	}

	// Shadowing: the first match on the chain wins.
	inner.SetLocal(sym, num(2))
	got, _ = inner.Get(sym)
	if !Equal(got, num(2)) {
		t.Errorf("shadowed read got %s, want 2", got.Inspect())
	}
	got, _ = outer.Get(sym)
	if !Equal(got, num(1)) {
		t.Errorf("outer read got %s, want 1", got.Inspect())
	}
}

func TestSetLocalConstAndSink(t *testing.T) {
	env := NewEnvironment()
	sym := Intern("const-slot")
	env.Declare(&Variable{Sym: sym, Value: num(1), Const: true})

	if _, ok := env.SetLocal(sym, num(2)); ok {
		t.Errorf("writing a const slot should be rejected")
	}
	if got, _ := env.Get(sym); !Equal(got, num(1)) {
		t.Errorf("const value changed to %s", got.Inspect())
	}

	sink := Intern("sink-slot")
	env.Declare(&Variable{Sym: sink, Value: num(1), Sink: true})
	if _, ok := env.SetLocal(sink, num(9)); !ok {
		t.Errorf("sink write should be silently absorbed, not rejected")
	}
	if got, _ := env.Get(sink); !Equal(got, num(1)) {
		t.Errorf("sink slot should keep its value, got %s", got.Inspect())
	}
}

// DefineTarget is the parent of the invoking frame. The contract is
// deliberate and surprising: a `set` of an unbound name binds one frame
// up, not in the frame where the set ran.
func TestDefineTargetIsParentFrame(t *testing.T) {
	root := NewEnvironment()
	mid := NewEnclosedEnvironment(root, nil)
	leaf := NewEnclosedEnvironment(mid, nil)

	if leaf.DefineTarget() != mid {
		t.Errorf("leaf's define target should be its parent")
	}
	if root.DefineTarget() != root {
		t.Errorf("root's define target should be itself")
	}
}

func TestForkIsolation(t *testing.T) {
	parent := NewEnvironment()
	frame := NewEnclosedEnvironment(parent, nil)

	shared := Intern("fork-shared")
	local := Intern("fork-local")
	parent.SetLocal(shared, num(10))
	frame.SetLocal(local, num(1))

	forked := frame.Fork()

	// Later mutation of the source frame is invisible to the fork.
	frame.SetLocal(local, num(2))
	if got, _ := forked.Get(local); !Equal(got, num(1)) {
		t.Errorf("fork observed later mutation: %s", got.Inspect())
	}

	// Ancestors are shared, not copied.
	parent.SetLocal(shared, num(20))
	if got, _ := forked.Get(shared); !Equal(got, num(20)) {
		t.Errorf("fork should share ancestors, got %s", got.Inspect())
	}

	// Writes in the fork do not leak back.
	forked.SetLocal(local, num(99))
	if got, _ := frame.Get(local); !Equal(got, num(2)) {
		t.Errorf("fork write leaked into source frame: %s", got.Inspect())
	}
}

func TestForkPreservesFlags(t *testing.T) {
	frame := NewEnvironment()
	sym := Intern("fork-const")
	frame.Declare(&Variable{Sym: sym, Value: num(5), Const: true})

	forked := frame.Fork()
	v, ok := forked.ResolveLocal(sym)
	if !ok {
		t.Fatalf("forked frame lost binding")
	}
	if !v.Const {
		t.Errorf("fork dropped the const flag")
	}
}

func TestTypeAliasChain(t *testing.T) {
	outer := NewEnvironment()
	inner := NewEnclosedEnvironment(outer, nil)

	outer.DefineTypeAlias("count", Intern(TagNum))
	if got, ok := inner.ResolveTypeAlias("count"); !ok || got != Intern(TagNum) {
		t.Errorf("alias should resolve along the lexical chain")
	}
	if _, ok := inner.ResolveTypeAlias("missing"); ok {
		t.Errorf("unknown alias resolved")
	}

	// Aliases are independent of variable bindings.
	if inner.IsBound(Intern("count-unbound-check")) {
		t.Errorf("stray binding")
	}
}

func TestDynamicChainDistinctFromLexical(t *testing.T) {
	global := NewEnvironment()
	callerFrame := NewEnclosedEnvironment(global, nil)
	calleeFrame := NewEnclosedEnvironment(global, nil) // lexical parent is global
	calleeFrame.Caller = callerFrame

	dyn := Intern("dyn-only")
	callerFrame.SetLocal(dyn, num(7))

	// Not visible lexically...
	if _, ok := calleeFrame.Get(dyn); ok {
		t.Fatalf("caller binding leaked into lexical scope")
	}
	// ...but visible along the caller chain.
	v, ok := calleeFrame.GetDynamic(dyn)
	if !ok {
		t.Fatalf("dynamic lookup failed")
	}
	if !Equal(v.Value, num(7)) {
		t.Errorf("dynamic lookup got %s, want 7", v.Value.Inspect())
	}
}

func TestCallerChainTrace(t *testing.T) {
	a := NewEnvironment()
	a.StackInfo = &StackFrame{Function: "main", File: "main.braid", Line: 1}
	b := NewEnclosedEnvironment(a, &StackFrame{Function: "f", File: "main.braid", Line: 4})
	b.Caller = a
	c := NewEnclosedEnvironment(a, &StackFrame{Function: "g", File: "main.braid", Line: 9})
	c.Caller = b

	frames := c.CallerChain()
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	if frames[0].Function != "g" || frames[2].Function != "main" {
		t.Errorf("trace order wrong: %v", frames)
	}
}

func TestOrderedMapPreservesInsertion(t *testing.T) {
	m := NewMap()
	keys := []string{"one", "two", "three", "four"}
	for i, k := range keys {
		m.Set(&String{Value: k}, num(int64(i)))
	}
	m.Set(&String{Value: "two"}, num(99)) // overwrite keeps position

	pairs := m.Pairs()
	for i, k := range keys {
		if pairs[i].Key.(*String).Value != k {
			t.Fatalf("position %d is %s, want %s", i, pairs[i].Key.Inspect(), k)
		}
	}
	if v, _ := m.Get(&String{Value: "two"}); !Equal(v, num(99)) {
		t.Errorf("overwrite lost value")
	}

	m.Delete(&String{Value: "one"})
	if m.Len() != 3 {
		t.Fatalf("delete failed")
	}
	if m.Pairs()[0].Key.(*String).Value != "two" {
		t.Errorf("order broken after delete")
	}
}
