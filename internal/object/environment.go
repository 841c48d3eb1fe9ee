package object

import (
	"sync"
	"sync/atomic"
)

var nextEnvID atomic.Uint64

// Variable is one binding slot. Const forbids rebinding, Sink silently
// absorbs writes, Getter/Setter transform reads/writes (computed or tied
// variables) and TypeConstraint restricts assignable values. Hooks and
// constraints are applied by the evaluator, which owns callable dispatch.
type Variable struct {
	Sym            *Symbol
	Value          Object
	Const          bool
	Sink           bool
	TypeConstraint Object
	Getter         Object
	Setter         Object
}

// Clone copies the slot so a forked frame is immune to later writes.
func (v *Variable) Clone() *Variable {
	clone := *v
	return &clone
}

// Environment is one frame of the chained scope structure. Outer is the
// lexical parent chain that determines closure visibility; Caller is the
// dynamic activation chain used only for stack traces and dynamic-scope
// lookups. The two chains are never interchangeable.
type Environment struct {
	ID        uint64
	Outer     *Environment
	Caller    *Environment
	StackInfo *StackFrame

	vars        map[*Symbol]*Variable
	typeAliases map[string]Object

	mu sync.RWMutex
}

func NewEnvironment() *Environment {
	return &Environment{
		ID:   nextEnvID.Add(1),
		vars: make(map[*Symbol]*Variable),
	}
}

// NewEnclosedEnvironment creates a lexical child frame. The caller link is
// wired separately at invocation time.
func NewEnclosedEnvironment(outer *Environment, stackFrame *StackFrame) *Environment {
	env := NewEnvironment()
	env.Outer = outer
	env.StackInfo = stackFrame
	return env
}

// Resolve walks the lexical parent chain; first match wins.
func (e *Environment) Resolve(sym *Symbol) (*Variable, bool) {
	for cur := e; cur != nil; cur = cur.Outer {
		cur.mu.RLock()
		v, ok := cur.vars[sym]
		cur.mu.RUnlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}

// ResolveLocal checks this frame only.
func (e *Environment) ResolveLocal(sym *Symbol) (*Variable, bool) {
	e.mu.RLock()
	v, ok := e.vars[sym]
	e.mu.RUnlock()
	return v, ok
}

// Get returns the raw bound value along the lexical chain. Getter hooks
// are applied by the evaluator on top of this.
func (e *Environment) Get(sym *Symbol) (Object, bool) {
	v, ok := e.Resolve(sym)
	if !ok {
		return nil, false
	}
	return v.Value, true
}

func (e *Environment) IsBound(sym *Symbol) bool {
	_, ok := e.Resolve(sym)
	return ok
}

// Declare installs a variable in this frame, replacing any local binding.
func (e *Environment) Declare(v *Variable) *Variable {
	e.mu.Lock()
	e.vars[v.Sym] = v
	e.mu.Unlock()
	return v
}

// Alias binds sym to an existing slot, usually one owned by another
// frame. Writes through either name hit the same Variable.
func (e *Environment) Alias(sym *Symbol, v *Variable) {
	e.mu.Lock()
	e.vars[sym] = v
	e.mu.Unlock()
}

// SetLocal binds sym in this frame, creating the slot if absent. Writing
// an existing const slot is an error; a sink slot absorbs the write.
func (e *Environment) SetLocal(sym *Symbol, value Object) (*Variable, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v, ok := e.vars[sym]; ok {
		if v.Const {
			return v, false
		}
		if !v.Sink {
			v.Value = value
		}
		return v, true
	}
	v := &Variable{Sym: sym, Value: value}
	e.vars[sym] = v
	return v, true
}

// DefineTarget returns the frame `set` creates missing bindings in: the
// parent of the invoking frame. Root frames create locally. This is a
// deliberate, surprising contract carried over from the language's
// original behavior; do not "fix" it.
func (e *Environment) DefineTarget() *Environment {
	if e.Outer != nil {
		return e.Outer
	}
	return e
}

// Fork deep-clones every variable of this frame into a new frame chained
// to the same parent. Ancestors are shared; the copied slots give spawned
// tasks a snapshot immune to later mutation of the spawning frame.
func (e *Environment) Fork() *Environment {
	e.mu.RLock()
	defer e.mu.RUnlock()

	forked := &Environment{
		ID:        nextEnvID.Add(1),
		Outer:     e.Outer,
		Caller:    e.Caller,
		StackInfo: e.StackInfo,
		vars:      make(map[*Symbol]*Variable, len(e.vars)),
	}
	for sym, v := range e.vars {
		forked.vars[sym] = v.Clone()
	}
	if e.typeAliases != nil {
		forked.typeAliases = make(map[string]Object, len(e.typeAliases))
		for name, t := range e.typeAliases {
			forked.typeAliases[name] = t
		}
	}
	return forked
}

// Locals snapshots the variables bound directly in this frame.
func (e *Environment) Locals() []*Variable {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Variable, 0, len(e.vars))
	for _, v := range e.vars {
		out = append(out, v)
	}
	return out
}

// Root follows the lexical chain to the outermost frame (globals).
func (e *Environment) Root() *Environment {
	cur := e
	for cur.Outer != nil {
		cur = cur.Outer
	}
	return cur
}

// DefineTypeAlias records a per-frame alias from name to a type value
// (a built-in tag symbol or a TypeHandle).
func (e *Environment) DefineTypeAlias(name string, t Object) {
	e.mu.Lock()
	if e.typeAliases == nil {
		e.typeAliases = make(map[string]Object)
	}
	e.typeAliases[name] = t
	e.mu.Unlock()
}

// ResolveTypeAlias walks the lexical chain; independent of the variable
// bindings.
func (e *Environment) ResolveTypeAlias(name string) (Object, bool) {
	for cur := e; cur != nil; cur = cur.Outer {
		cur.mu.RLock()
		t, ok := cur.typeAliases[name]
		cur.mu.RUnlock()
		if ok {
			return t, true
		}
	}
	return nil, false
}

// GetDynamic resolves sym along the dynamic caller chain, checking each
// activation frame's own bindings only. Used by get-dynamic and upvar.
func (e *Environment) GetDynamic(sym *Symbol) (*Variable, bool) {
	for cur := e; cur != nil; cur = cur.Caller {
		if v, ok := cur.ResolveLocal(sym); ok {
			return v, true
		}
	}
	return nil, false
}

// CallerChain reconstructs the activation trace for diagnostics.
func (e *Environment) CallerChain() []*StackFrame {
	var frames []*StackFrame
	for cur := e; cur != nil; cur = cur.Caller {
		if cur.StackInfo != nil {
			frames = append(frames, cur.StackInfo)
		}
	}
	return frames
}
