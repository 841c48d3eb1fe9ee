package object

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"strings"

	"braid/internal/number"
)

const (
	NIL_OBJ     = "NIL"
	BOOLEAN_OBJ = "BOOLEAN"
	NUMBER_OBJ  = "NUMBER"
	STRING_OBJ  = "STRING"
	SYMBOL_OBJ  = "SYMBOL"

	PAIR_OBJ   = "LIST"
	VECTOR_OBJ = "VECTOR"
	MAP_OBJ    = "MAP"

	FUNCTION_OBJ         = "FUNCTION"
	PATTERN_FUNCTION_OBJ = "PATTERN_FUNCTION"
	MACRO_OBJ            = "MACRO"
	SPECIAL_FORM_OBJ     = "SPECIAL_FORM"
	FOREIGN_OBJ          = "FOREIGN"
	PARTIAL_OBJ          = "PARTIAL"
	LAZY_SEQ_OBJ         = "LAZY_SEQ"

	TASK_HANDLE_OBJ   = "TASK"
	TYPE_HANDLE_OBJ   = "TYPE"
	TYPE_INSTANCE_OBJ = "INSTANCE"

	ERROR_OBJ     = "ERROR"
	EXCEPTION_OBJ = "EXCEPTION"
	EXIT_OBJ      = "EXIT"

	BREAK_OBJ    = "BREAK"
	CONTINUE_OBJ = "CONTINUE"
	RETURN_OBJ   = "RETURN"
	RECUR_OBJ    = "RECUR"
)

// Built-in type tags usable as constraints and pattern guards.
const (
	TagAny    = "@any"
	TagNum    = "@num"
	TagStr    = "@str"
	TagBool   = "@bool"
	TagList   = "@list"
	TagVec    = "@vec"
	TagMap    = "@map"
	TagSym    = "@sym"
	TagFun    = "@fun"
	TagTask   = "@task"
	TagNil    = "@nil"
)

type ObjectType string

type Object interface {
	Type() ObjectType
	Inspect() string
}

type Hashable interface {
	Object
	MapKey() MapKey
}

// EvaluatorContext is the bridge handed to special forms and foreign
// functions so host code can call back into the running interpreter.
type EvaluatorContext interface {
	Eval(node Object) Object
	EvalIn(node Object, env *Environment) Object
	CurrentEnv() *Environment
	Apply(fnName string, fn Object, args []Object) Object
	ApplyCallback(fnName string, fn Object, args []Object) Object
	NewError(format string, a ...interface{}) *RuntimeError
	Cancelled() bool
	NextHandleID() int64
}

var (
	NIL   = &Nil{}
	TRUE  = &Boolean{Value: true}
	FALSE = &Boolean{Value: false}
)

type Nil struct{}

func (n *Nil) Type() ObjectType { return NIL_OBJ }
func (n *Nil) Inspect() string  { return "nil" }
func (n *Nil) MapKey() MapKey   { return MapKey{Type: n.Type(), Value: 0} }

type Boolean struct {
	Value bool
}

func (b *Boolean) Type() ObjectType { return BOOLEAN_OBJ }
func (b *Boolean) Inspect() string  { return fmt.Sprintf("%t", b.Value) }
func (b *Boolean) MapKey() MapKey {
	var v uint64
	if b.Value {
		v = 1
	}
	return MapKey{Type: b.Type(), Value: v}
}

type Number struct {
	Value number.Value
}

func (n *Number) Type() ObjectType { return NUMBER_OBJ }
func (n *Number) Inspect() string  { return n.Value.String() }
func (n *Number) MapKey() MapKey {
	return MapKey{Type: n.Type(), Value: n.Value.Hash64()}
}

type String struct {
	Value string
}

func (s *String) Type() ObjectType { return STRING_OBJ }
func (s *String) Inspect() string  { return s.Value }
func (s *String) MapKey() MapKey {
	h := fnv.New64a()
	h.Write([]byte(s.Value))
	return MapKey{Type: s.Type(), Value: h.Sum64()}
}

// Pair is a cons cell. A list is a chain of Pairs ending in a nil Tail;
// the empty list is represented by the NIL object in value position.
// IsLambda marks a list read as a lambda literal, IsQuoted a quoted form;
// shared (read-only) between macro expansions.
type Pair struct {
	Head Object
	Tail *Pair

	IsLambda bool
	IsQuoted bool
	Line     int
}

func (p *Pair) Type() ObjectType { return PAIR_OBJ }
func (p *Pair) Inspect() string {
	var out bytes.Buffer
	out.WriteString("(")
	for cur := p; cur != nil; cur = cur.Tail {
		if cur != p {
			out.WriteString(" ")
		}
		out.WriteString(Inspect(cur.Head))
	}
	out.WriteString(")")
	return out.String()
}

// Len walks the chain; nil receiver is the empty list.
func (p *Pair) Len() int {
	n := 0
	for cur := p; cur != nil; cur = cur.Tail {
		n++
	}
	return n
}

func (p *Pair) Slice() []Object {
	out := make([]Object, 0, p.Len())
	for cur := p; cur != nil; cur = cur.Tail {
		out = append(out, cur.Head)
	}
	return out
}

// ListFromSlice builds a Pair chain; an empty slice yields a nil *Pair.
func ListFromSlice(items []Object) *Pair {
	var head, tail *Pair
	for _, item := range items {
		cell := &Pair{Head: item}
		if head == nil {
			head = cell
		} else {
			tail.Tail = cell
		}
		tail = cell
	}
	return head
}

type Vector struct {
	Elements []Object
}

func (v *Vector) Type() ObjectType { return VECTOR_OBJ }
func (v *Vector) Inspect() string {
	parts := make([]string, len(v.Elements))
	for i, e := range v.Elements {
		parts[i] = Inspect(e)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

type MapKey struct {
	Type  ObjectType
	Value uint64
}

type MapPair struct {
	Key   Object
	Value Object
}

// Map is an ordered dictionary: the index gives O(1) lookup and keys
// preserves insertion order for iteration and printing.
type Map struct {
	index map[MapKey]int
	pairs []MapPair
}

func NewMap() *Map {
	return &Map{index: map[MapKey]int{}}
}

func (m *Map) Type() ObjectType { return MAP_OBJ }
func (m *Map) Inspect() string {
	parts := make([]string, len(m.pairs))
	for i, p := range m.pairs {
		parts[i] = fmt.Sprintf("%s %s", Inspect(p.Key), Inspect(p.Value))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func (m *Map) Len() int { return len(m.pairs) }

func (m *Map) Pairs() []MapPair { return m.pairs }

func (m *Map) Get(key Hashable) (Object, bool) {
	if i, ok := m.index[key.MapKey()]; ok {
		return m.pairs[i].Value, true
	}
	return nil, false
}

// Set inserts or overwrites; insertion order is kept on overwrite.
func (m *Map) Set(key Hashable, value Object) {
	mk := key.MapKey()
	if i, ok := m.index[mk]; ok {
		m.pairs[i].Value = value
		return
	}
	m.index[mk] = len(m.pairs)
	m.pairs = append(m.pairs, MapPair{Key: key, Value: value})
}

func (m *Map) Delete(key Hashable) bool {
	mk := key.MapKey()
	i, ok := m.index[mk]
	if !ok {
		return false
	}
	m.pairs = append(m.pairs[:i], m.pairs[i+1:]...)
	delete(m.index, mk)
	for j := i; j < len(m.pairs); j++ {
		m.index[m.pairs[j].Key.(Hashable).MapKey()] = j
	}
	return true
}

// Function is a closure: body forms plus the defining environment.
type Function struct {
	Name      string
	Params    []*Symbol
	RestParam *Symbol
	Body      []Object
	Env       *Environment
}

func (f *Function) Type() ObjectType { return FUNCTION_OBJ }
func (f *Function) Inspect() string {
	names := make([]string, len(f.Params))
	for i, p := range f.Params {
		names[i] = p.Name
	}
	if f.RestParam != nil {
		names = append(names, "&"+f.RestParam.Name)
	}
	return fmt.Sprintf("fn %s [%s]", f.Name, strings.Join(names, " "))
}

// PatternClause is one compiled clause of a pattern function: the raw
// pattern forms, arity contribution and body forms.
type PatternClause struct {
	Patterns []Object
	Splat    *Symbol // trailing &rest binding; nil if the clause is closed
	Body     []Object
}

// Arity returns the number of positional matchers (excluding the splat).
func (c *PatternClause) Arity() int { return len(c.Patterns) }

// PatternFunction dispatches over ordered clauses. MinArity/MaxArity are
// computed over all clauses at definition time; MaxArity is -1 when any
// clause carries a splat.
type PatternFunction struct {
	Name     string
	Clauses  []*PatternClause
	MinArity int
	MaxArity int
	Env      *Environment
}

func (pf *PatternFunction) Type() ObjectType { return PATTERN_FUNCTION_OBJ }
func (pf *PatternFunction) Inspect() string {
	return fmt.Sprintf("pattern-fn %s/%d-clause", pf.Name, len(pf.Clauses))
}

// Macro receives unevaluated forms and is scope-transparent: its result is
// evaluated again in the caller's environment.
type Macro struct {
	Name      string
	Params    []*Symbol
	RestParam *Symbol
	Body      []Object
	Env       *Environment
}

func (m *Macro) Type() ObjectType { return MACRO_OBJ }
func (m *Macro) Inspect() string  { return fmt.Sprintf("macro %s", m.Name) }

// SpecialForm receives its argument forms unevaluated and controls its own
// evaluation order.
type SpecialForm struct {
	Name string
	Fn   func(ctx EvaluatorContext, args []Object) Object
}

func (sf *SpecialForm) Type() ObjectType { return SPECIAL_FORM_OBJ }
func (sf *SpecialForm) Inspect() string  { return fmt.Sprintf("special-form %s", sf.Name) }

// Foreign is a host builtin invoked with evaluated arguments.
type Foreign struct {
	Name string
	Fn   func(ctx EvaluatorContext, args ...Object) Object

	// MinArity, when above one, makes a single-argument call curry into
	// a Partial instead of failing the builtin's arity check.
	MinArity int
}

func (f *Foreign) Type() ObjectType { return FOREIGN_OBJ }
func (f *Foreign) Inspect() string  { return fmt.Sprintf("builtin %s", f.Name) }

// Partial is a curried application: a callable plus the arguments bound so
// far. Produced when a multi-argument callable is invoked with one argument.
type Partial struct {
	Fn      Object
	Applied []Object
}

func (p *Partial) Type() ObjectType { return PARTIAL_OBJ }
func (p *Partial) Inspect() string {
	return fmt.Sprintf("partial(%s/%d)", Inspect(p.Fn), len(p.Applied))
}

// LazySeq is a single-pass iterator. Next returns the next element or
// ok=false at exhaustion; a RuntimeError element aborts consumption.
// Lazy sequences over stateful sources are not restartable.
type LazySeq struct {
	NextFn func() (Object, bool)
	spent  bool
}

func (l *LazySeq) Type() ObjectType { return LAZY_SEQ_OBJ }
func (l *LazySeq) Inspect() string  { return "lazy-seq" }

func (l *LazySeq) Next() (Object, bool) {
	if l.spent {
		return nil, false
	}
	v, ok := l.NextFn()
	if !ok {
		l.spent = true
	}
	return v, ok
}

// StackFrame is one entry of the dynamic (caller) chain, used for
// diagnostics only.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

func (sf *StackFrame) String() string {
	fn := sf.Function
	if fn == "" {
		fn = "<anonymous>"
	}
	return fmt.Sprintf("  at %s (%s:%d)", fn, sf.File, sf.Line)
}

// RuntimeError reports a contract violation: wrong arity, bad types,
// unbound symbol, const rebind. It is a value, not a panic.
type RuntimeError struct {
	Message    string
	Pos        *StackFrame
	Wrapped    error
	StackTrace []*StackFrame
}

func (re *RuntimeError) Type() ObjectType { return ERROR_OBJ }
func (re *RuntimeError) Inspect() string  { return "error: " + re.Message }
func (re *RuntimeError) Error() string    { return re.Message }
func (re *RuntimeError) Unwrap() error    { return re.Wrapped }

// Render reconstructs the user-facing message plus file:line call chain.
func (re *RuntimeError) Render() string {
	var out bytes.Buffer
	out.WriteString("error: ")
	out.WriteString(re.Message)
	if re.Pos != nil {
		fmt.Fprintf(&out, " (%s:%d)", re.Pos.File, re.Pos.Line)
	}
	for _, frame := range re.StackTrace {
		out.WriteString("\n")
		out.WriteString(frame.String())
	}
	return out.String()
}

// UserException carries a value raised by `throw`; catchable by `try`.
type UserException struct {
	Payload    Object
	StackTrace []*StackFrame
}

func (ue *UserException) Type() ObjectType { return EXCEPTION_OBJ }
func (ue *UserException) Inspect() string  { return "exception: " + Inspect(ue.Payload) }

// ExitSignal unwinds unconditionally on `quit`. Never intercepted by try.
type ExitSignal struct {
	Code int
}

func (es *ExitSignal) Type() ObjectType { return EXIT_OBJ }
func (es *ExitSignal) Inspect() string  { return fmt.Sprintf("exit(%d)", es.Code) }

// Flow-control sentinels. Ordinary values, never errors: every construct
// that walks a body either consumes them or forwards them unchanged.

type BreakValue struct {
	Value Object // nil when `break` carried no value
}

func (b *BreakValue) Type() ObjectType { return BREAK_OBJ }
func (b *BreakValue) Inspect() string  { return "break" }

type ContinueValue struct{}

func (c *ContinueValue) Type() ObjectType { return CONTINUE_OBJ }
func (c *ContinueValue) Inspect() string  { return "continue" }

type ReturnValue struct {
	Value Object
}

func (r *ReturnValue) Type() ObjectType { return RETURN_OBJ }
func (r *ReturnValue) Inspect() string  { return "return" }

// RecurValue restarts the nearest `loop` with fresh bindings. When
// Target is set by `recur-to`, it propagates until the named callable's
// invocation site re-enters it.
type RecurValue struct {
	Target Object
	Args   []Object
}

func (r *RecurValue) Type() ObjectType { return RECUR_OBJ }
func (r *RecurValue) Inspect() string  { return "recur" }

// TypeHandle is an opaque handle produced by the type factory; usable as a
// constraint and for construction. Members map method names to closures.
type TypeHandle struct {
	Name       string
	Kind       string // "type", "interface" or "enum"
	Base       *TypeHandle
	Interfaces []*TypeHandle
	Members    map[*Symbol]Object
	Variants   []*Symbol // enum members
}

func (th *TypeHandle) Type() ObjectType { return TYPE_HANDLE_OBJ }
func (th *TypeHandle) Inspect() string  { return fmt.Sprintf("#<%s %s>", th.Kind, th.Name) }

// Extends reports whether th is other or derives from it, directly through
// the base chain or via a declared interface.
func (th *TypeHandle) Extends(other *TypeHandle) bool {
	for cur := th; cur != nil; cur = cur.Base {
		if cur == other {
			return true
		}
		for _, iface := range cur.Interfaces {
			if iface.Extends(other) {
				return true
			}
		}
	}
	return false
}

// TypeInstance is a value constructed from a TypeHandle.
type TypeInstance struct {
	Handle *TypeHandle
	Fields *Map
}

func (ti *TypeInstance) Type() ObjectType { return TYPE_INSTANCE_OBJ }
func (ti *TypeInstance) Inspect() string {
	return fmt.Sprintf("#<%s %s>", ti.Handle.Name, ti.Fields.Inspect())
}

// Inspect renders any value, tolerating nil for internal diagnostics.
func Inspect(o Object) string {
	if o == nil {
		return "<nil>"
	}
	if s, ok := o.(*String); ok {
		return fmt.Sprintf("%q", s.Value)
	}
	return o.Inspect()
}
