package evaluator

import (
	"testing"
)

func TestPatternDispatchOrder(t *testing.T) {
	src := `
(defn classify
  | 0 -> :zero
  | n -> :nonzero)
`
	wantInspect(t, evalSrc(t, src+"(classify 0)"), ":zero")
	wantInspect(t, evalSrc(t, src+"(classify 5)"), ":nonzero")
}

func TestPatternArityFailsFast(t *testing.T) {
	src := `
(defn classify
  | 0 -> :zero
  | n -> :nonzero)
(classify 1 2)`
	wantError(t, evalSrc(t, src), "wrong number of arguments")
}

func TestPatternMatcherKinds(t *testing.T) {
	src := `
(defn describe
  | 0 -> :zero
  | :ping -> :pong
  | (@str s) -> s
  | [a b] -> (+ a b)
  | {:name n} -> n
  | _ -> :other)
`
	tests := []struct {
		call string
		want string
	}{
		{"(describe 0)", ":zero"},
		{"(describe :ping)", ":pong"},
		{`(describe "hi")`, "hi"},
		{"(describe [3 4])", "7"},
		{"(describe {:name :bob :age 9})", ":bob"},
		{"(describe 9)", ":other"},
		{"(describe {:age 9})", ":other"},
	}
	for _, tt := range tests {
		wantInspect(t, evalSrc(t, src+tt.call), tt.want)
	}
}

func TestPatternNestedDestructuring(t *testing.T) {
	src := `
(defn depth
  | [[a b] c] -> (+ a b c)
  | _ -> :flat)
`
	wantInspect(t, evalSrc(t, src+"(depth [[1 2] 3])"), "6")
	wantInspect(t, evalSrc(t, src+"(depth [1 2])"), ":flat")
}

func TestPatternSplat(t *testing.T) {
	wantInspect(t, evalSrc(t, "(defn f | x &rest -> [x rest]) (f 1 2 3)"), "[1 (2 3)]")
	wantInspect(t, evalSrc(t, "(defn f | x &rest -> [x rest]) (f 1)"), "[1 nil]")
	// splat inside a sequence pattern keeps the value's own shape
	wantInspect(t, evalSrc(t, "(defn g | [h &tl] -> tl) (g [1 2 3])"), "[2 3]")
	wantInspect(t, evalSrc(t, "(defn g | [h &tl] -> tl) (g '(1 2 3))"), "(2 3)")
}

func TestPatternCompoundSymbol(t *testing.T) {
	wantInspect(t, evalSrc(t, "(defn split1 | h:t -> [h t]) (split1 '(1 2 3))"), "[1 (2 3)]")
	// trailing colon opts out of gathering the rest
	wantInspect(t, evalSrc(t, "(defn two | a:b: -> [a b]) (two '(1 2 3))"), "[1 2]")
}

func TestPatternBindingsCommitAtomically(t *testing.T) {
	// the first clause binds a before failing on the literal; the binding
	// must not leak into the second clause's view
	src := `
(defn g
  | [a 0] -> a
  | [a b] -> b)
(g [5 7])`
	wantInspect(t, evalSrc(t, src), "7")
}

func TestPatternNoMatchIsError(t *testing.T) {
	wantError(t, evalSrc(t, "(defn only-zero | 0 -> :zero) (only-zero 1)"), "no clause")
}

func TestPatternCurrying(t *testing.T) {
	wantInspect(t, evalSrc(t, "(defn padd | a b -> (+ a b)) ((padd 1) 2)"), "3")
}

func TestPatternRecurTo(t *testing.T) {
	src := `
(defn fact
  | 0 acc -> acc
  | n acc -> (recur-to fact (-- n) (* n acc)))
(fact 5 1)`
	wantInspect(t, evalSrc(t, src), "120")
}

func TestPatternTypedBindings(t *testing.T) {
	src := `
(defn kind
  | (@num n) -> :number
  | (@str s) -> :string
  | (@list l) -> :list)
`
	wantInspect(t, evalSrc(t, src+"(kind 4)"), ":number")
	wantInspect(t, evalSrc(t, src+`(kind "x")`), ":string")
	wantInspect(t, evalSrc(t, src+"(kind '(1))"), ":list")
}

func TestPatternAgainstFactoryTypes(t *testing.T) {
	src := `
(deftype Point [])
(defn origin?
  | {:x 0 :y 0} -> true
  | _ -> false)
(origin? (Point {:x 0 :y 0}))`
	wantInspect(t, evalSrc(t, src), "true")
}

func TestMatchp(t *testing.T) {
	wantInspect(t, evalSrc(t, "(matchp 0 | 0 -> :zero | n -> :nonzero)"), ":zero")
	wantInspect(t, evalSrc(t, "(matchp 7 | 0 -> :zero | n -> :nonzero)"), ":nonzero")
	// a vector input is a tuple for multi-position clauses
	wantInspect(t, evalSrc(t, "(matchp [1 2] | a b -> (+ a b))"), "3")
	// but still matches single-position clauses as itself
	wantInspect(t, evalSrc(t, "(matchp [1 2] | v -> (len v))"), "2")
	wantError(t, evalSrc(t, "(matchp 3 | 0 -> :zero)"), "no clause matches")
}
