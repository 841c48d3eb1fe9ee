package evaluator

import (
	"context"
	"strings"
	"testing"

	"braid/internal/object"
	"braid/internal/parser"
)

func evalSrc(t *testing.T, src string) object.Object {
	t.Helper()
	forms, err := parser.ParseString(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	e := New(NewRuntime(context.Background()), NewGlobalEnv())
	return e.EvalProgram(forms)
}

func wantInspect(t *testing.T, got object.Object, want string) {
	t.Helper()
	if got == nil {
		t.Fatalf("got Go nil, want %s", want)
	}
	if got.Inspect() != want {
		t.Fatalf("got %s (%s), want %s", got.Inspect(), got.Type(), want)
	}
}

func wantError(t *testing.T, got object.Object, substr string) {
	t.Helper()
	err, ok := got.(*object.RuntimeError)
	if !ok {
		t.Fatalf("got %s (%s), want error containing %q", object.Inspect(got), got.Type(), substr)
	}
	if !strings.Contains(err.Message, substr) {
		t.Fatalf("error %q does not contain %q", err.Message, substr)
	}
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"(+ 1 2 3)", "6"},
		{"(- 10 4)", "6"},
		{"(- 5)", "-5"},
		{"(* 2 3 4)", "24"},
		{"(/ 8 2)", "4"},
		{"(/ 7 2)", "3.5"},
		{"(% 7 3)", "1"},
		{"(++ 41)", "42"},
		{"(-- 1)", "0"},
		{"(+ 1.5 2.5)", "4"},
		// int64 overflow promotes instead of wrapping
		{"(* 9223372036854775807 2)", "18446744073709551614"},
		{"(+ 9223372036854775807 1)", "9223372036854775808"},
	}
	for _, tt := range tests {
		wantInspect(t, evalSrc(t, tt.src), tt.want)
	}
}

func TestComparisonsAndLogic(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"(< 1 2)", "true"},
		{"(>= 2 2)", "true"},
		{"(== 1 1.0)", "true"},
		{"(== [1 2] [1 2])", "true"},
		{"(!= '(1) '(2))", "true"},
		{`(< "apple" "banana")`, "true"},
		// symbols intern case-insensitively, so these are one symbol
		{"(== :a :A)", "true"},
		{"(not nil)", "true"},
		{"(not 0)", "true"},
		{"(and 1 2 3)", "3"},
		{"(and 1 false 3)", "false"},
		{"(or nil false 7)", "7"},
		{"(or nil false)", "false"},
	}
	for _, tt := range tests {
		wantInspect(t, evalSrc(t, tt.src), tt.want)
	}
}

func TestIfAndCond(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"(if true 1 2)", "1"},
		{"(if 0 1 2)", "2"},
		{"(if nil 1)", "nil"},
		{"(if-not nil :yes :no)", ":yes"},
		{"(cond false 1 true 2 3)", "2"},
		{"(cond false 1 false 2 :default)", ":default"},
		{"(cond false 1)", "nil"},
	}
	for _, tt := range tests {
		wantInspect(t, evalSrc(t, tt.src), tt.want)
	}
}

func TestBindingForms(t *testing.T) {
	wantInspect(t, evalSrc(t, "(let x 5 y 7) (+ x y)"), "12")
	wantInspect(t, evalSrc(t, "(let a:b '(1 2 3)) [a b]"), "[1 (2 3)]")
	wantInspect(t, evalSrc(t, "(const k 9) k"), "9")
	wantError(t, evalSrc(t, "(const k 9) (set k 10)"), "cannot rebind const")
	wantError(t, evalSrc(t, "(const k 9) (const k 10)"), "cannot rebind const")
	wantInspect(t, evalSrc(t, "(defn f [] (global g 3)) (f) g"), "3")

	// sink absorbs writes silently
	wantInspect(t, evalSrc(t, "(sink hole) (set hole 99) hole"), "nil")
}

func TestSetWalksAndCreatesInParent(t *testing.T) {
	// set on a bound name assigns through the lexical chain
	wantInspect(t, evalSrc(t, "(let x 1) (defn f [] (set x 9)) (f) x"), "9")

	// set on an unbound name creates the binding in the parent of the
	// invoking frame: here the function's defining scope.
	wantInspect(t, evalSrc(t, "(defn f [] (set fresh 42)) (f) fresh"), "42")
}

func TestTiedVariable(t *testing.T) {
	src := `
(tie doubled \(v -> (* v 2)) \(v -> v))
(set doubled 21)
doubled`
	wantInspect(t, evalSrc(t, src), "42")
}

func TestWhileAndBreak(t *testing.T) {
	wantInspect(t, evalSrc(t, "(let i 0) (while (< i 5) (set i (++ i))) i"), "5")
	wantInspect(t, evalSrc(t, "(let i 0) (while-all (< i 3) (set i (++ i)) i)"), "[1 2 3]")
	wantInspect(t, evalSrc(t, "(let i 0) (while true (set i (++ i)) (if (== i 4) (break i)))"), "4")
	wantInspect(t, evalSrc(t,
		"(let i 0 n 0) (while (< i 6) (set i (++ i)) (if (== (% i 2) 0) (continue)) (set n (++ n))) n"), "3")
}

func TestLoopTrampoline(t *testing.T) {
	// a million recur iterations must not grow the native stack
	src := `
(loop [i 0 acc 0]
  (if (== i 1000000)
      (break acc)
      (recur (++ i) (+ acc 1))))`
	wantInspect(t, evalSrc(t, src), "1000000")
}

func TestNestedLoopsAreIndependent(t *testing.T) {
	src := `
(loop [i 0 total 0]
  (if (== i 3)
      (break total)
      (do
        (let inner (loop [j 0] (if (== j 2) (break j) (recur (++ j)))))
        (recur (++ i) (+ total inner)))))`
	// inner loop always yields 2; outer runs 3 times
	wantInspect(t, evalSrc(t, src), "6")
}

func TestLoopRecurArityMismatch(t *testing.T) {
	wantError(t, evalSrc(t, "(loop [i 0] (recur 1 2))"), "recur wants 1 values")
}

func TestRepeat(t *testing.T) {
	wantInspect(t, evalSrc(t, "(let n 0) (repeat 4 (set n (++ n))) n"), "4")
	wantInspect(t, evalSrc(t, "(let n 0) (repeat-all 3 (set n (++ n)) (* n 10))"), "[10 20 30]")
	wantInspect(t, evalSrc(t, "(repeat 5 (break :early))"), ":early")
}

func TestForeachAndForall(t *testing.T) {
	wantInspect(t, evalSrc(t, "(let sum 0) (foreach x [1 2 3] (set sum (+ sum x))) sum"), "6")
	// foreach itself evaluates to nil
	wantInspect(t, evalSrc(t, "(foreach x [1 2] x)"), "nil")
	wantInspect(t, evalSrc(t, "(forall x [1 2 3 4] (if (== (% x 2) 0) x))"), "[2 4]")
	// the marker matches by symbol identity: whichever spelling interned
	// first, every casing of :flatten is the same symbol
	wantInspect(t, evalSrc(t, "(forall x [1 2] :FLATTEN [x x])"), "[1 1 2 2]")
	wantInspect(t, evalSrc(t, "(forall x [1 2] :flatten [x x])"), "[1 1 2 2]")
	// map iteration yields [key value] entries in insertion order
	wantInspect(t, evalSrc(t, "(forall kv {:a 1 :b 2} kv)"), "[[:a 1] [:b 2]]")
}

func TestFunctionsAndClosures(t *testing.T) {
	wantInspect(t, evalSrc(t, "(defn add [a b] (+ a b)) (add 2 3)"), "5")
	wantInspect(t, evalSrc(t, "(defn make-adder [n] \\(x -> (+ x n))) ((make-adder 10) 5)"), "15")
	wantInspect(t, evalSrc(t, "(defn rest-of [h &rest] rest) (rest-of 1 2 3)"), "(2 3)")
	wantError(t, evalSrc(t, "(defn add [a b] (+ a b)) (add 1 2 3)"), "wrong number of arguments")
}

func TestCurrying(t *testing.T) {
	wantInspect(t, evalSrc(t, "(defn add [a b] (+ a b)) ((add 1) 2)"), "3")
	wantInspect(t, evalSrc(t, "(defn add3 [a b c] (+ a b c)) (((add3 1) 2) 3)"), "6")
	// an intermediate partial is still undersupplied, so it curries again
	wantInspect(t, evalSrc(t, "(defn add3 [a b c] (+ a b c)) ((add3 1) 2)"), "partial(fn add3 [a b c]/2)")
	// a partial saturated by a multi-argument application calls through
	wantInspect(t, evalSrc(t, "(defn add3 [a b c] (+ a b c)) ((add3 1) 2 3)"), "6")
	// the held partial is reusable; each application starts from its own copy
	wantInspect(t, evalSrc(t,
		"(defn add3 [a b c] (+ a b c)) (let held (add3 1)) (+ ((held 2) 3) ((held 10) 20))"), "37")
}

func TestBuiltinCurrying(t *testing.T) {
	wantInspect(t, evalSrc(t, `(let double (map \(x -> (* x 2)))) (double [1 2 3])`), "[2 4 6]")
	wantInspect(t, evalSrc(t, "((< 5) 10)"), "true")
	wantInspect(t, evalSrc(t, "(filter (< 2) [1 2 3 4])"), "[3 4]")
	wantInspect(t, evalSrc(t, "(((put {:a 1}) :b) 2)"), "{:a 1 :b 2}")
	// variadic builtins keep their one-argument meaning
	wantInspect(t, evalSrc(t, "(+ 1)"), "1")
}

func TestReturnStopsAtFunctionBoundary(t *testing.T) {
	wantInspect(t, evalSrc(t, "(defn f [] (return 1) 2) (f)"), "1")
	// a return raised inside a map callback unwinds the enclosing function
	src := `
(defn find-negative [xs]
  (map \(x -> (if (< x 0) (return x))) xs)
  :none)
(find-negative [3 -7 5])`
	wantInspect(t, evalSrc(t, src), "-7")
	wantInspect(t, evalSrc(t, "(defn f [xs] (map \\(x -> x) xs) :done) (f [1])"), ":done")
}

func TestRecurToFunction(t *testing.T) {
	src := `
(defn count-up [n acc]
  (if (== n 0) acc (recur-to count-up (-- n) (++ acc))))
(count-up 100000 0)`
	wantInspect(t, evalSrc(t, src), "100000")
}

func TestTopLevelSentinelIsError(t *testing.T) {
	wantError(t, evalSrc(t, "(break)"), "outside")
	wantError(t, evalSrc(t, "(continue)"), "outside")
	wantError(t, evalSrc(t, "(recur 1)"), "outside")
}

func TestTryCatchFinally(t *testing.T) {
	wantInspect(t, evalSrc(t, "(try (throw :boom) (catch e e))"), ":boom")
	wantInspect(t, evalSrc(t, "(try (/ 1 0) (catch e :caught))"), ":caught")
	// clause markers match by symbol identity, so spelling case is irrelevant
	wantInspect(t, evalSrc(t, "(try (throw :boom) (CATCH e e) (FINALLY nil))"), ":boom")
	wantInspect(t, evalSrc(t, "(try 7)"), "7")

	// finally always runs, with and without a catch
	wantInspect(t, evalSrc(t,
		"(let seen nil) (try (throw :x) (catch e e) (finally (set seen :done))) seen"), ":done")
	result := evalSrc(t, "(let seen nil) (try (/ 1 0) (finally (set seen :done)))")
	wantError(t, result, "division by zero")

	// flow sentinels pass through try untouched
	wantInspect(t, evalSrc(t,
		"(let i 0) (while true (set i (++ i)) (try (if (== i 3) (break i)) (catch e :no)))"), "3")
}

func TestQuitUnwindsThroughTry(t *testing.T) {
	result := evalSrc(t, "(try (quit 3) (catch e :caught))")
	exit, ok := result.(*object.ExitSignal)
	if !ok {
		t.Fatalf("got %s (%s), want exit signal", object.Inspect(result), result.Type())
	}
	if exit.Code != 3 {
		t.Fatalf("exit code = %d, want 3", exit.Code)
	}
}

func TestMacros(t *testing.T) {
	wantInspect(t, evalSrc(t,
		"(defmacro unless [c b] (list 'if c nil b)) (unless false :yes)"), ":yes")
	wantInspect(t, evalSrc(t,
		"(defmacro unless [c b] (list 'if c nil b)) (unless true :yes)"), "nil")

	// scope transparency: the expansion is evaluated in the caller's frame
	src := `
(defmacro read-x [] 'x)
(defn f [] (let x 42) (read-x))
(f)`
	wantInspect(t, evalSrc(t, src), "42")
}

func TestMacroCannotBeValue(t *testing.T) {
	wantError(t, evalSrc(t, "(defmacro m [] 1) (map m [1])"), "cannot be applied as a value")
}

func TestDynamicScope(t *testing.T) {
	src := `
(defn inner [] (get-dynamic secret))
(defn outer [] (let secret 42) (inner))
(outer)`
	wantInspect(t, evalSrc(t, src), "42")

	// lexically the name is invisible
	wantError(t, evalSrc(t, "(defn inner [] secret) (defn outer [] (let secret 1) (inner)) (outer)"),
		"unbound symbol")

	// upvar aliases the same slot, so writes flow back to the owner
	upvarSrc := `
(defn bump [] (upvar counter n) (set n (++ n)))
(defn run [] (let counter 0) (bump) (bump) counter)
(run)`
	wantInspect(t, evalSrc(t, upvarSrc), "2")
}

func TestLazySequencesAreSinglePass(t *testing.T) {
	src := `
(let s (lazy-map \(x -> (* x 2)) [1 2 3]))
(let first (realize s))
(let second (realize s))
[first second]`
	wantInspect(t, evalSrc(t, src), "[[2 4 6] []]")

	wantInspect(t, evalSrc(t, "(realize (lazy-filter \\(x -> (> x 1)) [1 2 3]))"), "[2 3]")
	wantInspect(t, evalSrc(t, "(realize (lazy-flatmap \\(x -> [x x]) [1 2]))"), "[1 1 2 2]")
	wantInspect(t, evalSrc(t, "(realize (take 2 (lazy-map \\(x -> x) [1 2 3 4])))"), "[1 2]")
}

func TestTypeFactory(t *testing.T) {
	src := `
(deftype Point [] origin false)
(let p (Point {:x 1 :y 2}))
(get p :y)`
	wantInspect(t, evalSrc(t, src), "2")

	wantInspect(t, evalSrc(t, "(defenum Color :red :green) (let c (Color :red)) (get c :variant)"), ":red")
	wantError(t, evalSrc(t, "(defenum Color :red) (Color :blue)"), "no variant")
	wantError(t, evalSrc(t, "(definterface Shape []) (Shape)"), "cannot construct interface")
	wantError(t, evalSrc(t, "(deftype T []) (deftype T [])"), "already defined")
}

func TestTypeConstraints(t *testing.T) {
	wantInspect(t, evalSrc(t, "(declare n @num 1) (set n 2) n"), "2")
	wantError(t, evalSrc(t, `(declare n @num 1) (set n "no")`), "violates type constraint")
	wantInspect(t, evalSrc(t, "(type-alias id @num) (declare n id 7) n"), "7")
	// an aliased constraint is enforced on writes, same as a bare tag
	wantError(t, evalSrc(t, `(type-alias id @num) (declare n id 7) (set n "no")`), "violates type constraint")
}

func TestSelfEvaluatingAtoms(t *testing.T) {
	wantInspect(t, evalSrc(t, ":ready"), ":ready")
	wantInspect(t, evalSrc(t, "@num"), "@num")
	wantInspect(t, evalSrc(t, "'sym"), "sym")
	wantInspect(t, evalSrc(t, "'(1 2 3)"), "(1 2 3)")
	wantInspect(t, evalSrc(t, "()"), "nil")
}

func TestEvalAndReadString(t *testing.T) {
	wantInspect(t, evalSrc(t, `(eval (read-string "(+ 1 2)"))`), "3")
	wantInspect(t, evalSrc(t, "(let form '(+ 1 2)) (eval form)"), "3")
}

func TestCollectionBuiltins(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"(head '(1 2 3))", "1"},
		{"(tail '(1 2 3))", "(2 3)"},
		{"(tail '(1))", "nil"},
		{"(cons 0 '(1 2))", "(0 1 2)"},
		{"(nth [10 20 30] 1)", "20"},
		{"(nth '(10 20) 5)", "nil"},
		{"(len [1 2 3])", "3"},
		{`(len "abc")`, "3"},
		{"(append [1 2] 3 4)", "[1 2 3 4]"},
		{"(concat '(1) '(2 3))", "(1 2 3)"},
		{"(concat [1] '(2))", "[1 2]"},
		{"(reverse [1 2 3])", "[3 2 1]"},
		{"(range 4)", "[0 1 2 3]"},
		{"(range 1 4)", "[1 2 3]"},
		{"(range 6 0 -2)", "[6 4 2]"},
		{"(take 2 [1 2 3])", "[1 2]"},
		{"(drop 2 [1 2 3])", "[3]"},
		{"(flatten [1 [2 [3 4]]])", "[1 2 3 4]"},
		{"(get {:a 1} :a)", "1"},
		{"(get {:a 1} :b :fallback)", ":fallback"},
		{"(put {:a 1} :b 2)", "{:a 1 :b 2}"},
		{"(remove {:a 1 :b 2} :a)", "{:b 2}"},
		{"(keys {:a 1 :b 2})", "[:a :b]"},
		{"(vals {:a 1 :b 2})", "[1 2]"},
		{"(contains? {:a 1} :a)", "true"},
		{"(contains? [1 2] 3)", "false"},
		{"(map \\(x -> (* x x)) [1 2 3])", "[1 4 9]"},
		{"(filter \\(x -> (> x 1)) [1 2 3])", "[2 3]"},
		{"(reduce \\(acc x -> (+ acc x)) 0 [1 2 3 4])", "10"},
		{"(apply + 1 [2 3])", "6"},
	}
	for _, tt := range tests {
		wantInspect(t, evalSrc(t, tt.src), tt.want)
	}
}

func TestStringBuiltins(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`(str "a" 1 :k)`, "a1:k"},
		{`(trim "  hi  ")`, "hi"},
		{`(upper "hi")`, "HI"},
		{`(lower "HI")`, "hi"},
		{`(starts-with "braid" "br")`, "true"},
		{`(ends-with "braid" "id")`, "true"},
		{`(index-of "braid" "ai")`, "2"},
		{`(join ["a" "b"] "-")`, "a-b"},
	}
	for _, tt := range tests {
		wantInspect(t, evalSrc(t, tt.src), tt.want)
	}
	wantInspect(t, evalSrc(t, `(split "a,b,c" ",")`), `["a" "b" "c"]`)
}

func TestSymbolBuiltins(t *testing.T) {
	wantInspect(t, evalSrc(t, `(== (intern "Foo") (intern "foo"))`), "true")
	wantInspect(t, evalSrc(t, "(!= (gensym) (gensym))"), "true")
	wantInspect(t, evalSrc(t, "(let x 1) (bound? 'x)"), "true")
	wantInspect(t, evalSrc(t, "(bound? 'no-such-name)"), "false")
	wantInspect(t, evalSrc(t, `(symbol-name 'Abc)`), "Abc")
}

func TestCancellation(t *testing.T) {
	forms, err := parser.ParseString("(while true 1)")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := New(NewRuntime(ctx), NewGlobalEnv())
	wantError(t, e.EvalProgram(forms), "cancelled")
}

func TestUnboundSymbol(t *testing.T) {
	wantError(t, evalSrc(t, "nope"), "unbound symbol `nope`")
}

func TestErrorCarriesStackTrace(t *testing.T) {
	result := evalSrc(t, "(defn f [] (g-missing)) (defn top [] (f)) (top)")
	err, ok := result.(*object.RuntimeError)
	if !ok {
		t.Fatalf("got %s, want runtime error", object.Inspect(result))
	}
	rendered := err.Render()
	if !strings.Contains(rendered, "f") || !strings.Contains(rendered, "top") {
		t.Fatalf("trace does not name the call chain:\n%s", rendered)
	}
}
