package evaluator

import (
	"testing"

	"braid/internal/object"
)

func TestSpawnIsolatesAtSpawnTime(t *testing.T) {
	// each task must observe the value captured when it was spawned,
	// never a later mutation of the spawning frame
	src := `
(let x 1)
(let t1 (spawn \(-> x)))
(set x 2)
(let t2 (spawn \(-> x)))
(set x 99)
[(await t1) (await t2)]`
	wantInspect(t, evalSrc(t, src), "[1 2]")
}

func TestSpawnPassesArguments(t *testing.T) {
	wantInspect(t, evalSrc(t, "(defn add [a b] (+ a b)) (await (spawn add 2 3))"), "5")
}

func TestAwaitSingleTaskUnwraps(t *testing.T) {
	wantInspect(t, evalSrc(t, "(await (spawn \\(-> 42)))"), "42")
}

func TestAwaitReturnsLaunchOrder(t *testing.T) {
	// completion order is inverted by the sleeps; the tasks are settled
	// before await runs, and results still come back in launch order
	src := `
(defn slow-id [ms v] (sleep ms) v)
(let t1 (spawn slow-id 30 1))
(let t2 (spawn slow-id 20 2))
(let t3 (spawn slow-id 10 3))
(sleep 100)
(await t3 t1 t2)`
	wantInspect(t, evalSrc(t, src), "[1 2 3]")
}

func TestAwaitFlattensNestedCollections(t *testing.T) {
	src := `
(let t1 (spawn \(-> 1)))
(let t2 (spawn \(-> 2)))
(let t3 (spawn \(-> 3)))
(await [t1 [t2 t3]])`
	wantInspect(t, evalSrc(t, src), "[1 2 3]")
}

func TestAwaitEmptyIsNil(t *testing.T) {
	wantInspect(t, evalSrc(t, "(await [])"), "nil")
}

func TestAwaitRejectsNonTasks(t *testing.T) {
	wantError(t, evalSrc(t, "(await 3)"), "wants task handles")
}

func TestTaskFailureSurfacesOnAwait(t *testing.T) {
	wantError(t, evalSrc(t, "(await (spawn \\(-> (/ 1 0))))"), "division by zero")
}

func TestTaskUncaughtThrowBecomesError(t *testing.T) {
	wantError(t, evalSrc(t, "(await (spawn \\(-> (throw :bad))))"), "uncaught exception")
}

func TestContinueWithReceivesResult(t *testing.T) {
	src := `
(let t (spawn \(-> 21)))
(await (continue-with t \(r -> (* r 2))))`
	wantInspect(t, evalSrc(t, src), "42")
}

func TestContinueWithWellKnownBindings(t *testing.T) {
	// a zero-parameter continuation reads result/args from its forked frame
	src := `
(defn work [a b] (+ a b))
(let t (spawn work 4 5))
(await (continue-with t \(-> [result args])))`
	wantInspect(t, evalSrc(t, src), "[9 (4 5)]")
}

func TestContinueWithPropagatesFailure(t *testing.T) {
	src := `
(let t (spawn \(-> (/ 1 0))))
(await (continue-with t \(r -> :never)))`
	wantError(t, evalSrc(t, src), "division by zero")
}

func TestTaskHandleIsAValue(t *testing.T) {
	result := evalSrc(t, "(spawn \\(-> 1))")
	handle, ok := result.(*object.TaskHandle)
	if !ok {
		t.Fatalf("got %s (%s), want task handle", object.Inspect(result), result.Type())
	}
	if got, err := handle.Await(); err != nil || got.Inspect() != "1" {
		t.Fatalf("task settled with (%v, %v), want (1, nil)", got, err)
	}
}
