package evaluator

import (
	"log/slog"
	"sort"

	"braid/internal/object"
)

func (r *Runtime) nextLaunchSeq() int64 { return r.launchSeq.Add(1) }

// spawn evaluates the callable and its arguments in the spawning frame,
// forks that frame, and runs the application on its own goroutine with a
// fresh evaluator. The fork happens at spawn time, so later mutation of
// the spawning frame (loop variables included) is invisible to the task.
func sfSpawn(e *Evaluator, args []object.Object) object.Object {
	if len(args) < 1 {
		return e.NewError("spawn wants a callable")
	}
	callable := e.Eval(args[0])
	if object.IsAbrupt(callable) {
		return callable
	}
	callArgs := make([]object.Object, len(args)-1)
	for i, form := range args[1:] {
		v := e.Eval(form)
		if object.IsAbrupt(v) {
			return v
		}
		callArgs[i] = v
	}

	forked := e.CurrentEnv().Fork()
	callable = reRoot(callable, e.CurrentEnv(), forked)
	handle := object.NewTaskHandle(e.RT.NextHandleID(), e.RT.nextLaunchSeq(), callArgs)

	go runTask(e.RT, forked, handle, callable, callArgs)
	return handle
}

// reRoot moves a closure defined in the spawning frame onto the forked
// snapshot, so the task reads spawn-time values even through its lexical
// chain. Closures from other frames are left alone.
func reRoot(callable object.Object, from, to *object.Environment) object.Object {
	switch fn := callable.(type) {
	case *object.Function:
		if fn.Env == from {
			clone := *fn
			clone.Env = to
			return &clone
		}
	case *object.PatternFunction:
		if fn.Env == from {
			clone := *fn
			clone.Env = to
			return &clone
		}
	}
	return callable
}

// continue-with chains a callable after a task settles. The continuation
// sees `result`, `task` and `args` as dynamic bindings in its forked
// frame; a failed predecessor propagates its error without running the
// continuation.
func sfContinueWith(e *Evaluator, args []object.Object) object.Object {
	if len(args) != 2 {
		return e.NewError("continue-with wants a task and a callable")
	}
	prevVal := e.Eval(args[0])
	if object.IsAbrupt(prevVal) {
		return prevVal
	}
	prev, ok := prevVal.(*object.TaskHandle)
	if !ok {
		return e.NewError("continue-with wants a task handle, got %s", prevVal.Type())
	}
	callable := e.Eval(args[1])
	if object.IsAbrupt(callable) {
		return callable
	}

	forked := e.CurrentEnv().Fork()
	callable = reRoot(callable, e.CurrentEnv(), forked)
	handle := object.NewTaskHandle(e.RT.NextHandleID(), e.RT.nextLaunchSeq(), prev.Args)

	go func() {
		result, err := prev.Await()
		if err != nil {
			handle.Complete(nil, err)
			return
		}
		forked.SetLocal(object.Intern("result"), result)
		forked.SetLocal(object.Intern("task"), prev)
		if lst := object.ListFromSlice(prev.Args); lst != nil {
			forked.SetLocal(object.Intern("args"), lst)
		} else {
			forked.SetLocal(object.Intern("args"), object.NIL)
		}
		runTask(e.RT, forked, handle, callable, continuationArgs(callable, result))
	}()
	return handle
}

// A zero-parameter continuation relies on the dynamic bindings alone;
// anything else receives the predecessor's result positionally.
func continuationArgs(callable object.Object, result object.Object) []object.Object {
	if fn, ok := callable.(*object.Function); ok && len(fn.Params) == 0 && fn.RestParam == nil {
		return nil
	}
	return []object.Object{result}
}

func runTask(rt *Runtime, env *object.Environment, handle *object.TaskHandle,
	callable object.Object, args []object.Object) {

	worker := New(rt, env)
	result := worker.Apply(object.Inspect(callable), callable, args)
	switch r := result.(type) {
	case *object.RuntimeError:
		handle.Complete(nil, r)
	case *object.UserException:
		handle.Complete(nil, worker.NewError("uncaught exception in task %d: %s",
			handle.ID, object.Inspect(r.Payload)))
	case *object.ExitSignal:
		slog.Warn("task attempted to quit the interpreter", slog.Int64("task", handle.ID))
		handle.Complete(nil, worker.NewError("quit is not permitted inside a task"))
	default:
		if object.IsFlow(result) {
			handle.Complete(nil, worker.NewError("`%s` escaped the body of task %d",
				result.Type(), handle.ID))
			return
		}
		handle.Complete(result, nil)
	}
}

// await blocks on every handle found by recursively flattening its
// arguments. Results come back in launch order; a single awaited task
// yields its bare result, several yield a vector. The first failure wins.
func builtinAwait(ctx object.EvaluatorContext, args ...object.Object) object.Object {
	e := ctx.(*Evaluator)
	var handles []*object.TaskHandle
	if errObj := collectHandles(e, args, &handles); errObj != nil {
		return errObj
	}
	if len(handles) == 0 {
		return object.NIL
	}
	sort.SliceStable(handles, func(i, j int) bool { return handles[i].Seq < handles[j].Seq })

	results := make([]object.Object, len(handles))
	for i, h := range handles {
		result, err := h.Await()
		if err != nil {
			return err
		}
		results[i] = result
	}
	if len(results) == 1 {
		return results[0]
	}
	return &object.Vector{Elements: results}
}

func collectHandles(e *Evaluator, items []object.Object, out *[]*object.TaskHandle) object.Object {
	for _, item := range items {
		switch v := item.(type) {
		case *object.TaskHandle:
			*out = append(*out, v)
		case *object.Vector:
			if errObj := collectHandles(e, v.Elements, out); errObj != nil {
				return errObj
			}
		case *object.Pair:
			if errObj := collectHandles(e, v.Slice(), out); errObj != nil {
				return errObj
			}
		case *object.Nil:
			// ignore holes in nested collections
		default:
			return e.NewError("await wants task handles, got %s", item.Type())
		}
	}
	return nil
}
