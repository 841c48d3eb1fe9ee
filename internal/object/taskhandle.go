package object

import (
	"fmt"
	"sync"
)

// TaskHandle tracks one spawned evaluation. Seq records launch order so
// await can return results ordered by launch, not completion.
type TaskHandle struct {
	ID   int64
	Seq  int64
	Args []Object
	Done chan struct{}

	mu       sync.Mutex
	result   Object
	err      *RuntimeError
	finished bool
}

func NewTaskHandle(id, seq int64, args []Object) *TaskHandle {
	return &TaskHandle{ID: id, Seq: seq, Args: args, Done: make(chan struct{})}
}

func (t *TaskHandle) Type() ObjectType { return TASK_HANDLE_OBJ }
func (t *TaskHandle) Inspect() string  { return fmt.Sprintf("#<task %d>", t.ID) }

// Complete settles the task exactly once; later calls are ignored.
func (t *TaskHandle) Complete(result Object, err *RuntimeError) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return
	}
	t.result = result
	t.err = err
	t.finished = true
	close(t.Done)
}

// Await blocks until the task settles and returns its outcome.
func (t *TaskHandle) Await() (Object, *RuntimeError) {
	<-t.Done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}

func (t *TaskHandle) Finished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished
}
