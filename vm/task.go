package vm

import (
	"fmt"
	"sort"
	"sync"
)

// ---------------------------------------------------------------------------
// TaskReturn: what a task asks the scheduler to do next
// ---------------------------------------------------------------------------

// ReturnKind is the outcome of running a task once.
type ReturnKind uint8

const (
	ReturnYield    ReturnKind = iota // end this process's turn
	ReturnWaiting                    // push Task and run it immediately
	ReturnFinished                   // pop this task and hand Value to the one below
)

// TaskReturn is returned from Task.Run.
type TaskReturn struct {
	Kind  ReturnKind
	Value int32
	Task  Task
}

// Yield ends the process's turn for this tick.
func Yield() TaskReturn {
	return TaskReturn{Kind: ReturnYield}
}

// WaitFor suspends the current task until t finishes.
func WaitFor(t Task) TaskReturn {
	return TaskReturn{Kind: ReturnWaiting, Task: t}
}

// Finish completes the current task with a result value.
func Finish(v int32) TaskReturn {
	return TaskReturn{Kind: ReturnFinished, Value: v}
}

// Task is one resumable step machine on a process's task stack. The
// bottom task is always the ScriptTask; everything above it is a sub-task
// the script is waiting on.
type Task interface {
	// Kind names the task type in save games.
	Kind() string
	Run(p *Process) (TaskReturn, error)
}

// Canceler is implemented by tasks that own engine resources which must be
// stopped when their process is killed.
type Canceler interface {
	Cancel(p *Process)
}

// ---------------------------------------------------------------------------
// Task state and the kind registry
// ---------------------------------------------------------------------------

// TaskState is the persistent form of a sub-task.
type TaskState struct {
	Kind string  `cbor:"kind"`
	Ints []int64 `cbor:"ints,omitempty"`
	Text string  `cbor:"text,omitempty"`
}

// Persistent is implemented by sub-tasks that survive save and load.
type Persistent interface {
	State() TaskState
}

// TaskFactory rebuilds a sub-task from its state.
type TaskFactory func(st TaskState) (Task, error)

var (
	taskKindsMu sync.RWMutex
	taskKinds   = make(map[string]TaskFactory)
)

// RegisterTaskKind makes a sub-task kind restorable. Registering the same
// kind twice replaces the factory.
func RegisterTaskKind(kind string, f TaskFactory) {
	taskKindsMu.Lock()
	taskKinds[kind] = f
	taskKindsMu.Unlock()
}

// TaskKinds lists the registered kinds.
func TaskKinds() []string {
	taskKindsMu.RLock()
	defer taskKindsMu.RUnlock()
	kinds := make([]string, 0, len(taskKinds))
	for k := range taskKinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func restoreTask(st TaskState) (Task, error) {
	taskKindsMu.RLock()
	f, ok := taskKinds[st.Kind]
	taskKindsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTaskKind, st.Kind)
	}
	return f(st)
}

// stateInts reads n integers from a state, failing on short slices.
func stateInts(st TaskState, n int) ([]int64, error) {
	if len(st.Ints) < n {
		return nil, fmt.Errorf("task %s: expected %d values, got %d", st.Kind, n, len(st.Ints))
	}
	return st.Ints, nil
}
