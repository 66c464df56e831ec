package service

import (
	"sync"
)

// Task is an awaitable handle on background work tied to a session. The
// triggering operation returns immediately; a later workflow.status query or
// a test can still observe and await the task.
type Task struct {
	SessionID string

	done chan struct{}
	err  error
}

// Wait blocks until the task finishes and returns its error.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Done reports whether the task has finished without blocking.
func (t *Task) Done() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// TaskRegistry tracks one background task per session. Starting a new task
// for a session replaces the finished previous handle.
type TaskRegistry struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{tasks: make(map[string]*Task)}
}

// Run launches fn in the background and registers its handle under the
// session id.
func (r *TaskRegistry) Run(sessionID string, fn func() error) *Task {
	task := &Task{
		SessionID: sessionID,
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	r.tasks[sessionID] = task
	r.mu.Unlock()

	go func() {
		task.err = fn()
		close(task.done)
	}()

	return task
}

// Get returns the session's current task handle, if any.
func (r *TaskRegistry) Get(sessionID string) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[sessionID]
	return task, ok
}
