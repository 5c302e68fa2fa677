package connection

// Task is a handle on a background transition. Callers may wait on it or
// drop it.
type Task struct {
	done chan struct{}
	err  error
}

func spawn(fn func() error) *Task {
	t := &Task{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		t.err = fn()
	}()
	return t
}

// Wait blocks until the task finishes and returns its error.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Done is closed when the task finishes.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Finished returns a Task that has already completed with err.
func Finished(err error) *Task {
	t := &Task{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}
