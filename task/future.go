package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/contentsquare/atomiccell/cell"
)

// Task states. A task moves forward only, through CompareAndSet on its
// state cell:
//
//	new -> running -> completing -> completed | failed
//	new | running -> cancelled
const (
	stateNew int32 = iota
	stateRunning
	stateCompleting
	stateCompleted
	stateFailed
	stateCancelled
)

var _ Future[int] = &Task[int]{}

// Task is a cancellable unit of work and the Future of its result.
type Task[T any] struct {
	state cell.Int32

	fn     func(ctx context.Context) (T, error)
	ctx    context.Context
	cancel context.CancelFunc

	// closed once the task reaches a terminal state
	done chan struct{}

	// written only by the goroutine that moved the task to completing
	result T
	err    error
}

// NewTask returns a Task that runs fn once Run is called. It panics with
// ErrNilTask if fn is nil.
func NewTask[T any](fn func(ctx context.Context) (T, error)) *Task[T] {
	if fn == nil {
		panic(ErrNilTask)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Task[T]{
		fn:     fn,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Run executes the work unless the task was already started or cancelled.
func (t *Task[T]) Run() {
	if !t.state.CompareAndSet(stateNew, stateRunning) {
		return
	}
	defer t.cancel()

	v, err := t.call()
	if !t.state.CompareAndSet(stateRunning, stateCompleting) {
		// cancelled while running; the outcome is dropped
		return
	}
	final := stateCompleted
	if err != nil {
		t.err = &ExecutionError{Err: err}
		final = stateFailed
	} else {
		t.result = v
	}
	t.state.Set(final)
	close(t.done)
}

func (t *Task[T]) call() (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.fn(t.ctx)
}

func (t *Task[T]) Cancel(mayInterrupt bool) bool {
	for {
		s := t.state.Get()
		if s != stateNew && s != stateRunning {
			return false
		}
		if !t.state.CompareAndSet(s, stateCancelled) {
			continue
		}
		if s == stateNew || mayInterrupt {
			t.cancel()
		}
		close(t.done)
		return true
	}
}

func (t *Task[T]) IsCancelled() bool {
	return t.state.Get() == stateCancelled
}

func (t *Task[T]) IsDone() bool {
	s := t.state.Get()
	return s == stateCompleted || s == stateFailed || s == stateCancelled
}

func (t *Task[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.outcome()
	default:
	}

	select {
	case <-t.done:
		return t.outcome()
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w: %s", ErrTimeout, ctx.Err())
		}
		return zero, fmt.Errorf("%w: %s", ErrInterrupted, ctx.Err())
	}
}

func (t *Task[T]) GetTimeout(d time.Duration) (T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return t.Get(ctx)
}

func (t *Task[T]) outcome() (T, error) {
	var zero T
	switch s := t.state.Get(); s {
	case stateCompleted:
		return t.result, nil
	case stateFailed:
		return zero, t.err
	case stateCancelled:
		return zero, ErrCancelled
	default:
		panic(fmt.Sprintf("BUG: task is done in state %d", s))
	}
}
