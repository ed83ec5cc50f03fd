// Package task holds the work submission and future result contracts and
// implementations of them whose shared state lives in cell.Int32 values.
package task

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRejected is returned (wrapped) by Execute when the executor cannot
	// admit more work.
	ErrRejected = errors.New("task rejected")

	// ErrNilTask is returned when nil work is submitted.
	ErrNilTask = errors.New("nil task")

	// ErrCancelled is returned by Get on a cancelled future.
	ErrCancelled = errors.New("task cancelled")

	// ErrInterrupted is returned (wrapped) by Get when the waiting context
	// is cancelled before the future is done.
	ErrInterrupted = errors.New("wait interrupted")

	// ErrTimeout is returned (wrapped) by Get when the waiting context
	// deadline passes before the future is done.
	ErrTimeout = errors.New("wait timed out")
)

// ExecutionError wraps the error returned, or the panic raised, by the
// work behind a future.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("task failed: %s", e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Executor runs submitted work. Everything the submitting goroutine did
// before Execute happens-before fn starts.
type Executor interface {
	// Execute returns ErrNilTask for nil fn and an error wrapping
	// ErrRejected if fn cannot be admitted.
	Execute(fn func()) error
}

// Future is the eventual outcome of submitted work.
type Future[T any] interface {
	// Cancel attempts to cancel the work. If mayInterrupt is set, work that
	// is already running has its context cancelled. Cancel returns false
	// if the work already finished, was already cancelled or cannot be
	// cancelled any more.
	Cancel(mayInterrupt bool) bool

	// IsCancelled reports whether Cancel succeeded.
	IsCancelled() bool

	// IsDone reports whether the work completed, failed or was cancelled.
	IsDone() bool

	// Get waits for the outcome. The returned error is ErrCancelled, an
	// *ExecutionError, or wraps ErrInterrupted or ErrTimeout if ctx ends
	// first.
	Get(ctx context.Context) (T, error)

	// GetTimeout is Get bounded by d.
	GetTimeout(d time.Duration) (T, error)
}

// ConcurrentExecutor is implemented by executors that can tell whether
// submitted work may run alongside the submitting goroutine.
type ConcurrentExecutor interface {
	Executor

	Concurrent() bool
}

// RunsConcurrently reports whether work handed to e may run while the
// submitter goes on. Executors not implementing ConcurrentExecutor are
// assumed to be concurrent.
func RunsConcurrently(e Executor) bool {
	if c, ok := e.(ConcurrentExecutor); ok {
		return c.Concurrent()
	}
	return true
}

// DirectExecutor runs work on the calling goroutine.
type DirectExecutor struct{}

// Concurrent is always false: Execute returns only after the work did.
func (DirectExecutor) Concurrent() bool { return false }

func (DirectExecutor) Execute(fn func()) error {
	if fn == nil {
		return ErrNilTask
	}
	fn()
	return nil
}

// Submit wraps fn in a Task and hands it to e.
func Submit[T any](e Executor, fn func(ctx context.Context) (T, error)) (*Task[T], error) {
	if fn == nil {
		return nil, ErrNilTask
	}
	t := NewTask(fn)
	if err := e.Execute(t.Run); err != nil {
		t.Cancel(false)
		return nil, err
	}
	return t, nil
}
