package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/contentsquare/atomiccell/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectExecutor(t *testing.T) {
	tk, err := Submit(DirectExecutor{}, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.True(t, tk.IsDone())
	assert.False(t, tk.IsCancelled())

	v, err := tk.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	assert.False(t, tk.Cancel(true), "finished task cannot be cancelled")
	assert.False(t, tk.IsCancelled())
}

func TestNilTask(t *testing.T) {
	assert.ErrorIs(t, DirectExecutor{}.Execute(nil), ErrNilTask)
	assert.ErrorIs(t, NewBoundedExecutor(config.Executor{}).Execute(nil), ErrNilTask)

	_, err := Submit[int](DirectExecutor{}, nil)
	assert.ErrorIs(t, err, ErrNilTask)
	assert.PanicsWithValue(t, ErrNilTask, func() { NewTask[int](nil) })
}

func TestExecutionError(t *testing.T) {
	errBoom := errors.New("boom")
	tk, err := Submit(DirectExecutor{}, func(ctx context.Context) (int, error) {
		return 0, errBoom
	})
	require.NoError(t, err)

	_, err = tk.Get(context.Background())
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr), "expected ExecutionError; got %v", err)
	assert.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, ErrCancelled)
	assert.True(t, tk.IsDone())
}

func TestPanicBecomesExecutionError(t *testing.T) {
	tk, err := Submit(DirectExecutor{}, func(ctx context.Context) (int, error) {
		panic("kaboom")
	})
	require.NoError(t, err)

	_, err = tk.Get(context.Background())
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Contains(t, err.Error(), "kaboom")
}

func TestCancelBeforeRun(t *testing.T) {
	ran := false
	tk := NewTask(func(ctx context.Context) (int, error) {
		ran = true
		return 1, nil
	})

	assert.True(t, tk.Cancel(false))
	assert.True(t, tk.IsCancelled())
	assert.True(t, tk.IsDone())
	assert.False(t, tk.Cancel(false), "second cancel must fail")

	tk.Run()
	assert.False(t, ran, "cancelled task must not run")

	_, err := tk.Get(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
	assert.True(t, tk.IsCancelled())
	assert.True(t, tk.IsDone())
}

func TestCancelInterruptsRunning(t *testing.T) {
	started := make(chan struct{})
	stopped := make(chan struct{})
	tk := NewTask(func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		close(stopped)
		return 0, ctx.Err()
	})
	go tk.Run()
	<-started

	assert.True(t, tk.Cancel(true))
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatalf("running task was not interrupted")
	}

	_, err := tk.Get(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestCancelWithoutInterrupt(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	finished := make(chan error, 1)
	tk := NewTask(func(ctx context.Context) (int, error) {
		close(started)
		<-release
		finished <- ctx.Err()
		return 7, nil
	})
	go tk.Run()
	<-started

	assert.True(t, tk.Cancel(false))
	close(release)
	assert.NoError(t, <-finished, "work must keep a live context when not interrupted")

	v, err := tk.Get(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 0, v)
}

func TestGetTimeoutAndInterrupt(t *testing.T) {
	release := make(chan struct{})
	tk := NewTask(func(ctx context.Context) (int, error) {
		<-release
		return 42, nil
	})
	go tk.Run()

	_, err := tk.GetTimeout(20 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrInterrupted)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tk.Get(ctx)
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.False(t, tk.IsDone())

	close(release)
	v, err := tk.GetTimeout(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestRacingCancelAndRun(t *testing.T) {
	for i := 0; i < 200; i++ {
		tk := NewTask(func(ctx context.Context) (int, error) {
			return 1, nil
		})
		var cancelled bool
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			tk.Run()
		}()
		go func() {
			defer wg.Done()
			cancelled = tk.Cancel(true)
		}()
		wg.Wait()

		v, err := tk.Get(context.Background())
		if cancelled {
			assert.ErrorIs(t, err, ErrCancelled)
			assert.True(t, tk.IsCancelled())
		} else {
			assert.NoError(t, err)
			assert.Equal(t, 1, v)
			assert.False(t, tk.IsCancelled())
		}
		assert.True(t, tk.IsDone())
	}
}

func TestBoundedExecutorMaxInFlight(t *testing.T) {
	e := NewBoundedExecutor(config.Executor{MaxInFlight: 2})

	release := make(chan struct{})
	block := func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	}

	t1, err := Submit(e, block)
	require.NoError(t, err)
	t2, err := Submit(e, block)
	require.NoError(t, err)

	_, err = Submit(e, block)
	assert.ErrorIs(t, err, ErrRejected)

	stats := e.Stats()
	assert.Equal(t, int32(3), stats.Submitted)
	assert.Equal(t, int32(1), stats.Rejected)
	assert.Equal(t, int32(2), stats.InFlight)

	close(release)
	for _, tk := range []*Task[int]{t1, t2} {
		v, err := tk.GetTimeout(5 * time.Second)
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	}
	e.Wait()

	stats = e.Stats()
	assert.Equal(t, int32(2), stats.Executed)
	assert.Equal(t, int32(0), stats.InFlight)

	_, err = Submit(e, func(ctx context.Context) (int, error) { return 2, nil })
	assert.NoError(t, err, "slots must be released once tasks finish")
	e.Wait()
}

func TestBoundedExecutorRateLimit(t *testing.T) {
	e := NewBoundedExecutor(config.Executor{RateLimit: 0.001, Burst: 1})

	require.NoError(t, e.Execute(func() {}))
	err := e.Execute(func() {})
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "admission rate")
	e.Wait()
}

func TestSlotRejectionKeepsAdmissionRate(t *testing.T) {
	// two tokens and a refill far beyond the test duration
	e := NewBoundedExecutor(config.Executor{MaxInFlight: 1, RateLimit: 0.001, Burst: 2})

	release := make(chan struct{})
	require.NoError(t, e.Execute(func() { <-release }))

	err := e.Execute(func() {})
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "in flight")
	assert.Equal(t, int32(1), e.Stats().InFlight)

	close(release)
	e.Wait()

	// the slot rejection above must not have spent the second token
	assert.NoError(t, e.Execute(func() {}))
	e.Wait()

	err = e.Execute(func() {})
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "admission rate")
	assert.Equal(t, int32(0), e.Stats().InFlight, "a rate rejection must give its slot back")
}

func TestRunsConcurrently(t *testing.T) {
	assert.False(t, RunsConcurrently(DirectExecutor{}))
	assert.True(t, RunsConcurrently(NewBoundedExecutor(config.Executor{})))
	assert.True(t, RunsConcurrently(goExecutor{}), "executors that do not tell are assumed concurrent")
}

type goExecutor struct{}

func (goExecutor) Execute(fn func()) error {
	go fn()
	return nil
}

func TestBoundedExecutorHappensBefore(t *testing.T) {
	e := NewBoundedExecutor(config.Executor{})
	for i := 0; i < 100; i++ {
		var shared [8]int
		for j := range shared {
			shared[j] = i + j
		}
		tk, err := Submit(e, func(ctx context.Context) ([8]int, error) {
			return shared, nil
		})
		require.NoError(t, err)
		got, err := tk.GetTimeout(5 * time.Second)
		require.NoError(t, err)
		assert.Equal(t, shared, got)
	}
	e.Wait()
}

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterMetrics(reg, "test"))
	defer initMetrics("")

	e := NewBoundedExecutor(config.Executor{MaxInFlight: 1})
	release := make(chan struct{})
	require.NoError(t, e.Execute(func() { <-release }))
	assert.ErrorIs(t, e.Execute(func() {}), ErrRejected)

	assert.Equal(t, float64(2), testutil.ToFloat64(tasksSubmitted))
	assert.Equal(t, float64(1), testutil.ToFloat64(tasksRejected.WithLabelValues("max_in_flight")))
	assert.Equal(t, float64(1), testutil.ToFloat64(tasksInFlight))

	close(release)
	e.Wait()
	assert.Equal(t, float64(1), testutil.ToFloat64(tasksExecuted))
	assert.Equal(t, float64(0), testutil.ToFloat64(tasksInFlight))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, mf := range mfs {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "test_tasks_submitted_total")
	assert.Contains(t, names, "test_tasks_in_flight")
}
