package stress

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/contentsquare/atomiccell/cell"
	"github.com/contentsquare/atomiccell/config"
	"github.com/contentsquare/atomiccell/log"
	"github.com/contentsquare/atomiccell/task"
)

// ErrViolation is wrapped by every scenario error caused by a cell not
// honoring its contract, as opposed to the run being stopped.
var ErrViolation = errors.New("cell contract violated")

// how long to wait before resubmitting work the executor rejected
const rejectBackoff = 5 * time.Millisecond

// progress is published to the ops cell in batches to keep the reporting
// overhead away from the cell under test.
const progressBatch = 128

// Result is the outcome of a single scenario run.
type Result struct {
	Scenario string
	Ops      int32
	Duration time.Duration
	// Final is the value of the scenario's main cell after the run.
	Final int32
	Err   error
}

type scenarioFunc func(ctx context.Context, r *Runner) (int32, error)

// scenarios whose workers wait on each other and so cannot run one
// worker at a time
var needsConcurrency = map[string]bool{
	"publish": true,
}

var scenarios = map[string]scenarioFunc{
	"increment":  runIncrement,
	"cas-race":   runCASRace,
	"update":     runUpdate,
	"publish":    runPublish,
	"weak-retry": runWeakRetry,
	"wrap":       runWrap,
}

// Runner runs the configured scenarios through an executor.
type Runner struct {
	exec task.Executor
	cfg  config.Stress

	// operations done by the scenario in progress
	ops cell.Int32

	// name of the scenario in progress, for progress reports
	current string
}

// NewRunner validates cfg against the executor limits. Every worker of a
// scenario must be able to run at the same time, so workers cannot exceed
// maxInFlight.
func NewRunner(exec task.Executor, cfg config.Stress, maxInFlight int32) (*Runner, error) {
	if cfg.Workers <= 0 || cfg.Iterations <= 0 {
		return nil, fmt.Errorf("workers and iterations must be positive; got %d and %d", cfg.Workers, cfg.Iterations)
	}
	if maxInFlight > 0 && cfg.Workers > int(maxInFlight) {
		return nil, fmt.Errorf("%d workers cannot run at once with `max_in_flight` of %d", cfg.Workers, maxInFlight)
	}
	if int64(cfg.Workers)*int64(cfg.Iterations) > math.MaxInt32 {
		return nil, fmt.Errorf("workers*iterations must fit int32; got %d", int64(cfg.Workers)*int64(cfg.Iterations))
	}
	for _, name := range cfg.Scenarios {
		if _, ok := scenarios[name]; !ok {
			return nil, fmt.Errorf("unknown scenario %q", name)
		}
		if name == "publish" && cfg.Workers < 2 {
			return nil, fmt.Errorf("scenario %q needs at least 2 workers", name)
		}
		if needsConcurrency[name] && !task.RunsConcurrently(exec) {
			return nil, fmt.Errorf("scenario %q needs an executor running workers concurrently", name)
		}
	}
	if !cfg.Publish.StoreOrdering.CanStore() || !cfg.Publish.LoadOrdering.CanLoad() {
		return nil, fmt.Errorf("invalid publish orderings %s/%s", cfg.Publish.StoreOrdering, cfg.Publish.LoadOrdering)
	}
	return &Runner{
		exec: exec,
		cfg:  cfg,
	}, nil
}

// Run runs every configured scenario in order and returns their results.
// It stops early if ctx is cancelled.
func (r *Runner) Run(ctx context.Context) []Result {
	results := make([]Result, 0, len(r.cfg.Scenarios))
	for _, name := range r.cfg.Scenarios {
		if ctx.Err() != nil {
			break
		}
		results = append(results, r.RunScenario(ctx, name))
	}
	return results
}

// RunScenario runs the named scenario once.
func (r *Runner) RunScenario(ctx context.Context, name string) Result {
	run, ok := scenarios[name]
	if !ok {
		return Result{Scenario: name, Err: fmt.Errorf("unknown scenario %q", name)}
	}

	r.current = name
	r.ops.Set(0)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		r.reportProgress(done)
		close(stopped)
	}()

	log.Debugf("scenario %q: starting %d workers x %d iterations", name, r.cfg.Workers, r.cfg.Iterations)
	start := time.Now()
	final, err := run(ctx, r)
	res := Result{
		Scenario: name,
		Ops:      r.ops.Get(),
		Duration: time.Since(start),
		Final:    final,
		Err:      err,
	}
	close(done)
	<-stopped

	observeResult(res)
	return res
}

// reportProgress logs progress of the running scenario
// until the done channel is closed.
func (r *Runner) reportProgress(done <-chan struct{}) {
	total := r.cfg.Workers * r.cfg.Iterations
	for {
		select {
		case <-done:
			return
		case <-time.After(time.Duration(r.cfg.ReportInterval)):
		}
		log.Infof("scenario %q: %d/%d operations", r.current, r.ops.Get(), total)
	}
}

// spawn runs fn on every worker through the executor and collects the
// per-worker values. Rejected submissions are retried until ctx ends.
//
// Workers share one context. The first worker to fail cancels it, so
// siblings waiting on the failed worker are interrupted, and its error is
// the one returned. If ctx ends first, the error wraps task.ErrTimeout or
// task.ErrInterrupted.
func (r *Runner) spawn(ctx context.Context, fn func(ctx context.Context, worker int) (int32, error)) ([]int32, error) {
	group, stop := context.WithCancel(ctx)
	defer stop()

	var (
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		stop()
	}
	failure := func() error {
		mu.Lock()
		defer mu.Unlock()
		return firstErr
	}

	tasks := make([]*task.Task[int32], 0, r.cfg.Workers)
	cancelAll := func() {
		stop()
		for _, t := range tasks {
			t.Cancel(true)
		}
	}

	for w := 0; w < r.cfg.Workers; w++ {
		w := w
		t, err := r.submit(ctx, func(context.Context) (v int32, err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("panic: %v", p)
				}
				// errors caused by the group being stopped are not failures
				if err != nil && group.Err() == nil {
					fail(fmt.Errorf("worker %d: %w", w, err))
				}
			}()
			return fn(group, w)
		})
		if err != nil {
			cancelAll()
			return nil, err
		}
		tasks = append(tasks, t)
	}

	values := make([]int32, len(tasks))
	for i, t := range tasks {
		v, err := t.Get(ctx)
		if err != nil {
			cancelAll()
			if first := failure(); first != nil {
				return nil, first
			}
			if ctx.Err() != nil {
				return nil, interrupted(ctx)
			}
			return nil, fmt.Errorf("worker %d: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}

// interrupted maps the end of ctx to the task package wait errors.
func interrupted(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", task.ErrTimeout, ctx.Err())
	}
	return fmt.Errorf("%w: %s", task.ErrInterrupted, ctx.Err())
}

func (r *Runner) submit(ctx context.Context, fn func(ctx context.Context) (int32, error)) (*task.Task[int32], error) {
	for {
		t, err := task.Submit(r.exec, fn)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, task.ErrRejected) {
			return nil, err
		}
		log.Debugf("worker submission rejected, retrying: %s", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(rejectBackoff):
		}
	}
}

// tick counts one finished operation of a worker loop at iteration i.
func (r *Runner) tick(i int) {
	if (i+1)%progressBatch == 0 {
		r.ops.AddAndGet(progressBatch)
	} else if i+1 == r.cfg.Iterations {
		r.ops.AddAndGet(int32((i + 1) % progressBatch))
	}
}

// spin yields until cond holds or ctx ends.
func spin(ctx context.Context, cond func() bool) error {
	for n := 0; !cond(); n++ {
		if n%1024 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		yield()
	}
	return nil
}
