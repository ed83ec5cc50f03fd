package task

import (
	"fmt"
	"sync"

	"github.com/contentsquare/atomiccell/cell"
	"github.com/contentsquare/atomiccell/config"
	"github.com/contentsquare/atomiccell/internal/counter"
	"github.com/contentsquare/atomiccell/log"
	"golang.org/x/time/rate"
)

// BoundedExecutor runs every admitted task on its own goroutine.
// It never queues: work above the in-flight limit or the admission rate
// is rejected right away.
type BoundedExecutor struct {
	maxInFlight int32
	limiter     *rate.Limiter

	inFlight  counter.Counter
	submitted cell.Int32
	rejected  cell.Int32
	executed  cell.Int32

	wg sync.WaitGroup
}

// Stats is a snapshot of executor counters. Totals wrap around like any
// int32 cell.
type Stats struct {
	Submitted int32
	Rejected  int32
	Executed  int32
	InFlight  int32
}

func NewBoundedExecutor(cfg config.Executor) *BoundedExecutor {
	e := &BoundedExecutor{
		maxInFlight: cfg.MaxInFlight,
	}
	if cfg.RateLimit > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
	}
	return e
}

// Concurrent is always true: every admitted task gets its own goroutine.
func (e *BoundedExecutor) Concurrent() bool { return true }

// Execute admits fn if a slot is free and the admission rate allows it.
// Work rejected for lack of a slot does not use up the admission rate.
func (e *BoundedExecutor) Execute(fn func()) error {
	if fn == nil {
		return ErrNilTask
	}
	e.submitted.IncrementAndGet()
	tasksSubmitted.Inc()

	if !e.inFlight.TryInc(e.maxInFlight) {
		e.reject("max_in_flight")
		return fmt.Errorf("%w: %d tasks already in flight", ErrRejected, e.maxInFlight)
	}

	if e.limiter != nil && !e.limiter.Allow() {
		e.inFlight.Dec()
		e.reject("rate_limit")
		return fmt.Errorf("%w: admission rate of %v tasks/s exceeded", ErrRejected, e.limiter.Limit())
	}
	tasksInFlight.Inc()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.finish()
		fn()
	}()
	return nil
}

func (e *BoundedExecutor) reject(reason string) {
	n := e.rejected.IncrementAndGet()
	tasksRejected.WithLabelValues(reason).Inc()
	log.Debugf("task rejected by %s; %d rejections so far", reason, n)
}

func (e *BoundedExecutor) finish() {
	e.inFlight.Dec()
	e.executed.IncrementAndGet()
	tasksInFlight.Dec()
	tasksExecuted.Inc()
}

// Wait blocks until every admitted task returned. It must not be called
// concurrently with Execute.
func (e *BoundedExecutor) Wait() {
	e.wg.Wait()
}

func (e *BoundedExecutor) Stats() Stats {
	return Stats{
		Submitted: e.submitted.Get(),
		Rejected:  e.rejected.Get(),
		Executed:  e.executed.Get(),
		InFlight:  e.inFlight.Load(),
	}
}
