package stress

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/contentsquare/atomiccell/cell"
)

// weakRetryCap bounds the attempts of one weak CAS loop. Reaching it
// means the loop stopped making progress.
const weakRetryCap = 1 << 20

func yield() { runtime.Gosched() }

// runIncrement races GetAndIncrement on a single cell. The returned values
// must be exactly 0..N-1 and the cell must end at N.
func runIncrement(ctx context.Context, r *Runner) (int32, error) {
	c := cell.New(0)
	iterations := r.cfg.Iterations
	seen := make([][]int32, r.cfg.Workers)

	_, err := r.spawn(ctx, func(ctx context.Context, w int) (int32, error) {
		vals := make([]int32, 0, iterations)
		for i := 0; i < iterations; i++ {
			vals = append(vals, c.GetAndIncrement())
			r.tick(i)
		}
		seen[w] = vals
		return int32(len(vals)), nil
	})
	if err != nil {
		return c.Get(), err
	}

	n := int32(r.cfg.Workers * iterations)
	if final := c.Get(); final != n {
		return final, fmt.Errorf("%w: expected final value %d; got %d", ErrViolation, n, final)
	}
	returned := make([]bool, n)
	for w, vals := range seen {
		for _, v := range vals {
			if v < 0 || v >= n {
				return n, fmt.Errorf("%w: worker %d got out of range value %d", ErrViolation, w, v)
			}
			if returned[v] {
				return n, fmt.Errorf("%w: value %d returned twice", ErrViolation, v)
			}
			returned[v] = true
		}
	}
	return n, nil
}

// runCASRace makes every worker race the same CompareAndSet on one cell
// per round. Exactly one worker may win each round.
func runCASRace(ctx context.Context, r *Runner) (int32, error) {
	const sentinel = -1
	rounds := r.cfg.Iterations
	cells := make([]cell.Int32, rounds)
	wins := make([]cell.Int32, rounds)
	for i := range cells {
		cells[i].Set(sentinel)
	}

	_, err := r.spawn(ctx, func(ctx context.Context, w int) (int32, error) {
		var won int32
		for i := 0; i < rounds; i++ {
			if cells[i].CompareAndSet(sentinel, int32(w)) {
				wins[i].IncrementAndGet()
				won++
			}
			r.tick(i)
		}
		return won, nil
	})
	if err != nil {
		return 0, err
	}

	var total int32
	for i := range wins {
		n := wins[i].Get()
		if n != 1 {
			return total, fmt.Errorf("%w: round %d has %d winners", ErrViolation, i, n)
		}
		if winner := cells[i].Get(); winner < 0 || int(winner) >= r.cfg.Workers {
			return total, fmt.Errorf("%w: round %d holds %d which no worker stored", ErrViolation, i, winner)
		}
		total += n
	}
	return total, nil
}

// runUpdate mixes every function driven operation with pure functions.
// Each iteration adds 1+2+3+4 so the final value is known upfront.
func runUpdate(ctx context.Context, r *Runner) (int32, error) {
	c := cell.New(0)
	add := func(v, x int32) int32 { return v + x }

	_, err := r.spawn(ctx, func(ctx context.Context, w int) (int32, error) {
		for i := 0; i < r.cfg.Iterations; i++ {
			prev := c.GetAndUpdate(func(v int32) int32 { return v + 1 })
			next := c.UpdateAndGet(func(v int32) int32 { return v + 2 })
			if next-prev < 3 {
				return 0, fmt.Errorf("%w: update went backwards from %d to %d", ErrViolation, prev, next)
			}
			c.GetAndAccumulate(3, add)
			c.AccumulateAndGet(4, add)
			r.tick(i)
		}
		return 0, nil
	})
	if err != nil {
		return c.Get(), err
	}

	// int32 arithmetic keeps the expectation wrapping like the cell does
	expected := int32(r.cfg.Workers) * int32(r.cfg.Iterations) * 10
	if final := c.Get(); final != expected {
		return final, fmt.Errorf("%w: expected final value %d; got %d", ErrViolation, expected, final)
	}
	return expected, nil
}

// message is published by a writer worker to its reader worker.
type message struct {
	round   int32
	payload [8]int64
}

func (m *message) fill(round int32) {
	m.round = round
	for i := range m.payload {
		m.payload[i] = int64(round)*int64(len(m.payload)) + int64(i)
	}
}

func (m *message) valid(round int32) bool {
	if m.round != round {
		return false
	}
	for i := range m.payload {
		if m.payload[i] != int64(round)*int64(len(m.payload))+int64(i) {
			return false
		}
	}
	return true
}

// runPublish pairs workers into writers and readers. The writer fills a
// plain message and publishes the round number to a flag cell; the reader
// waits for the round on the flag and must see the whole message, then
// acknowledges it on a second cell so the writer may reuse the message.
func runPublish(ctx context.Context, r *Runner) (int32, error) {
	storeOrd := r.cfg.Publish.StoreOrdering
	loadOrd := r.cfg.Publish.LoadOrdering
	pairs := r.cfg.Workers / 2
	rounds := int32(r.cfg.Iterations)

	type channel struct {
		msg  message
		flag cell.Int32
		ack  cell.Int32
	}
	channels := make([]channel, pairs)
	var seen cell.Int32

	_, err := r.spawn(ctx, func(ctx context.Context, w int) (int32, error) {
		if w >= 2*pairs {
			// odd worker out
			return 0, nil
		}
		ch := &channels[w/2]
		writer := w%2 == 0

		for round := int32(1); round <= rounds; round++ {
			if writer {
				ch.msg.fill(round)
				ch.flag.Store(storeOrd, round)
				if err := spin(ctx, func() bool { return ch.ack.Load(loadOrd) == round }); err != nil {
					return 0, err
				}
				r.tick(int(round) - 1)
				continue
			}

			if err := spin(ctx, func() bool { return ch.flag.Load(loadOrd) == round }); err != nil {
				return 0, err
			}
			if !ch.msg.valid(round) {
				return 0, fmt.Errorf("%w: round %d message not visible after %s load of the %s flag",
					ErrViolation, round, loadOrd, storeOrd)
			}
			seen.IncrementAndGet()
			ch.ack.Store(storeOrd, round)
			r.tick(int(round) - 1)
		}
		return rounds, nil
	})
	if err != nil {
		return seen.Get(), err
	}

	expected := int32(pairs) * rounds
	if n := seen.Get(); n != expected {
		return n, fmt.Errorf("%w: expected %d verified messages; got %d", ErrViolation, expected, n)
	}
	return expected, nil
}

// runWeakRetry increments a shared cell with hand-written weak CAS loops
// at every ordering. Each loop must eventually succeed.
func runWeakRetry(ctx context.Context, r *Runner) (int32, error) {
	c := cell.New(0)
	weak := []func(expected, new int32) bool{
		c.WeakCompareAndSetPlain,
		c.WeakCompareAndSetAcquire,
		c.WeakCompareAndSetRelease,
		c.WeakCompareAndSetVolatile,
	}

	retries := make([]int32, r.cfg.Workers)
	_, err := r.spawn(ctx, func(ctx context.Context, w int) (int32, error) {
		for i := 0; i < r.cfg.Iterations; i++ {
			cas := weak[(w+i)%len(weak)]
			attempts := 0
			for {
				prev := c.Get()
				if cas(prev, prev+1) {
					break
				}
				attempts++
				if attempts >= weakRetryCap {
					return 0, fmt.Errorf("%w: weak CAS failed %d times in a row", ErrViolation, attempts)
				}
			}
			retries[w] += int32(attempts)
			r.tick(i)
		}
		return retries[w], nil
	})
	if err != nil {
		return c.Get(), err
	}

	var total int32
	for _, n := range retries {
		total += n
	}
	expected := int32(r.cfg.Workers * r.cfg.Iterations)
	if final := c.Get(); final != expected {
		return final, fmt.Errorf("%w: expected final value %d; got %d", ErrViolation, expected, final)
	}
	statRetries(total)
	return expected, nil
}

// runWrap checks two's complement wraparound: every worker walks its own
// cell across the int32 boundary and all of them share a cell sitting on
// the minimum value.
func runWrap(ctx context.Context, r *Runner) (int32, error) {
	shared := cell.New(math.MinInt32)

	_, err := r.spawn(ctx, func(ctx context.Context, w int) (int32, error) {
		own := cell.New(math.MinInt32)
		for i := 0; i < r.cfg.Iterations; i++ {
			if v := own.DecrementAndGet(); v != math.MaxInt32 {
				return 0, fmt.Errorf("%w: decrementing min int32 gave %d", ErrViolation, v)
			}
			if v := own.GetAndIncrement(); v != math.MaxInt32 {
				return 0, fmt.Errorf("%w: expected %d before increment; got %d", ErrViolation, int32(math.MaxInt32), v)
			}
			if v := own.Get(); v != math.MinInt32 {
				return 0, fmt.Errorf("%w: incrementing max int32 gave %d", ErrViolation, v)
			}
			shared.GetAndDecrement()
			shared.AddAndGet(1)
			r.tick(i)
		}
		return 0, nil
	})
	if err != nil {
		return shared.Get(), err
	}

	if final := shared.Get(); final != math.MinInt32 {
		return final, fmt.Errorf("%w: shared cell ended at %d instead of %d", ErrViolation, final, int32(math.MinInt32))
	}
	return shared.Get(), nil
}
