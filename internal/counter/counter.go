package counter

import "github.com/contentsquare/atomiccell/cell"

// Counter is an int32 counter. Dec is not guarded and may take it below zero.
type Counter struct {
	value cell.Int32
}

func (c *Counter) Store(n int32) { c.value.Set(n) }

func (c *Counter) Load() int32 { return c.value.Get() }

func (c *Counter) Dec() int32 { return c.value.DecrementAndGet() }

func (c *Counter) Inc() int32 { return c.value.IncrementAndGet() }

// TryInc increments the counter unless it already reached limit.
// A zero or negative limit means no limit.
func (c *Counter) TryInc(limit int32) bool {
	if limit <= 0 {
		c.Inc()
		return true
	}
	prev := c.value.GetAndUpdate(func(v int32) int32 {
		if v >= limit {
			return v
		}
		return v + 1
	})
	return prev < limit
}
