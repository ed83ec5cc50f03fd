package cell

// UnaryFunc computes a new cell value from the current one. It must be
// pure: under contention it may be called more than once per update.
type UnaryFunc func(v int32) int32

// BinaryFunc combines the current cell value with a caller supplied
// operand. Like UnaryFunc it must be pure.
type BinaryFunc func(v, x int32) int32

// GetAndUpdate atomically replaces the value v with f(v) and returns v.
func (c *Int32) GetAndUpdate(f UnaryFunc) int32 {
	if f == nil {
		panic(ErrNilFunction)
	}
	prev, _ := c.update(f)
	return prev
}

// UpdateAndGet atomically replaces the value v with f(v) and returns f(v).
func (c *Int32) UpdateAndGet(f UnaryFunc) int32 {
	if f == nil {
		panic(ErrNilFunction)
	}
	_, next := c.update(f)
	return next
}

// GetAndAccumulate atomically replaces the value v with f(v, x) and
// returns v.
func (c *Int32) GetAndAccumulate(x int32, f BinaryFunc) int32 {
	if f == nil {
		panic(ErrNilFunction)
	}
	prev, _ := c.update(func(v int32) int32 { return f(v, x) })
	return prev
}

// AccumulateAndGet atomically replaces the value v with f(v, x) and
// returns f(v, x).
func (c *Int32) AccumulateAndGet(x int32, f BinaryFunc) int32 {
	if f == nil {
		panic(ErrNilFunction)
	}
	_, next := c.update(func(v int32) int32 { return f(v, x) })
	return next
}

// update is the lock-free read-modify-write loop shared by the function
// driven operations. It returns the replaced value and its replacement.
//
// When the weak CAS fails but a fresh read still returns prev, the failure
// was spurious and next is still the right candidate, so f is not called
// again. f is only recomputed once another writer actually moved the value.
func (c *Int32) update(f UnaryFunc) (prev, next int32) {
	prev = c.Get()
	for haveNext := false; ; {
		if !haveNext {
			next = f(prev)
		}
		if c.WeakCompareAndSetVolatile(prev, next) {
			return prev, next
		}
		cur := c.Get()
		haveNext = cur == prev
		prev = cur
	}
}
