package cell

// CompareAndSet stores new if the current value equals expected and
// reports whether it did. It never fails spuriously.
func (c *Int32) CompareAndSet(expected, new int32) bool {
	return c.v.CompareAndSwap(expected, new)
}

// CompareAndExchange stores new if the current value equals expected.
// It returns the witness value: the value seen by the attempt. The witness
// equals expected iff the exchange happened.
func (c *Int32) CompareAndExchange(expected, new int32) int32 {
	return c.CompareAndExchangeOrdered(Volatile, expected, new)
}

func (c *Int32) CompareAndExchangeAcquire(expected, new int32) int32 {
	return c.CompareAndExchangeOrdered(Acquire, expected, new)
}

func (c *Int32) CompareAndExchangeRelease(expected, new int32) int32 {
	return c.CompareAndExchangeOrdered(Release, expected, new)
}

// CompareAndExchangeOrdered is CompareAndExchange with an explicit ordering.
func (c *Int32) CompareAndExchangeOrdered(o Ordering, expected, new int32) int32 {
	mustCAS(o)
	for {
		witness := c.v.Load()
		if witness != expected {
			return witness
		}
		if c.v.CompareAndSwap(expected, new) {
			return expected
		}
		// The value moved between the load and the CAS. Retry so that a
		// failed exchange always reports a witness different from expected.
	}
}

// WeakCompareAndSet is the weak compare-and-set with ordering o. It may
// fail even if the current value equals expected, so callers must retry
// it in a loop rather than treat false as a mismatch.
func (c *Int32) WeakCompareAndSet(o Ordering, expected, new int32) bool {
	mustCAS(o)
	if c.spurious != nil && c.spurious() {
		return false
	}
	return c.v.CompareAndSwap(expected, new)
}

func (c *Int32) WeakCompareAndSetPlain(expected, new int32) bool {
	return c.WeakCompareAndSet(Plain, expected, new)
}

func (c *Int32) WeakCompareAndSetAcquire(expected, new int32) bool {
	return c.WeakCompareAndSet(Acquire, expected, new)
}

func (c *Int32) WeakCompareAndSetRelease(expected, new int32) bool {
	return c.WeakCompareAndSet(Release, expected, new)
}

func (c *Int32) WeakCompareAndSetVolatile(expected, new int32) bool {
	return c.WeakCompareAndSet(Volatile, expected, new)
}
