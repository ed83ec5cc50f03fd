// Package cell provides an atomic int32 cell with Java-style ordering tiers,
// strong and weak compare-and-swap, and lock-free function-driven updates.
//
// The zero value is a cell holding 0. A cell must not be copied after first
// use.
package cell

import (
	"sync/atomic"
)

// Int32 is an int32 that may be read and updated atomically by any number
// of goroutines.
type Int32 struct {
	v atomic.Int32

	// spurious, when set, is consulted by the weak compare-and-set family
	// and makes the attempt fail without touching the value if it returns
	// true. Production cells leave it nil.
	spurious func() bool
}

// New returns a cell holding initial.
func New(initial int32) *Int32 {
	c := &Int32{}
	c.v.Store(initial)
	return c
}

// Get returns the current value with volatile ordering.
func (c *Int32) Get() int32 { return c.v.Load() }

// Set stores v with volatile ordering.
func (c *Int32) Set(v int32) { c.v.Store(v) }

// LazySet stores v with release ordering.
func (c *Int32) LazySet(v int32) { c.SetRelease(v) }

func (c *Int32) GetPlain() int32 { return c.Load(Plain) }

func (c *Int32) SetPlain(v int32) { c.Store(Plain, v) }

func (c *Int32) GetOpaque() int32 { return c.Load(Opaque) }

func (c *Int32) SetOpaque(v int32) { c.Store(Opaque, v) }

// GetAcquire loads the value. It happens-after the SetRelease whose value
// it returns.
func (c *Int32) GetAcquire() int32 { return c.Load(Acquire) }

// SetRelease stores v. Writes made by the calling goroutine before
// SetRelease are visible to any goroutine that GetAcquire-s v.
func (c *Int32) SetRelease(v int32) { c.Store(Release, v) }

// Load returns the current value with ordering o. It panics with
// ErrInvalidOrdering if o is Release.
func (c *Int32) Load(o Ordering) int32 {
	mustLoad(o)
	// every tier widens to a sequentially consistent load
	return c.v.Load()
}

// Store sets the value with ordering o. It panics with ErrInvalidOrdering
// if o is Acquire.
func (c *Int32) Store(o Ordering, v int32) {
	mustStore(o)
	c.v.Store(v)
}

// GetAndSet stores v and returns the previous value.
func (c *Int32) GetAndSet(v int32) int32 { return c.v.Swap(v) }

func (c *Int32) GetAndAdd(delta int32) int32 { return c.v.Add(delta) - delta }

func (c *Int32) AddAndGet(delta int32) int32 { return c.v.Add(delta) }

func (c *Int32) GetAndIncrement() int32 { return c.GetAndAdd(1) }

func (c *Int32) GetAndDecrement() int32 { return c.GetAndAdd(-1) }

func (c *Int32) IncrementAndGet() int32 { return c.AddAndGet(1) }

// DecrementAndGet subtracts one and returns the new value. The minimum
// int32 wraps around to the maximum.
func (c *Int32) DecrementAndGet() int32 { return c.AddAndGet(-1) }
