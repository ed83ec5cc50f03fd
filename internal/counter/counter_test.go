package counter

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounter(t *testing.T) {
	var c Counter
	assert.Equal(t, int32(1), c.Inc())
	assert.Equal(t, int32(2), c.Inc())
	assert.Equal(t, int32(1), c.Dec())
	c.Store(10)
	assert.Equal(t, int32(10), c.Load())
}

func TestDecBelowZero(t *testing.T) {
	var c Counter
	assert.Equal(t, int32(-1), c.Dec())
	assert.True(t, c.TryInc(1), "a negative count is below any positive limit")
	assert.Equal(t, int32(0), c.Load())
}

func TestTryIncLimit(t *testing.T) {
	const limit = 5
	var c Counter

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.TryInc(limit) {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(limit), admitted.Load())
	assert.Equal(t, int32(limit), c.Load())

	c.Dec()
	assert.True(t, c.TryInc(limit))
	assert.False(t, c.TryInc(limit))
}

func TestTryIncUnlimited(t *testing.T) {
	var c Counter
	for i := 0; i < 100; i++ {
		assert.True(t, c.TryInc(0))
	}
	assert.Equal(t, int32(100), c.Load())
}
