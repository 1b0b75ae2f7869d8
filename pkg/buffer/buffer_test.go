package buffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadOrdering(t *testing.T) {
	r := NewRing[int](4)
	for i := 1; i <= 3; i++ {
		assert.False(t, r.Write(i))
	}
	assert.Equal(t, 3, r.Len())

	for i := 1; i <= 3; i++ {
		got, ok := r.Read()
		require.True(t, ok)
		assert.Equal(t, i, got)
	}
	_, ok := r.Read()
	assert.False(t, ok)
}

func TestOverflowDropsOldest(t *testing.T) {
	var dropped []int
	r := NewRing(3, WithDropCallback(func(v int) { dropped = append(dropped, v) }))

	for i := 1; i <= 5; i++ {
		r.Write(i)
	}

	assert.Equal(t, []int{1, 2}, dropped)
	assert.Equal(t, []int{3, 4, 5}, r.Drain())

	stats := r.Stats()
	assert.Equal(t, int64(5), stats.Writes)
	assert.Equal(t, int64(2), stats.Drops)
	assert.Equal(t, int64(3), stats.Reads)
}

func TestWriteReportsEviction(t *testing.T) {
	r := NewRing[string](1)
	assert.False(t, r.Write("a"))
	assert.True(t, r.Write("b"))

	got, ok := r.Read()
	require.True(t, ok)
	assert.Equal(t, "b", got)
}

func TestPeekDoesNotRemove(t *testing.T) {
	r := NewRing[int](2)
	_, ok := r.Peek()
	assert.False(t, ok)

	r.Write(7)
	got, ok := r.Peek()
	require.True(t, ok)
	assert.Equal(t, 7, got)
	assert.Equal(t, 1, r.Len())
}

func TestDrainEmpty(t *testing.T) {
	r := NewRing[int](2)
	assert.Nil(t, r.Drain())
}

func TestCapacityClamped(t *testing.T) {
	r := NewRing[int](0)
	assert.Equal(t, 1, r.Cap())
}

func TestWrapAround(t *testing.T) {
	r := NewRing[int](3)
	for i := 0; i < 10; i++ {
		r.Write(i)
		if i%2 == 0 {
			r.Read()
		}
	}
	// Remaining items must still come out oldest first.
	out := r.Drain()
	for i := 1; i < len(out); i++ {
		assert.Greater(t, out[i], out[i-1])
	}
}

func TestConcurrentWriters(t *testing.T) {
	r := NewRing[int](64)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				r.Write(i)
			}
		}()
	}
	wg.Wait()

	stats := r.Stats()
	assert.Equal(t, int64(800), stats.Writes)
	assert.Equal(t, 64, r.Len())
	assert.Equal(t, int64(800-64), stats.Drops)
}
