package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(up uint64) TrafficSample {
	return TrafficSample{Up: up, Down: up * 2}
}

func TestRingPadsFrontWithZeros(t *testing.T) {
	r := NewRing(8)
	r.Push(sample(1))
	r.Push(sample(2))

	out := r.Samples()
	require.Len(t, out, 8, "window is always full capacity")

	for i := 0; i < 6; i++ {
		assert.Equal(t, TrafficSample{}, out[i])
	}
	assert.Equal(t, sample(1), out[6])
	assert.Equal(t, sample(2), out[7])
}

func TestRingEvictsOldestBeyondCapacity(t *testing.T) {
	const capacity = 8
	r := NewRing(capacity)

	// Push capacity+5 samples; the first five must fall off the front.
	for i := 1; i <= capacity+5; i++ {
		r.Push(sample(uint64(i)))
	}

	out := r.Samples()
	require.Len(t, out, capacity)
	assert.Equal(t, capacity, r.Len())

	for i := 0; i < capacity; i++ {
		assert.Equal(t, uint64(6+i), out[i].Up, "oldest first, samples 1..5 evicted")
	}
}

func TestRingReset(t *testing.T) {
	r := NewRing(4)
	for i := 0; i < 10; i++ {
		r.Push(sample(uint64(i)))
	}

	r.Reset()

	assert.Equal(t, 0, r.Len())
	out := r.Samples()
	require.Len(t, out, 4)
	for _, s := range out {
		assert.Equal(t, TrafficSample{}, s)
	}

	// Usable again after reset.
	r.Push(sample(42))
	out = r.Samples()
	assert.Equal(t, uint64(42), out[3].Up)
}

func TestRingDefaultCapacity(t *testing.T) {
	r := NewRing(0)
	assert.Equal(t, DefaultRingCapacity, r.Capacity())
	assert.Len(t, r.Samples(), DefaultRingCapacity)
}
