package store

import "time"

// TrafficSample is one instantaneous throughput reading.
type TrafficSample struct {
	Up        uint64
	Down      uint64
	Timestamp time.Time
}

// Ring is a fixed-capacity FIFO buffer of traffic samples for charting.
// It is not safe for concurrent use; the Store guards it.
type Ring struct {
	capacity int
	samples  []TrafficSample
	head     int // index of the oldest sample
	size     int
}

// DefaultRingCapacity is the default number of chart samples retained.
const DefaultRingCapacity = 40

// NewRing creates a ring buffer holding up to capacity samples.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &Ring{
		capacity: capacity,
		samples:  make([]TrafficSample, capacity),
	}
}

// Push appends a sample, evicting the oldest when full.
func (r *Ring) Push(s TrafficSample) {
	if r.size < r.capacity {
		r.samples[(r.head+r.size)%r.capacity] = s
		r.size++
		return
	}
	r.samples[r.head] = s
	r.head = (r.head + 1) % r.capacity
}

// Samples returns exactly capacity samples, oldest first. When fewer than
// capacity samples have been pushed the front is padded with zero-valued
// samples so an idle engine renders as a flat chart, not an empty one.
func (r *Ring) Samples() []TrafficSample {
	out := make([]TrafficSample, 0, r.capacity)
	for i := 0; i < r.capacity-r.size; i++ {
		out = append(out, TrafficSample{})
	}
	for i := 0; i < r.size; i++ {
		out = append(out, r.samples[(r.head+i)%r.capacity])
	}
	return out
}

// Len returns the number of real samples currently held.
func (r *Ring) Len() int { return r.size }

// Capacity returns the fixed capacity.
func (r *Ring) Capacity() int { return r.capacity }

// Reset discards all samples.
func (r *Ring) Reset() {
	r.head = 0
	r.size = 0
}
