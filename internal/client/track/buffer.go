package track

import (
	"time"

	"github.com/mfield4/skirmish/internal/models"
)

// DefaultBufferCapacity bounds both memory and staleness per participant.
const DefaultBufferCapacity = 32

// Buffer holds a bounded, time-ordered run of position samples for one
// participant. Oldest samples are evicted first once capacity is reached.
type Buffer struct {
	samples  []models.PositionSample
	capacity int
}

// NewBuffer creates a buffer with the given capacity. Capacities below 1
// fall back to DefaultBufferCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = DefaultBufferCapacity
	}
	return &Buffer{
		samples:  make([]models.PositionSample, 0, capacity),
		capacity: capacity,
	}
}

// Ingest appends a sample, keeping the buffer ordered by ObservedAt.
// Samples arriving out of order are inserted from the tail; the common
// case of in-order arrival is a plain append.
func (b *Buffer) Ingest(sample models.PositionSample) {
	i := len(b.samples)
	for i > 0 && b.samples[i-1].ObservedAt.After(sample.ObservedAt) {
		i--
	}

	b.samples = append(b.samples, models.PositionSample{})
	copy(b.samples[i+1:], b.samples[i:])
	b.samples[i] = sample

	if len(b.samples) > b.capacity {
		evict := len(b.samples) - b.capacity
		b.samples = append(b.samples[:0], b.samples[evict:]...)
	}
}

// Len returns the number of buffered samples.
func (b *Buffer) Len() int {
	return len(b.samples)
}

// Latest returns the most recent sample, or false when the buffer is empty.
func (b *Buffer) Latest() (models.PositionSample, bool) {
	if len(b.samples) == 0 {
		return models.PositionSample{}, false
	}
	return b.samples[len(b.samples)-1], true
}

// Clear drops every buffered sample.
func (b *Buffer) Clear() {
	b.samples = b.samples[:0]
}

// DropOlderThan removes all samples observed before cutoff. Used after a
// reconnect so interpolation never bridges a connectivity gap.
func (b *Buffer) DropOlderThan(cutoff time.Time) {
	keep := 0
	for keep < len(b.samples) && b.samples[keep].ObservedAt.Before(cutoff) {
		keep++
	}
	if keep > 0 {
		b.samples = append(b.samples[:0], b.samples[keep:]...)
	}
}

// bracket finds the latest sample at or before renderTime and the earliest
// sample after it. Either return value may be nil.
func (b *Buffer) bracket(renderTime time.Time) (before, after *models.PositionSample) {
	for i := range b.samples {
		s := &b.samples[i]
		if s.ObservedAt.After(renderTime) {
			after = s
			break
		}
		before = s
	}
	return before, after
}
