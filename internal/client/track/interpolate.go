package track

import (
	"time"

	"github.com/mfield4/skirmish/internal/models"
)

// DefaultInterpolationDelay is how far behind wall clock estimates are
// rendered. Trading a small amount of latency keeps bracketing samples
// available on both sides of the render time.
const DefaultInterpolationDelay = 100 * time.Millisecond

// Estimate computes a smoothed position for renderTime from the buffer.
// The boolean is false when the buffer holds no samples at all.
//
// The estimate never extrapolates: outside the buffered time range it
// degrades to the nearest known sample.
func Estimate(b *Buffer, renderTime time.Time) (models.Vec3, bool) {
	before, after := b.bracket(renderTime)

	switch {
	case before == nil && after == nil:
		return models.Vec3{}, false
	case before == nil:
		return after.Position, true
	case after == nil:
		return before.Position, true
	}

	span := after.ObservedAt.Sub(before.ObservedAt)
	if span <= 0 {
		return after.Position, true
	}

	t := float64(renderTime.Sub(before.ObservedAt)) / float64(span)
	return before.Position.Lerp(after.Position, t), true
}
