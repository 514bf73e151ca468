package track

import (
	"testing"
	"time"

	"github.com/mfield4/skirmish/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bufferEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func sampleAt(offset time.Duration, x float64) models.PositionSample {
	return models.PositionSample{
		ParticipantID: "p1",
		Position:      models.Vec3{X: x},
		ObservedAt:    bufferEpoch.Add(offset),
	}
}

func TestBufferIngestKeepsTimeOrder(t *testing.T) {
	b := NewBuffer(8)
	b.Ingest(sampleAt(0, 0))
	b.Ingest(sampleAt(300*time.Millisecond, 3))
	b.Ingest(sampleAt(100*time.Millisecond, 1)) // arrives late

	require.Equal(t, 3, b.Len())
	assert.Equal(t, 0.0, b.samples[0].Position.X)
	assert.Equal(t, 1.0, b.samples[1].Position.X)
	assert.Equal(t, 3.0, b.samples[2].Position.X)
}

func TestBufferEvictsOldestPastCapacity(t *testing.T) {
	const capacity = 8
	b := NewBuffer(capacity)

	for i := 0; i < capacity+5; i++ {
		b.Ingest(sampleAt(time.Duration(i)*100*time.Millisecond, float64(i)))
	}

	require.Equal(t, capacity, b.Len())
	assert.Equal(t, 5.0, b.samples[0].Position.X, "oldest five evicted")
	assert.Equal(t, float64(capacity+4), b.samples[capacity-1].Position.X)
	for i := 1; i < b.Len(); i++ {
		assert.False(t, b.samples[i].ObservedAt.Before(b.samples[i-1].ObservedAt))
	}
}

func TestBufferLatest(t *testing.T) {
	b := NewBuffer(4)

	_, ok := b.Latest()
	assert.False(t, ok)

	b.Ingest(sampleAt(0, 1))
	b.Ingest(sampleAt(time.Second, 2))
	latest, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, 2.0, latest.Position.X)
}

func TestBufferDropOlderThan(t *testing.T) {
	b := NewBuffer(8)
	for i := 0; i < 5; i++ {
		b.Ingest(sampleAt(time.Duration(i)*time.Second, float64(i)))
	}

	b.DropOlderThan(bufferEpoch.Add(3 * time.Second))

	require.Equal(t, 2, b.Len())
	assert.Equal(t, 3.0, b.samples[0].Position.X)
}

func TestBufferClear(t *testing.T) {
	b := NewBuffer(4)
	b.Ingest(sampleAt(0, 1))
	b.Clear()
	assert.Equal(t, 0, b.Len())
}
