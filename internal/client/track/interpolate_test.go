package track

import (
	"testing"
	"time"

	"github.com/mfield4/skirmish/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateInterpolatesMidpoint(t *testing.T) {
	b := NewBuffer(8)
	b.Ingest(models.PositionSample{ParticipantID: "p1", Position: models.Vec3{}, ObservedAt: bufferEpoch})
	b.Ingest(models.PositionSample{
		ParticipantID: "p1",
		Position:      models.Vec3{X: 10},
		ObservedAt:    bufferEpoch.Add(100 * time.Millisecond),
	})

	pos, ok := Estimate(b, bufferEpoch.Add(50*time.Millisecond))

	require.True(t, ok)
	assert.InDelta(t, 5.0, pos.X, 1e-9)
	assert.InDelta(t, 0.0, pos.Y, 1e-9)
	assert.InDelta(t, 0.0, pos.Z, 1e-9)
}

func TestEstimateInterpolatesAllComponents(t *testing.T) {
	b := NewBuffer(8)
	b.Ingest(models.PositionSample{Position: models.Vec3{X: 1, Y: 2, Z: 3}, ObservedAt: bufferEpoch})
	b.Ingest(models.PositionSample{
		Position:   models.Vec3{X: 3, Y: 6, Z: 9},
		ObservedAt: bufferEpoch.Add(time.Second),
	})

	pos, ok := Estimate(b, bufferEpoch.Add(250*time.Millisecond))

	require.True(t, ok)
	assert.InDelta(t, 1.5, pos.X, 1e-9)
	assert.InDelta(t, 3.0, pos.Y, 1e-9)
	assert.InDelta(t, 4.5, pos.Z, 1e-9)
}

func TestEstimateSingleSampleNoExtrapolation(t *testing.T) {
	b := NewBuffer(8)
	b.Ingest(models.PositionSample{Position: models.Vec3{X: 7}, ObservedAt: bufferEpoch})

	// Render time after the only sample: hold last known.
	pos, ok := Estimate(b, bufferEpoch.Add(time.Minute))
	require.True(t, ok)
	assert.Equal(t, 7.0, pos.X)

	// Render time before the only sample: nearest-future fallback.
	pos, ok = Estimate(b, bufferEpoch.Add(-time.Minute))
	require.True(t, ok)
	assert.Equal(t, 7.0, pos.X)
}

func TestEstimateEmptyBuffer(t *testing.T) {
	b := NewBuffer(8)
	_, ok := Estimate(b, bufferEpoch)
	assert.False(t, ok)
}

func TestEstimateHoldsPastNewestSample(t *testing.T) {
	b := NewBuffer(8)
	b.Ingest(sampleAt(0, 0))
	b.Ingest(sampleAt(time.Second, 10))

	pos, ok := Estimate(b, bufferEpoch.Add(5*time.Second))

	require.True(t, ok)
	assert.Equal(t, 10.0, pos.X, "never extrapolates beyond the buffered range")
}

func TestEstimateCoincidentSamples(t *testing.T) {
	b := NewBuffer(8)
	b.Ingest(sampleAt(0, 1))
	b.Ingest(sampleAt(0, 2))

	pos, ok := Estimate(b, bufferEpoch.Add(-time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, 1.0, pos.X)
}
