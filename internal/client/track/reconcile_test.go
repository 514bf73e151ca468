package track

import (
	"testing"
	"time"

	"github.com/mfield4/skirmish/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckSuppressesSmallDivergence(t *testing.T) {
	r := NewReconciler(0, 0)

	sample := models.PositionSample{
		ParticipantID: "p1",
		Position:      models.Vec3{X: 1.05},
	}
	estimate := models.Vec3{X: 1.0}

	_, corrected := r.Check(sample, estimate, true)
	assert.False(t, corrected, "0.05 is under the threshold")
}

func TestCheckSurfacesLargeDivergence(t *testing.T) {
	r := NewReconciler(0, 0)

	sample := models.PositionSample{
		ParticipantID: "p1",
		Position:      models.Vec3{X: 1.5},
	}
	estimate := models.Vec3{X: 1.0}

	correction, corrected := r.Check(sample, estimate, true)

	require.True(t, corrected)
	assert.Equal(t, "p1", correction.ParticipantID)
	assert.Equal(t, sample.Position, correction.Position, "carries the authoritative position")
	assert.InDelta(t, 0.5, correction.Distance, 1e-9)
}

func TestCheckWithoutEstimate(t *testing.T) {
	r := NewReconciler(0, 0)

	sample := models.PositionSample{ParticipantID: "p1", Position: models.Vec3{X: 100}}
	_, corrected := r.Check(sample, models.Vec3{}, false)
	assert.False(t, corrected, "first sample has nothing to diverge from")
}

func TestAdmitThrottlesPerParticipant(t *testing.T) {
	r := NewReconciler(0, 100*time.Millisecond)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, r.Admit("p1", now))
	assert.False(t, r.Admit("p1", now.Add(50*time.Millisecond)))
	assert.True(t, r.Admit("p2", now.Add(50*time.Millisecond)), "throttle windows are per participant")
	assert.True(t, r.Admit("p1", now.Add(100*time.Millisecond)))
}

func TestAdmitRejectedSampleDoesNotAdvanceWindow(t *testing.T) {
	r := NewReconciler(0, 100*time.Millisecond)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.True(t, r.Admit("p1", now))
	require.False(t, r.Admit("p1", now.Add(60*time.Millisecond)))
	assert.True(t, r.Admit("p1", now.Add(110*time.Millisecond)),
		"window anchors on the last accepted sample")
}

func TestForgetClearsThrottleState(t *testing.T) {
	r := NewReconciler(0, 100*time.Millisecond)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.True(t, r.Admit("p1", now))
	r.Forget("p1")
	assert.True(t, r.Admit("p1", now.Add(time.Millisecond)))
}
