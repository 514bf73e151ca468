package track

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mfield4/skirmish/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedEvents struct {
	joined      []string
	left        []string
	corrections []models.Vec3
}

func newTrackerForTest(t *testing.T, clock clockwork.Clock) (*Tracker, *recordedEvents) {
	t.Helper()
	rec := &recordedEvents{}
	tracker := NewTracker(DefaultConfig(), "self", Events{
		OnParticipantJoined: func(id string, _ models.Vec3) {
			rec.joined = append(rec.joined, id)
		},
		OnParticipantLeft: func(id string) {
			rec.left = append(rec.left, id)
		},
		OnPositionCorrection: func(_ string, pos models.Vec3) {
			rec.corrections = append(rec.corrections, pos)
		},
	}, clock)
	return tracker, rec
}

func rowAt(clock clockwork.Clock, id string, pos models.Vec3) models.ParticipantPosition {
	now := clock.Now()
	return models.ParticipantPosition{
		ParticipantID: id,
		Position:      pos,
		ObservedAt:    now,
		LastActive:    now,
		UpdatedAt:     now,
	}
}

func TestTrackerIgnoresSelfEchoes(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tracker, rec := newTrackerForTest(t, clock)

	tracker.Ingest(rowAt(clock, "self", models.Vec3{X: 1}))

	assert.Empty(t, rec.joined)
	assert.Empty(t, tracker.Participants())
}

func TestTrackerFiresJoinOnFirstSample(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tracker, rec := newTrackerForTest(t, clock)

	tracker.Ingest(rowAt(clock, "p1", models.Vec3{X: 1}))
	clock.Advance(200 * time.Millisecond)
	tracker.Ingest(rowAt(clock, "p1", models.Vec3{X: 2}))

	assert.Equal(t, []string{"p1"}, rec.joined, "join fires once per participant")
	assert.Equal(t, []string{"p1"}, tracker.Participants())
}

func TestTrackerEstimateUsesInterpolationDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tracker, _ := newTrackerForTest(t, clock)

	tracker.Ingest(rowAt(clock, "p1", models.Vec3{}))
	clock.Advance(200 * time.Millisecond)
	tracker.Ingest(rowAt(clock, "p1", models.Vec3{X: 10}))

	// Render time is now-100ms, the midpoint of the two samples.
	pos, ok := tracker.Estimate("p1")
	require.True(t, ok)
	assert.InDelta(t, 5.0, pos.X, 1e-9)
}

func TestTrackerThrottlesRapidSamples(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tracker, _ := newTrackerForTest(t, clock)

	tracker.Ingest(rowAt(clock, "p1", models.Vec3{X: 1}))
	clock.Advance(10 * time.Millisecond)
	tracker.Ingest(rowAt(clock, "p1", models.Vec3{X: 50}))

	// The second sample arrived inside the minimum interval and was
	// discarded, so the only buffered position is the first one.
	pos, ok := tracker.Estimate("p1")
	require.True(t, ok)
	assert.Equal(t, 1.0, pos.X)
}

func TestTrackerEmitsCorrectionOnLargeDivergence(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tracker, rec := newTrackerForTest(t, clock)

	tracker.Ingest(rowAt(clock, "p1", models.Vec3{X: 1}))
	clock.Advance(500 * time.Millisecond)

	// The estimate holds at x=1; an authoritative sample half a unit away
	// crosses the threshold.
	tracker.Ingest(rowAt(clock, "p1", models.Vec3{X: 1.5}))

	require.Len(t, rec.corrections, 1)
	assert.InDelta(t, 1.5, rec.corrections[0].X, 1e-9)
}

func TestTrackerSuppressesSmallDivergence(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tracker, rec := newTrackerForTest(t, clock)

	tracker.Ingest(rowAt(clock, "p1", models.Vec3{X: 1}))
	clock.Advance(500 * time.Millisecond)
	tracker.Ingest(rowAt(clock, "p1", models.Vec3{X: 1.05}))

	assert.Empty(t, rec.corrections)
}

func TestTrackerSweepFiresLeave(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tracker, rec := newTrackerForTest(t, clock)

	tracker.Ingest(rowAt(clock, "p1", models.Vec3{X: 1}))
	clock.Advance(DefaultActivityWindow + time.Second)
	tracker.Sweep()

	assert.Equal(t, []string{"p1"}, rec.left)
	assert.Empty(t, tracker.Participants())
}

func TestTrackerSweepKeepsActiveParticipants(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tracker, rec := newTrackerForTest(t, clock)

	tracker.Ingest(rowAt(clock, "p1", models.Vec3{X: 1}))
	clock.Advance(time.Second)
	tracker.Sweep()

	assert.Empty(t, rec.left)
	assert.Equal(t, []string{"p1"}, tracker.Participants())
}

func TestTrackerDropStaleRemovesPreGapSamples(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tracker, _ := newTrackerForTest(t, clock)

	tracker.Ingest(rowAt(clock, "p1", models.Vec3{X: 1}))
	cutoff := clock.Now().Add(time.Second)
	tracker.DropStale(cutoff)

	_, ok := tracker.Estimate("p1")
	assert.False(t, ok, "pre-gap samples are gone")
}

func TestTrackerReset(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tracker, _ := newTrackerForTest(t, clock)

	tracker.Ingest(rowAt(clock, "p1", models.Vec3{X: 1}))
	tracker.Reset()

	assert.Empty(t, tracker.Participants())
	_, ok := tracker.Estimate("p1")
	assert.False(t, ok)
}
