package client

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mfield4/skirmish/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(phase models.SessionPhase, createdAt time.Time) models.Session {
	return models.Session{
		ID:    uuid.New(),
		Phase: phase,
		Settings: models.SessionSettings{
			WaitingDurationSec:  60,
			ActiveDurationSec:   360,
			CooldownDurationSec: 120,
			AssignmentAlgorithm: "round_robin",
		},
		StartedAt: &createdAt,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestMirrorStartsEmpty(t *testing.T) {
	m := NewMirror(clockwork.NewFakeClock())

	_, ok := m.Current()
	assert.False(t, ok)
	assert.Equal(t, models.SessionPhase(""), m.CurrentPhase())
	assert.Equal(t, time.Duration(0), m.RemainingTime())
}

func TestMirrorUpdateReportsPhaseChange(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMirror(clock)
	s := testSession(models.SessionPhaseWaitingForPlayers, clock.Now())

	assert.True(t, m.Update(s), "first session is a phase change")
	assert.False(t, m.Update(s), "same phase again is not")

	s.Phase = models.SessionPhaseActive
	assert.True(t, m.Update(s))
	assert.Equal(t, models.SessionPhaseActive, m.CurrentPhase())
}

func TestMirrorUpdateReplacementSession(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMirror(clock)

	old := testSession(models.SessionPhaseEnded, clock.Now())
	require.True(t, m.Update(old))

	replacement := testSession(models.SessionPhaseWaitingForPlayers, clock.Now().Add(time.Minute))
	assert.True(t, m.Update(replacement), "new session id is a phase change")

	current, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, replacement.ID, current.ID)
}

func TestMirrorIgnoresStaleOlderSession(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMirror(clock)

	current := testSession(models.SessionPhaseWaitingForPlayers, clock.Now())
	require.True(t, m.Update(current))

	stale := testSession(models.SessionPhaseEnded, clock.Now().Add(-time.Hour))
	assert.False(t, m.Update(stale))
	assert.Equal(t, models.SessionPhaseWaitingForPlayers, m.CurrentPhase())
}

func TestMirrorIgnoresOutOfOrderSameSessionUpdate(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMirror(clock)

	s := testSession(models.SessionPhaseWaitingForPlayers, clock.Now())
	require.True(t, m.Update(s))

	newer := s
	newer.Phase = models.SessionPhaseActive
	newer.UpdatedAt = s.UpdatedAt.Add(time.Second)
	require.True(t, m.Update(newer))

	// A delayed snapshot of the same session from before the transition
	// must not regress the phase.
	assert.False(t, m.Update(s))
	assert.Equal(t, models.SessionPhaseActive, m.CurrentPhase())
}

func TestMirrorRemainingTimeCountsDown(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMirror(clock)

	s := testSession(models.SessionPhaseWaitingForPlayers, clock.Now())
	require.True(t, m.Update(s))

	assert.Equal(t, 60*time.Second, m.RemainingTime())
	clock.Advance(25 * time.Second)
	assert.Equal(t, 35*time.Second, m.RemainingTime())
	clock.Advance(time.Hour)
	assert.Equal(t, time.Duration(0), m.RemainingTime())
}

func TestMirrorClear(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMirror(clock)
	require.True(t, m.Update(testSession(models.SessionPhaseActive, clock.Now())))

	m.Clear()

	_, ok := m.Current()
	assert.False(t, ok)
}
