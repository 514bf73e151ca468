package round

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mfield4/skirmish/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSettings = models.SessionSettings{
	WaitingDurationSec:  60,
	ActiveDurationSec:   360,
	CooldownDurationSec: 120,
	AssignmentAlgorithm: "round_robin",
}

func newTestSession(phase models.SessionPhase, createdAt time.Time) *models.Session {
	return &models.Session{
		ID:        uuid.New(),
		Phase:     phase,
		Settings:  testSettings,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestEvaluateWaitingBackfillsStartedAt(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSession(models.SessionPhaseWaitingForPlayers, t0)

	now := t0.Add(10 * time.Second)
	tr := Evaluate(s, now)

	require.NotNil(t, tr.Patch.StartedAt)
	assert.Equal(t, now, *tr.Patch.StartedAt)
	assert.Nil(t, tr.Patch.Phase, "waiting duration has not elapsed from created_at")
	assert.False(t, tr.SpawnReplacement)
}

func TestEvaluateWaitingToActive(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSession(models.SessionPhaseWaitingForPlayers, t0)
	s.StartedAt = &t0

	tr := Evaluate(s, t0.Add(61*time.Second))

	require.NotNil(t, tr.Patch.Phase)
	assert.Equal(t, models.SessionPhaseActive, *tr.Patch.Phase)
	assert.Nil(t, tr.Patch.StartedAt)
}

func TestEvaluateWaitingAnchorsOnCreatedAtWhenUnstarted(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSession(models.SessionPhaseWaitingForPlayers, t0)

	// started_at missing and the waiting window already elapsed from
	// created_at: both the backfill and the transition land in one patch.
	tr := Evaluate(s, t0.Add(90*time.Second))

	require.NotNil(t, tr.Patch.StartedAt)
	require.NotNil(t, tr.Patch.Phase)
	assert.Equal(t, models.SessionPhaseActive, *tr.Patch.Phase)
}

func TestEvaluateActiveToEnded(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSession(models.SessionPhaseActive, t0)
	s.StartedAt = &t0

	now := t0.Add(361 * time.Second)
	tr := Evaluate(s, now)

	require.NotNil(t, tr.Patch.Phase)
	assert.Equal(t, models.SessionPhaseEnded, *tr.Patch.Phase)
	require.NotNil(t, tr.Patch.EndedAt)
	assert.Equal(t, now, *tr.Patch.EndedAt)
	assert.False(t, tr.SpawnReplacement, "spawn waits for the cooldown window")
}

func TestEvaluateActiveNotDue(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSession(models.SessionPhaseActive, t0)
	s.StartedAt = &t0

	tr := Evaluate(s, t0.Add(200*time.Second))

	assert.True(t, tr.Patch.Empty())
	assert.False(t, tr.SpawnReplacement)
}

func TestEvaluateVictoryMovesToCooldown(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSession(models.SessionPhaseVictory, t0)
	s.StartedAt = &t0

	now := t0.Add(100 * time.Second)
	tr := Evaluate(s, now)

	require.NotNil(t, tr.Patch.Phase)
	assert.Equal(t, models.SessionPhaseCooldown, *tr.Patch.Phase)
	require.NotNil(t, tr.Patch.EndedAt)
	assert.Equal(t, now, *tr.Patch.EndedAt)
}

func TestEvaluateCooldownBackfillsEndedAt(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSession(models.SessionPhaseCooldown, t0)

	now := t0.Add(500 * time.Second)
	tr := Evaluate(s, now)

	require.NotNil(t, tr.Patch.EndedAt)
	assert.Equal(t, now, *tr.Patch.EndedAt)
	assert.Nil(t, tr.Patch.Phase, "backfill first, timer on a later evaluation")
	assert.False(t, tr.SpawnReplacement)
}

func TestEvaluateCooldownToEndedSpawnsReplacement(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSession(models.SessionPhaseCooldown, t0)
	ended := t0.Add(400 * time.Second)
	s.EndedAt = &ended

	tr := Evaluate(s, ended.Add(120*time.Second))

	require.NotNil(t, tr.Patch.Phase)
	assert.Equal(t, models.SessionPhaseEnded, *tr.Patch.Phase)
	assert.True(t, tr.SpawnReplacement)
}

func TestEvaluateEndedSpawnsAfterCooldownWindow(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSession(models.SessionPhaseEnded, t0)
	ended := t0.Add(421 * time.Second)
	s.EndedAt = &ended

	tr := Evaluate(s, ended.Add(30*time.Second))
	assert.True(t, tr.Patch.Empty())
	assert.False(t, tr.SpawnReplacement, "cooldown window still running")

	tr = Evaluate(s, ended.Add(120*time.Second))
	assert.True(t, tr.Patch.Empty())
	assert.True(t, tr.SpawnReplacement)
}

func TestEvaluateIsFixedPoint(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	phases := []models.SessionPhase{
		models.SessionPhaseWaitingForPlayers,
		models.SessionPhaseActive,
		models.SessionPhaseVictory,
		models.SessionPhaseCooldown,
	}
	for _, phase := range phases {
		s := newTestSession(phase, t0)
		now := t0.Add(500 * time.Second)

		first := Evaluate(s, now)
		patched := first.Patch.Apply(*s)
		second := Evaluate(&patched, now)

		assert.True(t, second.Patch.Empty(),
			"phase %s: second evaluation with the same now must patch nothing, got %+v", phase, second.Patch)
	}
}

func TestEvaluateFullLifecycleScenario(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSession(models.SessionPhaseWaitingForPlayers, t0)
	s.StartedAt = &t0

	// t0+61s: waiting -> active.
	tr := Evaluate(s, t0.Add(61*time.Second))
	require.NotNil(t, tr.Patch.Phase)
	require.Equal(t, models.SessionPhaseActive, *tr.Patch.Phase)
	next := tr.Patch.Apply(*s)

	// t0+61+361s: active -> ended with ended_at set.
	endedNow := t0.Add((61 + 361) * time.Second)
	tr = Evaluate(&next, endedNow)
	require.NotNil(t, tr.Patch.Phase)
	require.Equal(t, models.SessionPhaseEnded, *tr.Patch.Phase)
	require.NotNil(t, tr.Patch.EndedAt)
	next = tr.Patch.Apply(next)
	assert.False(t, tr.SpawnReplacement)

	// 120s of cooldown later the replacement is due.
	tr = Evaluate(&next, endedNow.Add(120*time.Second))
	assert.True(t, tr.SpawnReplacement)
}

func TestPatchApplyCopies(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSession(models.SessionPhaseWaitingForPlayers, t0)

	now := t0.Add(time.Second)
	patch := Patch{StartedAt: &now}
	patched := patch.Apply(*s)

	require.NotNil(t, patched.StartedAt)
	assert.NotSame(t, &now, patched.StartedAt, "apply must not alias the patch's pointer")
	assert.Nil(t, s.StartedAt, "original record untouched")
}
