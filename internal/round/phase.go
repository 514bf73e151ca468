package round

import (
	"time"

	"github.com/mfield4/skirmish/internal/models"
)

// Patch is a set of field updates computed by Evaluate. Nil fields are left
// untouched. Applying a patch twice is safe; every field is a plain set.
type Patch struct {
	Phase     *models.SessionPhase `json:"phase,omitempty"`
	StartedAt *time.Time           `json:"started_at,omitempty"`
	EndedAt   *time.Time           `json:"ended_at,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Phase == nil && p.StartedAt == nil && p.EndedAt == nil
}

// Apply returns a copy of s with the patch applied.
func (p Patch) Apply(s models.Session) models.Session {
	if p.Phase != nil {
		s.Phase = *p.Phase
	}
	if p.StartedAt != nil {
		t := *p.StartedAt
		s.StartedAt = &t
	}
	if p.EndedAt != nil {
		t := *p.EndedAt
		s.EndedAt = &t
	}
	return s
}

// Transition is the outcome of evaluating a session against the clock.
// SpawnReplacement is an action for the caller, not a patch: it must be
// performed at most once per session, guarded by a conditional create
// against the store.
type Transition struct {
	Patch            Patch
	SpawnReplacement bool
}

// Evaluate computes the next transition for a session at the given instant.
// It is a pure function: no I/O, no clock reads. Re-running it against the
// patched record with the same now yields an empty patch, so overlapping
// scheduler ticks can apply its output redundantly without double
// transitions. Missing timestamps on partially-written records are
// backfilled to now before the timers are checked.
func Evaluate(s *models.Session, now time.Time) Transition {
	var tr Transition

	switch s.Phase {
	case models.SessionPhaseWaitingForPlayers:
		if s.StartedAt == nil {
			tr.Patch.StartedAt = &now
		}
		if now.Sub(startAnchor(s)) >= s.Settings.WaitingDuration() {
			tr.Patch.Phase = phasePtr(models.SessionPhaseActive)
		}

	case models.SessionPhaseActive:
		if s.StartedAt == nil {
			tr.Patch.StartedAt = &now
		}
		if now.Sub(startAnchor(s)) >= s.Settings.ActiveDuration() {
			tr.Patch.Phase = phasePtr(models.SessionPhaseEnded)
			tr.Patch.EndedAt = &now
		}

	case models.SessionPhaseVictory:
		// No timer: a won round moves straight into cooldown.
		tr.Patch.Phase = phasePtr(models.SessionPhaseCooldown)
		tr.Patch.EndedAt = &now

	case models.SessionPhaseCooldown:
		if s.EndedAt == nil {
			tr.Patch.EndedAt = &now
			break
		}
		if now.Sub(*s.EndedAt) >= s.Settings.CooldownDuration() {
			tr.Patch.Phase = phasePtr(models.SessionPhaseEnded)
			tr.SpawnReplacement = true
		}

	case models.SessionPhaseEnded:
		if s.EndedAt == nil {
			tr.Patch.EndedAt = &now
			break
		}
		// Terminal for this record. The successor is spawned once the
		// cooldown window has passed since the round ended.
		if now.Sub(*s.EndedAt) >= s.Settings.CooldownDuration() {
			tr.SpawnReplacement = true
		}
	}

	return tr
}

// startAnchor is the timer anchor for the waiting and active phases.
func startAnchor(s *models.Session) time.Time {
	if s.StartedAt != nil {
		return *s.StartedAt
	}
	return s.CreatedAt
}

func phasePtr(p models.SessionPhase) *models.SessionPhase {
	return &p
}
