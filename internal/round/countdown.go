package round

import (
	"time"

	"github.com/mfield4/skirmish/internal/models"
)

// RemainingTime computes how long the session stays in its current phase.
// The anchor is phase-dependent: started_at for the waiting and active
// phases, ended_at for cooldown, zero for victory and ended. Clients use
// this to render a countdown without polling the scheduler; it is the same
// duration arithmetic Evaluate applies on the server.
func RemainingTime(s *models.Session, now time.Time) time.Duration {
	var deadline time.Time

	switch s.Phase {
	case models.SessionPhaseWaitingForPlayers:
		deadline = startAnchor(s).Add(s.Settings.WaitingDuration())
	case models.SessionPhaseActive:
		deadline = startAnchor(s).Add(s.Settings.ActiveDuration())
	case models.SessionPhaseCooldown:
		if s.EndedAt == nil {
			return 0
		}
		deadline = s.EndedAt.Add(s.Settings.CooldownDuration())
	default:
		return 0
	}

	remaining := deadline.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
