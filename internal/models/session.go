package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionPhase defines the lifecycle phase of a round session.
type SessionPhase string

const (
	SessionPhaseWaitingForPlayers SessionPhase = "waiting_for_players"
	SessionPhaseActive            SessionPhase = "active"
	SessionPhaseVictory           SessionPhase = "victory"
	SessionPhaseCooldown          SessionPhase = "cooldown"
	SessionPhaseEnded             SessionPhase = "ended"
)

// Terminal reports whether the phase is terminal for the session record.
func (p SessionPhase) Terminal() bool {
	return p == SessionPhaseEnded
}

// Valid reports whether p is one of the known phases.
func (p SessionPhase) Valid() bool {
	switch p {
	case SessionPhaseWaitingForPlayers, SessionPhaseActive, SessionPhaseVictory,
		SessionPhaseCooldown, SessionPhaseEnded:
		return true
	}
	return false
}

// SessionSettings holds the fixed per-round configuration, set at creation
// and inherited by replacement sessions.
type SessionSettings struct {
	WaitingDurationSec  int    `json:"waiting_duration_sec"`
	ActiveDurationSec   int    `json:"active_duration_sec"`
	CooldownDurationSec int    `json:"cooldown_duration_sec"`
	AssignmentAlgorithm string `json:"assignment_algorithm"`
}

// WaitingDuration returns the waiting phase length.
func (s SessionSettings) WaitingDuration() time.Duration {
	return time.Duration(s.WaitingDurationSec) * time.Second
}

// ActiveDuration returns the active phase length.
func (s SessionSettings) ActiveDuration() time.Duration {
	return time.Duration(s.ActiveDurationSec) * time.Second
}

// CooldownDuration returns the cooldown phase length.
func (s SessionSettings) CooldownDuration() time.Duration {
	return time.Duration(s.CooldownDurationSec) * time.Second
}

// Session represents one shared, time-bounded round. At most one non-ended
// session exists at any instant; ended sessions are retained as history.
type Session struct {
	ID        uuid.UUID       `json:"id"`
	Phase     SessionPhase    `json:"phase"`
	Settings  SessionSettings `json:"settings"`
	StartedAt *time.Time      `json:"started_at,omitempty"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
