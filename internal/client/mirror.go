package client

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mfield4/skirmish/internal/models"
	"github.com/mfield4/skirmish/internal/round"
)

// Mirror is a read-only local copy of the session record, refreshed by an
// initial snapshot fetch and by change-feed pushes. The rendering layer
// reads phase and countdown from it without polling the scheduler.
type Mirror struct {
	mu      sync.RWMutex
	session *models.Session
	clock   clockwork.Clock
}

// NewMirror creates an empty mirror.
func NewMirror(clock clockwork.Clock) *Mirror {
	return &Mirror{clock: clock}
}

// Update replaces the mirrored session and reports whether the phase
// changed. Records older than the one already mirrored are ignored, so a
// late event for a finished session cannot clobber its replacement and a
// delayed snapshot of the current session cannot regress its phase.
func (m *Mirror) Update(s models.Session) (phaseChanged bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		if m.session.ID != s.ID && s.CreatedAt.Before(m.session.CreatedAt) {
			return false
		}
		if m.session.ID == s.ID && s.UpdatedAt.Before(m.session.UpdatedAt) {
			return false
		}
	}
	phaseChanged = m.session == nil || m.session.ID != s.ID || m.session.Phase != s.Phase
	m.session = &s
	return phaseChanged
}

// Current returns a copy of the mirrored session, or false when no
// session has been seen yet.
func (m *Mirror) Current() (models.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session == nil {
		return models.Session{}, false
	}
	return *m.session, true
}

// CurrentPhase returns the mirrored session's phase, or the empty string
// when none is mirrored.
func (m *Mirror) CurrentPhase() models.SessionPhase {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session == nil {
		return ""
	}
	return m.session.Phase
}

// RemainingTime returns how long the current phase has left, 0 for phases
// without a timer or when no session is mirrored.
func (m *Mirror) RemainingTime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session == nil {
		return 0
	}
	return round.RemainingTime(m.session, m.clock.Now())
}

// Clear forgets the mirrored session.
func (m *Mirror) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
}
