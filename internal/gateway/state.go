package gateway

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mfield4/skirmish/internal/feed"
	"github.com/mfield4/skirmish/internal/models"
	"github.com/mfield4/skirmish/internal/round"
)

// StateSnapshot is what the bootstrap endpoint returns: the current session
// and the participants seen recently on the feed. New clients seed their
// mirror from this before the first pushed event arrives.
type StateSnapshot struct {
	Session          *models.Session              `json:"session,omitempty"`
	Phase            models.SessionPhase          `json:"phase,omitempty"`
	RemainingTimeSec int                          `json:"remaining_time_sec"`
	Participants     []models.ParticipantPosition `json:"participants"`
	GeneratedAt      time.Time                    `json:"generated_at"`
}

// StateManager folds feed events into an in-memory snapshot of the round.
type StateManager struct {
	mu           sync.RWMutex
	session      *models.Session
	participants map[string]models.ParticipantPosition
	clock        clockwork.Clock
}

// NewStateManager creates an empty state manager.
func NewStateManager(clock clockwork.Clock) *StateManager {
	return &StateManager{
		participants: make(map[string]models.ParticipantPosition),
		clock:        clock,
	}
}

// Seed installs rows fetched directly from the store at startup.
func (m *StateManager) Seed(session *models.Session, participants []models.ParticipantPosition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = session
	for _, p := range participants {
		m.participants[p.ParticipantID] = p
	}
}

// ProcessEvent folds one feed event into the snapshot.
func (m *StateManager) ProcessEvent(event feed.Event) error {
	switch event.Table {
	case feed.TableSessions:
		var session models.Session
		if err := json.Unmarshal(event.Payload, &session); err != nil {
			return fmt.Errorf("unmarshal session payload: %w", err)
		}
		m.mu.Lock()
		// Ignore history rows: only a newer or current record replaces
		// the snapshot.
		if m.session == nil || !session.CreatedAt.Before(m.session.CreatedAt) {
			m.session = &session
		}
		m.mu.Unlock()

	case feed.TablePositions:
		var row models.ParticipantPosition
		if err := json.Unmarshal(event.Payload, &row); err != nil {
			return fmt.Errorf("unmarshal position payload: %w", err)
		}
		m.mu.Lock()
		m.participants[row.ParticipantID] = row
		m.mu.Unlock()

	default:
		return fmt.Errorf("unknown feed table %q", event.Table)
	}
	return nil
}

// Snapshot returns a copy of the current state with the countdown computed
// against the injected clock.
func (m *StateManager) Snapshot(activityWindow time.Duration) StateSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.clock.Now()
	snap := StateSnapshot{GeneratedAt: now}

	if m.session != nil {
		s := *m.session
		snap.Session = &s
		snap.Phase = s.Phase
		snap.RemainingTimeSec = int(round.RemainingTime(&s, now).Seconds())
	}

	for _, p := range m.participants {
		if now.Sub(p.LastActive) > activityWindow {
			continue
		}
		snap.Participants = append(snap.Participants, p)
	}
	return snap
}

