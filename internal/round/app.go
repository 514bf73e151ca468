package round

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mfield4/skirmish/internal/models"
	"github.com/rs/zerolog/log"
)

// SessionRepository defines what the round app layer needs from the store.
type SessionRepository interface {
	CreateSessionIfNoneActive(ctx context.Context, req CreateSessionRequest) (*models.Session, error)
	GetCurrentSession(ctx context.Context) (*models.Session, error)
	GetLatestSession(ctx context.Context) (*models.Session, error)
	CountActiveSessions(ctx context.Context) (int, error)
	UpdateSession(ctx context.Context, id uuid.UUID, patch Patch) (*models.Session, error)
	UpdateSessionPhaseIf(ctx context.Context, id uuid.UUID, from, to models.SessionPhase) (*models.Session, error)
	ListRecentSessions(ctx context.Context, limit int32) ([]models.Session, error)
}

// App handles round session business logic.
type App struct {
	repo SessionRepository
}

// NewApp creates a new round App.
func NewApp(repo SessionRepository) *App {
	return &App{repo: repo}
}

// GetCurrentSession returns the single non-ended session.
func (a *App) GetCurrentSession(ctx context.Context) (*models.Session, error) {
	return a.repo.GetCurrentSession(ctx)
}

// GetLatestSession returns the most recent session regardless of phase.
func (a *App) GetLatestSession(ctx context.Context) (*models.Session, error) {
	return a.repo.GetLatestSession(ctx)
}

// CreateSession spawns a new round, guarded against concurrent creators.
func (a *App) CreateSession(ctx context.Context, settings models.SessionSettings) (*models.Session, error) {
	if err := validateSettings(settings); err != nil {
		return nil, fmt.Errorf("invalid session settings: %w", err)
	}

	session, err := a.repo.CreateSessionIfNoneActive(ctx, NewSessionRequest(settings))
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Str("assignment_algorithm", session.Settings.AssignmentAlgorithm).
		Msg("session created")
	return session, nil
}

// ApplyPatch writes a transition patch back to the store.
func (a *App) ApplyPatch(ctx context.Context, id uuid.UUID, patch Patch) (*models.Session, error) {
	return a.repo.UpdateSession(ctx, id, patch)
}

// SignalVictory delivers the externally signalled win condition. It only
// lands while the round is active; a stale signal against any other phase
// returns ErrSessionConflict.
func (a *App) SignalVictory(ctx context.Context) (*models.Session, error) {
	current, err := a.repo.GetCurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if current.Phase != models.SessionPhaseActive {
		return nil, fmt.Errorf("%w: victory signalled in phase %s", ErrSessionConflict, current.Phase)
	}

	session, err := a.repo.UpdateSessionPhaseIf(ctx, current.ID, models.SessionPhaseActive, models.SessionPhaseVictory)
	if err != nil {
		return nil, err
	}

	log.Info().Str("session_id", session.ID.String()).Msg("victory signalled")
	return session, nil
}

// CheckSingleActiveInvariant counts non-ended sessions and returns an
// InvariantViolationError when more than one is observed.
func (a *App) CheckSingleActiveInvariant(ctx context.Context) error {
	count, err := a.repo.CountActiveSessions(ctx)
	if err != nil {
		return err
	}
	if count > 1 {
		return &InvariantViolationError{ActiveCount: count}
	}
	return nil
}

// ListRecentSessions returns the newest sessions first.
func (a *App) ListRecentSessions(ctx context.Context, limit int32) ([]models.Session, error) {
	return a.repo.ListRecentSessions(ctx, limit)
}

func validateSettings(s models.SessionSettings) error {
	if s.WaitingDurationSec < 0 || s.ActiveDurationSec <= 0 || s.CooldownDurationSec < 0 {
		return fmt.Errorf("durations must be positive (waiting=%d active=%d cooldown=%d)",
			s.WaitingDurationSec, s.ActiveDurationSec, s.CooldownDurationSec)
	}
	if s.AssignmentAlgorithm == "" {
		return fmt.Errorf("assignment algorithm is required")
	}
	return nil
}
