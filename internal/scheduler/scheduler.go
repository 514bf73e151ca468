package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mfield4/skirmish/internal/models"
	"github.com/mfield4/skirmish/internal/round"
	"github.com/rs/zerolog/log"
)

// SessionApp defines what the scheduler needs from the round app.
type SessionApp interface {
	GetLatestSession(ctx context.Context) (*models.Session, error)
	CreateSession(ctx context.Context, settings models.SessionSettings) (*models.Session, error)
	ApplyPatch(ctx context.Context, id uuid.UUID, patch round.Patch) (*models.Session, error)
	CheckSingleActiveInvariant(ctx context.Context) error
}

// TickResult is the structured response of a scheduler invocation. A no-op
// tick (nothing due) is a success with NoOp set; failure carries Error.
type TickResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	NoOp    bool            `json:"no_op,omitempty"`
	Session *models.Session `json:"session,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Scheduler advances the shared session through its phases. Tick is invoked
// by an external periodic trigger with no guarantee of non-overlapping
// invocations; every write it performs is either an idempotent field set or
// an atomic conditional create, so concurrent ticks converge on the same
// state.
type Scheduler struct {
	app        SessionApp
	clock      clockwork.Clock
	defaults   models.SessionSettings
	instanceID string
}

// NewScheduler creates a scheduler with the given default round settings.
func NewScheduler(app SessionApp, clock clockwork.Clock, defaults models.SessionSettings) *Scheduler {
	return &Scheduler{
		app:        app,
		clock:      clock,
		defaults:   defaults,
		instanceID: uuid.New().String()[:8],
	}
}

// Tick fetches the latest session, runs the phase state machine against the
// current time, writes any patches back, and spawns a replacement session
// when one is due. Store errors abort the tick; the next invocation
// re-derives the correct patches from whatever was actually persisted.
func (s *Scheduler) Tick(ctx context.Context) (*TickResult, error) {
	now := s.clock.Now()

	latest, err := s.app.GetLatestSession(ctx)
	if err != nil {
		if errors.Is(err, round.ErrNoSessions) {
			return s.createInitialSession(ctx)
		}
		log.Error().Err(err).Str("instance", s.instanceID).Msg("tick: fetch latest session failed")
		return failure("failed to fetch session", err), err
	}

	if err := s.app.CheckSingleActiveInvariant(ctx); err != nil {
		var iv *round.InvariantViolationError
		if errors.As(err, &iv) {
			// Logged only. Later ticks self-heal once the extra rounds
			// time out into ended.
			log.Warn().
				Int("active_count", iv.ActiveCount).
				Str("instance", s.instanceID).
				Msg("tick: more than one non-ended session observed")
		} else {
			log.Error().Err(err).Str("instance", s.instanceID).Msg("tick: invariant check failed")
			return failure("failed invariant check", err), err
		}
	}

	tr := round.Evaluate(latest, now)

	if !tr.Patch.Empty() {
		patched, err := s.app.ApplyPatch(ctx, latest.ID, tr.Patch)
		if err != nil {
			log.Error().Err(err).
				Str("session_id", latest.ID.String()).
				Str("instance", s.instanceID).
				Msg("tick: patch write failed")
			return failure("failed to apply session patch", err), err
		}
		if tr.Patch.Phase != nil {
			log.Info().
				Str("session_id", patched.ID.String()).
				Str("from", string(latest.Phase)).
				Str("to", string(patched.Phase)).
				Str("instance", s.instanceID).
				Msg("session phase advanced")
		}
		latest = patched
	}

	if tr.SpawnReplacement {
		return s.spawnReplacement(ctx, latest)
	}

	if tr.Patch.Empty() {
		return &TickResult{
			Success: true,
			NoOp:    true,
			Message: "no transition due",
			Session: latest,
		}, nil
	}

	return &TickResult{
		Success: true,
		Message: fmt.Sprintf("session patched to phase %s", latest.Phase),
		Session: latest,
	}, nil
}

// createInitialSession handles the empty-store case: the very first round
// is created with the configured default settings.
func (s *Scheduler) createInitialSession(ctx context.Context) (*TickResult, error) {
	session, err := s.app.CreateSession(ctx, s.defaults)
	if err != nil {
		if errors.Is(err, round.ErrSessionConflict) {
			// A concurrent tick won the create. Not a failure.
			return &TickResult{Success: true, NoOp: true, Message: "session already created"}, nil
		}
		log.Error().Err(err).Str("instance", s.instanceID).Msg("tick: initial session create failed")
		return failure("failed to create initial session", err), err
	}
	return &TickResult{
		Success: true,
		Message: "initial session created",
		Session: session,
	}, nil
}

// spawnReplacement creates the successor round, inheriting the
// predecessor's durations and assignment algorithm. The conditional create
// in the repository guarantees at most one replacement even when two
// overlapping ticks both observe the same due session.
func (s *Scheduler) spawnReplacement(ctx context.Context, predecessor *models.Session) (*TickResult, error) {
	session, err := s.app.CreateSession(ctx, predecessor.Settings)
	if err != nil {
		if errors.Is(err, round.ErrSessionConflict) {
			log.Debug().
				Str("predecessor_id", predecessor.ID.String()).
				Str("instance", s.instanceID).
				Msg("replacement already spawned by a concurrent tick")
			return &TickResult{Success: true, NoOp: true, Message: "replacement already spawned"}, nil
		}
		log.Error().Err(err).
			Str("predecessor_id", predecessor.ID.String()).
			Str("instance", s.instanceID).
			Msg("tick: replacement create failed")
		return failure("failed to spawn replacement session", err), err
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Str("predecessor_id", predecessor.ID.String()).
		Str("instance", s.instanceID).
		Msg("replacement session spawned")
	return &TickResult{
		Success: true,
		Message: "replacement session spawned",
		Session: session,
	}, nil
}

func failure(message string, err error) *TickResult {
	return &TickResult{
		Success: false,
		Message: message,
		Error:   err.Error(),
	}
}
