package round

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mfield4/skirmish/internal/models"
)

// Repository persists session records in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a session repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const sessionColumns = `
	id, phase, waiting_duration_sec, active_duration_sec, cooldown_duration_sec,
	assignment_algorithm, started_at, ended_at, created_at, updated_at`

// CreateSessionIfNoneActive inserts a new session only if no non-ended
// session currently exists. The WHERE NOT EXISTS guard makes the check and
// the insert a single atomic statement, so two overlapping scheduler ticks
// cannot both spawn a replacement (a partial unique index backs the same
// invariant at the storage level). Losing the race returns ErrSessionConflict.
func (r *Repository) CreateSessionIfNoneActive(ctx context.Context, req CreateSessionRequest) (*models.Session, error) {
	query := `
		INSERT INTO sessions (
			id, phase, waiting_duration_sec, active_duration_sec,
			cooldown_duration_sec, assignment_algorithm, started_at
		)
		SELECT $1, $2, $3, $4, $5, $6, now()
		WHERE NOT EXISTS (
			SELECT 1 FROM sessions WHERE phase <> 'ended'
		)
		RETURNING` + sessionColumns

	row := r.pool.QueryRow(ctx, query,
		req.ID,
		req.Phase,
		req.Settings.WaitingDurationSec,
		req.Settings.ActiveDurationSec,
		req.Settings.CooldownDurationSec,
		req.Settings.AssignmentAlgorithm,
	)

	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionConflict
		}
		return nil, &StoreError{Op: "create session", Err: err}
	}
	return session, nil
}

// GetCurrentSession returns the single non-ended session, or
// ErrNoActiveSession when every stored round has ended.
func (r *Repository) GetCurrentSession(ctx context.Context) (*models.Session, error) {
	query := `
		SELECT` + sessionColumns + `
		FROM sessions
		WHERE phase <> 'ended'
		ORDER BY created_at DESC
		LIMIT 1`

	session, err := scanSession(r.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveSession
		}
		return nil, &StoreError{Op: "get current session", Err: err}
	}
	return session, nil
}

// GetLatestSession returns the most recently created session regardless of
// phase, or ErrNoSessions on an empty store.
func (r *Repository) GetLatestSession(ctx context.Context) (*models.Session, error) {
	query := `
		SELECT` + sessionColumns + `
		FROM sessions
		ORDER BY created_at DESC
		LIMIT 1`

	session, err := scanSession(r.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoSessions
		}
		return nil, &StoreError{Op: "get latest session", Err: err}
	}
	return session, nil
}

// CountActiveSessions counts non-ended sessions. Anything above one is an
// invariant violation the scheduler logs and leaves for self-healing.
func (r *Repository) CountActiveSessions(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM sessions WHERE phase <> 'ended'`,
	).Scan(&count)
	if err != nil {
		return 0, &StoreError{Op: "count active sessions", Err: err}
	}
	return count, nil
}

// UpdateSession applies a patch to a session record. Every patched field is
// a plain set, so redundant applications from overlapping ticks converge.
func (r *Repository) UpdateSession(ctx context.Context, id uuid.UUID, patch Patch) (*models.Session, error) {
	query := `
		UPDATE sessions
		SET phase      = COALESCE($2, phase),
		    started_at = COALESCE($3, started_at),
		    ended_at   = COALESCE($4, ended_at),
		    updated_at = now()
		WHERE id = $1
		RETURNING` + sessionColumns

	session, err := scanSession(r.pool.QueryRow(ctx, query, id, patch.Phase, patch.StartedAt, patch.EndedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoSessions
		}
		return nil, &StoreError{Op: "update session", Err: err}
	}
	return session, nil
}

// UpdateSessionPhaseIf moves a session from one phase to another only if it
// is still in the expected phase. Used by the externally signalled victory
// path so a stale signal cannot resurrect a finished round.
func (r *Repository) UpdateSessionPhaseIf(ctx context.Context, id uuid.UUID, from, to models.SessionPhase) (*models.Session, error) {
	query := `
		UPDATE sessions
		SET phase = $3, updated_at = now()
		WHERE id = $1 AND phase = $2
		RETURNING` + sessionColumns

	session, err := scanSession(r.pool.QueryRow(ctx, query, id, from, to))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionConflict
		}
		return nil, &StoreError{Op: "update session phase", Err: err}
	}
	return session, nil
}

// ListRecentSessions returns up to limit sessions, newest first. Ended
// rounds are retained as history, so this is also the round archive.
func (r *Repository) ListRecentSessions(ctx context.Context, limit int32) ([]models.Session, error) {
	query := `
		SELECT` + sessionColumns + `
		FROM sessions
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, &StoreError{Op: "list recent sessions", Err: err}
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, &StoreError{Op: "list recent sessions", Err: err}
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "list recent sessions", Err: err}
	}
	return sessions, nil
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var (
		s         models.Session
		startedAt *time.Time
		endedAt   *time.Time
	)
	err := row.Scan(
		&s.ID,
		&s.Phase,
		&s.Settings.WaitingDurationSec,
		&s.Settings.ActiveDurationSec,
		&s.Settings.CooldownDurationSec,
		&s.Settings.AssignmentAlgorithm,
		&startedAt,
		&endedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.StartedAt = startedAt
	s.EndedAt = endedAt
	return &s, nil
}
