package positions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mfield4/skirmish/internal/models"
)

// ErrUnknownParticipant is returned when no position row exists for the id.
var ErrUnknownParticipant = errors.New("unknown participant")

// Repository persists participant position rows. Each participant mutates
// only their own row; remote peers observe it through the change feed.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a position repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertPosition writes a participant's latest observed position and bumps
// last_active. One row per participant; repeated writes overwrite.
func (r *Repository) UpsertPosition(ctx context.Context, sample models.PositionSample) error {
	query := `
		INSERT INTO participant_positions (participant_id, x, y, z, observed_at, last_active)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (participant_id) DO UPDATE
		SET x = $2, y = $3, z = $4, observed_at = $5, last_active = now(), updated_at = now()`

	_, err := r.pool.Exec(ctx, query,
		sample.ParticipantID,
		sample.Position.X,
		sample.Position.Y,
		sample.Position.Z,
		sample.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

// GetPosition returns a single participant's row.
func (r *Repository) GetPosition(ctx context.Context, participantID string) (*models.ParticipantPosition, error) {
	query := `
		SELECT participant_id, x, y, z, observed_at, last_active, updated_at
		FROM participant_positions
		WHERE participant_id = $1`

	row, err := scanPosition(r.pool.QueryRow(ctx, query, participantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnknownParticipant
		}
		return nil, err
	}
	return row, nil
}

// ListActiveWithin returns the rows of participants active within the given
// window, the feed filter clients bootstrap from.
func (r *Repository) ListActiveWithin(ctx context.Context, window time.Duration) ([]models.ParticipantPosition, error) {
	query := `
		SELECT participant_id, x, y, z, observed_at, last_active, updated_at
		FROM participant_positions
		WHERE last_active >= now() - $1::interval
		ORDER BY participant_id`

	rows, err := r.pool.Query(ctx, query, window)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ParticipantPosition
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanPosition(row pgx.Row) (*models.ParticipantPosition, error) {
	var p models.ParticipantPosition
	err := row.Scan(
		&p.ParticipantID,
		&p.Position.X,
		&p.Position.Y,
		&p.Position.Z,
		&p.ObservedAt,
		&p.LastActive,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
