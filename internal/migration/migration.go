package migration

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id UUID PRIMARY KEY,
		phase TEXT NOT NULL DEFAULT 'waiting_for_players',
		waiting_duration_sec INTEGER NOT NULL,
		active_duration_sec INTEGER NOT NULL,
		cooldown_duration_sec INTEGER NOT NULL,
		assignment_algorithm TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ,
		ended_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	// At most one non-ended session system-wide. The conditional insert in
	// the session repository checks the same condition; this index makes the
	// store reject a second live row even if that guard is ever bypassed.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_single_active
		ON sessions ((true)) WHERE phase <> 'ended'`,

	`CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions (created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS participant_positions (
		participant_id TEXT PRIMARY KEY,
		x DOUBLE PRECISION NOT NULL,
		y DOUBLE PRECISION NOT NULL,
		z DOUBLE PRECISION NOT NULL,
		observed_at TIMESTAMPTZ NOT NULL,
		last_active TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_positions_last_active
		ON participant_positions (last_active)`,

	// Row-change notifications for the feed relay. The payload mirrors the
	// JSON shape the Go models unmarshal, so the relay republishes it as-is.
	`CREATE OR REPLACE FUNCTION notify_skirmish_row() RETURNS trigger AS $fn$
	DECLARE
		payload json;
	BEGIN
		IF TG_TABLE_NAME = 'sessions' THEN
			payload := json_build_object(
				'id', NEW.id,
				'phase', NEW.phase,
				'settings', json_build_object(
					'waiting_duration_sec', NEW.waiting_duration_sec,
					'active_duration_sec', NEW.active_duration_sec,
					'cooldown_duration_sec', NEW.cooldown_duration_sec,
					'assignment_algorithm', NEW.assignment_algorithm
				),
				'started_at', NEW.started_at,
				'ended_at', NEW.ended_at,
				'created_at', NEW.created_at,
				'updated_at', NEW.updated_at
			);
		ELSE
			payload := json_build_object(
				'participant_id', NEW.participant_id,
				'position', json_build_object('x', NEW.x, 'y', NEW.y, 'z', NEW.z),
				'observed_at', NEW.observed_at,
				'last_active', NEW.last_active,
				'updated_at', NEW.updated_at
			);
		END IF;
		PERFORM pg_notify('skirmish_row_events', json_build_object(
			'table', TG_TABLE_NAME,
			'kind', lower(TG_OP),
			'payload', payload
		)::text);
		RETURN NEW;
	END;
	$fn$ LANGUAGE plpgsql`,

	`DROP TRIGGER IF EXISTS sessions_notify ON sessions`,
	`CREATE TRIGGER sessions_notify
		AFTER INSERT OR UPDATE ON sessions
		FOR EACH ROW EXECUTE FUNCTION notify_skirmish_row()`,

	`DROP TRIGGER IF EXISTS participant_positions_notify ON participant_positions`,
	`CREATE TRIGGER participant_positions_notify
		AFTER INSERT OR UPDATE ON participant_positions
		FOR EACH ROW EXECUTE FUNCTION notify_skirmish_row()`,
}

// Run applies the schema idempotently. Every statement is guarded with IF
// NOT EXISTS or CREATE OR REPLACE, so reruns on an existing database are
// no-ops.
func Run(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
