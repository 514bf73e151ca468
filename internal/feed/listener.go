package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mfield4/skirmish/internal/models"
	"github.com/rs/zerolog/log"
)

// ListenerConfig holds settings for the row-change listener.
type ListenerConfig struct {
	DatabaseURL      string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel    string        // Channel name to LISTEN on
	FallbackInterval time.Duration // How often to publish a convergence snapshot
	ActivityWindow   time.Duration // Presence window for the position snapshot
	PingInterval     time.Duration
}

// DefaultListenerConfig returns default listener configuration.
func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		DatabaseURL:      "",
		NotifyChannel:    "skirmish_row_events",
		FallbackInterval: 30 * time.Second,
		ActivityWindow:   10 * time.Second,
		PingInterval:     90 * time.Second,
	}
}

// EventPublisher is the bus side of the relay.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// SnapshotSource supplies current rows for the fallback path. NOTIFY is
// fire-and-forget, so a dropped notification would otherwise leave mirrors
// stale until the next row change; re-publishing the live rows on a slow
// ticker bounds that staleness.
type SnapshotSource interface {
	GetLatestSession(ctx context.Context) (*models.Session, error)
	ListActiveWithin(ctx context.Context, window time.Duration) ([]models.ParticipantPosition, error)
}

// Listener bridges the row store's LISTEN/NOTIFY change feed onto the event
// bus.
type Listener struct {
	listener  *pq.Listener
	publisher EventPublisher
	source    SnapshotSource
	cfg       ListenerConfig
}

// NewListener opens the LISTEN connection.
func NewListener(publisher EventPublisher, source SnapshotSource, cfg ListenerConfig) (*Listener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().Str("channel", cfg.NotifyChannel).Msg("listening for row notifications")

	return &Listener{
		listener:  l,
		publisher: publisher,
		source:    source,
		cfg:       cfg,
	}, nil
}

// Start pumps notifications onto the bus until the context is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("ping_interval", l.cfg.PingInterval).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Msg("feed listener started")

	pingTicker := time.NewTicker(l.cfg.PingInterval)
	fallbackTicker := time.NewTicker(l.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("feed listener shutting down")
			return l.Stop()
		case note := <-l.listener.Notify:
			if note == nil {
				// nil notification means the connection was lost; pq
				// reconnects internally and re-issues the LISTEN.
				continue
			}
			if err := l.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-fallbackTicker.C:
			if err := l.publishSnapshot(ctx); err != nil {
				log.Error().Err(err).Msg("failed to publish convergence snapshot")
			}
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

// Stop closes the LISTEN connection.
func (l *Listener) Stop() error {
	return l.listener.Close()
}

// handleNotification decodes one NOTIFY payload and republishes it as a bus
// event.
func (l *Listener) handleNotification(ctx context.Context, extra string) error {
	var note Notification
	if err := json.Unmarshal([]byte(extra), &note); err != nil {
		return fmt.Errorf("invalid notification payload: %w", err)
	}

	event := Event{
		ID:        uuid.New(),
		Table:     note.Table,
		Kind:      note.Kind,
		Timestamp: time.Now().UTC(),
		Payload:   note.Payload,
	}

	if err := l.publisher.Publish(ctx, event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().
		Str("table", event.Table).
		Str("kind", string(event.Kind)).
		Msg("row change relayed")
	return nil
}

// publishSnapshot re-publishes the live rows as update events so consumers
// converge even if a NOTIFY was dropped.
func (l *Listener) publishSnapshot(ctx context.Context) error {
	session, err := l.source.GetLatestSession(ctx)
	if err == nil {
		payload, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("marshal session snapshot: %w", err)
		}
		event := Event{
			ID:        uuid.New(),
			Table:     TableSessions,
			Kind:      ChangeUpdate,
			Timestamp: time.Now().UTC(),
			Payload:   payload,
		}
		if err := l.publisher.Publish(ctx, event); err != nil {
			return err
		}
	}

	rows, err := l.source.ListActiveWithin(ctx, l.cfg.ActivityWindow)
	if err != nil {
		return fmt.Errorf("fetch active positions: %w", err)
	}
	for _, row := range rows {
		payload, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal position snapshot: %w", err)
		}
		event := Event{
			ID:        uuid.New(),
			Table:     TablePositions,
			Kind:      ChangeUpdate,
			Timestamp: time.Now().UTC(),
			Payload:   payload,
		}
		if err := l.publisher.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
