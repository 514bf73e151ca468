package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mfield4/skirmish/internal/models"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Store is the row-store surface the gateway needs: the initial rows for
// the state manager, so /state is warm before the first feed event
// arrives, and the write path for participant position reports.
type Store interface {
	PositionWriter
	GetLatestSession(ctx context.Context) (*models.Session, error)
	ListActiveWithin(ctx context.Context, window time.Duration) ([]models.ParticipantPosition, error)
}

// Config holds configuration for the gateway service.
type Config struct {
	ConnectionConfig ConnectionConfig
	ConsumerConfig   ConsumerConfig
	ActivityWindow   time.Duration
}

// DefaultConfig returns default gateway configuration.
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		ConsumerConfig:   DefaultConsumerConfig(),
		ActivityWindow:   10 * time.Second,
	}
}

// Service wires the hub, consumer, state manager and HTTP handler together.
type Service struct {
	hub      *Hub
	consumer *Consumer
	state    *StateManager
	handler  *Handler
}

// NewService creates a gateway service, seeding state from the store.
func NewService(ctx context.Context, config Config, store Store, clock clockwork.Clock) (*Service, error) {
	hub := NewHub(config.ConnectionConfig)
	state := NewStateManager(clock)

	session, err := store.GetLatestSession(ctx)
	if err != nil {
		// An empty store is fine; the first feed event seeds it.
		log.Warn().Err(err).Msg("gateway state seed: no session available")
		session = nil
	}
	participants, err := store.ListActiveWithin(ctx, config.ActivityWindow)
	if err != nil {
		return nil, fmt.Errorf("seed participants: %w", err)
	}
	state.Seed(session, participants)

	consumer, err := NewConsumer(hub, state, config.ConsumerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create event consumer: %w", err)
	}

	return &Service{
		hub:      hub,
		consumer: consumer,
		state:    state,
		handler:  NewHandler(hub, state, store, config.ActivityWindow),
	}, nil
}

// Start runs the hub and consumer until the context is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting gateway service")

	go s.hub.Start(ctx)

	go func() {
		if err := s.consumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("event consumer failed")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("gateway service shutting down")
	return s.consumer.Stop()
}

// NewServer wraps the gateway routes in a CORS-enabled h2c server.
func (s *Service) NewServer(port string) *http.Server {
	mux := http.NewServeMux()
	s.handler.RegisterRoutes(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: h2c.NewHandler(c.Handler(mux), &http2.Server{}),
	}
}
