package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mfield4/skirmish/internal/dbconfig"
	"github.com/mfield4/skirmish/internal/feed"
	"github.com/mfield4/skirmish/internal/models"
	"github.com/mfield4/skirmish/internal/positions"
	"github.com/mfield4/skirmish/internal/round"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// The relay bridges Postgres row notifications onto JetStream, where the
// gateway fans them out to connected clients.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	natsURL := getEnv("NATS_URL", "nats://localhost:4222")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbCfg := dbconfig.NewConfigFromEnv()
	pool, err := dbCfg.Connect(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	log.Info().
		Str("database", dbCfg.Database).
		Str("nats_url", natsURL).
		Msg("starting feed relay")

	publisherCfg := feed.DefaultPublisherConfig()
	publisherCfg.URL = natsURL
	publisher, err := feed.NewPublisher(ctx, publisherCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to NATS")
	}
	defer publisher.Close()

	source := snapshotSource{
		sessions:  round.NewRepository(pool),
		positions: positions.NewRepository(pool),
	}

	listenerCfg := feed.DefaultListenerConfig()
	listenerCfg.DatabaseURL = dbCfg.DSN()
	listener, err := feed.NewListener(publisher, source, listenerCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open row listener")
	}

	go func() {
		if err := listener.Start(ctx); err != nil {
			log.Error().Err(err).Msg("feed listener stopped")
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-ctx.Done():
	}

	cancel()
	if err := listener.Stop(); err != nil {
		log.Error().Err(err).Msg("listener close failed")
	}

	log.Info().Msg("feed relay shutdown complete")
}

// snapshotSource joins the two repositories behind the fallback snapshot.
type snapshotSource struct {
	sessions  *round.Repository
	positions *positions.Repository
}

func (s snapshotSource) GetLatestSession(ctx context.Context) (*models.Session, error) {
	return s.sessions.GetLatestSession(ctx)
}

func (s snapshotSource) ListActiveWithin(ctx context.Context, window time.Duration) ([]models.ParticipantPosition, error) {
	return s.positions.ListActiveWithin(ctx, window)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
