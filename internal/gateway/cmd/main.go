package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/mfield4/skirmish/internal/dbconfig"
	"github.com/mfield4/skirmish/internal/gateway"
	"github.com/mfield4/skirmish/internal/models"
	"github.com/mfield4/skirmish/internal/positions"
	"github.com/mfield4/skirmish/internal/round"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	port := getEnv("GATEWAY_PORT", "8084")
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
		Str("port", port).
		Msg("starting gateway")

	config := gateway.DefaultConfig()
	config.ConsumerConfig.URL = natsURL

	store := gatewayStore{
		sessions:  round.NewRepository(pool),
		positions: positions.NewRepository(pool),
	}

	service, err := gateway.NewService(ctx, config, store, clockwork.NewRealClock())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway service")
	}

	go func() {
		if err := service.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	server := service.NewServer(port)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	cancel()

	log.Info().Msg("gateway shutdown complete")
}

// gatewayStore joins the repositories behind the gateway's store surface.
type gatewayStore struct {
	sessions  *round.Repository
	positions *positions.Repository
}

func (s gatewayStore) GetLatestSession(ctx context.Context) (*models.Session, error) {
	return s.sessions.GetLatestSession(ctx)
}

func (s gatewayStore) ListActiveWithin(ctx context.Context, window time.Duration) ([]models.ParticipantPosition, error) {
	return s.positions.ListActiveWithin(ctx, window)
}

func (s gatewayStore) UpsertPosition(ctx context.Context, sample models.PositionSample) error {
	return s.positions.UpsertPosition(ctx, sample)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
