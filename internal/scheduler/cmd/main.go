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
	"github.com/mfield4/skirmish/internal/migration"
	"github.com/mfield4/skirmish/internal/round"
	"github.com/mfield4/skirmish/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	port := getEnv("SCHEDULER_PORT", "8082")
	configPath := getEnv("SCHEDULER_CONFIG", "config.yaml")

	config, err := loadConfig(configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", configPath).Msg("config file not loaded, using defaults")
		config = defaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbCfg := dbconfig.NewConfigFromEnv()
	pool, err := dbCfg.Connect(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	if err := migration.Run(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}

	log.Info().
		Str("database", dbCfg.Database).
		Str("port", port).
		Int("waiting_duration_sec", config.Round.WaitingDurationSec).
		Int("active_duration_sec", config.Round.ActiveDurationSec).
		Int("cooldown_duration_sec", config.Round.CooldownDurationSec).
		Msg("starting session scheduler")

	clock := clockwork.NewRealClock()
	app := round.NewApp(round.NewRepository(pool))
	sched := scheduler.NewScheduler(app, clock, config.roundSettings())

	runner := scheduler.NewRunner(sched, clock,
		time.Duration(config.Scheduler.TickIntervalSec)*time.Second)
	go func() {
		if err := runner.Run(ctx); err != nil {
			log.Error().Err(err).Msg("tick runner stopped")
		}
	}()

	server := scheduler.NewServer(scheduler.NewHandler(sched, app), port)
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

	log.Info().Msg("session scheduler shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
