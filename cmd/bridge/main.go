package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"industrial-bridge/internal/apperr"
	"industrial-bridge/internal/config"
	"industrial-bridge/internal/logging"
	"industrial-bridge/internal/orchestrator"
)

const version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log := logging.New("industrial-bridge", version, cfg.Logging.Level, cfg.Logging.Format)
	log.Info().Msg("starting industrial bridge")

	orch, err := orchestrator.New(cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal().Err(err).Str("kind", string(apperr.KindOf(err))).Msg("failed to build orchestrator")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := orch.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start orchestrator")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := orch.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	log.Info().Msg("shutdown complete")
}
