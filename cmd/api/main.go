package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"mediagen/internal/http/handlers"
	"mediagen/internal/http/httpapi"
	"mediagen/internal/infra"
	"mediagen/internal/orchestrator"
	"mediagen/internal/providers"
	"mediagen/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	registry := providers.BuildRegistry(cfg, logger)
	service := orchestrator.New(registry, nil, cfg.PollInterval, logger)

	// The ledger is optional: without DATABASE_URL the API serves without
	// persisting task history.
	var taskStore *store.Store
	if cfg.DatabaseURL != "" {
		ctx := context.Background()
		dbpool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()
		taskStore = store.New(infra.NewSQLRunner(dbpool, logger))
	} else {
		logger.Warn().Msg("DATABASE_URL not set, task ledger disabled")
	}

	for _, p := range registry.Enabled() {
		logger.Info().Str("provider", p.ID()).Int("models", len(p.Models())).Msg("provider enabled")
	}

	app := handlers.NewApp(service, taskStore, logger)
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
