package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/visitops/backend/internal/config"
	"github.com/visitops/backend/internal/db"
	httpapi "github.com/visitops/backend/internal/http"
	"github.com/visitops/backend/internal/metrics"
	"github.com/visitops/backend/internal/routing"
	"github.com/visitops/backend/internal/solver"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "visitops-backend").Logger()

	metrics.RegisterDefault()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	var adapter solver.Adapter
	if cfg.SolverURL == "" {
		adapter = solver.Engine()
		logger.Info().Msg("using in-process GLPK solver")
	} else {
		adapter = solver.NewHTTPSolver(cfg.SolverURL)
	}

	var optimizer routing.Optimizer
	if cfg.RoutingURL != "" {
		optimizer = &routing.FleetAPI{
			BaseURL: cfg.RoutingURL,
			Parent:  cfg.RoutingParent,
			Token:   cfg.RoutingToken,
			Logger:  logger,
		}
	} else {
		logger.Info().Msg("no routing service configured, using fallback sequencing")
	}

	router := httpapi.Router(cfg, store, adapter, optimizer, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
