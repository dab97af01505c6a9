// Package main is the entry point for the board game collection service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"board-game-suggestor/internal/catalog"
	"board-game-suggestor/internal/config"
	"board-game-suggestor/internal/handler"
	"board-game-suggestor/internal/pkg/db"
	"board-game-suggestor/internal/pkg/lock"
	"board-game-suggestor/internal/pkg/logger"
	"board-game-suggestor/internal/reconcile"
	"board-game-suggestor/internal/repository"
	"board-game-suggestor/internal/scheduler"
	"board-game-suggestor/internal/service"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Setup(cfg.Log)

	log.Info().Str("version", version).Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := db.Migrate(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	stores := service.Stores{
		Users:       repository.NewUserRepository(dbPool.Pool),
		Collections: repository.NewCollectionRepository(dbPool.Pool),
		Games:       repository.NewGameRepository(dbPool.Pool),
		Mechanics:   repository.NewMechanicRepository(dbPool.Pool),
		Stats:       repository.NewUserMechanicRepository(dbPool.Pool),
	}

	catalogClient := catalog.NewClient(&cfg.Catalog)

	// Shared by HTTP-triggered and scheduled runs.
	runLock := lock.NewKeyedLock()

	pipeline := service.NewPipeline(
		stores,
		catalogClient,
		reconcile.NewFixedDelay(cfg.Pipeline.BatchDelay),
		runLock,
		service.PipelineOptions{
			BatchSize:    cfg.Pipeline.BatchSize,
			GameLinkBase: cfg.Catalog.GameLinkBase,
		},
	)
	collectionService := service.NewCollectionService(stores, cfg.Catalog.GameLinkBase)

	h := handler.New(ctx, handler.Deps{
		Importer: pipeline,
		Reader:   collectionService,
		DB:       dbPool,
		Breaker:  catalogClient,
		Version:  version,
	})

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: handler.NewRouter(h, handler.RouterConfig{
			CORSOrigins:       cfg.Server.CORSOrigins,
			RateLimitRequests: cfg.Server.RateLimitRequests,
			RateLimitWindow:   cfg.Server.RateLimitWindow,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var cronMgr *scheduler.Manager
	if spec := cfg.Schedule.RefreshCron; spec != "" {
		cronMgr = scheduler.NewManager(scheduler.NewRefreshJob(ctx, pipeline))
		if err := cronMgr.Register(spec); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule collection refresh")
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server starting...")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cronMgr != nil {
		cronMgr.Start()
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if cronMgr != nil {
			cronMgr.Stop(shutdownCtx)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown failed")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server exited with error")
		dbPool.Close()
		os.Exit(1)
	}
	log.Info().Msg("Server stopped gracefully")
}
