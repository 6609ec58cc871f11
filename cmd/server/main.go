package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholarhub/backend/internal/config"
	delivery "github.com/scholarhub/backend/internal/delivery/http"
	"github.com/scholarhub/backend/internal/harvester"
	"github.com/scholarhub/backend/internal/middleware"
	"github.com/scholarhub/backend/internal/observability"
	"github.com/scholarhub/backend/internal/repository/postgres"
	"github.com/scholarhub/backend/internal/scheduler"
	"github.com/scholarhub/backend/internal/search"
	"github.com/scholarhub/backend/pkg/fetch"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := observability.NewLogger("info", "console")
		boot.Fatal().Err(err).Msg("loading configuration")
	}

	log := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	log.Info().Str("port", cfg.Server.Port).Msg("scholarhub backend starting")

	// Connect to PostgreSQL with retry
	var pool *pgxpool.Pool
	for attempt := 1; attempt <= 5; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err = pgxpool.New(ctx, cfg.Database.URL)
		if err == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				cancel()
				log.Info().Msg("connected to postgres")
				break
			} else {
				pool.Close()
				err = pingErr
			}
		}
		cancel()
		log.Warn().Int("attempt", attempt).Err(err).Msg("database not ready")
		if attempt == 5 {
			log.Fatal().Msg("could not connect to database after 5 attempts")
		}
		time.Sleep(time.Duration(attempt) * 2 * time.Second)
	}
	defer pool.Close()

	if err := postgres.EnsureSchema(context.Background(), pool); err != nil {
		log.Fatal().Err(err).Msg("ensuring database schema")
	}

	// Repositories
	recordRepo := postgres.NewRecordRepository(pool)
	metaRepo := postgres.NewMetaRepository(pool)

	// Harvest pipeline
	client := fetch.NewClient(fetch.Config{
		Timeout:   cfg.Harvest.HTTPTimeout,
		Retries:   cfg.Harvest.Retries,
		Backoff:   cfg.Harvest.Backoff,
		RateLimit: cfg.Harvest.RateLimit,
	}, log)
	harvestService := harvester.NewService(cfg.Harvest, client, recordRepo, metaRepo, log)
	engine := search.NewEngine(recordRepo, log)

	// HTTP surface
	sourceCount := len(cfg.Harvest.DSpaceRepos) + 1 + len(harvester.ResearchSources)
	handler := delivery.NewHandler(harvestService, engine, sourceCount)
	authMiddleware := middleware.NewAuthMiddleware(cfg.Admin.JWTSecret)
	router := delivery.NewRouter(handler, authMiddleware, cfg.CORS.AllowedOrigins)

	// Scheduled harvests
	sched := scheduler.New(harvestService, cfg.Harvest, log)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("starting scheduler")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}
