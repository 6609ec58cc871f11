// Harvest CLI: runs one harvest pass from the command line, outside the
// HTTP server and its scheduler. Useful for seeding a fresh database and
// for operating the pipeline from cron on hosts without the server.
//
// Usage:
//
//	go run ./cmd/harvest --mode=full                # replace theses + articles
//	go run ./cmd/harvest --mode=incremental         # append novel OAI records
//	go run ./cmd/harvest --mode=research            # replace research datasets
//	go run ./cmd/harvest --mode=research-incremental
//	go run ./cmd/harvest --mode=fix-urls            # patch missing E-LIS links
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholarhub/backend/internal/config"
	"github.com/scholarhub/backend/internal/harvester"
	"github.com/scholarhub/backend/internal/observability"
	"github.com/scholarhub/backend/internal/repository/postgres"
	"github.com/scholarhub/backend/pkg/fetch"
)

func main() {
	mode := flag.String("mode", "full", "full | incremental | research | research-incremental | fix-urls")
	limit := flag.Int("limit", 0, "per-source cap for incremental modes (0 = configured default)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		boot := observability.NewLogger("info", "console")
		boot.Fatal().Err(err).Msg("loading configuration")
	}
	log := observability.NewLogger(cfg.Logging.Level, "console")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn().Msg("shutdown signal received, stopping at next source boundary")
		cancel()
	}()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("pinging database")
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("ensuring database schema")
	}

	client := fetch.NewClient(fetch.Config{
		Timeout:   cfg.Harvest.HTTPTimeout,
		Retries:   cfg.Harvest.Retries,
		Backoff:   cfg.Harvest.Backoff,
		RateLimit: cfg.Harvest.RateLimit,
	}, log)
	svc := harvester.NewService(cfg.Harvest,
		client,
		postgres.NewRecordRepository(pool),
		postgres.NewMetaRepository(pool),
		log)

	var result interface{}
	switch *mode {
	case "full":
		result, err = svc.FullHarvest(ctx)
	case "incremental":
		result, err = svc.IncrementalHarvest(ctx, *limit)
	case "research":
		result, err = svc.ResearchHarvest(ctx)
	case "research-incremental":
		result, err = svc.ResearchIncrementalHarvest(ctx, *limit)
	case "fix-urls":
		var patched int
		patched, err = svc.FixMissingURLs(ctx)
		result = map[string]int{"patched": patched}
	default:
		log.Fatal().Str("mode", *mode).Msg("unknown mode")
	}
	if err != nil {
		log.Fatal().Str("mode", *mode).Err(err).Msg("harvest failed")
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	os.Stdout.Write(append(out, '\n'))
}
