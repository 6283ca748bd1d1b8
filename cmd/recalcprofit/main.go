// Command recalcprofit rewrites the stored profit of every sale from the
// current product cost prices. Run it after correcting cost data that was
// wrong at the time of sale. Sales referencing deleted products are skipped.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"habibdukan/backend/internal/cache"
	"habibdukan/backend/internal/config"
	"habibdukan/backend/internal/logger"
	"habibdukan/backend/internal/service"
	pgstore "habibdukan/backend/internal/store/postgres"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report what would change without writing")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall time limit")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: "stderr"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log, *dryRun, *timeout); err != nil {
		log.Error("profit recalculation failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger, dryRun bool, timeout time.Duration) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	// Reports cached by a running server must not outlive the rewrite.
	reportCache := cache.ReportCache(cache.NoopReportCache{})
	if cfg.RedisAddr != "" && !dryRun {
		redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn("redis unavailable, cached reports expire on their own", zap.Error(err))
		} else {
			reportCache = redisCache
		}
	}

	svc := service.New(pg, service.Options{
		Location: loc,
		Cache:    reportCache,
		Logger:   log,
		ShopName: cfg.ShopName,
	})

	log.Info("recalculating sale profit", zap.Bool("dry_run", dryRun))
	result, err := svc.RecalculateProfit(ctx, dryRun)
	if err != nil {
		return err
	}

	log.Info("profit recalculation finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("skipped", result.Skipped),
		zap.Strings("missing_products", result.MissingProducts),
	)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
