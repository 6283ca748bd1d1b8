package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"habibdukan/backend/internal/cache"
	"habibdukan/backend/internal/config"
	"habibdukan/backend/internal/domain"
	"habibdukan/backend/internal/httpapi"
	"habibdukan/backend/internal/logger"
	"habibdukan/backend/internal/metrics"
	"habibdukan/backend/internal/restock"
	"habibdukan/backend/internal/service"
	"habibdukan/backend/internal/store"
	"habibdukan/backend/internal/store/memory"
	pgstore "habibdukan/backend/internal/store/postgres"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: cfg.LogOutput})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal("invalid security configuration", zap.Error(err))
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatal("invalid timezone", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", zap.Error(err))
		}
		if cfg.MigrateOnStart {
			if err := pg.Migrate(log); err != nil {
				log.Fatal("database migration failed", zap.Error(err))
			}
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Info("repository: in-memory")
	}

	reportCache := cache.ReportCache(cache.NoopReportCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn("redis unavailable, using noop cache", zap.Error(err))
		} else {
			reportCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Info("cache: redis", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		log.Info("cache: noop")
	}

	m := metrics.New()
	svc := service.New(repo, service.Options{
		Location: loc,
		Cache:    reportCache,
		CacheTTL: cfg.ReportCacheTTL(),
		Restock:  restock.NewEngine(service.DefaultReportDays, 14, service.LowStockThreshold),
		Metrics:  m,
		Logger:   log.Named("service"),
		ShopName: cfg.ShopName,
	})

	auth, err := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(),
		httpapi.Account{Username: cfg.OwnerUsername, Password: cfg.OwnerPassword, Role: domain.RoleOwner},
		httpapi.Account{Username: cfg.CashierUsername, Password: cfg.CashierPassword, Role: domain.RoleCashier},
	)
	if err != nil {
		log.Fatal("auth setup failed", zap.Error(err))
	}

	api, err := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		Metrics:       m,
		Logger:        log.Named("http"),
	})
	if err != nil {
		log.Fatal("api setup failed", zap.Error(err))
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("habib dukan backend listening",
			zap.String("addr", cfg.Address()),
			zap.String("timezone", loc.String()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error("close error", zap.Error(err))
		}
	}

	log.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return errors.New("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.OwnerUsername == "" {
		return errors.New("OWNER_USERNAME must be set")
	}
	if err := validatePasswordStrength(cfg.OwnerPassword); err != nil {
		return fmt.Errorf("OWNER_PASSWORD is too weak: %w", err)
	}
	if cfg.CashierPassword != "" {
		if err := validatePasswordStrength(cfg.CashierPassword); err != nil {
			return fmt.Errorf("CASHIER_PASSWORD is too weak: %w", err)
		}
	}
	return nil
}

// validatePasswordStrength rejects short passwords, a known-weak list,
// single repeated characters and plain ascending or descending runs.
// Existing bcrypt hashes are accepted as is.
func validatePasswordStrength(password string) error {
	if strings.HasPrefix(password, "$2a$") || strings.HasPrefix(password, "$2b$") || strings.HasPrefix(password, "$2y$") {
		return nil
	}
	if len(password) < 8 {
		return errors.New("must be at least 8 characters")
	}

	known := map[string]bool{
		"password": true, "password1": true, "12345678": true, "123456789": true,
		"87654321": true, "qwertyui": true, "qwerty123": true, "admin123": true,
		"owner123": true, "habibdukan": true, "iloveyou": true, "11111111": true,
	}
	if known[strings.ToLower(password)] {
		return errors.New("common password not allowed")
	}

	allSame := true
	for i := 1; i < len(password); i++ {
		if password[i] != password[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return errors.New("repeated-character password not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(password); i++ {
		diff := int(password[i]) - int(password[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return errors.New("sequential password not allowed")
	}

	return nil
}
