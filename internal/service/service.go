package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"habibdukan/backend/internal/cache"
	"habibdukan/backend/internal/domain"
	"habibdukan/backend/internal/metrics"
	"habibdukan/backend/internal/restock"
	"habibdukan/backend/internal/store"
)

const (
	// LowStockThreshold is inclusive: stock <= 10 counts as low.
	LowStockThreshold = 10
	// DefaultReportDays is the window used when a report gets no dates.
	DefaultReportDays = 7
	maxReportDays     = 366
	defaultUnit       = "pcs"
)

var taxRate = decimal.RequireFromString("0.10")

var (
	ErrEmptyCart        = errors.New("no items provided")
	ErrProductNotFound  = fmt.Errorf("product %w", store.ErrNotFound)
	ErrInvalidDateRange = errors.New("invalid date range")
	ErrValidation       = errors.New("validation failed")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

func actorName(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.Username
	}
	return "system"
}

type Options struct {
	// Location is the shop's canonical timezone. Defaults to UTC.
	Location *time.Location
	Cache    cache.ReportCache
	CacheTTL time.Duration
	Restock  *restock.Engine
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	ShopName string
	Now      func() time.Time
}

type Service struct {
	repo     store.Repository
	loc      *time.Location
	cache    cache.ReportCache
	cacheTTL time.Duration
	restock  *restock.Engine
	metrics  *metrics.Metrics
	logger   *zap.Logger
	shopName string
	now      func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Cache == nil {
		opts.Cache = cache.NoopReportCache{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	if opts.Restock == nil {
		opts.Restock = restock.NewEngine(DefaultReportDays, 14, LowStockThreshold)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ShopName == "" {
		opts.ShopName = "Habib Dukan"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:     repo,
		loc:      opts.Location,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		restock:  opts.Restock,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		shopName: opts.ShopName,
		now:      opts.Now,
	}
}

func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Service) invalidateReports(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("report cache invalidation failed", zap.Error(err))
	}
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
