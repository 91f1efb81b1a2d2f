package saiCommerce

import (
	"context"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-commerce/cache"
	"github.com/saiset-co/sai-commerce/commerce"
	"github.com/saiset-co/sai-commerce/config"
	"github.com/saiset-co/sai-commerce/database"
	"github.com/saiset-co/sai-commerce/logger"
	"github.com/saiset-co/sai-commerce/metrics"
	"github.com/saiset-co/sai-commerce/middleware"
	"github.com/saiset-co/sai-commerce/ratelimit"
	"github.com/saiset-co/sai-commerce/types"
)

// Service wires the cache and rate-limit layer. Every component receives its
// collaborators explicitly at construction; nothing reads shared mutable
// state behind the caller's back.
type Service struct {
	Config  *types.Config
	Logger  types.Logger
	Metrics *metrics.Metrics

	CacheStore *cache.RedisStore
	Records    *database.CloverStore

	ProductCache *cache.ProductCache
	SearchCache  *cache.SearchCache
	CartCache    *cache.CartCache
	Dedup        *cache.WebhookDeduplicator
	Invalidator  *cache.Invalidator

	Limiter *ratelimit.Limiter

	Products *commerce.Products
	Search   *commerce.Search
	Carts    *commerce.Carts
	Webhooks *commerce.Webhooks

	RateLimit *middleware.RateLimit
	Admin     *middleware.Admin

	scheduler *cron.Cron
	running   atomic.Bool
}

func NewService(configPath string) (*Service, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, types.WrapError(err, "failed to load config")
	}

	log, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		return nil, types.WrapError(err, "failed to build logger")
	}

	m := metrics.New(cfg.Metrics.Namespace)

	store := cache.NewRedisStore(&cfg.Redis, log)

	records, err := database.NewCloverStore(&cfg.Store, log)
	if err != nil {
		return nil, types.WrapError(err, "failed to open record store")
	}

	productCache := cache.NewProductCache(store, log, m)
	searchCache := cache.NewSearchCache(store, log, m)
	cartCache := cache.NewCartCache(store, log, m)
	dedup := cache.NewWebhookDeduplicator(store)
	invalidator := cache.NewInvalidator(productCache, cartCache, searchCache, log, m)

	limiter := ratelimit.NewLimiter(store, log, m, cfg.RateLimit.CommandTimeout.Std())

	products := commerce.NewProducts(records, productCache, invalidator, log)

	svc := &Service{
		Config:  cfg,
		Logger:  log,
		Metrics: m,

		CacheStore: store,
		Records:    records,

		ProductCache: productCache,
		SearchCache:  searchCache,
		CartCache:    cartCache,
		Dedup:        dedup,
		Invalidator:  invalidator,

		Limiter: limiter,

		Products: products,
		Search:   commerce.NewSearch(records, searchCache, log),
		Carts:    commerce.NewCarts(records, cartCache, invalidator, log),
		Webhooks: commerce.NewWebhooks(records, products, dedup, invalidator, log, m),

		RateLimit: middleware.NewRateLimit(limiter, log),
		Admin:     middleware.NewAdmin(limiter, log),

		scheduler: cron.New(),
	}

	return svc, nil
}

// Start launches the maintenance jobs: a periodic health probe against the
// cache store and a sweep of idle local rate-limit windows.
func (s *Service) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return types.ErrServiceAlreadyRunning
	}

	_, err := s.scheduler.AddFunc("@every 30s", func() {
		if err := s.CacheStore.Ping(context.Background()); err != nil {
			s.Logger.Warn("cache store health probe failed", zap.Error(err))
		}
	})
	if err != nil {
		s.running.Store(false)
		return types.WrapError(err, "failed to schedule health probe")
	}

	_, err = s.scheduler.AddFunc("@every 5m", func() {
		if swept := s.Limiter.SweepLocal(); swept > 0 {
			s.Logger.Debug("swept idle local rate-limit windows", zap.Int("count", swept))
		}
	})
	if err != nil {
		s.running.Store(false)
		return types.WrapError(err, "failed to schedule limiter sweep")
	}

	s.scheduler.Start()

	s.Logger.Info("Service started", zap.String("service", s.Config.ServiceName))
	return nil
}

func (s *Service) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return types.ErrServiceNotRunning
	}

	s.scheduler.Stop()

	if err := s.CacheStore.Close(); err != nil {
		s.Logger.Error("failed to close cache store", zap.Error(err))
	}

	if err := s.Records.Close(); err != nil {
		s.Logger.Error("failed to close record store", zap.Error(err))
	}

	s.Logger.Info("Service stopped", zap.String("service", s.Config.ServiceName))
	return nil
}
