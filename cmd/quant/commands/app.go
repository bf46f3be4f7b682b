package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/screener/internal/datacache"
	"github.com/wonny/screener/internal/external/fundflow"
	"github.com/wonny/screener/internal/external/yahoo"
	"github.com/wonny/screener/internal/indicators"
	"github.com/wonny/screener/internal/marketclock"
	"github.com/wonny/screener/internal/portfolio"
	"github.com/wonny/screener/internal/progress"
	"github.com/wonny/screener/internal/resolver"
	"github.com/wonny/screener/internal/results"
	"github.com/wonny/screener/internal/screenconfig"
	"github.com/wonny/screener/internal/screener"
	"github.com/wonny/screener/internal/worker"
	"github.com/wonny/screener/pkg/config"
	"github.com/wonny/screener/pkg/database"
	"github.com/wonny/screener/pkg/httputil"
	"github.com/wonny/screener/pkg/logger"
	"github.com/wonny/screener/pkg/metrics"
	"github.com/wonny/screener/pkg/redis"
)

// app is the wired process shared by every command
type app struct {
	cfg         *config.Config
	profile     *screenconfig.Config
	profileHash string
	log         *logger.Logger
	metrics     *metrics.Registry
	clock       *marketclock.Clock
	progress    *progress.Coordinator
	parts       datacache.Partitions

	redis       *redis.Client
	db          *database.DB
	resultsRepo *results.Repository
	ledgerRepo  *portfolio.Repository

	collector *results.Collector
	pool      *worker.Pool
}

// newApp wires config, logging, caches, sources and the worker pool
func newApp(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if env != "" {
		cfg.Env = env
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if workers > 0 {
		cfg.Screener.Workers = workers
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Load run profile
	path := profilePath
	if path == "" {
		path = cfg.Screener.ProfilePath
	}
	profile := screenconfig.Default()
	if path != "" {
		if profile, _, err = screenconfig.Load(path); err != nil {
			return nil, fmt.Errorf("load profile %s: %w", path, err)
		}
	}
	hash, err := screenconfig.Hash(profile)
	if err != nil {
		return nil, fmt.Errorf("hash profile: %w", err)
	}

	a := &app{
		cfg:         cfg,
		profile:     profile,
		profileHash: hash,
		log:         log,
		metrics:     metrics.New(),
		clock:       marketclock.NSE(),
	}
	a.progress = progress.New(a.metrics)

	// 4. Shared data cache
	a.redis, err = redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	if a.redis.Enabled() {
		a.parts = datacache.NewRedisPartitions(a.redis, cfg.Redis.Prefix, cfg.Redis.CacheTTL)
		log.Info("Using redis data cache")
	} else {
		a.parts = datacache.NewMemoryPartitions()
	}
	a.parts = datacache.InstrumentPartitions(a.parts, a.metrics)

	// 5. Results store (optional)
	a.db, err = database.New(ctx, cfg)
	switch {
	case errors.Is(err, database.ErrNotConfigured):
		log.Debug("No results database configured")
	case err != nil:
		a.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	default:
		a.resultsRepo = results.NewRepository(a.db.Pool)
		a.ledgerRepo = portfolio.NewRepository(a.db.Pool)
		if err := a.db.Migrate(ctx, a.resultsRepo, a.ledgerRepo); err != nil {
			a.Close()
			return nil, err
		}
		log.Info("Connected to results database")
	}

	// 6. Upstream sources
	limiter := redis.NewRateLimiter(a.redis, cfg.Redis.Prefix)
	chartHTTP, err := httputil.New(cfg, log).
		WithLocalLimit(cfg.Yahoo.RequestsPerSec, 1).
		WithRateLimiter(limiter, redis.YahooRateLimit).
		WithCircuitBreaker("yahoo", 30*time.Second).
		WithProxy(cfg.Yahoo.Proxy)
	if err != nil {
		a.Close()
		return nil, err
	}
	fetcher := yahoo.NewClient(chartHTTP, cfg.Yahoo.BaseURL, log).WithMetrics(a.metrics)

	var toolkitOpts []indicators.Option
	if cfg.FundFlow.Enabled {
		pageHTTP := httputil.NewWithTimeout(cfg, log, cfg.FundFlow.Timeout).
			WithRateLimiter(limiter, redis.FundFlowRateLimit).
			WithCircuitBreaker("fundflow", time.Minute)
		cache := redis.NewCache(a.redis, cfg.Redis.Prefix)
		toolkitOpts = append(toolkitOpts, indicators.WithFundFlow(fundflow.NewClient(pageHTTP, cache, cfg.FundFlow.BaseURL, log)))
	}

	// 7. Pipeline and pool
	res := resolver.New(fetcher, a.clock, a.progress, log)
	pipeline := screener.New(profile, res, indicators.NewToolkit(toolkitOpts...), a.progress, log,
		screener.WithMetrics(a.metrics),
		screener.WithDiagnostic(cfg.Screener.Diagnostic),
	)

	var store results.Store
	if a.resultsRepo != nil {
		store = a.resultsRepo
	}
	a.collector = results.NewCollector(store, 20, log)
	a.pool = worker.New(pipeline, a.collector, a.progress, a.metrics, log, worker.Config{Workers: cfg.Screener.Workers})

	log.WithFields(map[string]interface{}{
		"profile":  profile.Meta.ProfileID,
		"hash":     hash[:12],
		"workers":  cfg.Screener.Workers,
		"exchange": cfg.Screener.Exchange,
	}).Debug("Screener wired")
	return a, nil
}

// exchange returns the request exchange, "" for the primary market
func (a *app) exchange() string {
	if a.cfg.IsPrimaryExchange() {
		return ""
	}
	return a.cfg.Screener.Exchange
}

// Close releases external connections
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close redis")
		}
	}
}
