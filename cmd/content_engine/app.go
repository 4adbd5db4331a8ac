package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jonathan/content-engine/internal/cache"
	"github.com/jonathan/content-engine/internal/config"
	"github.com/jonathan/content-engine/internal/db"
	"github.com/jonathan/content-engine/internal/fetch"
	"github.com/jonathan/content-engine/internal/generation"
	"github.com/jonathan/content-engine/internal/intelligence"
	"github.com/jonathan/content-engine/internal/llm"
	"github.com/jonathan/content-engine/internal/logging"
	"github.com/jonathan/content-engine/internal/metrics"
	"github.com/jonathan/content-engine/internal/retry"
	"github.com/jonathan/content-engine/internal/scheduler"
	"github.com/jonathan/content-engine/internal/trends"
	"github.com/jonathan/content-engine/internal/webhook"
)

// cachePrefix namespaces every Redis key written by the engine.
const cachePrefix = "content-engine:"

// llmTrendLimit is how many products the model is asked for per niche.
const llmTrendLimit = 20

// app holds the wired services shared by the commands.
type app struct {
	cfg     *config.Config
	logger  logging.Logger
	db      *db.DB
	redis   *redis.Client
	cache   cache.Cache
	router  *llm.Router
	metrics *metrics.Metrics

	generation   *generation.Service
	trends       *trends.Service
	intelligence *intelligence.Service
	scheduler    *scheduler.Scheduler
}

// newLogger builds the process logger from the logging config.
func newLogger(cfg config.LoggingConfig) (logging.Logger, error) {
	level := cfg.Level
	if verbose {
		level = "debug"
	}
	return logging.New(logging.Config{Level: level, Development: cfg.Development})
}

// providerSetups lists the configured providers in fallback order.
func providerSetups(cfg config.LLMConfig) []llm.ProviderSetup {
	keys := map[string]string{
		string(llm.ProviderGemini):    cfg.GeminiAPIKey,
		string(llm.ProviderAnthropic): cfg.AnthropicAPIKey,
	}
	setups := make([]llm.ProviderSetup, 0, len(cfg.ProviderOrder))
	for _, name := range cfg.ProviderOrder {
		if keys[name] == "" {
			continue
		}
		setups = append(setups, llm.ProviderSetup{
			Provider: llm.Provider(name),
			APIKey:   keys[name],
			Models:   cfg.Models[name],
		})
	}
	return setups
}

// trendProviders builds the feed, page and model providers from config.
func trendProviders(cfg config.TrendsConfig, gen trends.Generator, logger logging.Logger) []trends.Provider {
	var providers []trends.Provider
	for _, feed := range cfg.Feeds {
		providers = append(providers, trends.NewFeedProvider(feed, fetch.DefaultOptions()))
	}

	var browser fetch.Renderer
	for _, page := range cfg.Pages {
		if page.UseBrowser && browser == nil {
			browser = fetch.NewBrowser(logger)
		}
		providers = append(providers, trends.NewPageProvider(page, fetch.DefaultOptions(), browser, logger))
	}

	if cfg.UseLLM && gen != nil {
		providers = append(providers, trends.NewLLMProvider(gen, llmTrendLimit))
	}
	return providers
}

// newApp loads the configuration and wires every service.
func newApp(ctx context.Context) (_ *app, err error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.Database.AutoMigrate {
		applied, merr := db.Migrate(cfg.Database.URL, db.MigrateUp)
		if merr != nil {
			return nil, merr
		}
		logger.Info("database migrations checked", logging.Bool("applied", applied))
	}

	a.db, err = db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	a.cache = cache.Noop{}
	if cfg.Redis.Address != "" {
		a.redis, err = cache.NewClient(cache.Config{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.cache = cache.New(a.redis, cachePrefix)
	} else {
		logger.Warn("redis not configured, caching and distributed locks disabled")
	}

	a.router, err = llm.NewRouterFromSetup(ctx, providerSetups(cfg.LLM), llm.RouterOptions{
		MaxAttempts:    cfg.LLM.MaxAttempts,
		RequestTimeout: cfg.LLM.RequestTimeout.Duration,
		Retry:          retry.DefaultConfig(),
		Logger:         logger.With(logging.String("component", "llm")),
	})
	if err != nil {
		return nil, err
	}

	a.trends = trends.NewService(a.db, trendProviders(cfg.Trends, a.router, logger), trends.Options{
		Cache:         a.cache,
		CacheTTL:      cfg.Trends.CacheTTL.Duration,
		RetentionDays: cfg.Trends.RetentionDays,
		Observer:      a.metrics,
		Logger:        logger.With(logging.String("component", "trends")),
	})
	a.intelligence = intelligence.NewService(a.trends, a.db, a.router, intelligence.Options{
		Cache:  a.cache,
		Logger: logger.With(logging.String("component", "intelligence")),
	})
	a.generation = generation.NewService(a.db, a.router, generation.Options{
		Insights: a.intelligence,
		Observer: a.metrics,
		Logger:   logger.With(logging.String("component", "generation")),
	})

	webhookRetry := retry.DefaultConfig()
	webhookRetry.MaxAttempts = cfg.Webhook.MaxAttempts
	deliverer := webhook.NewDeliverer(webhook.Options{
		Timeout: cfg.Webhook.Timeout.Duration,
		Retry:   webhookRetry,
		Logger:  logger.With(logging.String("component", "webhook")),
	})

	runner := scheduler.NewRunner(a.db, a.trends, a.generation, scheduler.RunnerOptions{
		Concurrency:            cfg.Scheduler.Concurrency,
		MaxConsecutiveFailures: cfg.Scheduler.MaxConsecutiveFailures,
		Webhooks:               deliverer,
		Observer:               a.metrics,
		Logger:                 logger.With(logging.String("component", "runner")),
	})
	a.scheduler = scheduler.New(a.db, runner, a.cache, scheduler.Options{
		ReloadInterval: cfg.Scheduler.ReloadInterval.Duration,
		LockTTL:        cfg.Scheduler.LockTTL.Duration,
		Observer:       a.metrics,
		Logger:         logger.With(logging.String("component", "scheduler")),
	})

	logger.Info("content engine initialised",
		logging.Strings("providers", a.providerNames()),
		logging.Strings("trend_sources", a.trends.Providers()),
		logging.Bool("redis", a.redis != nil),
	)
	return a, nil
}

// providerNames returns the configured LLM providers in fallback order.
func (a *app) providerNames() []string {
	if a.router == nil {
		return nil
	}
	var names []string
	for _, p := range a.router.Providers() {
		names = append(names, string(p))
	}
	return names
}

// Close releases every connection the app opened.
func (a *app) Close() {
	if a.router != nil {
		if err := a.router.Close(); err != nil {
			a.logger.Warn("failed to close llm clients", logging.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	_ = a.logger.Sync()
}
