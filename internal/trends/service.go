package trends

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/content-engine/internal/cache"
	"github.com/jonathan/content-engine/internal/db"
	"github.com/jonathan/content-engine/internal/logging"
	"github.com/jonathan/content-engine/internal/types"
)

const (
	// MaxProducts is how many aggregated products are kept per refresh and cached per niche.
	MaxProducts = 50

	defaultCacheTTL  = 15 * time.Minute
	defaultRetention = 30
)

// Store persists aggregated trends.
type Store interface {
	UpsertTrendingProducts(ctx context.Context, niche string, products []db.TrendingProductInput) error
	ListTrendingProducts(ctx context.Context, niche string, limit int) ([]db.TrendingProduct, error)
	DeleteTrendingProductsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Observer records refresh outcomes.
type Observer interface {
	ObserveTrendRefresh(niche string, err error)
}

// Options configures a Service.
type Options struct {
	Cache         cache.Cache
	CacheTTL      time.Duration
	RetentionDays int
	Observer      Observer
	Logger        logging.Logger
}

// RefreshResult summarises one refresh.
type RefreshResult struct {
	Niche    string            `json:"niche"`
	Products int               `json:"products"`
	Signals  int               `json:"signals"`
	Sources  []string          `json:"sources"`
	Failed   map[string]string `json:"failed,omitempty"`
}

// Service refreshes and serves trending products.
type Service struct {
	store     Store
	providers []Provider
	cache     cache.Cache
	ttl       time.Duration
	retention int
	observer  Observer
	logger    logging.Logger
	now       func() time.Time
}

// NewService creates a trends service.
func NewService(store Store, providers []Provider, opts Options) *Service {
	if opts.Cache == nil {
		opts.Cache = cache.Noop{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = defaultRetention
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Service{
		store:     store,
		providers: providers,
		cache:     opts.Cache,
		ttl:       opts.CacheTTL,
		retention: opts.RetentionDays,
		observer:  opts.Observer,
		logger:    opts.Logger,
		now:       time.Now,
	}
}

// Providers returns the configured provider names.
func (s *Service) Providers() []string {
	names := make([]string, len(s.providers))
	for i, p := range s.providers {
		names[i] = p.Name()
	}
	return names
}

func cacheKey(niche string) string {
	return "trends:" + niche
}

// Refresh fetches every provider concurrently, aggregates the signals and
// stores them. Individual provider failures are logged; the refresh fails only
// when all providers fail.
func (s *Service) Refresh(ctx context.Context, niche string) (*RefreshResult, error) {
	if !types.Niche(niche).Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNiche, niche)
	}
	if len(s.providers) == 0 {
		return nil, ErrNoProviders
	}

	result, err := s.refresh(ctx, niche)
	if s.observer != nil {
		s.observer.ObserveTrendRefresh(niche, err)
	}
	return result, err
}

func (s *Service) refresh(ctx context.Context, niche string) (*RefreshResult, error) {
	fetched := make([][]Signal, len(s.providers))
	errs := make([]error, len(s.providers))

	g, gCtx := errgroup.WithContext(ctx)
	for i, provider := range s.providers {
		g.Go(func() error {
			fetched[i], errs[i] = provider.Fetch(gCtx, niche)
			return nil
		})
	}
	_ = g.Wait()

	// Merge in provider order so the first configured source names a product.
	var (
		signals  []Signal
		sources  []string
		failures []*ProviderError
	)
	for i, provider := range s.providers {
		if errs[i] != nil {
			s.logger.Warn("trend provider failed",
				logging.String("provider", provider.Name()),
				logging.String("niche", niche),
				logging.Error(errs[i]),
			)
			failures = append(failures, &ProviderError{Provider: provider.Name(), Cause: errs[i]})
			continue
		}
		signals = append(signals, fetched[i]...)
		sources = append(sources, provider.Name())
	}

	if len(failures) == len(s.providers) {
		return nil, &RefreshError{Niche: niche, Failures: failures}
	}

	products := Aggregate(signals, MaxProducts)
	if err := s.store.UpsertTrendingProducts(ctx, niche, products); err != nil {
		return nil, fmt.Errorf("store trends: %w", err)
	}
	if err := s.cache.Delete(ctx, cacheKey(niche)); err != nil {
		s.logger.Warn("failed to invalidate trend cache", logging.String("niche", niche), logging.Error(err))
	}

	result := &RefreshResult{
		Niche:    niche,
		Products: len(products),
		Signals:  len(signals),
		Sources:  sources,
	}
	if len(failures) > 0 {
		result.Failed = make(map[string]string, len(failures))
		for _, f := range failures {
			result.Failed[f.Provider] = f.Cause.Error()
		}
	}

	s.logger.Info("trends refreshed",
		logging.String("niche", niche),
		logging.Int("products", result.Products),
		logging.Int("signals", result.Signals),
		logging.Int("failed_providers", len(failures)),
	)
	return result, nil
}

// List returns up to limit trending products for niche, read through the cache.
func (s *Service) List(ctx context.Context, niche string, limit int) ([]db.TrendingProduct, error) {
	if !types.Niche(niche).Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNiche, niche)
	}
	if limit <= 0 || limit > MaxProducts {
		limit = MaxProducts
	}

	var products []db.TrendingProduct
	found, err := s.cache.GetJSON(ctx, cacheKey(niche), &products)
	if err != nil {
		s.logger.Warn("trend cache read failed", logging.String("niche", niche), logging.Error(err))
	}
	if !found {
		products, err = s.store.ListTrendingProducts(ctx, niche, MaxProducts)
		if err != nil {
			return nil, fmt.Errorf("list trends: %w", err)
		}
		if products == nil {
			products = []db.TrendingProduct{}
		}
		if err := s.cache.SetJSON(ctx, cacheKey(niche), products, s.ttl); err != nil {
			s.logger.Warn("trend cache write failed", logging.String("niche", niche), logging.Error(err))
		}
	}

	if len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

// TopProducts returns the titles of the n best trending products for niche.
func (s *Service) TopProducts(ctx context.Context, niche string, n int) ([]string, error) {
	products, err := s.List(ctx, niche, n)
	if err != nil {
		return nil, err
	}
	titles := make([]string, len(products))
	for i, p := range products {
		titles[i] = p.Title
	}
	return titles, nil
}

// Prune deletes trends not refreshed within the retention window.
func (s *Service) Prune(ctx context.Context) (int64, error) {
	cutoff := s.now().AddDate(0, 0, -s.retention)
	n, err := s.store.DeleteTrendingProductsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune trends: %w", err)
	}
	if n > 0 {
		keys := make([]string, 0, len(types.AllNiches()))
		for _, niche := range types.AllNiches() {
			keys = append(keys, cacheKey(string(niche)))
		}
		_ = s.cache.Delete(ctx, keys...)
	}
	s.logger.Info("pruned stale trends", logging.Int64("deleted", n), logging.Time("cutoff", cutoff))
	return n, nil
}
