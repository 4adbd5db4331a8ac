// Package intelligence builds per-niche snapshots of what is trending and how
// to write about it.
package intelligence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/content-engine/internal/cache"
	"github.com/jonathan/content-engine/internal/db"
	"github.com/jonathan/content-engine/internal/llm"
	"github.com/jonathan/content-engine/internal/logging"
	"github.com/jonathan/content-engine/internal/prompts"
	"github.com/jonathan/content-engine/internal/schemas"
	"github.com/jonathan/content-engine/internal/types"
)

const (
	// MaxProducts is how many trending products feed a snapshot.
	MaxProducts = 20
	// MaxKeywords is how many keywords a snapshot keeps.
	MaxKeywords = 10
	// MaxAngles is how many content angles are requested.
	MaxAngles = 5

	defaultCacheTTL = time.Hour
)

var (
	// ErrNoTrendData is returned when a niche has no trending products yet.
	ErrNoTrendData = errors.New("no trend data for niche")

	// ErrUnknownNiche is returned for niches outside the catalog.
	ErrUnknownNiche = errors.New("unknown niche")
)

// TrendSource lists a niche's trending products.
type TrendSource interface {
	List(ctx context.Context, niche string, limit int) ([]db.TrendingProduct, error)
}

// Store persists snapshots.
type Store interface {
	CreateSnapshot(ctx context.Context, s *db.IntelligenceSnapshot) (*db.IntelligenceSnapshot, error)
	LatestSnapshot(ctx context.Context, niche string) (*db.IntelligenceSnapshot, error)
}

// Generator is the model router.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Options configures a Service.
type Options struct {
	Cache    cache.Cache
	CacheTTL time.Duration
	Logger   logging.Logger
}

// Service builds and serves intelligence snapshots.
type Service struct {
	trends TrendSource
	store  Store
	gen    Generator
	cache  cache.Cache
	ttl    time.Duration
	logger logging.Logger
}

// NewService creates an intelligence service.
func NewService(trends TrendSource, store Store, gen Generator, opts Options) *Service {
	if opts.Cache == nil {
		opts.Cache = cache.Noop{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Service{
		trends: trends,
		store:  store,
		gen:    gen,
		cache:  opts.Cache,
		ttl:    opts.CacheTTL,
		logger: opts.Logger,
	}
}

func cacheKey(niche string) string {
	return "intelligence:" + niche
}

// Build creates a new snapshot for niche from its current trend data.
func (s *Service) Build(ctx context.Context, niche string) (*db.IntelligenceSnapshot, error) {
	if !types.Niche(niche).Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNiche, niche)
	}

	products, err := s.trends.List(ctx, niche, MaxProducts)
	if err != nil {
		return nil, fmt.Errorf("load trends: %w", err)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTrendData, niche)
	}

	titles := make([]string, len(products))
	for i, p := range products {
		titles[i] = p.Title
	}
	keywords := TopKeywords(titles, MaxKeywords)

	prompt, err := BuildPrompt(niche, products, keywords)
	if err != nil {
		return nil, err
	}
	resp, err := s.gen.Generate(ctx, llm.Request{Prompt: prompt, Tier: llm.TierLite, JSON: true})
	if err != nil {
		return nil, fmt.Errorf("generate insight: %w", err)
	}
	insight, err := ParseInsight(resp.Text)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.store.CreateSnapshot(ctx, &db.IntelligenceSnapshot{
		Niche:    niche,
		Summary:  insight.Summary,
		Keywords: keywords,
		Angles:   insight.Angles,
		Products: titles,
		Provider: string(resp.Provider),
		Model:    resp.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("store snapshot: %w", err)
	}

	if err := s.cache.SetJSON(ctx, cacheKey(niche), snapshot, s.ttl); err != nil {
		s.logger.Warn("snapshot cache write failed", logging.String("niche", niche), logging.Error(err))
	}

	s.logger.Info("intelligence snapshot built",
		logging.String("niche", niche),
		logging.String("snapshot_id", snapshot.ID.String()),
		logging.Int("products", len(titles)),
		logging.Strings("keywords", keywords),
	)
	return snapshot, nil
}

// Latest returns the newest snapshot for niche, or nil when none exists.
func (s *Service) Latest(ctx context.Context, niche string) (*db.IntelligenceSnapshot, error) {
	if !types.Niche(niche).Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNiche, niche)
	}

	var cached db.IntelligenceSnapshot
	found, err := s.cache.GetJSON(ctx, cacheKey(niche), &cached)
	if err != nil {
		s.logger.Warn("snapshot cache read failed", logging.String("niche", niche), logging.Error(err))
	}
	if found {
		return &cached, nil
	}

	snapshot, err := s.store.LatestSnapshot(ctx, niche)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if snapshot != nil {
		if err := s.cache.SetJSON(ctx, cacheKey(niche), snapshot, s.ttl); err != nil {
			s.logger.Warn("snapshot cache write failed", logging.String("niche", niche), logging.Error(err))
		}
	}
	return snapshot, nil
}

// BuildPrompt renders the insight prompt.
func BuildPrompt(niche string, products []db.TrendingProduct, keywords []string) (string, error) {
	var sb strings.Builder
	for i, p := range products {
		fmt.Fprintf(&sb, "%d. %s", i+1, p.Title)
		if p.Mentions > 0 {
			fmt.Fprintf(&sb, " (%d mentions)", p.Mentions)
		}
		sb.WriteString("\n")
	}
	return prompts.Render(prompts.IntelligenceFile, "niche-insight", map[string]string{
		"Niche":     niche,
		"Products":  strings.TrimRight(sb.String(), "\n"),
		"Keywords":  strings.Join(keywords, ", "),
		"MaxAngles": strconv.Itoa(MaxAngles),
	})
}

// ParseInsight validates and decodes the model's insight.
func ParseInsight(raw string) (*types.IntelligenceInsight, error) {
	cleaned := llm.CleanJSONBlock(raw)
	if err := schemas.Validate(schemas.Insight, cleaned); err != nil {
		return nil, fmt.Errorf("insight: %w", err)
	}
	var insight types.IntelligenceInsight
	if err := json.Unmarshal([]byte(cleaned), &insight); err != nil {
		return nil, fmt.Errorf("decode insight: %w", err)
	}
	insight.Summary = strings.TrimSpace(insight.Summary)
	if len(insight.Angles) > MaxAngles {
		insight.Angles = insight.Angles[:MaxAngles]
	}
	return &insight, nil
}
