// Package generation turns a generation request into stored, platform-ready content.
package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/content-engine/internal/db"
	"github.com/jonathan/content-engine/internal/llm"
	"github.com/jonathan/content-engine/internal/logging"
	"github.com/jonathan/content-engine/internal/schemas"
	"github.com/jonathan/content-engine/internal/spartan"
	"github.com/jonathan/content-engine/internal/types"
)

// Store persists generations.
type Store interface {
	CreateGeneration(ctx context.Context, input *db.GenerationInput) (*db.ContentGeneration, error)
	GetGeneration(ctx context.Context, userID, id uuid.UUID) (*db.ContentGeneration, error)
	ListGenerations(ctx context.Context, userID uuid.UUID, filters db.GenerationFilters) ([]db.ContentGeneration, error)
	DeleteGeneration(ctx context.Context, userID, id uuid.UUID) error
	RateGeneration(ctx context.Context, userID, id uuid.UUID, rating int) error
	GetGenerationStats(ctx context.Context, userID uuid.UUID) (*db.GenerationStats, error)
}

// Generator is the model router.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// InsightSource supplies the latest intelligence snapshot for a niche.
type InsightSource interface {
	Latest(ctx context.Context, niche string) (*db.IntelligenceSnapshot, error)
}

// Observer records generation outcomes.
type Observer interface {
	ObserveGeneration(provider string, fallback bool, err error, d time.Duration)
}

// Draft is generated content that has not been stored.
type Draft struct {
	Content      types.GeneratedContent
	Provider     string
	Model        string
	FallbackUsed bool
	Latency      time.Duration
}

// Service runs the generation pipeline.
type Service struct {
	store    Store
	gen      Generator
	insights InsightSource
	observer Observer
	logger   logging.Logger
}

// Options holds the optional collaborators of a Service.
type Options struct {
	Insights InsightSource
	Observer Observer
	Logger   logging.Logger
}

// NewService creates a generation service. store may be nil for callers that
// only use Draft.
func NewService(store Store, gen Generator, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Service{
		store:    store,
		gen:      gen,
		insights: opts.Insights,
		observer: opts.Observer,
		logger:   opts.Logger,
	}
}

// Draft validates req, calls the model and returns the normalised content
// without storing it.
func (s *Service) Draft(ctx context.Context, req *types.GenerateRequest) (*Draft, error) {
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Message: "invalid generation request", Cause: err}
	}

	var snapshot *db.IntelligenceSnapshot
	if req.UseTrendContext && s.insights != nil {
		var err error
		snapshot, err = s.insights.Latest(ctx, string(req.Niche))
		if err != nil {
			s.logger.Warn("trend context unavailable, generating without it",
				logging.String("niche", string(req.Niche)),
				logging.Error(err),
			)
			snapshot = nil
		}
	}

	prompt, err := BuildPrompt(req, snapshot)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	start := time.Now()
	resp, err := s.gen.Generate(ctx, llm.Request{
		Prompt:    prompt,
		Tier:      llm.TierStandard,
		JSON:      true,
		Preferred: llm.Provider(req.Provider),
	})
	if err != nil {
		s.observe("", false, err, time.Since(start))
		return nil, fmt.Errorf("generate content: %w", err)
	}

	content, err := ParseContent(resp.Text)
	if err != nil {
		s.observe(string(resp.Provider), resp.FallbackUsed, err, time.Since(start))
		return nil, err
	}
	s.observe(string(resp.Provider), resp.FallbackUsed, nil, time.Since(start))

	if req.Spartan {
		content = spartan.FormatContent(content)
	}
	content = Normalize(content, req.Platforms)

	return &Draft{
		Content:      content,
		Provider:     string(resp.Provider),
		Model:        resp.Model,
		FallbackUsed: resp.FallbackUsed,
		Latency:      resp.Latency,
	}, nil
}

// Generate runs Draft and stores the result for userID.
func (s *Service) Generate(ctx context.Context, userID uuid.UUID, req *types.GenerateRequest) (*db.ContentGeneration, error) {
	return s.generate(ctx, userID, nil, req)
}

// GenerateForRun is Generate for a task of a bulk job run.
func (s *Service) GenerateForRun(ctx context.Context, userID, runID uuid.UUID, req *types.GenerateRequest) (*db.ContentGeneration, error) {
	return s.generate(ctx, userID, &runID, req)
}

func (s *Service) generate(ctx context.Context, userID uuid.UUID, runID *uuid.UUID, req *types.GenerateRequest) (*db.ContentGeneration, error) {
	draft, err := s.Draft(ctx, req)
	if err != nil {
		return nil, err
	}

	platforms := make([]string, len(req.Platforms))
	for i, p := range req.Platforms {
		platforms[i] = string(p)
	}

	record, err := s.store.CreateGeneration(ctx, &db.GenerationInput{
		UserID:       userID,
		JobRunID:     runID,
		Niche:        string(req.Niche),
		ProductName:  req.ProductName,
		TemplateType: string(req.TemplateType),
		Tone:         string(req.Tone),
		Platforms:    platforms,
		Content:      draft.Content,
		Spartan:      req.Spartan,
		Provider:     draft.Provider,
		Model:        draft.Model,
		FallbackUsed: draft.FallbackUsed,
		LatencyMs:    draft.Latency.Milliseconds(),
	})
	if err != nil {
		return nil, fmt.Errorf("store generation: %w", err)
	}

	s.logger.Info("content generated",
		logging.String("generation_id", record.ID.String()),
		logging.String("niche", record.Niche),
		logging.String("provider", record.Provider),
		logging.String("model", record.Model),
		logging.Bool("fallback_used", record.FallbackUsed),
		logging.Int64("latency_ms", record.LatencyMs),
	)
	return record, nil
}

// ParseContent validates raw model output against the content schema and
// decodes it.
func ParseContent(raw string) (types.GeneratedContent, error) {
	cleaned := llm.CleanJSONBlock(raw)
	if err := schemas.Validate(schemas.Content, cleaned); err != nil {
		return types.GeneratedContent{}, &ParseError{Message: "model output does not match content schema", Cause: err}
	}
	var content types.GeneratedContent
	if err := json.Unmarshal([]byte(cleaned), &content); err != nil {
		return types.GeneratedContent{}, &ParseError{Message: "failed to decode content", Cause: err}
	}
	return content, nil
}

// Get returns a generation owned by userID, or nil when there is none.
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*db.ContentGeneration, error) {
	return s.store.GetGeneration(ctx, userID, id)
}

// List returns userID's generations matching filters.
func (s *Service) List(ctx context.Context, userID uuid.UUID, filters db.GenerationFilters) ([]db.ContentGeneration, error) {
	return s.store.ListGenerations(ctx, userID, filters)
}

// Delete removes a generation owned by userID.
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.DeleteGeneration(ctx, userID, id)
}

// Rate stores a 1..5 rating on a generation owned by userID.
func (s *Service) Rate(ctx context.Context, userID, id uuid.UUID, rating int) error {
	req := types.RatingRequest{Rating: rating}
	if err := req.Validate(); err != nil {
		return &ValidationError{Message: "rating must be between 1 and 5", Field: "rating", Cause: err}
	}
	if err := s.store.RateGeneration(ctx, userID, id, rating); err != nil {
		return fmt.Errorf("rate generation: %w", err)
	}
	return nil
}

// Stats aggregates userID's generations.
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*db.GenerationStats, error) {
	return s.store.GetGenerationStats(ctx, userID)
}

func (s *Service) observe(provider string, fallback bool, err error, d time.Duration) {
	if s.observer != nil {
		s.observer.ObserveGeneration(provider, fallback, err, d)
	}
}
