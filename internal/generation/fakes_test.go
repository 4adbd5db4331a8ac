package generation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/content-engine/internal/db"
	"github.com/jonathan/content-engine/internal/llm"
)

type fakeStore struct {
	mu      sync.Mutex
	created []db.GenerationInput
	ratings map[uuid.UUID]int
	err     error
}

func (f *fakeStore) CreateGeneration(_ context.Context, in *db.GenerationInput) (*db.ContentGeneration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, *in)
	return &db.ContentGeneration{
		ID:           uuid.New(),
		UserID:       in.UserID,
		JobRunID:     in.JobRunID,
		Niche:        in.Niche,
		ProductName:  in.ProductName,
		TemplateType: in.TemplateType,
		Tone:         in.Tone,
		Platforms:    in.Platforms,
		Content:      in.Content,
		Spartan:      in.Spartan,
		Provider:     in.Provider,
		Model:        in.Model,
		FallbackUsed: in.FallbackUsed,
		LatencyMs:    in.LatencyMs,
		CreatedAt:    time.Now(),
	}, nil
}

func (f *fakeStore) GetGeneration(context.Context, uuid.UUID, uuid.UUID) (*db.ContentGeneration, error) {
	return nil, nil
}

func (f *fakeStore) ListGenerations(context.Context, uuid.UUID, db.GenerationFilters) ([]db.ContentGeneration, error) {
	return nil, nil
}

func (f *fakeStore) DeleteGeneration(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

func (f *fakeStore) RateGeneration(_ context.Context, _ uuid.UUID, id uuid.UUID, rating int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ratings == nil {
		return db.ErrNotFound
	}
	f.ratings[id] = rating
	return nil
}

func (f *fakeStore) GetGenerationStats(context.Context, uuid.UUID) (*db.GenerationStats, error) {
	return &db.GenerationStats{}, nil
}

type fakeGenerator struct {
	mu       sync.Mutex
	text     string
	err      error
	provider llm.Provider
	fallback bool
	requests []llm.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	provider := f.provider
	if provider == "" {
		provider = llm.ProviderGemini
	}
	return &llm.Response{
		Text:         f.text,
		Provider:     provider,
		Model:        "test-model",
		FallbackUsed: f.fallback,
		Latency:      1200 * time.Millisecond,
	}, nil
}

type fakeInsights struct {
	snapshot *db.IntelligenceSnapshot
	err      error
}

func (f *fakeInsights) Latest(context.Context, string) (*db.IntelligenceSnapshot, error) {
	return f.snapshot, f.err
}

type fakeObserver struct {
	calls []string
}

func (f *fakeObserver) ObserveGeneration(provider string, fallback bool, err error, _ time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	if fallback {
		status += "+fallback"
	}
	f.calls = append(f.calls, provider+":"+status)
}

var errBoom = errors.New("boom")
