package trends

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jonathan/content-engine/internal/llm"
	"github.com/jonathan/content-engine/internal/prompts"
	"github.com/jonathan/content-engine/internal/schemas"
)

// LLMSourceName is the source recorded for model-suggested products.
const LLMSourceName = "llm"

// Generator is the model router.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// LLMProvider asks the model for currently trending products.
type LLMProvider struct {
	gen   Generator
	limit int
}

// NewLLMProvider creates a provider asking for up to limit products.
func NewLLMProvider(gen Generator, limit int) *LLMProvider {
	if limit <= 0 {
		limit = 20
	}
	return &LLMProvider{gen: gen, limit: limit}
}

// Name implements Provider.
func (p *LLMProvider) Name() string {
	return LLMSourceName
}

// Fetch implements Provider.
func (p *LLMProvider) Fetch(ctx context.Context, niche string) ([]Signal, error) {
	prompt, err := prompts.Render(prompts.TrendsFile, "trending-products", map[string]string{
		"Niche": niche,
		"Limit": strconv.Itoa(p.limit),
	})
	if err != nil {
		return nil, err
	}

	resp, err := p.gen.Generate(ctx, llm.Request{Prompt: prompt, Tier: llm.TierLite, JSON: true})
	if err != nil {
		return nil, err
	}
	return ParseLLMProducts(resp.Text)
}

// ParseLLMProducts validates and decodes the model's product list.
func ParseLLMProducts(raw string) ([]Signal, error) {
	cleaned := llm.CleanJSONBlock(raw)
	if err := schemas.Validate(schemas.Trends, cleaned); err != nil {
		return nil, fmt.Errorf("trend products: %w", err)
	}

	var doc struct {
		Products []Signal `json:"products"`
	}
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, fmt.Errorf("decode trend products: %w", err)
	}

	signals := make([]Signal, 0, len(doc.Products))
	for _, s := range doc.Products {
		s.Title = strings.TrimSpace(s.Title)
		if s.Title == "" {
			continue
		}
		s.Source = LLMSourceName
		if s.Mentions == 0 {
			s.Mentions = 1
		}
		signals = append(signals, s)
	}
	return signals, nil
}
