package intelligence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/content-engine/internal/cache"
	"github.com/jonathan/content-engine/internal/db"
	"github.com/jonathan/content-engine/internal/llm"
)

type fakeTrends struct {
	products []db.TrendingProduct
	limit    int
}

func (f *fakeTrends) List(_ context.Context, _ string, limit int) ([]db.TrendingProduct, error) {
	f.limit = limit
	return f.products, nil
}

type fakeStore struct {
	created []*db.IntelligenceSnapshot
	latest  *db.IntelligenceSnapshot
	reads   int
}

func (f *fakeStore) CreateSnapshot(_ context.Context, s *db.IntelligenceSnapshot) (*db.IntelligenceSnapshot, error) {
	out := *s
	out.ID = uuid.New()
	out.CreatedAt = time.Now().UTC()
	f.created = append(f.created, &out)
	return &out, nil
}

func (f *fakeStore) LatestSnapshot(context.Context, string) (*db.IntelligenceSnapshot, error) {
	f.reads++
	return f.latest, nil
}

type fakeGenerator struct {
	text string
	reqs []llm.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.reqs = append(f.reqs, req)
	return &llm.Response{Text: f.text, Provider: llm.ProviderAnthropic, Model: "haiku"}, nil
}

func TestTopKeywords(t *testing.T) {
	titles := []string{
		"Vitamin C Serum 30ml",
		"Retinol Night Serum",
		"Vitamin C Brightening Cream",
		"The Best Serum for Women",
		"Night Cream",
	}
	got := TopKeywords(titles, 4)
	assert.Equal(t, []string{"serum", "cream", "night", "vitamin"}, got)

	assert.Empty(t, TopKeywords(nil, 5))
	assert.Equal(t, []string{"aaa", "bbb"}, TopKeywords([]string{"bbb aaa", "aaa bbb bbb"}, 0),
		"a term counts once per title and ties sort alphabetically")
}

func TestService_Build(t *testing.T) {
	trends := &fakeTrends{products: []db.TrendingProduct{
		{Title: "Smart Ring Gen 3", Mentions: 40},
		{Title: "Smart Glasses"},
	}}
	store := &fakeStore{}
	gen := &fakeGenerator{text: `{"summary":" Wearables are hot. ","angles":["a","b","c","d","e","f"]}`}
	svc := NewService(trends, store, gen, Options{})

	snap, err := svc.Build(context.Background(), "tech")
	require.NoError(t, err)

	assert.Equal(t, MaxProducts, trends.limit)
	assert.Equal(t, "tech", snap.Niche)
	assert.Equal(t, "Wearables are hot.", snap.Summary)
	assert.Len(t, snap.Angles, MaxAngles)
	assert.Equal(t, []string{"smart", "gen", "glasses", "ring"}, []string(snap.Keywords))
	assert.Equal(t, []string{"Smart Ring Gen 3", "Smart Glasses"}, []string(snap.Products))
	assert.Equal(t, "anthropic", snap.Provider)
	assert.Equal(t, "haiku", snap.Model)

	require.Len(t, gen.reqs, 1)
	assert.Equal(t, llm.TierLite, gen.reqs[0].Tier)
	assert.True(t, gen.reqs[0].JSON)
	assert.Contains(t, gen.reqs[0].Prompt, "1. Smart Ring Gen 3 (40 mentions)")
	assert.Contains(t, gen.reqs[0].Prompt, "2. Smart Glasses")
}

func TestService_BuildWithoutTrends(t *testing.T) {
	svc := NewService(&fakeTrends{}, &fakeStore{}, &fakeGenerator{}, Options{})
	_, err := svc.Build(context.Background(), "pets")
	assert.ErrorIs(t, err, ErrNoTrendData)

	_, err = svc.Build(context.Background(), "cars")
	assert.ErrorIs(t, err, ErrUnknownNiche)
}

func TestService_BuildRejectsInvalidInsight(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(&fakeTrends{products: []db.TrendingProduct{{Title: "X"}}}, store, &fakeGenerator{text: `{"summary":"s","angles":[]}`}, Options{})
	_, err := svc.Build(context.Background(), "pets")
	assert.Error(t, err)
	assert.Empty(t, store.created)
}

func TestService_Latest(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := &fakeStore{latest: &db.IntelligenceSnapshot{ID: uuid.New(), Niche: "food", Summary: "Air fryers"}}
	svc := NewService(&fakeTrends{}, store, &fakeGenerator{}, Options{Cache: cache.New(client, "t:")})
	ctx := context.Background()

	snap, err := svc.Latest(ctx, "food")
	require.NoError(t, err)
	assert.Equal(t, "Air fryers", snap.Summary)

	snap, err = svc.Latest(ctx, "food")
	require.NoError(t, err)
	assert.Equal(t, store.latest.ID, snap.ID)
	assert.Equal(t, 1, store.reads, "second read is served from cache")

	none, err := NewService(&fakeTrends{}, &fakeStore{}, &fakeGenerator{}, Options{}).Latest(ctx, "travel")
	require.NoError(t, err)
	assert.Nil(t, none)
}
