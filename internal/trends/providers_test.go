package trends

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/content-engine/internal/config"
	"github.com/jonathan/content-engine/internal/llm"
	"github.com/jonathan/content-engine/internal/retry"
)

const feedBody = `{
  "data": {
    "items": [
      {"name": "Hydra Serum", "stats": {"mentions": 120, "trend": 87.5}, "price": "$24", "link": "https://shop.test/serum"},
      {"name": "  ", "stats": {"mentions": 5}},
      {"name": "Lip Oil", "stats": {"mentions": -3, "trend": 140}}
    ]
  }
}`

func feedSource(url string) config.FeedSource {
	return config.FeedSource{
		Name:         "shopfeed",
		URLTemplate:  url + "/trends?niche={niche}",
		AuthHeader:   "X-Api-Key",
		AuthValue:    "k3y",
		ItemsPath:    "data.items",
		TitlePath:    "name",
		MentionsPath: "stats.mentions",
		ScorePath:    "stats.trend",
		PricePath:    "price",
		URLPath:      "link",
	}
}

func TestFeedProvider_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "beauty", r.URL.Query().Get("niche"))
		assert.Equal(t, "k3y", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(feedBody))
	}))
	defer srv.Close()

	p := NewFeedProvider(feedSource(srv.URL), nil)
	assert.Equal(t, "shopfeed", p.Name())

	signals, err := p.Fetch(context.Background(), "beauty")
	require.NoError(t, err)
	require.Len(t, signals, 2)

	assert.Equal(t, Signal{
		Title: "Hydra Serum", Source: "shopfeed", Mentions: 120, Score: 87.5,
		Price: "$24", URL: "https://shop.test/serum",
	}, signals[0])
	assert.Equal(t, "Lip Oil", signals[1].Title)
	assert.Equal(t, 1, signals[1].Mentions, "negative mentions fall back to one")
	assert.Equal(t, 100.0, signals[1].Score, "scores are clamped")
}

func TestFeedProvider_RetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(feedBody))
	}))
	defer srv.Close()

	p := NewFeedProvider(feedSource(srv.URL), nil).
		WithRetry(retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond})
	signals, err := p.Fetch(context.Background(), "beauty")
	require.NoError(t, err)
	assert.Len(t, signals, 2)
	assert.Equal(t, 2, calls)
}

func TestParseFeed_RootArrayAndErrors(t *testing.T) {
	source := config.FeedSource{Name: "root"}
	signals, err := ParseFeed(source, []byte(`[{"title":"A"},{"title":"B"}]`))
	require.NoError(t, err)
	assert.Len(t, signals, 2)
	assert.Equal(t, 1, signals[0].Mentions)

	_, err = ParseFeed(source, []byte(`not json`))
	assert.Error(t, err)

	_, err = ParseFeed(config.FeedSource{Name: "x", ItemsPath: "data"}, []byte(`{"data": {}}`))
	assert.Error(t, err)
}

const listingHTML = `<html><body>
<ul class="products">
  <li class="product"><a class="link" href="/p/1"><span class="title">Air  Fryer XL</span></a><span class="price"> $89 </span></li>
  <li class="product"><a class="link" href="https://other.test/p/2"><span class="title">Cold Brew Maker</span></a></li>
  <li class="product"><span class="title"></span></li>
  <li class="product"><span class="title">Spice Grinder</span></li>
</ul></body></html>`

func pageSource(url string, browser bool) config.PageSource {
	return config.PageSource{
		Name:          "shop",
		URLTemplate:   url + "/trending/{niche}",
		ItemSelector:  "li.product",
		TitleSelector: ".title",
		PriceSelector: ".price",
		LinkSelector:  "a.link",
		UseBrowser:    browser,
	}
}

func TestParsePage(t *testing.T) {
	signals, err := ParsePage(pageSource("", false), "https://shop.test/trending/food", []byte(listingHTML))
	require.NoError(t, err)
	require.Len(t, signals, 3)

	assert.Equal(t, "Air Fryer XL", signals[0].Title)
	assert.Equal(t, "$89", signals[0].Price)
	assert.Equal(t, "https://shop.test/p/1", signals[0].URL)
	assert.Equal(t, 100.0, signals[0].Score)
	assert.Equal(t, "https://other.test/p/2", signals[1].URL)
	assert.Equal(t, 75.0, signals[1].Score)
	assert.Equal(t, "Spice Grinder", signals[2].Title)
	assert.Equal(t, 25.0, signals[2].Score)
}

type fakeRenderer struct {
	html  string
	err   error
	calls int
}

func (f *fakeRenderer) Render(context.Context, string) (string, error) {
	f.calls++
	return f.html, f.err
}

func TestPageProvider_FallsBackToBrowser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trending/food", r.URL.Path)
		_, _ = w.Write([]byte(`<html><body><div id="app"></div></body></html>`))
	}))
	defer srv.Close()

	renderer := &fakeRenderer{html: listingHTML}
	p := NewPageProvider(pageSource(srv.URL, true), nil, renderer, nil)
	signals, err := p.Fetch(context.Background(), "food")
	require.NoError(t, err)
	assert.Len(t, signals, 3)
	assert.Equal(t, 1, renderer.calls)

	renderer.calls = 0
	noBrowser := NewPageProvider(pageSource(srv.URL, false), nil, renderer, nil)
	signals, err = noBrowser.Fetch(context.Background(), "food")
	require.NoError(t, err)
	assert.Empty(t, signals)
	assert.Zero(t, renderer.calls)
}

func TestPageProvider_PlainHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listingHTML))
	}))
	defer srv.Close()

	renderer := &fakeRenderer{err: errors.New("no chrome")}
	p := NewPageProvider(pageSource(srv.URL, true), nil, renderer, nil)
	signals, err := p.Fetch(context.Background(), "food")
	require.NoError(t, err)
	assert.Len(t, signals, 3)
	assert.Zero(t, renderer.calls)
}

type fakeGenerator struct {
	text string
	err  error
	reqs []llm.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Text: f.text, Provider: llm.ProviderGemini, Model: "lite"}, nil
}

func TestLLMProvider_Fetch(t *testing.T) {
	gen := &fakeGenerator{text: "```json\n" + `{"products":[{"title":"Smart Ring","mentions":40,"score":70},{"title":"Foldable Keyboard"}]}` + "\n```"}
	p := NewLLMProvider(gen, 10)

	signals, err := p.Fetch(context.Background(), "tech")
	require.NoError(t, err)
	require.Len(t, signals, 2)
	assert.Equal(t, Signal{Title: "Smart Ring", Source: LLMSourceName, Mentions: 40, Score: 70}, signals[0])
	assert.Equal(t, 1, signals[1].Mentions)

	require.Len(t, gen.reqs, 1)
	assert.Equal(t, llm.TierLite, gen.reqs[0].Tier)
	assert.True(t, gen.reqs[0].JSON)
	assert.Contains(t, gen.reqs[0].Prompt, "tech niche")
	assert.Contains(t, gen.reqs[0].Prompt, "up to 10")
}

func TestLLMProvider_InvalidOutput(t *testing.T) {
	p := NewLLMProvider(&fakeGenerator{text: `{"products":[{"score":500}]}`}, 5)
	_, err := p.Fetch(context.Background(), "tech")
	assert.Error(t, err)
}
