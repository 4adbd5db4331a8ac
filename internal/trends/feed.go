package trends

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jonathan/content-engine/internal/config"
	"github.com/jonathan/content-engine/internal/fetch"
	"github.com/jonathan/content-engine/internal/retry"
)

// FeedProvider reads trend signals from a JSON API using gjson paths.
type FeedProvider struct {
	source config.FeedSource
	opts   *fetch.Options
	retry  retry.Config
}

// NewFeedProvider creates a provider for source. opts may be nil.
func NewFeedProvider(source config.FeedSource, opts *fetch.Options) *FeedProvider {
	if opts == nil {
		opts = fetch.DefaultOptions()
	}
	cp := *opts
	cp.Headers = map[string]string{"Accept": "application/json"}
	for k, v := range opts.Headers {
		cp.Headers[k] = v
	}
	if source.AuthHeader != "" {
		cp.Headers[source.AuthHeader] = source.AuthValue
	}
	return &FeedProvider{source: source, opts: &cp, retry: retry.DefaultConfig()}
}

// Name implements Provider.
func (p *FeedProvider) Name() string {
	return p.source.Name
}

// Fetch implements Provider.
func (p *FeedProvider) Fetch(ctx context.Context, niche string) ([]Signal, error) {
	url := fetch.ExpandTemplate(p.source.URLTemplate, niche)

	var result *fetch.Result
	err := retry.Do(ctx, p.retry, func() error {
		var fetchErr error
		result, fetchErr = fetch.URL(ctx, url, p.opts)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}

	return ParseFeed(p.source, result.Body)
}

// ParseFeed extracts signals from a feed body according to source's paths.
// An empty ItemsPath means the document root is the item array.
func ParseFeed(source config.FeedSource, body []byte) ([]Signal, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("feed %s: response is not valid JSON", source.Name)
	}

	itemsPath := source.ItemsPath
	if itemsPath == "" {
		itemsPath = "@this"
	}
	items := gjson.GetBytes(body, itemsPath)
	if !items.IsArray() {
		return nil, fmt.Errorf("feed %s: %q is not an array", source.Name, itemsPath)
	}

	titlePath := source.TitlePath
	if titlePath == "" {
		titlePath = "title"
	}

	var signals []Signal
	items.ForEach(func(_, item gjson.Result) bool {
		title := strings.TrimSpace(item.Get(titlePath).String())
		if title == "" {
			return true
		}
		s := Signal{Title: title, Source: source.Name, Mentions: 1}
		if source.MentionsPath != "" {
			if m := item.Get(source.MentionsPath); m.Exists() && m.Int() >= 0 {
				s.Mentions = int(m.Int())
			}
		}
		if source.ScorePath != "" {
			s.Score = clampScore(item.Get(source.ScorePath).Float())
		}
		if source.PricePath != "" {
			s.Price = strings.TrimSpace(item.Get(source.PricePath).String())
		}
		if source.URLPath != "" {
			s.URL = strings.TrimSpace(item.Get(source.URLPath).String())
		}
		signals = append(signals, s)
		return true
	})
	return signals, nil
}

func clampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// WithRetry replaces the retry policy used for fetching.
func (p *FeedProvider) WithRetry(cfg retry.Config) *FeedProvider {
	p.retry = cfg
	return p
}
