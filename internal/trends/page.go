package trends

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/content-engine/internal/config"
	"github.com/jonathan/content-engine/internal/fetch"
	"github.com/jonathan/content-engine/internal/logging"
)

// PageProvider scrapes trending products from an HTML listing page. Pages
// that yield nothing over plain HTTP are rendered in a headless browser when
// the source allows it.
type PageProvider struct {
	source   config.PageSource
	opts     *fetch.Options
	renderer fetch.Renderer
	logger   logging.Logger
}

// NewPageProvider creates a provider for source. renderer may be nil.
func NewPageProvider(source config.PageSource, opts *fetch.Options, renderer fetch.Renderer, logger logging.Logger) *PageProvider {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &PageProvider{source: source, opts: opts, renderer: renderer, logger: logger}
}

// Name implements Provider.
func (p *PageProvider) Name() string {
	return p.source.Name
}

// Fetch implements Provider.
func (p *PageProvider) Fetch(ctx context.Context, niche string) ([]Signal, error) {
	pageURL := fetch.ExpandTemplate(p.source.URLTemplate, niche)

	result, err := fetch.URL(ctx, pageURL, p.opts)
	if err != nil && (p.renderer == nil || !p.source.UseBrowser) {
		return nil, err
	}

	var signals []Signal
	if err == nil {
		signals, err = ParsePage(p.source, pageURL, result.Body)
		if err != nil {
			return nil, err
		}
	}

	if len(signals) == 0 && p.source.UseBrowser && p.renderer != nil {
		p.logger.Info("no items over plain HTTP, rendering in browser",
			logging.String("source", p.source.Name),
			logging.String("url", pageURL),
		)
		html, renderErr := p.renderer.Render(ctx, pageURL)
		if renderErr != nil {
			return nil, renderErr
		}
		return ParsePage(p.source, pageURL, []byte(html))
	}
	return signals, nil
}

// ParsePage extracts signals from html using source's selectors. Earlier
// items score higher: the first item scores 100 and scores fall linearly.
func ParsePage(source config.PageSource, pageURL string, html []byte) ([]Signal, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("page %s: failed to parse HTML: %w", source.Name, err)
	}
	base, _ := url.Parse(pageURL)

	items := doc.Find(source.ItemSelector)
	total := items.Length()
	signals := make([]Signal, 0, total)
	items.Each(func(i int, item *goquery.Selection) {
		titleSel := item
		if source.TitleSelector != "" {
			titleSel = item.Find(source.TitleSelector).First()
		}
		title := collapseSpace(titleSel.Text())
		if title == "" {
			return
		}
		s := Signal{
			Title:    title,
			Source:   source.Name,
			Mentions: 1,
			Score:    100 * float64(total-i) / float64(total),
		}
		if source.PriceSelector != "" {
			s.Price = collapseSpace(item.Find(source.PriceSelector).First().Text())
		}
		if source.LinkSelector != "" {
			if href, ok := item.Find(source.LinkSelector).First().Attr("href"); ok {
				s.URL = resolve(base, href)
			}
		}
		signals = append(signals, s)
	})
	return signals, nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
