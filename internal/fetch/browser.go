package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/jonathan/content-engine/internal/logging"
)

// Renderer returns the HTML of a page after scripts have run.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Browser renders pages in headless Chrome. Chrome or Chromium must be
// installed on the host.
type Browser struct {
	Timeout time.Duration
	// Settle is how long to wait after the body is ready for scripts to render.
	Settle time.Duration
	Logger logging.Logger
}

// NewBrowser returns a Browser with default timings.
func NewBrowser(logger logging.Logger) *Browser {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Browser{Timeout: DefaultTimeout, Settle: 3 * time.Second, Logger: logger}
}

// Render implements Renderer.
func (b *Browser) Render(ctx context.Context, url string) (string, error) {
	b.Logger.Debug("rendering page in headless browser", logging.String("url", url))

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(DefaultUserAgent),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, b.Timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(b.Settle),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// Cookie banners can hide listings; a missing button is fine.
			_ = chromedp.Click(`button[id*="accept"], button[class*="accept"]`, chromedp.NodeVisible, chromedp.AtLeast(0)).Do(ctx)
			return nil
		}),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("browser rendering failed: %w", err)
	}

	b.Logger.Debug("page rendered", logging.String("url", url), logging.Int("bytes", len(html)))
	return html, nil
}
