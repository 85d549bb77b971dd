// Package chromerender backs the recorder's surface and renderer contracts
// with a headless Chromium page driven over the DevTools protocol.
package chromerender

import (
	"context"
	"errors"
	"strings"

	"github.com/chromedp/chromedp"
	"pkt.systems/pslog"
)

// Config configures the browser-backed surface.
type Config struct {
	URL            string
	ViewportWidth  int
	ViewportHeight int
	Headless       bool
}

// Browser owns one Chromium instance and the page it renders.
type Browser struct {
	ctx     context.Context
	cancels []context.CancelFunc
	log     pslog.Logger
}

// Start launches the browser, opens the configured page, and waits for it to
// be ready. Close must be called to release the browser.
func Start(ctx context.Context, cfg Config, logger pslog.Logger) (*Browser, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("surface url is required")
	}
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = 1280
	}
	if cfg.ViewportHeight <= 0 {
		cfg.ViewportHeight = 800
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	pageCtx, cancelPage := chromedp.NewContext(allocCtx)

	b := &Browser{
		ctx:     pageCtx,
		cancels: []context.CancelFunc{cancelPage, cancelAlloc},
		log:     logger,
	}
	if err := chromedp.Run(pageCtx,
		chromedp.Navigate(cfg.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		b.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("browser surface ready", "url", cfg.URL, "viewport_width", cfg.ViewportWidth, "viewport_height", cfg.ViewportHeight, "headless", cfg.Headless)
	}
	return b, nil
}

// Close shuts the browser down.
func (b *Browser) Close() {
	for _, cancel := range b.cancels {
		cancel()
	}
}

// Surface returns the page-backed surface.
func (b *Browser) Surface() *PageSurface {
	return &PageSurface{browser: b}
}

// Renderer returns the page-backed renderer.
func (b *Browser) Renderer() *PageRenderer {
	return &PageRenderer{browser: b}
}

// run executes chromedp actions against the page, honoring the caller's
// deadline by racing it against the browser context.
func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := b.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(b.ctx, deadline)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(runCtx, actions...)
}
