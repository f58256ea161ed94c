package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chromedp/chromedp"
)

// Page is the small slice of browser behaviour the stages need.
// Selectors are XPath expressions.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// WaitClickable blocks until the element is visible and enabled, or ctx ends.
	WaitClickable(ctx context.Context, sel string) error
	SendKeys(ctx context.Context, sel, text string) error
	Click(ctx context.Context, sel string) error
	// Value returns the live value property of an input.
	Value(ctx context.Context, sel string) (string, error)
	Location(ctx context.Context) (string, error)
	// WaitReady blocks until the current document has a body.
	WaitReady(ctx context.Context) error
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// chromePage drives the tab attached to the chromedp context passed to each call.
type chromePage struct{}

func (chromePage) Navigate(ctx context.Context, url string) error {
	return chromedp.Run(ctx, chromedp.Navigate(url))
}

func (chromePage) WaitClickable(ctx context.Context, sel string) error {
	return chromedp.Run(ctx,
		chromedp.WaitVisible(sel, chromedp.BySearch),
		chromedp.WaitEnabled(sel, chromedp.BySearch),
	)
}

func (chromePage) SendKeys(ctx context.Context, sel, text string) error {
	return chromedp.Run(ctx, chromedp.SendKeys(sel, text, chromedp.BySearch))
}

func (chromePage) Click(ctx context.Context, sel string) error {
	return chromedp.Run(ctx, chromedp.Click(sel, chromedp.BySearch, chromedp.NodeVisible))
}

func (chromePage) Value(ctx context.Context, sel string) (string, error) {
	var value string
	err := chromedp.Run(ctx, chromedp.Value(sel, &value, chromedp.BySearch))
	return value, err
}

func (chromePage) Location(ctx context.Context) (string, error) {
	var url string
	err := chromedp.Run(ctx, chromedp.Location(&url))
	return url, err
}

func (chromePage) WaitReady(ctx context.Context) error {
	return chromedp.Run(ctx, chromedp.WaitReady("body", chromedp.ByQuery))
}

func (chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

// creates a chromedp context for the configured browser and starts it,
// the returned cancel closes the tab and the browser process
func newChromeContext(parent context.Context, cfg BrowserConfig, execPath string) (context.Context, context.CancelFunc, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
	)
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}
	if cfg.ProfilePath != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.ProfilePath))
	}
	if cfg.WindowSize != "" {
		opts = append(opts, chromedp.Flag("window-size", cfg.WindowSize))
	}
	slog.Info("Starting browser", "path", execPath, "profile", cfg.ProfilePath, "headless", cfg.Headless)

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	ctx, ctxCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			slog.Debug(fmt.Sprintf(format, args...))
		}),
	)
	// Compose all cancels into one
	cancel := func() {
		ctxCancel()
		allocCancel()
	}

	// allocate the browser now so that later per-step timeouts
	// only ever cancel a step, never the browser itself
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return ctx, cancel, nil
}
