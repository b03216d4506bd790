package render

import (
	"context"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightRenderer renders pages with a Chromium driven by playwright.
// The driver starts on first use; every Render gets a fresh browser.
type PlaywrightRenderer struct {
	once   sync.Once
	pw     *playwright.Playwright
	runErr error
}

func NewPlaywrightRenderer() *PlaywrightRenderer {
	return &PlaywrightRenderer{}
}

func (p *PlaywrightRenderer) start() error {
	p.once.Do(func() {
		p.pw, p.runErr = playwright.Run()
	})
	if p.runErr != nil {
		return fmt.Errorf("start playwright: %w", p.runErr)
	}
	return nil
}

func (p *PlaywrightRenderer) Render(ctx context.Context, pageURL, userAgent string) (string, error) {
	if err := p.start(); err != nil {
		return "", err
	}

	browser, err := p.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args:     []string{"--disable-blink-features=AutomationControlled"},
	})
	if err != nil {
		return "", fmt.Errorf("launch browser: %w", err)
	}
	defer browser.Close()

	// Playwright calls are not context-aware; closing the browser aborts them.
	stop := context.AfterFunc(ctx, func() { _ = browser.Close() })
	defer stop()

	opts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: 1920, Height: 1080},
	}
	if userAgent != "" {
		opts.UserAgent = playwright.String(userAgent)
	}
	bctx, err := browser.NewContext(opts)
	if err != nil {
		return "", fmt.Errorf("new browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	if _, err := page.Goto(pageURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(settleTimeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("goto %s: %w", pageURL, err)
	}
	_ = page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(5000),
	})

	html, err := page.Content()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("page content: %w", err)
	}
	return html, nil
}

// Close stops the playwright driver if it was started.
func (p *PlaywrightRenderer) Close() error {
	if p.pw == nil {
		return nil
	}
	return p.pw.Stop()
}
