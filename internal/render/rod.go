package render

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodRenderer uses rod to render pages with JS execution.
type RodRenderer struct {
	launcherURL string // optional remote launcher URL
}

func NewRodRenderer() *RodRenderer {
	return &RodRenderer{launcherURL: os.Getenv("ROD_LAUNCHER_URL")}
}

func (r *RodRenderer) Render(ctx context.Context, pageURL, userAgent string) (string, error) {
	page, cleanup, err := r.openPage(ctx, pageURL, userAgent)
	if err != nil {
		return "", err
	}
	defer cleanup()

	// Wait for page to stabilize
	timedPage := page.Timeout(settleTimeout)
	if err := timedPage.WaitStable(time.Second); err == nil {
		_ = timedPage.WaitDOMStable(2*time.Second, 0.1)
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("get page HTML: %w", err)
	}
	return html, nil
}

func (r *RodRenderer) Close() error { return nil }

func (r *RodRenderer) openPage(ctx context.Context, pageURL, userAgent string) (*rod.Page, func(), error) {
	var l *launcher.Launcher
	if r.launcherURL != "" {
		managed, err := launcher.NewManaged(r.launcherURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect launcher %s: %w", r.launcherURL, err)
		}
		l = managed
	} else {
		l = launcher.New().Headless(true).Logger(io.Discard)
	}
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, nil, fmt.Errorf("connect browser: %w", err)
	}
	cleanupBrowser := func() {
		_ = browser.Close()
		l.Cleanup()
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		cleanupBrowser()
		return nil, nil, fmt.Errorf("open page: %w", err)
	}

	if userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent}); err != nil {
			cleanupBrowser()
			return nil, nil, fmt.Errorf("set user agent: %w", err)
		}
	}
	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  1920,
		Height: 1080,
	})
	if err != nil {
		cleanupBrowser()
		return nil, nil, fmt.Errorf("set viewport: %w", err)
	}
	if err := page.Navigate(pageURL); err != nil {
		cleanupBrowser()
		return nil, nil, fmt.Errorf("navigate: %w", err)
	}

	cleanup := func() {
		_ = page.Close()
		cleanupBrowser()
	}
	return page, cleanup, nil
}
