// Package render loads JavaScript-heavy pages in a headless browser and
// returns the rendered HTML. Each Render call owns its browser session.
package render

import (
	"context"
	"fmt"
	"time"
)

// Renderer returns the HTML of pageURL after scripts have run.
type Renderer interface {
	Render(ctx context.Context, pageURL, userAgent string) (string, error)
	Close() error
}

// settleTimeout bounds how long a page may take to become stable.
const settleTimeout = 15 * time.Second

// New returns the renderer registered under name.
func New(name string) (Renderer, error) {
	switch name {
	case "rod", "":
		return NewRodRenderer(), nil
	case "playwright":
		return NewPlaywrightRenderer(), nil
	default:
		return nil, fmt.Errorf("unknown renderer %q", name)
	}
}

// Func adapts a function to Renderer.
type Func func(ctx context.Context, pageURL, userAgent string) (string, error)

func (f Func) Render(ctx context.Context, pageURL, userAgent string) (string, error) {
	return f(ctx, pageURL, userAgent)
}

func (Func) Close() error { return nil }
