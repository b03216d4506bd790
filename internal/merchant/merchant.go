// Package merchant scrapes product listings from merchant search pages.
package merchant

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lukman83/closeshave/internal/models"
	"github.com/lukman83/closeshave/internal/render"
	"github.com/lukman83/closeshave/internal/stealth"
	"go.uber.org/zap"
)

// Scraper fetches one merchant's listings for a query. Listings come back
// un-enriched: Price, BasePrice and TotalPrice all hold the scraped price.
type Scraper interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) ([]models.Listing, error)
}

// Deps are the shared collaborators every scraper is built with.
type Deps struct {
	Client       *http.Client
	Robots       *stealth.RobotsChecker
	Limiter      *stealth.DomainLimiter
	Renderer     render.Renderer
	Fingerprints *stealth.FingerprintPool
	MaxRetries   int
	Timeout      time.Duration
	Log          *zap.Logger
}

func (d Deps) logger() *zap.Logger {
	if d.Log == nil {
		return zap.NewNop()
	}
	return d.Log
}

type entry struct {
	scraper Scraper
	info    models.MerchantInfo
}

// Registry maps merchant names to scrapers in registration order.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds s under s.Name(). Registering a name twice replaces the
// scraper but keeps its original position.
func (r *Registry) Register(s Scraper, info models.MerchantInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info.Name = s.Name()
	if _, ok := r.entries[info.Name]; !ok {
		r.order = append(r.order, info.Name)
	}
	r.entries[info.Name] = entry{scraper: s, info: info}
}

// Get returns the scraper for an enabled merchant.
func (r *Registry) Get(name string) (Scraper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMerchant, name)
	}
	if !e.info.Enabled {
		return nil, fmt.Errorf("%w: %q", ErrDisabled, name)
	}
	return e.scraper, nil
}

// Enabled lists enabled merchant names in registration order.
func (r *Registry) Enabled() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for _, name := range r.order {
		if r.entries[name].info.Enabled {
			names = append(names, name)
		}
	}
	return names
}

// List describes every registered merchant, enabled or not.
func (r *Registry) List() []models.MerchantInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.MerchantInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].info)
	}
	return out
}
