package stealth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const robotsFetchTimeout = 5 * time.Second

// allowAll is cached for domains whose robots.txt cannot be fetched or is not 200.
var allowAll, _ = robotstxt.FromString("")

// RobotsChecker caches and checks robots.txt rules per domain for the
// lifetime of the process. Unreachable or non-200 robots.txt files are
// treated as allowing everything.
type RobotsChecker struct {
	rules     map[string]*robotstxt.RobotsData
	mu        sync.RWMutex
	fetches   singleflight.Group
	client    *http.Client
	userAgent string
	enabled   bool
	log       *zap.Logger
}

// NewRobotsChecker creates a new robots.txt checker.
func NewRobotsChecker(client *http.Client, userAgent string, enabled bool, log *zap.Logger) *RobotsChecker {
	if client == nil {
		client = &http.Client{Timeout: robotsFetchTimeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RobotsChecker{
		rules:     make(map[string]*robotstxt.RobotsData),
		client:    client,
		userAgent: userAgent,
		enabled:   enabled,
		log:       log,
	}
}

// Allowed reports whether rawURL may be fetched by the configured user agent.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL string) bool {
	if !r.enabled {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}

	data := r.rulesFor(ctx, u.Scheme+"://"+u.Host)
	return data.FindGroup(r.userAgent).Test(u.RequestURI())
}

// CrawlDelay returns the crawl delay robots.txt asks of the configured user agent.
func (r *RobotsChecker) CrawlDelay(ctx context.Context, rawURL string) time.Duration {
	if !r.enabled {
		return 0
	}
	domain, err := Domain(rawURL)
	if err != nil {
		return 0
	}
	return r.rulesFor(ctx, domain).FindGroup(r.userAgent).CrawlDelay
}

func (r *RobotsChecker) rulesFor(ctx context.Context, domain string) *robotstxt.RobotsData {
	r.mu.RLock()
	data, ok := r.rules[domain]
	r.mu.RUnlock()
	if ok {
		return data
	}

	// Concurrent first lookups of one domain share a single fetch.
	v, _, _ := r.fetches.Do(domain, func() (any, error) {
		r.mu.RLock()
		data, ok := r.rules[domain]
		r.mu.RUnlock()
		if ok {
			return data, nil
		}

		data, err := r.fetch(context.WithoutCancel(ctx), domain)
		if err != nil {
			r.log.Debug("robots.txt unavailable, allowing all",
				zap.String("domain", domain), zap.Error(err))
			data = allowAll
		}

		r.mu.Lock()
		r.rules[domain] = data
		r.mu.Unlock()
		return data, nil
	})
	return v.(*robotstxt.RobotsData)
}

func (r *RobotsChecker) fetch(ctx context.Context, domain string) (*robotstxt.RobotsData, error) {
	ctx, cancel := context.WithTimeout(ctx, robotsFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, domain+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch robots.txt: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt: %w", err)
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}

// Domain returns "scheme://host" for rawURL.
func Domain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no scheme or host", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
