package stealth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DomainLimiter paces requests per domain. Each domain owns a burst-1 token
// bucket, so reserving the next slot and recording it happen atomically:
// two concurrent callers for one domain can never both go immediately,
// while other domains are unaffected.
type DomainLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	delay    time.Duration
}

// NewDomainLimiter creates a limiter whose default gap between requests to
// one domain is delay.
func NewDomainLimiter(delay time.Duration) *DomainLimiter {
	return &DomainLimiter{
		limiters: make(map[string]*rate.Limiter),
		delay:    delay,
	}
}

// Wait blocks until the larger of delay and the default gap has passed
// since the previous permitted request to domain, then claims the slot.
// It returns early with the context's error on cancellation, and with an
// error wrapping context.DeadlineExceeded when the slot lies past ctx's
// deadline.
func (d *DomainLimiter) Wait(ctx context.Context, domain string, delay time.Duration) error {
	if delay < d.delay {
		delay = d.delay
	}
	err := d.limiterFor(domain, delay).Wait(ctx)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("pace %s: %w", domain, context.DeadlineExceeded)
	}
	return err
}

func (d *DomainLimiter) limiterFor(domain string, delay time.Duration) *rate.Limiter {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	lim, ok := d.limiters[domain]
	if !ok {
		lim = rate.NewLimiter(limit, 1)
		d.limiters[domain] = lim
		return lim
	}
	if lim.Limit() != limit {
		lim.SetLimit(limit)
	}
	return lim
}
