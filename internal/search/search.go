// Package search fans a query out to merchants and merges the results
// into one ranked list.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lukman83/closeshave/internal/cache"
	"github.com/lukman83/closeshave/internal/geo"
	"github.com/lukman83/closeshave/internal/merchant"
	"github.com/lukman83/closeshave/internal/metrics"
	"github.com/lukman83/closeshave/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMerchantTimeout = 45 * time.Second
	validationTimeout      = 10 * time.Second
	cacheReadTimeout       = 2 * time.Second
	cacheWriteTimeout      = 5 * time.Second
)

// Locator resolves a client IP to a location; nil means unknown.
type Locator interface {
	Locate(ctx context.Context, ip string) *models.Location
}

// QueryValidator judges whether a query is likely to find products.
type QueryValidator interface {
	Validate(ctx context.Context, query string) models.Validation
}

// Options configure an Orchestrator. Registry is required; every other
// collaborator is optional.
type Options struct {
	Registry        *merchant.Registry
	Cache           *cache.JSONCache[[]models.Listing]
	Locator         Locator
	Estimator       *geo.Estimator
	Validator       QueryValidator
	MerchantTimeout time.Duration
	Metrics         *metrics.Metrics
	Log             *zap.Logger
}

// Orchestrator runs searches across merchants.
type Orchestrator struct {
	registry        *merchant.Registry
	cache           *cache.JSONCache[[]models.Listing]
	locator         Locator
	estimator       *geo.Estimator
	validator       QueryValidator
	merchantTimeout time.Duration
	metrics         *metrics.Metrics
	log             *zap.Logger
}

func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		registry:        opts.Registry,
		cache:           opts.Cache,
		locator:         opts.Locator,
		estimator:       opts.Estimator,
		validator:       opts.Validator,
		merchantTimeout: opts.MerchantTimeout,
		metrics:         opts.Metrics,
		log:             opts.Log,
	}
	if o.estimator == nil {
		o.estimator = &geo.Estimator{}
	}
	if o.merchantTimeout <= 0 {
		o.merchantTimeout = defaultMerchantTimeout
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	return o
}

// UnitResult is the outcome of one merchant's cache lookup and scrape.
type UnitResult struct {
	Merchant string
	Listings []models.Listing
	Source   models.UnitSource
	Err      error
}

// Search runs req against the requested merchants, or all enabled ones.
// A failing merchant contributes no listings and is reported in the
// response; only an invalid request returns an error.
func (o *Orchestrator) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error) {
	start := time.Now()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	searchID := uuid.NewString()
	log := o.log.With(zap.String("search_id", searchID), zap.String("query", req.Query))

	o.prevalidate(ctx, req.Query, log)

	names, rejected := o.resolveMerchants(req.Merchants)
	log.Info("search started", zap.Strings("merchants", names))

	units := make([]UnitResult, len(names))
	var loc *models.Location

	var g errgroup.Group
	g.SetLimit(len(names) + 1)
	g.Go(func() error {
		if o.locator != nil && req.ClientIP != "" {
			loc = o.locator.Locate(ctx, req.ClientIP)
		}
		return nil
	})
	for i, name := range names {
		g.Go(func() error {
			units[i] = o.runUnit(ctx, name, req, log)
			return nil
		})
	}
	_ = g.Wait()

	resp := &models.SearchResponse{
		SearchID: searchID,
		Location: loc,
	}

	var all []models.Listing
	for _, u := range units {
		outcome := models.MerchantOutcome{
			Merchant: u.Merchant,
			Source:   u.Source,
			Count:    len(u.Listings),
		}
		if u.Err != nil {
			outcome.Reason = merchant.Reason(u.Err)
			outcome.Error = u.Err.Error()
			resp.Failures = append(resp.Failures, outcome)
		}
		if u.Source == models.SourceCache {
			resp.Cached = true
		}
		resp.Merchants = append(resp.Merchants, outcome)
		all = append(all, u.Listings...)
	}
	resp.Failures = append(resp.Failures, rejected...)

	resp.Products = Rank(all, req, o.estimator, loc)
	resp.TotalResults = len(resp.Products)
	resp.SearchTime = time.Since(start).Seconds()

	o.metrics.ObserveListings(resp.TotalResults)
	log.Info("search finished",
		zap.Int("results", resp.TotalResults),
		zap.Int("failures", len(resp.Failures)),
		zap.Bool("cached", resp.Cached),
		zap.Duration("took", time.Since(start)))
	return resp, nil
}

// resolveMerchants returns the merchants to query in registry order for
// an empty list, or request order otherwise. Unknown and disabled names
// are reported as failures.
func (o *Orchestrator) resolveMerchants(requested []string) ([]string, []models.MerchantOutcome) {
	if len(requested) == 0 {
		return o.registry.Enabled(), nil
	}

	var (
		names    []string
		rejected []models.MerchantOutcome
		seen     = make(map[string]bool)
	)
	for _, name := range requested {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if _, err := o.registry.Get(name); err != nil {
			rejected = append(rejected, models.MerchantOutcome{
				Merchant: name,
				Source:   models.SourceFailed,
				Reason:   merchant.Reason(err),
				Error:    err.Error(),
			})
			continue
		}
		names = append(names, name)
	}
	return names, rejected
}

// runUnit looks name up in the cache and scrapes on a miss. The whole unit
// shares one merchant timeout, and a panicking scraper fails only its own unit.
func (o *Orchestrator) runUnit(ctx context.Context, name string, req models.SearchRequest, log *zap.Logger) (res UnitResult) {
	start := time.Now()
	log = log.With(zap.String("merchant", name))
	key := cache.SearchKey(req.Query, name, req.MaxResults, req.MinPrice, req.MaxPrice)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%s: %w: %v", name, merchant.ErrPanic, r)
			log.Error("merchant panicked", zap.Any("panic", r), zap.Stack("stack"))
			o.metrics.ObserveUnit(name, string(models.SourceFailed), time.Since(start))
			merchant.ReportProgress(ctx, name, merchant.StageFailed)
			res = UnitResult{Merchant: name, Source: models.SourceFailed, Err: err}
		}
	}()

	uctx, cancel := context.WithTimeout(ctx, o.merchantTimeout)
	defer cancel()

	if o.cache != nil {
		gctx, cancelGet := context.WithTimeout(uctx, cacheReadTimeout)
		listings, ok, err := o.cache.Get(gctx, key)
		cancelGet()
		switch {
		case err != nil:
			log.Warn("cache read failed", zap.Error(err))
			o.metrics.IncCache("error")
		case ok:
			o.metrics.IncCache("hit")
			o.metrics.ObserveUnit(name, string(models.SourceCache), time.Since(start))
			merchant.ReportProgress(ctx, name, merchant.StageCached)
			return UnitResult{Merchant: name, Listings: listings, Source: models.SourceCache}
		default:
			o.metrics.IncCache("miss")
		}
	}

	scraper, err := o.registry.Get(name)
	if err != nil {
		return UnitResult{Merchant: name, Source: models.SourceFailed, Err: err}
	}

	listings, err := scraper.Search(uctx, req.Query, req.MaxResults)
	if err != nil {
		if errors.Is(err, merchant.ErrDisallowed) {
			o.metrics.IncRobotsBlocked(name)
		}
		o.metrics.ObserveUnit(name, string(models.SourceFailed), time.Since(start))
		log.Warn("merchant failed", zap.String("reason", merchant.Reason(err)), zap.Error(err))
		merchant.ReportProgress(ctx, name, merchant.StageFailed)
		return UnitResult{Merchant: name, Source: models.SourceFailed, Err: err}
	}
	o.metrics.ObserveUnit(name, string(models.SourceScrape), time.Since(start))
	merchant.ReportProgress(ctx, name, merchant.StageDone)

	if o.cache != nil && len(listings) > 0 {
		pctx, cancelPut := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
		err := o.cache.Put(pctx, key, req.Query, name, listings)
		cancelPut()
		if err != nil {
			log.Warn("cache write failed", zap.Error(err))
		}
	}
	return UnitResult{Merchant: name, Listings: listings, Source: models.SourceScrape}
}

// prevalidate checks the query in the background and only logs the verdict.
func (o *Orchestrator) prevalidate(ctx context.Context, query string, log *zap.Logger) {
	if o.validator == nil {
		return
	}
	vctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), validationTimeout)
	go func() {
		defer cancel()
		if v := o.validator.Validate(vctx, query); !v.IsValid {
			log.Warn("query looks unlikely to match products",
				zap.Float64("confidence", v.Confidence),
				zap.Strings("suggestions", v.Suggestions))
		}
	}()
}
