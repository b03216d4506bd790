package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lukman83/closeshave/internal/cache"
	"github.com/lukman83/closeshave/internal/geo"
	"github.com/lukman83/closeshave/internal/httputil"
	"github.com/lukman83/closeshave/internal/logging"
	"github.com/lukman83/closeshave/internal/merchant"
	"github.com/lukman83/closeshave/internal/metrics"
	"github.com/lukman83/closeshave/internal/models"
	"github.com/lukman83/closeshave/internal/render"
	"github.com/lukman83/closeshave/internal/search"
	"github.com/lukman83/closeshave/internal/stealth"
	"github.com/lukman83/closeshave/internal/validate"
	"go.uber.org/zap"
)

const (
	robotsFetchTimeout = 10 * time.Second
	geoLookupTimeout   = 5 * time.Second
)

// app is the wired dependency graph shared by every command.
type app struct {
	log       *zap.Logger
	metrics   *metrics.Metrics
	client    *http.Client
	registry  *merchant.Registry
	store     cache.Store // nil when caching is disabled
	renderer  render.Renderer
	validator search.QueryValidator // nil when validation is disabled
	search    *search.Orchestrator
}

// newApp builds the graph from cfg. Callers must Close it.
func newApp(ctx context.Context) (*app, error) {
	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Dir: cfg.LogDir})
	if err != nil {
		return nil, err
	}
	a := &app{log: log, metrics: metrics.New()}

	var proxies *stealth.ProxyRotator
	if cfg.ProxyFile != "" {
		providers, err := stealth.LoadProxyFile(cfg.ProxyFile)
		if err != nil {
			return nil, err
		}
		proxies = stealth.NewProxyRotator(providers)
		log.Info("proxy rotation enabled", zap.Int("proxies", len(providers)))
	}
	fingerprints := stealth.NewFingerprintPool(cfg.UserAgents)
	a.client = httputil.NewHTTPClient(&stealth.Transport{
		Fingerprint: fingerprints,
		Proxy:       proxies,
	}, cfg.RequestTimeout)

	robots := stealth.NewRobotsChecker(
		httputil.NewHTTPClient(nil, robotsFetchTimeout),
		cfg.RobotsUserAgent, cfg.RespectRobots, log.Named("robots"))

	a.renderer, err = render.New(cfg.Renderer)
	if err != nil {
		return nil, err
	}

	a.registry = merchant.Build(cfg, merchant.Deps{
		Client:       a.client,
		Robots:       robots,
		Limiter:      stealth.NewDomainLimiter(cfg.RequestDelay),
		Renderer:     a.renderer,
		Fingerprints: fingerprints,
		MaxRetries:   cfg.MaxRetries,
		Timeout:      cfg.RequestTimeout,
		Log:          log.Named("merchant"),
	})

	var listings *cache.JSONCache[[]models.Listing]
	if cfg.CacheEnabled {
		a.store, err = cache.Open(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open %s cache: %w", cfg.StoreBackend(), err)
		}
		if cfg.StoreBackend() == "memory" {
			log.Warn("search cache is in memory and will not survive a restart; set DATABASE_URL to persist it")
		}
		listings = cache.NewJSONCache[[]models.Listing](a.store, cfg.CacheTTL, nil)
	}

	if cfg.ValidationEnabled {
		var verdicts *cache.JSONCache[models.Validation]
		if a.store != nil {
			verdicts = cache.NewJSONCache[models.Validation](a.store, cfg.ValidationCacheTTL, nil)
		}
		a.validator = validate.New(a.client, verdicts, cfg.ValidationTimeout, log.Named("validate"))
	}

	opts := search.Options{
		Registry: a.registry,
		Cache:    listings,
		Locator: geo.NewLocator(
			httputil.NewHTTPClient(nil, geoLookupTimeout),
			cfg.GeolocationAPIKey, log.Named("geo")),
		Estimator: &geo.Estimator{
			TaxEnabled:      cfg.TaxEnabled,
			ShippingEnabled: cfg.ShippingEnabled,
			DefaultTaxRate:  cfg.DefaultTaxRate,
		},
		Validator:       a.validator,
		MerchantTimeout: cfg.MerchantTimeout,
		Metrics:         a.metrics,
		Log:             log.Named("search"),
	}
	a.search = search.New(opts)

	log.Info("closeshave ready",
		zap.String("version", cfg.Version),
		zap.Strings("merchants", a.registry.Enabled()),
		zap.String("renderer", cfg.Renderer),
		zap.Bool("cache", cfg.CacheEnabled),
		zap.Bool("respect_robots", cfg.RespectRobots))
	return a, nil
}

// Close releases the renderer and cache store and flushes the log.
func (a *app) Close() error {
	var errs []error
	if a.renderer != nil {
		errs = append(errs, a.renderer.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	_ = a.log.Sync()
	return errors.Join(errs...)
}
