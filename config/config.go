package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// General
	Version          string
	Merchants        map[string]bool   // merchant name → enabled
	MerchantVersions map[string]string // merchant name → scraper version
	Overrides        map[string]MerchantOverride

	// Scraping
	RespectRobots   bool
	RobotsUserAgent string
	UserAgents      []string
	RequestDelay    time.Duration // minimum gap between requests to one domain
	RequestTimeout  time.Duration
	MaxRetries      int
	MerchantTimeout time.Duration // upper bound for one merchant's cache+scrape unit
	Renderer        string        // "rod", "playwright"
	ProxyFile       string        // file with one proxy URL per line

	// Cache
	CacheEnabled       bool
	CacheBackend       string // "auto", "memory", "postgres", "redis"
	CacheTTL           time.Duration
	CacheSweepInterval time.Duration
	CacheSize          int
	DatabaseURL        string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int

	// Validation
	ValidationEnabled  bool
	ValidationTimeout  time.Duration
	ValidationCacheTTL time.Duration

	// Tax and shipping
	TaxEnabled          bool
	ShippingEnabled     bool
	DefaultTaxRate      float64
	GeolocationProvider string
	GeolocationAPIKey   string

	// HTTP server
	HTTPPort    string
	APIKey      string
	CORSOrigins []string

	// Logging
	LogLevel string
	LogDir   string // empty disables the rotating file log
}

// MerchantOverride replaces parts of a built-in merchant definition.
type MerchantOverride struct {
	SearchURL  string            `yaml:"search_url"`
	BaseURL    string            `yaml:"base_url"`
	RequiresJS *bool             `yaml:"requires_js"`
	Selectors  map[string]string `yaml:"selectors"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: "0.1.0",
		Merchants: map[string]bool{
			"amazon":     true,
			"ebay":       true,
			"walmart":    true,
			"target":     true,
			"bestbuy":    true,
			"newegg":     true,
			"duckduckgo": true,
		},
		MerchantVersions: map[string]string{},
		Overrides:        map[string]MerchantOverride{},

		RespectRobots:   true,
		RobotsUserAgent: "CloseShave-Bot/1.0",
		RequestDelay:    time.Second,
		RequestTimeout:  30 * time.Second,
		MaxRetries:      2,
		MerchantTimeout: 45 * time.Second,
		Renderer:        "rod",

		CacheEnabled:       true,
		CacheBackend:       "auto",
		CacheTTL:           time.Hour,
		CacheSweepInterval: 10 * time.Minute,
		CacheSize:          4096,
		RedisAddr:          "localhost:6379",

		ValidationEnabled:  true,
		ValidationTimeout:  5 * time.Second,
		ValidationCacheTTL: 60 * time.Minute,

		TaxEnabled:          true,
		ShippingEnabled:     true,
		GeolocationProvider: "ip-api.com",

		HTTPPort: "8000",
		CORSOrigins: []string{
			"http://localhost:5173",
			"http://localhost:3000",
			"http://127.0.0.1:5173",
			"http://localhost",
		},

		LogLevel: "info",
	}
}

// MerchantEnabled reports whether a merchant is switched on.
func (c *Config) MerchantEnabled(name string) bool {
	return c.Merchants[name]
}

// MerchantVersion returns the configured scraper version, "1.0.0" if unset.
func (c *Config) MerchantVersion(name string) string {
	if v := c.MerchantVersions[name]; v != "" {
		return v
	}
	return "1.0.0"
}

// StoreBackend resolves "auto" to postgres when DATABASE_URL is set and to
// the in-memory store otherwise.
func (c *Config) StoreBackend() string {
	if c.CacheBackend != "auto" {
		return c.CacheBackend
	}
	if c.DatabaseURL != "" {
		return "postgres"
	}
	return "memory"
}

// LoadFromEnv loads .env file (if present) then overrides config from environment variables.
func (c *Config) LoadFromEnv() {
	// Auto-load .env file; silently ignored if missing
	_ = godotenv.Load()

	if v := os.Getenv("CLOSESHAVE_MERCHANTS"); v != "" {
		for name := range c.Merchants {
			c.Merchants[name] = false
		}
		for _, name := range splitList(v) {
			c.Merchants[strings.ToLower(name)] = true
		}
	}
	if v := os.Getenv("CLOSESHAVE_RESPECT_ROBOTS"); v == "false" {
		c.RespectRobots = false
	}
	if v := os.Getenv("CLOSESHAVE_ROBOTS_USER_AGENT"); v != "" {
		c.RobotsUserAgent = v
	}
	if v := os.Getenv("CLOSESHAVE_USER_AGENTS"); v != "" {
		c.UserAgents = splitOn(v, "|")
	}
	envDuration("CLOSESHAVE_REQUEST_DELAY", &c.RequestDelay)
	envDuration("CLOSESHAVE_REQUEST_TIMEOUT", &c.RequestTimeout)
	envInt("CLOSESHAVE_MAX_RETRIES", &c.MaxRetries)
	envDuration("CLOSESHAVE_MERCHANT_TIMEOUT", &c.MerchantTimeout)
	if v := os.Getenv("CLOSESHAVE_RENDERER"); v != "" {
		c.Renderer = v
	}
	if v := os.Getenv("CLOSESHAVE_PROXIES"); v != "" {
		c.ProxyFile = v
	}

	if v := os.Getenv("CLOSESHAVE_CACHE_ENABLED"); v == "false" {
		c.CacheEnabled = false
	}
	if v := os.Getenv("CLOSESHAVE_CACHE_BACKEND"); v != "" {
		c.CacheBackend = v
	}
	envDuration("CLOSESHAVE_CACHE_TTL", &c.CacheTTL)
	envDuration("CLOSESHAVE_CACHE_SWEEP_INTERVAL", &c.CacheSweepInterval)
	envInt("CLOSESHAVE_CACHE_SIZE", &c.CacheSize)
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	envInt("REDIS_DB", &c.RedisDB)

	if v := os.Getenv("CLOSESHAVE_VALIDATION_ENABLED"); v == "false" {
		c.ValidationEnabled = false
	}
	envDuration("CLOSESHAVE_VALIDATION_TIMEOUT", &c.ValidationTimeout)
	envDuration("CLOSESHAVE_VALIDATION_CACHE_TTL", &c.ValidationCacheTTL)

	if v := os.Getenv("CLOSESHAVE_TAX_ENABLED"); v == "false" {
		c.TaxEnabled = false
	}
	if v := os.Getenv("CLOSESHAVE_SHIPPING_ENABLED"); v == "false" {
		c.ShippingEnabled = false
	}
	if v := os.Getenv("CLOSESHAVE_DEFAULT_TAX_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.DefaultTaxRate = f
		}
	}
	if v := os.Getenv("GEOLOCATION_API_KEY"); v != "" {
		c.GeolocationAPIKey = v
	}

	if v := os.Getenv("PORT"); v != "" {
		c.HTTPPort = v
	}
	if v := os.Getenv("CLOSESHAVE_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("CLOSESHAVE_CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}

	if v := os.Getenv("CLOSESHAVE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("CLOSESHAVE_LOG_DIR"); v != "" {
		c.LogDir = v
	}
}

// Validate reports every out-of-range setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.RequestDelay < 0 {
		errs = append(errs, errors.New("request delay must not be negative"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries must not be negative"))
	}
	if c.MerchantTimeout <= 0 {
		errs = append(errs, errors.New("merchant timeout must be positive"))
	}
	switch c.Renderer {
	case "rod", "playwright":
	default:
		errs = append(errs, fmt.Errorf("unknown renderer %q", c.Renderer))
	}
	switch c.StoreBackend() {
	case "memory":
		if c.CacheSize <= 0 {
			errs = append(errs, errors.New("cache size must be positive"))
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("postgres cache requires DATABASE_URL"))
		}
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis cache requires REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.CacheBackend))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, errors.New("cache ttl must be positive"))
	}
	if c.DefaultTaxRate < 0 || c.DefaultTaxRate >= 1 {
		errs = append(errs, errors.New("default tax rate must be in [0, 1)"))
	}
	return errors.Join(errs...)
}

func envDuration(key string, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return
	}
	// Bare numbers are seconds.
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = time.Duration(f * float64(time.Second))
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func splitList(v string) []string {
	return splitOn(v, ",")
}

func splitOn(v, sep string) []string {
	var out []string
	for _, part := range strings.Split(v, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
