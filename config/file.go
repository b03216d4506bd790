package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the optional YAML settings file. Pointer fields keep
// "absent" distinct from "false".
type fileConfig struct {
	Version   string `yaml:"version"`
	Merchants map[string]struct {
		Enabled *bool  `yaml:"enabled"`
		Version string `yaml:"version"`

		MerchantOverride `yaml:",inline"`
	} `yaml:"merchants"`
	Scraping struct {
		RequestDelay    *float64 `yaml:"request_delay"` // seconds
		Timeout         *float64 `yaml:"timeout"`       // seconds
		MaxRetries      *int     `yaml:"max_retries"`
		MerchantTimeout *float64 `yaml:"merchant_timeout"` // seconds
		UserAgents      []string `yaml:"user_agents"`
		RespectRobots   *bool    `yaml:"respect_robots"`
		Renderer        string   `yaml:"renderer"`
	} `yaml:"scraping"`
	Cache struct {
		Enabled  *bool    `yaml:"enabled"`
		Backend  string   `yaml:"backend"`
		TTLHours *float64 `yaml:"ttl_hours"`
	} `yaml:"cache"`
	Validation struct {
		Enabled         *bool    `yaml:"enabled"`
		Timeout         *float64 `yaml:"timeout"`
		CacheTTLMinutes *float64 `yaml:"cache_ttl_minutes"`
	} `yaml:"validation"`
	Tax struct {
		Enabled     *bool    `yaml:"enabled"`
		DefaultRate *float64 `yaml:"default_rate"`
	} `yaml:"tax"`
	Shipping struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"shipping"`
	Geolocation struct {
		Provider string `yaml:"provider"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"geolocation"`
	Server struct {
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
}

// LoadFile merges a YAML settings file into c. A missing file is not an error.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	return c.loadYAML(data)
}

func (c *Config) loadYAML(data []byte) error {
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if f.Version != "" {
		c.Version = f.Version
	}
	for name, m := range f.Merchants {
		name = strings.ToLower(name)
		if m.Enabled != nil {
			c.Merchants[name] = *m.Enabled
		}
		if m.Version != "" {
			c.MerchantVersions[name] = m.Version
		}
		o := m.MerchantOverride
		if o.SearchURL != "" || o.BaseURL != "" || o.RequiresJS != nil || len(o.Selectors) > 0 {
			c.Overrides[name] = o
		}
	}

	s := f.Scraping
	setSeconds(&c.RequestDelay, s.RequestDelay)
	setSeconds(&c.RequestTimeout, s.Timeout)
	setSeconds(&c.MerchantTimeout, s.MerchantTimeout)
	if s.MaxRetries != nil {
		c.MaxRetries = *s.MaxRetries
	}
	if len(s.UserAgents) > 0 {
		c.UserAgents = s.UserAgents
	}
	if s.RespectRobots != nil {
		c.RespectRobots = *s.RespectRobots
	}
	if s.Renderer != "" {
		c.Renderer = s.Renderer
	}

	if f.Cache.Enabled != nil {
		c.CacheEnabled = *f.Cache.Enabled
	}
	if f.Cache.Backend != "" {
		c.CacheBackend = f.Cache.Backend
	}
	if f.Cache.TTLHours != nil {
		c.CacheTTL = hours(*f.Cache.TTLHours)
	}

	if f.Validation.Enabled != nil {
		c.ValidationEnabled = *f.Validation.Enabled
	}
	setSeconds(&c.ValidationTimeout, f.Validation.Timeout)
	if f.Validation.CacheTTLMinutes != nil {
		c.ValidationCacheTTL = minutes(*f.Validation.CacheTTLMinutes)
	}

	if f.Tax.Enabled != nil {
		c.TaxEnabled = *f.Tax.Enabled
	}
	if f.Tax.DefaultRate != nil {
		c.DefaultTaxRate = *f.Tax.DefaultRate
	}
	if f.Shipping.Enabled != nil {
		c.ShippingEnabled = *f.Shipping.Enabled
	}
	if f.Geolocation.Provider != "" {
		c.GeolocationProvider = f.Geolocation.Provider
	}
	if f.Geolocation.APIKey != "" {
		c.GeolocationAPIKey = f.Geolocation.APIKey
	}
	if len(f.Server.CORSOrigins) > 0 {
		c.CORSOrigins = f.Server.CORSOrigins
	}
	return nil
}
