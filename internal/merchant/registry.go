package merchant

import (
	"sort"

	"github.com/lukman83/closeshave/config"
	"github.com/lukman83/closeshave/internal/models"
	"go.uber.org/zap"
)

// Build registers the built-in merchants, applying configured overrides,
// then any extra merchants defined only in configuration.
func Build(cfg *config.Config, deps Deps) *Registry {
	reg := NewRegistry()
	known := make(map[string]bool)

	for _, def := range Definitions() {
		known[def.Name] = true
		if o, ok := cfg.Overrides[def.Name]; ok {
			def = def.WithOverride(o)
		}
		reg.Register(NewHTMLScraper(def, deps), infoFor(cfg, def.Name, def.RequiresJS))
	}

	known["duckduckgo"] = true
	reg.Register(NewDuckDuckGo(deps), infoFor(cfg, "duckduckgo", false))

	// Map order is random; keep extra merchants stable across runs.
	var extra []string
	for name, o := range cfg.Overrides {
		if !known[name] && o.SearchURL != "" {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		def := Definition{Name: name}.WithOverride(cfg.Overrides[name])
		if def.Rules.Container == "" {
			deps.logger().Warn("skipping configured merchant without container selector",
				zap.String("merchant", name))
			continue
		}
		reg.Register(NewHTMLScraper(def, deps), infoFor(cfg, name, def.RequiresJS))
	}
	return reg
}

func infoFor(cfg *config.Config, name string, requiresJS bool) models.MerchantInfo {
	return models.MerchantInfo{
		Name:     name,
		Enabled:  cfg.MerchantEnabled(name),
		Version:  cfg.MerchantVersion(name),
		Headless: requiresJS,
	}
}
