package merchant

import (
	"net/url"
	"strings"

	"github.com/lukman83/closeshave/config"
)

// Rules are the CSS selectors that locate listing fields on a results page.
type Rules struct {
	Container    string
	Title        string
	Price        string
	Image        string
	Link         string
	Availability string

	// MerchantIDAttr names a container attribute holding the merchant's item id.
	MerchantIDAttr string
	// SkipClass drops containers carrying this class (section headers).
	SkipClass string
	// SkipTitles drops listings whose title contains any of these.
	SkipTitles []string
}

// Definition describes one structured merchant.
type Definition struct {
	Name       string
	SearchURL  string // contains {query}
	BaseURL    string
	RequiresJS bool
	Rules      Rules
}

// SearchURLFor fills the template with the escaped query; spaces become '+'.
func (d Definition) SearchURLFor(query string) string {
	return strings.ReplaceAll(d.SearchURL, "{query}", url.QueryEscape(strings.TrimSpace(query)))
}

// WithOverride returns d with the non-empty parts of o applied.
func (d Definition) WithOverride(o config.MerchantOverride) Definition {
	if o.SearchURL != "" {
		d.SearchURL = o.SearchURL
	}
	if o.BaseURL != "" {
		d.BaseURL = o.BaseURL
	}
	if o.RequiresJS != nil {
		d.RequiresJS = *o.RequiresJS
	}
	for key, sel := range o.Selectors {
		switch key {
		case "product_container", "container":
			d.Rules.Container = sel
		case "title":
			d.Rules.Title = sel
		case "price":
			d.Rules.Price = sel
		case "image":
			d.Rules.Image = sel
		case "link":
			d.Rules.Link = sel
		case "availability":
			d.Rules.Availability = sel
		case "merchant_id_attr":
			d.Rules.MerchantIDAttr = sel
		case "skip_class":
			d.Rules.SkipClass = sel
		}
	}
	return d
}

// Definitions returns the built-in structured merchants.
func Definitions() []Definition {
	return []Definition{
		{
			Name:      "amazon",
			SearchURL: "https://www.amazon.com/s?k={query}",
			BaseURL:   "https://www.amazon.com",
			Rules: Rules{
				Container:      "[data-component-type='s-search-result']",
				Title:          "h2 a span",
				Price:          ".a-price .a-offscreen",
				Image:          ".s-image",
				Link:           "h2 a",
				Availability:   ".a-color-state, .a-color-success",
				MerchantIDAttr: "data-asin",
			},
		},
		{
			Name:      "ebay",
			SearchURL: "https://www.ebay.com/sch/i.html?_nkw={query}",
			BaseURL:   "https://www.ebay.com",
			Rules: Rules{
				Container:    ".s-item",
				Title:        ".s-item__title",
				Price:        ".s-item__price",
				Image:        ".s-item__image img",
				Link:         ".s-item__link",
				Availability: ".s-item__availability",
				SkipClass:    "s-item__header",
				SkipTitles:   []string{"Shop on eBay"},
			},
		},
		{
			Name:       "walmart",
			SearchURL:  "https://www.walmart.com/search?q={query}",
			BaseURL:    "https://www.walmart.com",
			RequiresJS: true,
			Rules: Rules{
				Container:    "[data-testid='item-stack']",
				Title:        "[data-automation-id='product-title']",
				Price:        "[itemprop='price']",
				Image:        "img[data-testid='product-image']",
				Link:         "a[data-testid='product-title']",
				Availability: "[data-testid='product-availability']",
			},
		},
		{
			Name:       "target",
			SearchURL:  "https://www.target.com/s?searchTerm={query}",
			BaseURL:    "https://www.target.com",
			RequiresJS: true,
			Rules: Rules{
				Container:    "[data-test='product-card']",
				Title:        "[data-test='product-title']",
				Price:        "[data-test='product-price']",
				Image:        "img[data-test='product-image']",
				Link:         "a[data-test='product-title']",
				Availability: "[data-test='product-availability']",
			},
		},
		{
			Name:      "bestbuy",
			SearchURL: "https://www.bestbuy.com/site/searchpage.jsp?st={query}",
			BaseURL:   "https://www.bestbuy.com",
			Rules: Rules{
				Container:    ".sku-item",
				Title:        ".sku-title h4 a",
				Price:        ".priceView-customer-price span",
				Image:        ".product-image img",
				Link:         ".sku-title h4 a",
				Availability: ".fulfillment-fulfillment-summary",
			},
		},
		{
			Name:      "newegg",
			SearchURL: "https://www.newegg.com/p/pl?d={query}",
			BaseURL:   "https://www.newegg.com",
			Rules: Rules{
				Container:    ".item-cell",
				Title:        ".item-title",
				Price:        ".price-current",
				Image:        ".item-img img",
				Link:         ".item-title",
				Availability: ".item-promo",
			},
		},
	}
}
