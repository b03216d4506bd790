package models

import (
	"errors"
	"fmt"
	"strings"
)

// Availability is the stock state reported for a listing.
type Availability string

const (
	InStock    Availability = "in_stock"
	OutOfStock Availability = "out_of_stock"
	Limited    Availability = "limited"
)

// Listing is one merchant search result. Enrichment fills ShippingCost, Tax,
// TotalPrice and Price on a copy; scraped values are never modified in place.
type Listing struct {
	Title          string       `json:"title"`
	Price          float64      `json:"price"`
	BasePrice      float64      `json:"base_price"`
	ShippingCost   float64      `json:"shipping_cost"`
	Tax            float64      `json:"tax"`
	TotalPrice     float64      `json:"total_price"`
	ImageURL       string       `json:"image_url"`
	DirectImageURL string       `json:"direct_image_url"`
	ProductURL     string       `json:"product_url"`
	Merchant       string       `json:"merchant"`
	Availability   Availability `json:"availability"`
	MerchantID     string       `json:"merchant_id,omitempty"`
	Brand          string       `json:"brand,omitempty"`
	Rating         *float64     `json:"rating,omitempty"`
	ReviewCount    *int         `json:"review_count,omitempty"`
}

const (
	MinResults     = 1
	MaxResults     = 100
	DefaultResults = 20
)

type SearchRequest struct {
	Query             string   `json:"query"`
	Merchants         []string `json:"merchants,omitempty"`
	MaxResults        int      `json:"max_results"`
	MinPrice          *float64 `json:"min_price,omitempty"`
	MaxPrice          *float64 `json:"max_price,omitempty"`
	Brand             string   `json:"brand,omitempty"`
	IncludeOutOfStock *bool    `json:"include_out_of_stock,omitempty"`

	// ClientIP is filled by the transport layer, never decoded from the body.
	ClientIP string `json:"-"`
}

// Normalize applies defaults for unset fields.
func (r *SearchRequest) Normalize() {
	r.Query = strings.TrimSpace(r.Query)
	if r.MaxResults == 0 {
		r.MaxResults = DefaultResults
	}
	r.Brand = strings.TrimSpace(r.Brand)
}

// WantsOutOfStock reports whether out-of-stock listings should be returned.
// Unset means yes.
func (r *SearchRequest) WantsOutOfStock() bool {
	return r.IncludeOutOfStock == nil || *r.IncludeOutOfStock
}

// Validate checks the request before any merchant is contacted.
func (r *SearchRequest) Validate() error {
	var errs []error
	if strings.TrimSpace(r.Query) == "" {
		errs = append(errs, errors.New("query must not be empty"))
	}
	if r.MaxResults < MinResults || r.MaxResults > MaxResults {
		errs = append(errs, fmt.Errorf("max_results must be between %d and %d", MinResults, MaxResults))
	}
	if r.MinPrice != nil && *r.MinPrice < 0 {
		errs = append(errs, errors.New("min_price must not be negative"))
	}
	if r.MaxPrice != nil && *r.MaxPrice < 0 {
		errs = append(errs, errors.New("max_price must not be negative"))
	}
	if r.MinPrice != nil && r.MaxPrice != nil && *r.MinPrice > *r.MaxPrice {
		errs = append(errs, errors.New("min_price must not exceed max_price"))
	}
	if len(errs) > 0 {
		return &ValidationError{Err: errors.Join(errs...)}
	}
	return nil
}

// ValidationError marks a request rejected before scraping.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "invalid search request: " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

type Location struct {
	Country string `json:"country"`
	Region  string `json:"region"`
	State   string `json:"state"`
	City    string `json:"city"`
	Zip     string `json:"zip"`
}

// UnitSource says where a merchant's listings came from.
type UnitSource string

const (
	SourceCache  UnitSource = "cache"
	SourceScrape UnitSource = "scrape"
	SourceFailed UnitSource = "failed"
)

// MerchantOutcome summarizes one merchant's part of a search.
type MerchantOutcome struct {
	Merchant string     `json:"merchant"`
	Source   UnitSource `json:"source"`
	Count    int        `json:"count"`
	Reason   string     `json:"reason,omitempty"`
	Error    string     `json:"error,omitempty"`
}

type SearchResponse struct {
	SearchID     string            `json:"search_id"`
	Products     []Listing         `json:"products"`
	TotalResults int               `json:"total_results"`
	SearchTime   float64           `json:"search_time"`
	Cached       bool              `json:"cached"`
	Location     *Location         `json:"location"`
	Merchants    []MerchantOutcome `json:"merchants"`
	Failures     []MerchantOutcome `json:"failures,omitempty"`
}

type MerchantInfo struct {
	Name     string `json:"name"`
	Enabled  bool   `json:"enabled"`
	Version  string `json:"version"`
	Headless bool   `json:"requires_js"`
}

// Validation is the verdict on whether a query is likely to return results.
type Validation struct {
	IsValid     bool     `json:"is_valid"`
	HasResults  bool     `json:"has_results"`
	Suggestions []string `json:"suggestions"`
	Confidence  float64  `json:"confidence"`
}
