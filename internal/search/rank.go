package search

import (
	"sort"
	"strings"

	"github.com/lukman83/closeshave/internal/geo"
	"github.com/lukman83/closeshave/internal/models"
)

// Rank filters, enriches, sorts, partitions and truncates listings for req.
func Rank(listings []models.Listing, req models.SearchRequest, est *geo.Estimator, loc *models.Location) []models.Listing {
	kept := Filter(listings, req)

	enriched := make([]models.Listing, len(kept))
	for i, l := range kept {
		enriched[i] = est.Enrich(l, loc)
	}

	SortByTotal(enriched)
	out := PartitionStock(enriched, req.WantsOutOfStock())
	if req.MaxResults > 0 && len(out) > req.MaxResults {
		out = out[:req.MaxResults]
	}
	return out
}

// Filter keeps listings whose base price is within the request's inclusive
// bounds and whose title contains the brand, ignoring case.
func Filter(listings []models.Listing, req models.SearchRequest) []models.Listing {
	brand := strings.ToLower(req.Brand)
	out := make([]models.Listing, 0, len(listings))
	for _, l := range listings {
		if req.MinPrice != nil && l.BasePrice < *req.MinPrice {
			continue
		}
		if req.MaxPrice != nil && l.BasePrice > *req.MaxPrice {
			continue
		}
		if brand != "" && !strings.Contains(strings.ToLower(l.Title), brand) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// SortByTotal orders by total price; equal totals keep merchant order.
func SortByTotal(listings []models.Listing) {
	sort.SliceStable(listings, func(i, j int) bool {
		return listings[i].TotalPrice < listings[j].TotalPrice
	})
}

// PartitionStock moves out-of-stock listings after the rest, keeping
// relative order, or drops them when includeOutOfStock is false.
func PartitionStock(listings []models.Listing, includeOutOfStock bool) []models.Listing {
	out := make([]models.Listing, 0, len(listings))
	var unavailable []models.Listing
	for _, l := range listings {
		if l.Availability == models.OutOfStock {
			unavailable = append(unavailable, l)
			continue
		}
		out = append(out, l)
	}
	if includeOutOfStock {
		out = append(out, unavailable...)
	}
	return out
}
