package geo

import (
	"testing"

	"github.com/lukman83/closeshave/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestEstimator_TaxRate(t *testing.T) {
	e := &Estimator{DefaultTaxRate: 0.05}

	assert.Equal(t, 0.0725, e.TaxRate("CA"))
	assert.Equal(t, 0.0725, e.TaxRate("ca"))
	assert.Equal(t, 0.06875, e.TaxRate("MN"))
	assert.Equal(t, 0.06, e.TaxRate("DC"))
	assert.Equal(t, 0.0, e.TaxRate("OR"))
	assert.Equal(t, 0.05, e.TaxRate(""), "empty uses default")
	assert.Equal(t, 0.05, e.TaxRate("ZZ"), "unknown uses default")
	assert.Equal(t, 0.0, (&Estimator{}).TaxRate("ZZ"), "default rate defaults to zero")
	assert.Len(t, stateTaxRates, 51)
}

func TestEstimator_EstimateShipping(t *testing.T) {
	e := &Estimator{ShippingEnabled: true}

	tests := []struct {
		merchant string
		base     float64
		want     float64
	}{
		{"amazon", 25.00, 5.99},
		{"amazon", 25.01, 0},
		{"walmart", 35.00, 5.99},
		{"walmart", 35.50, 0},
		{"target", 10, 5.99},
		{"bestbuy", 100, 0},
		{"newegg", 50, 7.99},
		{"newegg", 50.01, 0},
		{"ebay", 500, 5.99},
		{"ebay", 1, 5.99},
		{"duckduckgo", 999, 5.99},
		{"someshop", 1000, 5.99},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, e.EstimateShipping(tt.merchant, tt.base), "%s %.2f", tt.merchant, tt.base)
	}

	off := &Estimator{ShippingEnabled: false}
	assert.Zero(t, off.EstimateShipping("ebay", 10))
}

func TestEstimator_Enrich(t *testing.T) {
	e := &Estimator{TaxEnabled: true, ShippingEnabled: true}
	scraped := models.Listing{Title: "Hub", Merchant: "amazon", BasePrice: 19.99, Price: 19.99, TotalPrice: 19.99}

	t.Run("with location", func(t *testing.T) {
		got := e.Enrich(scraped, &models.Location{State: "CA"})
		assert.Equal(t, 5.99, got.ShippingCost)
		assert.Equal(t, 1.45, got.Tax)
		assert.Equal(t, 27.43, got.TotalPrice)
		assert.Equal(t, got.TotalPrice, got.Price)
		assert.Equal(t, 19.99, scraped.TotalPrice, "input not modified")
	})

	t.Run("without location ships but does not tax", func(t *testing.T) {
		got := e.Enrich(scraped, nil)
		assert.Equal(t, 5.99, got.ShippingCost)
		assert.Zero(t, got.Tax)
		assert.Equal(t, 25.98, got.TotalPrice)
	})

	t.Run("unknown state uses default rate", func(t *testing.T) {
		est := &Estimator{TaxEnabled: true, DefaultTaxRate: 0.05}
		got := est.Enrich(models.Listing{Merchant: "someshop", BasePrice: 20}, &models.Location{Country: "US", State: "PR"})
		assert.Equal(t, 1.0, got.Tax)
		assert.Equal(t, 21.0, got.TotalPrice)
	})

	t.Run("all disabled", func(t *testing.T) {
		got := (&Estimator{}).Enrich(scraped, &models.Location{State: "NY"})
		assert.Zero(t, got.ShippingCost)
		assert.Zero(t, got.Tax)
		assert.Equal(t, 19.99, got.TotalPrice)
	})
}
