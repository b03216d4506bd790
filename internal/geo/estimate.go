package geo

import (
	"strings"

	"github.com/lukman83/closeshave/internal/models"
	"github.com/lukman83/closeshave/internal/pricing"
)

// stateTaxRates are approximate state-level sales tax rates.
var stateTaxRates = map[string]float64{
	"AL": 0.04, "AK": 0.00, "AZ": 0.056, "AR": 0.065, "CA": 0.0725,
	"CO": 0.029, "CT": 0.0635, "DE": 0.00, "FL": 0.06, "GA": 0.04,
	"HI": 0.04, "ID": 0.06, "IL": 0.0625, "IN": 0.07, "IA": 0.06,
	"KS": 0.065, "KY": 0.06, "LA": 0.0445, "ME": 0.055, "MD": 0.06,
	"MA": 0.0625, "MI": 0.06, "MN": 0.06875, "MS": 0.07, "MO": 0.04225,
	"MT": 0.00, "NE": 0.055, "NV": 0.0685, "NH": 0.00, "NJ": 0.06625,
	"NM": 0.05125, "NY": 0.04, "NC": 0.0475, "ND": 0.05, "OH": 0.0575,
	"OK": 0.045, "OR": 0.00, "PA": 0.06, "RI": 0.07, "SC": 0.06,
	"SD": 0.045, "TN": 0.07, "TX": 0.0625, "UT": 0.061, "VT": 0.06,
	"VA": 0.053, "WA": 0.065, "WV": 0.06, "WI": 0.05, "WY": 0.04,
	"DC": 0.06,
}

const defaultShippingFee = 5.99

type shippingRule struct {
	freeAbove float64 // strictly greater than
	fee       float64
}

var shippingRules = map[string]shippingRule{
	"amazon":  {freeAbove: 25, fee: 5.99},
	"walmart": {freeAbove: 35, fee: 5.99},
	"target":  {freeAbove: 35, fee: 5.99},
	"bestbuy": {freeAbove: 35, fee: 5.99},
	"newegg":  {freeAbove: 50, fee: 7.99},
}

// Estimator computes approximate tax and shipping. These are estimates,
// not quotes.
type Estimator struct {
	TaxEnabled      bool
	ShippingEnabled bool
	DefaultTaxRate  float64
}

// TaxRate returns the sales tax rate for a two-letter state code. Empty
// and unknown states use the default rate.
func (e *Estimator) TaxRate(state string) float64 {
	if rate, ok := stateTaxRates[strings.ToUpper(strings.TrimSpace(state))]; ok {
		return rate
	}
	return e.DefaultTaxRate
}

// EstimateShipping returns the shipping fee for an order of base at merchant.
func (e *Estimator) EstimateShipping(merchant string, base float64) float64 {
	if !e.ShippingEnabled {
		return 0
	}
	rule, ok := shippingRules[strings.ToLower(merchant)]
	if !ok {
		return defaultShippingFee
	}
	if base > rule.freeAbove {
		return 0
	}
	return rule.fee
}

// Enrich returns a copy of l with shipping, tax and total filled in. Tax is
// only applied when loc is known. Price is set to the total.
func (e *Estimator) Enrich(l models.Listing, loc *models.Location) models.Listing {
	l.ShippingCost = 0
	l.Tax = 0
	if e.ShippingEnabled {
		l.ShippingCost = e.EstimateShipping(l.Merchant, l.BasePrice)
	}
	if e.TaxEnabled && loc != nil {
		l.Tax = pricing.CalculateTax(l.BasePrice, e.TaxRate(loc.State))
	}
	l.TotalPrice = pricing.CalculateTotal(l.BasePrice, l.ShippingCost, l.Tax)
	l.Price = l.TotalPrice
	return l
}
