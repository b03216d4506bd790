package cmd

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/lukman83/closeshave/internal/models"
	"github.com/lukman83/closeshave/internal/pricing"
)

// printSearchResponse prints listings in a card layout followed by a
// per-merchant summary.
func printSearchResponse(w io.Writer, resp *models.SearchResponse) {
	if len(resp.Products) == 0 {
		fmt.Fprintln(w, "No products found.")
	}
	for i, p := range resp.Products {
		if i > 0 {
			fmt.Fprintln(w)
		}
		title := truncate(p.Title, 90)
		if p.Availability == models.OutOfStock {
			title = "[OUT OF STOCK] " + title
		} else if p.Availability == models.Limited {
			title = "[LIMITED] " + title
		}
		fmt.Fprintf(w, " %d. %s\n", i+1, title)
		fmt.Fprintln(w, "    "+priceLine(p))
		fmt.Fprintf(w, "    %s\n", cleanURL(p.ProductURL))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d results in %.1fs", resp.TotalResults, resp.SearchTime)
	if resp.Location != nil && resp.Location.State != "" {
		fmt.Fprintf(w, ", tax estimated for %s", resp.Location.State)
	}
	fmt.Fprintln(w)
	for _, m := range resp.Merchants {
		line := fmt.Sprintf("  %-10s %-6s %d", m.Merchant, m.Source, m.Count)
		if m.Reason != "" {
			line += "  (" + m.Reason + ")"
		}
		fmt.Fprintln(w, line)
	}
	for _, f := range resp.Failures {
		if f.Source == models.SourceFailed && f.Count == 0 && !listed(resp.Merchants, f.Merchant) {
			fmt.Fprintf(w, "  %-10s skipped (%s)\n", f.Merchant, f.Reason)
		}
	}
}

// priceLine shows the total and, when it differs, how it was built.
func priceLine(p models.Listing) string {
	line := "Total: " + pricing.FormatPrice(p.TotalPrice)
	if p.TotalPrice != p.BasePrice {
		line += fmt.Sprintf("  (%s", pricing.FormatPrice(p.BasePrice))
		if p.ShippingCost > 0 {
			line += " + " + pricing.FormatPrice(p.ShippingCost) + " shipping"
		}
		if p.Tax > 0 {
			line += " + " + pricing.FormatPrice(p.Tax) + " tax"
		}
		line += ")"
	}
	return line + "  |  " + p.Merchant
}

func listed(outcomes []models.MerchantOutcome, name string) bool {
	for _, o := range outcomes {
		if o.Merchant == name {
			return true
		}
	}
	return false
}

// cleanURL strips tracking query params and returns just the product page URL.
func cleanURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}
