// Package pricing parses scraped price text and computes tax and totals.
package pricing

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var numberRe = regexp.MustCompile(`\d+\.?\d*`)

// ParsePrice extracts the first number in text, e.g. "$1,234.56" → 1234.56.
// Text without a number yields ok=false; it is never an error.
func ParsePrice(text string) (float64, bool) {
	text = strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	if text == "" {
		return 0, false
	}
	m := numberRe.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(m, "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Round2 rounds to cents, halves away from zero.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func CalculateTax(base, rate float64) float64 {
	return Round2(base * rate)
}

func CalculateTotal(base, shipping, tax float64) float64 {
	return Round2(base + shipping + tax)
}

// FormatPrice renders a price as "$19.99".
func FormatPrice(x float64) string {
	return fmt.Sprintf("$%.2f", x)
}
