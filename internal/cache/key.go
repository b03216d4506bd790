package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// NormalizeQuery trims, lower-cases and collapses whitespace.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// SearchKey identifies one merchant's raw results for a query. Filters
// applied after retrieval, like brand and stock, are not part of it.
func SearchKey(query, merchant string, maxResults int, minPrice, maxPrice *float64) string {
	parts := []string{
		NormalizeQuery(query),
		strings.ToLower(merchant),
		strconv.Itoa(maxResults),
		bound(minPrice),
		bound(maxPrice),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

func bound(p *float64) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}
