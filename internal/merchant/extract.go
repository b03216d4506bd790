package merchant

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/lukman83/closeshave/internal/models"
)

// ClassifyAvailability maps free availability text to a stock state.
// Missing or unrecognized text means in stock.
func ClassifyAvailability(text string) models.Availability {
	text = strings.ToLower(text)
	switch {
	case containsAny(text, "out of stock", "unavailable", "sold out"):
		return models.OutOfStock
	case containsAny(text, "limited", "few left", "only"):
		return models.Limited
	default:
		return models.InStock
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ResolveURL makes ref absolute against base.
//
//	""              → ""
//	"http..."       → ref
//	"//host/x"      → base scheme + ":" + ref
//	"/x"            → base scheme://host + "/x"
//	"x"             → base + "/x", or "x" when base is empty
func ResolveURL(ref, base string) string {
	switch {
	case ref == "":
		return ""
	case strings.HasPrefix(ref, "http"):
		return ref
	case strings.HasPrefix(ref, "//"):
		scheme := "https"
		if u, err := url.Parse(base); err == nil && u.Scheme != "" {
			scheme = u.Scheme
		}
		return scheme + ":" + ref
	case strings.HasPrefix(ref, "/"):
		u, err := url.Parse(base)
		if err != nil || u.Host == "" {
			return ref
		}
		return u.Scheme + "://" + u.Host + ref
	case base == "":
		return ref
	default:
		return strings.TrimSuffix(base, "/") + "/" + ref
	}
}

// imageSource returns an <img>'s src, or data-src for lazy-loaded images.
func imageSource(sel *goquery.Selection) string {
	if src := strings.TrimSpace(sel.AttrOr("src", "")); src != "" && !strings.HasPrefix(src, "data:") {
		return src
	}
	return strings.TrimSpace(sel.AttrOr("data-src", ""))
}

// text returns the trimmed text of the first element matching selector.
// An empty selector yields "".
func text(sel *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(sel.Find(selector).First().Text())
}
