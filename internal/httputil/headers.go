package httputil

import "net/http"

// JSONHeaders returns headers for public JSON endpoints.
func JSONHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	return h
}

// ImageHeaders returns headers for fetching a product image as a browser
// would when rendering referer's page.
func ImageHeaders(referer string) http.Header {
	h := http.Header{}
	h.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Sec-Fetch-Dest", "image")
	h.Set("Sec-Fetch-Mode", "no-cors")
	h.Set("Sec-Fetch-Site", "cross-site")
	if referer != "" {
		h.Set("Referer", referer)
	}
	return h
}
