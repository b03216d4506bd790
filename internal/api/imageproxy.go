package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/lukman83/closeshave/internal/httputil"
)

const (
	maxImageRedirects = 5
	maxImageSize      = 10 << 20
	imageFetchTimeout = 10 * time.Second
)

var blockedHosts = map[string]bool{
	"localhost":                true,
	"metadata.google.internal": true,
}

// imageDomains are the merchant CDNs the proxy will fetch from. A host
// matches a domain exactly or as a dot-separated subdomain.
var imageDomains = []string{
	"amazon.com", "amazonaws.com", "media-amazon.com", "ssl-images-amazon.com",
	"ebay.com", "ebayimg.com",
	"walmart.com", "walmartimages.com",
	"target.com", "targetimg1.com",
	"bestbuy.com", "bbystatic.com",
	"newegg.com", "neweggimages.com",
}

// Image is a fetched upstream image.
type Image struct {
	ContentType string
	Body        []byte
}

// ImageProxy fetches merchant images on behalf of browsers that cannot
// load them cross-origin. Redirects are followed by hand so every hop is
// checked against the host rules.
type ImageProxy struct {
	client *http.Client
}

// NewImageProxy copies client and disables its automatic redirects. A nil
// client uses a default with a 10s timeout.
func NewImageProxy(client *http.Client) *ImageProxy {
	c := &http.Client{Timeout: imageFetchTimeout}
	if client != nil {
		c.Transport = client.Transport
		if client.Timeout > 0 {
			c.Timeout = client.Timeout
		}
	}
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &ImageProxy{client: c}
}

// Fetch downloads the image at raw after checking the URL and every
// redirect target.
func (p *ImageProxy) Fetch(ctx context.Context, raw string) (*Image, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, validationError("url parameter is required", nil)
	}
	current, err := url.Parse(raw)
	if err != nil {
		return nil, imageProxyError(http.StatusBadRequest, "Invalid URL format")
	}
	if err := CheckImageURL(current); err != nil {
		return nil, err
	}

	for hop := 0; ; hop++ {
		resp, err := p.get(ctx, current)
		if err != nil {
			return nil, imageProxyError(http.StatusBadGateway, "Failed to fetch image")
		}
		if !isRedirect(resp.StatusCode) {
			defer resp.Body.Close()
			return readImage(resp)
		}
		resp.Body.Close()

		if hop+1 >= maxImageRedirects {
			return nil, imageProxyError(http.StatusBadGateway, "Too many redirects")
		}
		loc := resp.Header.Get("Location")
		if loc == "" {
			return nil, imageProxyError(http.StatusBadRequest, "Invalid redirect")
		}
		next, err := current.Parse(loc)
		if err != nil {
			return nil, imageProxyError(http.StatusBadRequest, "Invalid redirect")
		}
		if err := CheckImageURL(next); err != nil {
			return nil, imageProxyError(http.StatusForbidden, "Redirect to unauthorized host")
		}
		current = next
	}
}

func (p *ImageProxy) get(ctx context.Context, u *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header = httputil.ImageHeaders(u.Scheme + "://" + u.Host + "/")
	return p.client.Do(req)
}

func readImage(resp *http.Response) (*Image, error) {
	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, imageProxyError(http.StatusNotFound, fmt.Sprintf("Image not found (HTTP %d)", resp.StatusCode))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, imageProxyError(http.StatusForbidden, fmt.Sprintf("Access denied (HTTP %d)", resp.StatusCode))
	default:
		return nil, imageProxyError(http.StatusBadGateway, fmt.Sprintf("Failed to fetch image (HTTP %d)", resp.StatusCode))
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(ct, "image/") {
		return nil, imageProxyError(http.StatusBadRequest, "URL does not point to an image")
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, imageProxyError(http.StatusBadGateway, "Failed to fetch image")
	}
	if len(body) > maxImageSize {
		return nil, imageProxyError(http.StatusBadGateway, "Image too large")
	}
	return &Image{ContentType: ct, Body: body}, nil
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

var errHostNotAllowed = errors.New("host not allowed")

// CheckImageURL rejects non-http(s) URLs, internal hosts and hosts outside
// the merchant image domains.
func CheckImageURL(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return imageProxyError(http.StatusBadRequest, "Only HTTP and HTTPS URLs are allowed")
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return imageProxyError(http.StatusBadRequest, "Invalid hostname")
	}
	if err := checkHost(host); err != nil {
		return imageProxyError(http.StatusForbidden, "Access to this host is not allowed")
	}
	if !allowedImageHost(host) {
		return imageProxyError(http.StatusForbidden, "Image host not in allowed list")
	}
	return nil
}

func checkHost(host string) error {
	if blockedHosts[host] {
		return errHostNotAllowed
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() || addr.IsUnspecified() || addr.IsMulticast() {
		return errHostNotAllowed
	}
	return nil
}

func allowedImageHost(host string) bool {
	for _, d := range imageDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
