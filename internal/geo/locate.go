// Package geo resolves a client's location and estimates sales tax and
// shipping for listings.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/lukman83/closeshave/internal/httputil"
	"github.com/lukman83/closeshave/internal/models"
	"go.uber.org/zap"
)

const (
	ipAPIEndpoint = "http://ip-api.com/json/"
	lookupTimeout = 5 * time.Second
)

// Locator looks up an IP address's location with ip-api.com.
type Locator struct {
	client   *http.Client
	endpoint string
	apiKey   string
	log      *zap.Logger
}

func NewLocator(client *http.Client, apiKey string, log *zap.Logger) *Locator {
	if client == nil {
		client = httputil.NewHTTPClient(nil, lookupTimeout)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Locator{client: client, endpoint: ipAPIEndpoint, apiKey: apiKey, log: log}
}

type ipAPIResponse struct {
	Status     string `json:"status"`
	Country    string `json:"country"`
	Region     string `json:"region"`
	RegionName string `json:"regionName"`
	RegionCode string `json:"regionCode"`
	City       string `json:"city"`
	Zip        string `json:"zip"`
}

// Locate returns ip's location, or nil when ip is empty, not publicly
// routable, or the lookup fails.
func (l *Locator) Locate(ctx context.Context, ip string) *models.Location {
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.IsGlobalUnicast() || addr.IsPrivate() {
		return nil
	}

	loc, err := l.lookup(ctx, addr.String())
	if err != nil {
		l.log.Warn("geolocation lookup failed", zap.String("ip", ip), zap.Error(err))
		return nil
	}
	return loc
}

func (l *Locator) lookup(ctx context.Context, ip string) (*models.Location, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	u := l.endpoint + url.PathEscape(ip)
	if l.apiKey != "" {
		u += "?key=" + url.QueryEscape(l.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header = httputil.JSONHeaders()

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var r ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if r.Status != "success" && r.Country == "" {
		return nil, fmt.Errorf("lookup status %q", r.Status)
	}

	loc := &models.Location{
		Country: r.Country,
		Region:  r.Region,
		State:   r.RegionCode,
		City:    r.City,
		Zip:     r.Zip,
	}
	if loc.Country == "" {
		loc.Country = "US"
	}
	if loc.Region == "" {
		loc.Region = r.RegionName
	}
	// ip-api.com reports the state code in "region".
	if loc.State == "" && len(r.Region) == 2 {
		loc.State = strings.ToUpper(r.Region)
	}
	return loc, nil
}
