package merchant

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/gocolly/colly/v2"
	"github.com/lukman83/closeshave/internal/models"
	"github.com/lukman83/closeshave/internal/pricing"
	"go.uber.org/zap"
)

const duckDuckGoEndpoint = "https://html.duckduckgo.com/html/"

// dollarAmount finds "$1,299.99"-style amounts in free text.
var dollarAmount = regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d{1,2})?`)

// DuckDuckGo is a text-search merchant: it searches the web for deals and
// keeps results whose title or snippet mentions a price.
type DuckDuckGo struct {
	endpoint string
	deps     Deps
	log      *zap.Logger
}

func NewDuckDuckGo(deps Deps) *DuckDuckGo {
	return &DuckDuckGo{
		endpoint: duckDuckGoEndpoint,
		deps:     deps,
		log:      deps.logger().With(zap.String("merchant", "duckduckgo")),
	}
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]models.Listing, error) {
	searchURL := d.endpoint + "?q=" + url.QueryEscape(strings.TrimSpace(query)+" deal price")

	if err := guard(ctx, d.deps, searchURL); err != nil {
		return nil, err
	}
	ReportProgress(ctx, d.Name(), StageFetching)

	c := colly.NewCollector(colly.AllowURLRevisit())
	if d.deps.Timeout > 0 {
		c.SetRequestTimeout(d.deps.Timeout)
	}
	if d.deps.Fingerprints != nil {
		c.UserAgent = d.deps.Fingerprints.Next().UserAgent
	}
	c.WithTransport(&contextTransport{ctx: ctx, base: d.transport()})

	var (
		listings []models.Listing
		status   int
	)
	c.OnRequest(func(r *colly.Request) {
		// colly only decompresses gzip itself.
		r.Headers.Set("Accept-Encoding", "gzip")
	})
	c.OnHTML(".result__body", func(e *colly.HTMLElement) {
		if maxResults > 0 && len(listings) >= maxResults {
			return
		}
		if l, ok := ddgListing(e); ok {
			listings = append(listings, l)
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := c.Visit(searchURL); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if status >= 400 {
			return nil, &StatusError{Merchant: d.Name(), URL: searchURL, StatusCode: status}
		}
		d.log.Warn("search failed", zap.Error(err))
		return nil, &FetchError{Merchant: d.Name(), URL: searchURL, Err: err}
	}

	d.log.Debug("scraped", zap.Int("listings", len(listings)))
	return listings, nil
}

func (d *DuckDuckGo) transport() http.RoundTripper {
	if d.deps.Client != nil && d.deps.Client.Transport != nil {
		return d.deps.Client.Transport
	}
	return http.DefaultTransport
}

func ddgListing(e *colly.HTMLElement) (models.Listing, bool) {
	title := strings.TrimSpace(e.ChildText(".result__title a"))
	if title == "" {
		return models.Listing{}, false
	}
	snippet := strings.TrimSpace(e.ChildText(".result__snippet"))

	price, ok := textPrice(title)
	if !ok {
		price, ok = textPrice(snippet)
	}
	if !ok {
		return models.Listing{}, false
	}

	return models.Listing{
		Title:        title,
		Price:        price,
		BasePrice:    price,
		TotalPrice:   price,
		ProductURL:   resultLink(e.ChildAttr(".result__title a", "href")),
		Merchant:     "duckduckgo",
		Availability: models.InStock,
	}, true
}

// textPrice returns the first dollar amount in s.
func textPrice(s string) (float64, bool) {
	m := dollarAmount.FindString(s)
	if m == "" {
		return 0, false
	}
	return pricing.ParsePrice(m)
}

// resultLink unwraps DuckDuckGo's redirect links (…/l/?uddg=<target>).
func resultLink(href string) string {
	u, err := url.Parse(ResolveURL(href, "https://duckduckgo.com"))
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return u.String()
}

// contextTransport binds requests made by a collector to ctx so a
// cancelled search aborts the in-flight fetch.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.ctx.Err(); err != nil {
		return nil, fmt.Errorf("search cancelled: %w", err)
	}
	return t.base.RoundTrip(req.WithContext(t.ctx))
}
