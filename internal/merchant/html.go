package merchant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/lukman83/closeshave/internal/httputil"
	"github.com/lukman83/closeshave/internal/models"
	"github.com/lukman83/closeshave/internal/pricing"
	"github.com/lukman83/closeshave/internal/stealth"
	"go.uber.org/zap"
)

// HTMLScraper scrapes a merchant whose results page has a fixed structure
// described by a Definition.
type HTMLScraper struct {
	def  Definition
	deps Deps
	log  *zap.Logger
}

func NewHTMLScraper(def Definition, deps Deps) *HTMLScraper {
	if deps.Client == nil {
		deps.Client = httputil.NewHTTPClient(nil, deps.Timeout)
	}
	return &HTMLScraper{
		def:  def,
		deps: deps,
		log:  deps.logger().With(zap.String("merchant", def.Name)),
	}
}

func (s *HTMLScraper) Name() string { return s.def.Name }

// Definition returns the definition the scraper was built with.
func (s *HTMLScraper) Definition() Definition { return s.def }

func (s *HTMLScraper) Search(ctx context.Context, query string, maxResults int) ([]models.Listing, error) {
	searchURL := s.def.SearchURLFor(query)

	if err := guard(ctx, s.deps, searchURL); err != nil {
		return nil, err
	}

	start := time.Now()

	var (
		body string
		err  error
	)
	if s.def.RequiresJS {
		ReportProgress(ctx, s.def.Name, StageRendering)
		body, err = s.render(ctx, searchURL)
	} else {
		ReportProgress(ctx, s.def.Name, StageFetching)
		body, err = s.fetch(ctx, searchURL)
	}
	if err != nil {
		s.log.Warn("fetch failed", zap.String("url", searchURL), zap.Error(err))
		return nil, err
	}

	listings, err := s.Parse(body, maxResults)
	if err != nil {
		s.log.Warn("parse failed", zap.Error(err))
		return nil, err
	}

	s.log.Debug("scraped",
		zap.Int("listings", len(listings)),
		zap.Bool("rendered", s.def.RequiresJS),
		zap.Duration("took", time.Since(start)))
	return listings, nil
}

// guard enforces robots.txt and per-domain pacing before a request.
func guard(ctx context.Context, deps Deps, target string) error {
	if deps.Robots != nil && !deps.Robots.Allowed(ctx, target) {
		return fmt.Errorf("%s: %w", target, ErrDisallowed)
	}
	if deps.Limiter == nil {
		return nil
	}
	domain, err := stealth.Domain(target)
	if err != nil {
		return err
	}
	var crawlDelay time.Duration
	if deps.Robots != nil {
		crawlDelay = deps.Robots.CrawlDelay(ctx, target)
	}
	return deps.Limiter.Wait(ctx, domain, crawlDelay)
}

func (s *HTMLScraper) fetch(ctx context.Context, searchURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", &FetchError{Merchant: s.def.Name, URL: searchURL, Err: err}
	}
	req.Header.Set("Referer", s.def.BaseURL+"/")

	resp, err := httputil.DoWithRetry(ctx, s.deps.Client, req, s.deps.MaxRetries)
	if err != nil {
		return "", &FetchError{Merchant: s.def.Name, URL: searchURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Merchant: s.def.Name, URL: searchURL, StatusCode: resp.StatusCode}
	}

	body, err := httputil.ReadBody(resp)
	if err != nil {
		return "", &FetchError{Merchant: s.def.Name, URL: searchURL, Err: err}
	}
	return string(body), nil
}

func (s *HTMLScraper) render(ctx context.Context, searchURL string) (string, error) {
	if s.deps.Renderer == nil {
		return "", &FetchError{Merchant: s.def.Name, URL: searchURL, Err: errors.New("no renderer configured")}
	}
	var ua string
	if s.deps.Fingerprints != nil {
		ua = s.deps.Fingerprints.Next().UserAgent
	}
	html, err := s.deps.Renderer.Render(ctx, searchURL, ua)
	if err != nil {
		return "", &FetchError{Merchant: s.def.Name, URL: searchURL, Err: err}
	}
	return html, nil
}

// Parse extracts listings from a results page. At most maxResults
// containers are examined; containers that fail extraction are skipped.
func (s *HTMLScraper) Parse(body string, maxResults int) ([]models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, &ParseError{Merchant: s.def.Name, Err: err}
	}

	containers := doc.Find(s.def.Rules.Container)
	if maxResults > 0 && containers.Length() > maxResults {
		containers = containers.Slice(0, maxResults)
	}

	listings := make([]models.Listing, 0, containers.Length())
	containers.Each(func(_ int, sel *goquery.Selection) {
		if l, ok := s.extractSafe(sel); ok {
			listings = append(listings, l)
		}
	})
	return listings, nil
}

func (s *HTMLScraper) extractSafe(sel *goquery.Selection) (l models.Listing, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Debug("listing extraction panicked", zap.Any("panic", r))
			ok = false
		}
	}()
	return s.extract(sel)
}

func (s *HTMLScraper) extract(sel *goquery.Selection) (models.Listing, bool) {
	r := s.def.Rules

	if r.SkipClass != "" && sel.HasClass(r.SkipClass) {
		return models.Listing{}, false
	}

	title := text(sel, r.Title)
	if title == "" {
		return models.Listing{}, false
	}
	for _, skip := range r.SkipTitles {
		if strings.Contains(title, skip) {
			return models.Listing{}, false
		}
	}

	priceSel := sel.Find(r.Price).First()
	priceText := strings.TrimSpace(priceSel.Text())
	if priceText == "" {
		priceText = priceSel.AttrOr("content", "")
	}
	price, ok := pricing.ParsePrice(priceText)
	if !ok {
		return models.Listing{}, false
	}

	var image string
	if r.Image != "" {
		image = ResolveURL(imageSource(sel.Find(r.Image).First()), s.def.BaseURL)
	}

	var link string
	if r.Link != "" {
		link = ResolveURL(strings.TrimSpace(sel.Find(r.Link).First().AttrOr("href", "")), s.def.BaseURL)
	}

	var merchantID string
	if r.MerchantIDAttr != "" {
		merchantID = sel.AttrOr(r.MerchantIDAttr, "")
	}

	return models.Listing{
		Title:          title,
		Price:          price,
		BasePrice:      price,
		TotalPrice:     price,
		ImageURL:       image,
		DirectImageURL: image,
		ProductURL:     link,
		Merchant:       s.def.Name,
		Availability:   ClassifyAvailability(text(sel, r.Availability)),
		MerchantID:     merchantID,
	}, true
}
