package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lukman83/closeshave/internal/cache"
	"github.com/lukman83/closeshave/internal/geo"
	"github.com/lukman83/closeshave/internal/merchant"
	"github.com/lukman83/closeshave/internal/metrics"
	"github.com/lukman83/closeshave/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScraper struct {
	name     string
	listings []models.Listing
	err      error
	delay    time.Duration
	calls    atomic.Int32
}

func (s *stubScraper) Name() string { return s.name }

func (s *stubScraper) Search(ctx context.Context, _ string, _ int) ([]models.Listing, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.Listing, len(s.listings))
	copy(out, s.listings)
	return out, nil
}

func merchantListing(m, title string, price float64) models.Listing {
	l := listing(title, price, models.InStock)
	l.Merchant = m
	return l
}

func newRegistry(scrapers ...*stubScraper) *merchant.Registry {
	reg := merchant.NewRegistry()
	for _, s := range scrapers {
		reg.Register(s, models.MerchantInfo{Enabled: true, Version: "1.0.0"})
	}
	return reg
}

func newCache(t *testing.T) *cache.JSONCache[[]models.Listing] {
	t.Helper()
	store, err := cache.NewMemoryStore(64, nil)
	require.NoError(t, err)
	return cache.NewJSONCache[[]models.Listing](store, time.Hour, nil)
}

type fixedLocator struct {
	loc *models.Location
	ip  string
}

func (f *fixedLocator) Locate(_ context.Context, ip string) *models.Location {
	f.ip = ip
	return f.loc
}

func TestOrchestrator_partialFailure(t *testing.T) {
	good := &stubScraper{name: "amazon", listings: []models.Listing{
		merchantListing("amazon", "Mouse A", 30),
		merchantListing("amazon", "Mouse B", 10),
	}}
	bad := &stubScraper{name: "ebay", err: &merchant.StatusError{Merchant: "ebay", StatusCode: 503}}
	blocked := &stubScraper{name: "bestbuy", err: fmt.Errorf("x: %w", merchant.ErrDisallowed)}

	o := New(Options{Registry: newRegistry(good, bad, blocked), Metrics: metrics.New()})
	resp, err := o.Search(context.Background(), models.SearchRequest{Query: "mouse"})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.TotalResults)
	assert.Equal(t, []float64{10, 30}, totals(resp.Products))
	assert.NotEmpty(t, resp.SearchID)
	assert.False(t, resp.Cached)

	require.Len(t, resp.Merchants, 3)
	assert.Equal(t, models.SourceScrape, resp.Merchants[0].Source)
	assert.Equal(t, 2, resp.Merchants[0].Count)

	require.Len(t, resp.Failures, 2)
	assert.Equal(t, "ebay", resp.Failures[0].Merchant)
	assert.Equal(t, "http_status", resp.Failures[0].Reason)
	assert.Equal(t, "robots_disallowed", resp.Failures[1].Reason)
}

func TestOrchestrator_cacheHit(t *testing.T) {
	s := &stubScraper{name: "amazon", listings: []models.Listing{merchantListing("amazon", "Keyboard", 49.99)}}
	o := New(Options{Registry: newRegistry(s), Cache: newCache(t)})
	req := models.SearchRequest{Query: "keyboard", MaxResults: 10}

	first, err := o.Search(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	req.Query = "  KEYBOARD "
	req.Brand = "key"
	second, err := o.Search(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, models.SourceCache, second.Merchants[0].Source)
	assert.Equal(t, first.Products, second.Products)
	assert.Equal(t, int32(1), s.calls.Load())
}

func TestOrchestrator_failuresAndEmptyResultsNotCached(t *testing.T) {
	failing := &stubScraper{name: "ebay", err: errors.New("boom")}
	empty := &stubScraper{name: "newegg"}
	o := New(Options{Registry: newRegistry(failing, empty), Cache: newCache(t)})
	req := models.SearchRequest{Query: "gpu"}

	for i := 0; i < 2; i++ {
		_, err := o.Search(context.Background(), req)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), failing.calls.Load())
	assert.Equal(t, int32(2), empty.calls.Load())
}

func TestOrchestrator_merchantSelection(t *testing.T) {
	a := &stubScraper{name: "amazon", listings: []models.Listing{merchantListing("amazon", "x", 1)}}
	e := &stubScraper{name: "ebay", listings: []models.Listing{merchantListing("ebay", "y", 2)}}
	off := &stubScraper{name: "target"}

	reg := newRegistry(a, e)
	reg.Register(off, models.MerchantInfo{Enabled: false})
	o := New(Options{Registry: reg})

	resp, err := o.Search(context.Background(), models.SearchRequest{
		Query:     "x",
		Merchants: []string{"EBAY", "ebay", "target", "etsy"},
	})
	require.NoError(t, err)

	require.Len(t, resp.Merchants, 1)
	assert.Equal(t, "ebay", resp.Merchants[0].Merchant)
	assert.Equal(t, int32(0), a.calls.Load())
	assert.Equal(t, int32(0), off.calls.Load())

	reasons := map[string]string{}
	for _, f := range resp.Failures {
		reasons[f.Merchant] = f.Reason
	}
	assert.Equal(t, map[string]string{"target": "disabled", "etsy": "unknown_merchant"}, reasons)
}

func TestOrchestrator_merchantTimeout(t *testing.T) {
	slow := &stubScraper{name: "walmart", delay: time.Minute}
	fast := &stubScraper{name: "amazon", listings: []models.Listing{merchantListing("amazon", "x", 1)}}
	o := New(Options{Registry: newRegistry(slow, fast), MerchantTimeout: 50 * time.Millisecond})

	start := time.Now()
	resp, err := o.Search(context.Background(), models.SearchRequest{Query: "tv"})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, resp.TotalResults)
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, "timeout", resp.Failures[0].Reason)
}

func TestOrchestrator_locationAndEnrichment(t *testing.T) {
	s := &stubScraper{name: "amazon", listings: []models.Listing{merchantListing("amazon", "Lamp", 20)}}
	locator := &fixedLocator{loc: &models.Location{Country: "US", State: "TX"}}
	o := New(Options{
		Registry:  newRegistry(s),
		Locator:   locator,
		Estimator: &geo.Estimator{TaxEnabled: true, ShippingEnabled: true},
	})

	resp, err := o.Search(context.Background(), models.SearchRequest{Query: "lamp", ClientIP: "8.8.8.8"})
	require.NoError(t, err)

	assert.Equal(t, "8.8.8.8", locator.ip)
	require.NotNil(t, resp.Location)
	assert.Equal(t, "TX", resp.Location.State)
	p := resp.Products[0]
	assert.Equal(t, 5.99, p.ShippingCost)
	assert.Equal(t, 1.25, p.Tax)
	assert.Equal(t, 27.24, p.TotalPrice)
}

func TestOrchestrator_invalidRequest(t *testing.T) {
	s := &stubScraper{name: "amazon"}
	o := New(Options{Registry: newRegistry(s)})

	_, err := o.Search(context.Background(), models.SearchRequest{Query: "  ", MaxResults: 500})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, s.calls.Load())
}

type recordingValidator struct {
	mu      sync.Mutex
	queries []string
	done    chan struct{}
}

func (r *recordingValidator) Validate(_ context.Context, q string) models.Validation {
	r.mu.Lock()
	r.queries = append(r.queries, q)
	r.mu.Unlock()
	close(r.done)
	return models.Validation{Confidence: 0.2}
}

func TestOrchestrator_prevalidationDoesNotBlock(t *testing.T) {
	v := &recordingValidator{done: make(chan struct{})}
	s := &stubScraper{name: "amazon", listings: []models.Listing{merchantListing("amazon", "x", 1)}}
	o := New(Options{Registry: newRegistry(s), Validator: v})

	resp, err := o.Search(context.Background(), models.SearchRequest{Query: "asdfgh"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.TotalResults)

	select {
	case <-v.done:
	case <-time.After(time.Second):
		t.Fatal("validator not called")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	assert.Equal(t, []string{"asdfgh"}, v.queries)
}

func TestOrchestrator_reportsProgress(t *testing.T) {
	ok := &stubScraper{name: "amazon", listings: []models.Listing{merchantListing("amazon", "x", 1)}}
	bad := &stubScraper{name: "ebay", err: errors.New("boom")}
	o := New(Options{Registry: newRegistry(ok, bad), Cache: newCache(t)})

	var (
		mu     sync.Mutex
		events = map[string][]string{}
	)
	ctx := merchant.WithProgress(context.Background(), func(p merchant.Progress) {
		mu.Lock()
		defer mu.Unlock()
		events[p.Merchant] = append(events[p.Merchant], p.Stage)
	})

	for i := 0; i < 2; i++ {
		_, err := o.Search(ctx, models.SearchRequest{Query: "x"})
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{merchant.StageDone, merchant.StageCached}, events["amazon"])
	assert.Equal(t, []string{merchant.StageFailed, merchant.StageFailed}, events["ebay"])
}

type panickingScraper struct{ name string }

func (p panickingScraper) Name() string { return p.name }

func (p panickingScraper) Search(context.Context, string, int) ([]models.Listing, error) {
	panic("launcher unreachable")
}

// brokenStore fails every call, or blocks Get until its context ends.
type brokenStore struct {
	block bool
	puts  atomic.Int32
}

func (b *brokenStore) Get(ctx context.Context, _ string) (*cache.Entry, error) {
	if b.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return nil, errors.New("connection refused")
}

func (b *brokenStore) Put(context.Context, cache.Entry) error {
	b.puts.Add(1)
	return errors.New("connection refused")
}

func (b *brokenStore) Sweep(context.Context) (int64, error) { return 0, nil }
func (b *brokenStore) Close() error                         { return nil }

func TestOrchestrator_panickingMerchantIsIsolated(t *testing.T) {
	good := &stubScraper{name: "amazon", listings: []models.Listing{merchantListing("amazon", "Soundbar", 99)}}
	reg := newRegistry(good)
	reg.Register(panickingScraper{name: "walmart"}, models.MerchantInfo{Enabled: true, Version: "1.0.0"})
	o := New(Options{Registry: reg, Metrics: metrics.New()})

	var (
		resp *models.SearchResponse
		err  error
	)
	require.NotPanics(t, func() {
		resp, err = o.Search(context.Background(), models.SearchRequest{Query: "soundbar"})
	})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.TotalResults)
	assert.Equal(t, "amazon", resp.Products[0].Merchant)
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, "walmart", resp.Failures[0].Merchant)
	assert.Equal(t, "panic", resp.Failures[0].Reason)
	assert.Contains(t, resp.Failures[0].Error, "launcher unreachable")
}

func TestOrchestrator_cacheFailureFallsThroughToScrape(t *testing.T) {
	store := &brokenStore{}
	s := &stubScraper{name: "amazon", listings: []models.Listing{merchantListing("amazon", "Router", 79)}}
	o := New(Options{
		Registry: newRegistry(s),
		Cache:    cache.NewJSONCache[[]models.Listing](store, time.Hour, nil),
	})

	for i := 0; i < 2; i++ {
		resp, err := o.Search(context.Background(), models.SearchRequest{Query: "router"})
		require.NoError(t, err)
		assert.Equal(t, 1, resp.TotalResults)
		assert.False(t, resp.Cached)
		assert.Empty(t, resp.Failures)
		assert.Equal(t, models.SourceScrape, resp.Merchants[0].Source)
	}
	assert.Equal(t, int32(2), s.calls.Load())
	assert.Equal(t, int32(2), store.puts.Load())
}

func TestOrchestrator_merchantTimeoutCoversCacheLookup(t *testing.T) {
	s := &stubScraper{name: "amazon", listings: []models.Listing{merchantListing("amazon", "Router", 79)}}
	o := New(Options{
		Registry:        newRegistry(s),
		Cache:           cache.NewJSONCache[[]models.Listing](&brokenStore{block: true}, time.Hour, nil),
		MerchantTimeout: 50 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	resp, err := o.Search(ctx, models.SearchRequest{Query: "router"})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, resp.TotalResults)
}
