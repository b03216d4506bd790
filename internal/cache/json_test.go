package cache

import (
	"context"
	"testing"
	"time"

	"github.com/lukman83/closeshave/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCache_listings(t *testing.T) {
	clock := newClock()
	store, err := NewMemoryStore(8, clock.Now)
	require.NoError(t, err)
	c := NewJSONCache[[]models.Listing](store, time.Hour, clock.Now)
	ctx := context.Background()

	rating := 4.5
	listings := []models.Listing{
		{Title: "Mouse", Price: 19.99, BasePrice: 19.99, TotalPrice: 19.99, Merchant: "ebay", Availability: models.InStock, Rating: &rating},
		{Title: "Pad", Price: 5, BasePrice: 5, TotalPrice: 5, Merchant: "ebay", Availability: models.OutOfStock},
	}
	key := SearchKey("mouse", "ebay", 20, nil, nil)
	require.NoError(t, c.Put(ctx, key, "mouse", "ebay", listings))

	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, listings, got)

	e, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(time.Hour), e.ExpiresAt)
	assert.Equal(t, "mouse", e.Query)

	clock.Advance(time.Hour)
	_, ok, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJSONCache_emptySetIsAHit(t *testing.T) {
	store, err := NewMemoryStore(8, nil)
	require.NoError(t, err)
	c := NewJSONCache[[]models.Listing](store, time.Hour, nil)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "k", "q", "ebay", []models.Listing{}))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestJSONCache_corruptPayload(t *testing.T) {
	clock := newClock()
	store, err := NewMemoryStore(8, clock.Now)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, entry("k", clock, time.Hour, `{not json`)))

	c := NewJSONCache[models.Validation](store, time.Hour, clock.Now)
	_, ok, err := c.Get(ctx, "k")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestSearchKey(t *testing.T) {
	lo, hi := 10.0, 50.0
	other := 10.5

	base := SearchKey("Wireless Mouse", "amazon", 20, &lo, &hi)
	assert.Len(t, base, 64)
	assert.Equal(t, base, SearchKey("  wireless   MOUSE ", "Amazon", 20, &lo, &hi))

	assert.NotEqual(t, base, SearchKey("wireless mouse", "ebay", 20, &lo, &hi))
	assert.NotEqual(t, base, SearchKey("wireless mouse", "amazon", 10, &lo, &hi))
	assert.NotEqual(t, base, SearchKey("wireless mouse", "amazon", 20, &other, &hi))
	assert.NotEqual(t, base, SearchKey("wireless mouse", "amazon", 20, nil, &hi))
	assert.NotEqual(t, SearchKey("q", "amazon", 20, &lo, nil), SearchKey("q", "amazon", 20, nil, &lo))
}
