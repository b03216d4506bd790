package validate

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/lukman83/closeshave/internal/cache"
	"github.com/lukman83/closeshave/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator(t *testing.T, withCache bool) (*Validator, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	var c *cache.JSONCache[models.Validation]
	if withCache {
		store, err := cache.NewMemoryStore(16, nil)
		require.NoError(t, err)
		c = cache.NewJSONCache[models.Validation](store, time.Hour, nil)
	}
	v := New(&http.Client{Transport: mt}, c, time.Second, nil)
	v.delay = 0
	return v, mt
}

func TestValidator_confidenceLevels(t *testing.T) {
	tests := []struct {
		name        string
		suggestions string
		instant     string
		want        models.Validation
	}{
		{
			name:        "instant answer",
			suggestions: `[{"phrase":"iphone 15"},{"phrase":"iphone 15 pro"}]`,
			instant:     `{"AbstractText":"The iPhone 15 is a smartphone.","Answer":"","RelatedTopics":[]}`,
			want:        models.Validation{IsValid: true, HasResults: true, Suggestions: []string{"iphone 15 pro"}, Confidence: 0.9},
		},
		{
			name:        "related topics only",
			suggestions: `[]`,
			instant:     `{"AbstractText":"","Answer":"","RelatedTopics":[{"Text":"x"}]}`,
			want:        models.Validation{IsValid: true, HasResults: true, Suggestions: []string{}, Confidence: 0.9},
		},
		{
			name:        "suggestions only",
			suggestions: `[{"phrase":"iphone 15 case"},"iphone 15 charger",{"other":1}]`,
			instant:     `{"AbstractText":"","Answer":"","RelatedTopics":[]}`,
			want:        models.Validation{IsValid: true, Suggestions: []string{"iphone 15 case", "iphone 15 charger"}, Confidence: 0.7},
		},
		{
			name:        "nothing",
			suggestions: `[]`,
			instant:     `{"AbstractText":"","Answer":"","RelatedTopics":[]}`,
			want:        models.Validation{Suggestions: []string{}, Confidence: 0.2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, mt := newTestValidator(t, false)
			mt.RegisterResponder(http.MethodGet, autocompleteURL, httpmock.NewStringResponder(http.StatusOK, tt.suggestions))
			mt.RegisterResponder(http.MethodGet, instantURL, httpmock.NewStringResponder(http.StatusOK, tt.instant))

			assert.Equal(t, tt.want, v.Validate(context.Background(), "iPhone 15"))
		})
	}
}

func TestValidator_suggestionsCapped(t *testing.T) {
	v, mt := newTestValidator(t, false)
	mt.RegisterResponder(http.MethodGet, autocompleteURL, httpmock.NewStringResponder(http.StatusOK,
		`["a1","a2","a3","a4","a5","a6","a7"]`))
	mt.RegisterResponder(http.MethodGet, instantURL, httpmock.NewStringResponder(http.StatusOK, `{}`))

	got := v.Validate(context.Background(), "a")
	assert.Equal(t, []string{"a1", "a2", "a3", "a4", "a5"}, got.Suggestions)
}

func TestValidator_emptyQuery(t *testing.T) {
	v, mt := newTestValidator(t, false)

	got := v.Validate(context.Background(), "   ")
	assert.Equal(t, models.Validation{Suggestions: []string{}}, got)
	assert.Zero(t, mt.GetTotalCallCount())
}

func TestValidator_errorsArePermissive(t *testing.T) {
	v, mt := newTestValidator(t, true)
	mt.RegisterResponder(http.MethodGet, autocompleteURL, httpmock.NewStringResponder(http.StatusInternalServerError, ""))
	mt.RegisterResponder(http.MethodGet, instantURL, httpmock.NewStringResponder(http.StatusOK, `not json`))

	assert.Equal(t, Permissive(), v.Validate(context.Background(), "laptop"))

	// Failures are not cached.
	v.Validate(context.Background(), "laptop")
	assert.Equal(t, 2, mt.GetCallCountInfo()["GET "+autocompleteURL])
}

func TestValidator_oneSourceDown(t *testing.T) {
	v, mt := newTestValidator(t, false)
	mt.RegisterResponder(http.MethodGet, autocompleteURL, httpmock.NewStringResponder(http.StatusOK, `[{"phrase":"laptop stand"}]`))
	mt.RegisterResponder(http.MethodGet, instantURL, httpmock.NewStringResponder(http.StatusBadGateway, ""))

	got := v.Validate(context.Background(), "laptop")
	assert.True(t, got.IsValid)
	assert.False(t, got.HasResults)
	assert.Equal(t, 0.7, got.Confidence)
}

func TestValidator_cached(t *testing.T) {
	v, mt := newTestValidator(t, true)
	mt.RegisterResponder(http.MethodGet, autocompleteURL, httpmock.NewStringResponder(http.StatusOK, `[]`))
	mt.RegisterResponder(http.MethodGet, instantURL, httpmock.NewStringResponder(http.StatusOK, `{"Answer":"42"}`))

	first := v.Validate(context.Background(), "meaning of life")
	second := v.Validate(context.Background(), "meaning of life")

	assert.Equal(t, first, second)
	assert.True(t, second.HasResults)
	assert.Equal(t, 1, mt.GetCallCountInfo()["GET "+instantURL])
}
