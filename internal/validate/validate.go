// Package validate judges whether a search query is likely to find
// products, using DuckDuckGo's autocomplete and instant answer APIs.
package validate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lukman83/closeshave/internal/cache"
	"github.com/lukman83/closeshave/internal/httputil"
	"github.com/lukman83/closeshave/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	autocompleteURL = "https://duckduckgo.com/ac"
	instantURL      = "https://api.duckduckgo.com/"

	maxSuggestions = 5
	politeDelay    = 500 * time.Millisecond
)

// Validator checks queries against DuckDuckGo, caching verdicts.
type Validator struct {
	client       *http.Client
	cache        *cache.JSONCache[models.Validation]
	timeout      time.Duration
	delay        time.Duration
	autocomplete string
	instant      string
	log          *zap.Logger
}

// New creates a validator. A nil cache disables caching.
func New(client *http.Client, c *cache.JSONCache[models.Validation], timeout time.Duration, log *zap.Logger) *Validator {
	if client == nil {
		client = httputil.NewHTTPClient(nil, timeout)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{
		client:       client,
		cache:        c,
		timeout:      timeout,
		delay:        politeDelay,
		autocomplete: autocompleteURL,
		instant:      instantURL,
		log:          log,
	}
}

// Permissive is the verdict used when validation is unavailable: the
// search goes ahead.
func Permissive() models.Validation {
	return models.Validation{IsValid: true, Suggestions: []string{}, Confidence: 0.5}
}

// Validate returns a verdict for query. It never fails: lookup errors
// yield the permissive verdict.
func (v *Validator) Validate(ctx context.Context, query string) models.Validation {
	query = strings.TrimSpace(query)
	if query == "" {
		return models.Validation{Suggestions: []string{}}
	}

	key := "validation:" + query
	if v.cache != nil {
		cached, ok, err := v.cache.Get(ctx, key)
		if err != nil {
			v.log.Warn("validation cache read failed", zap.Error(err))
		} else if ok {
			return cached
		}
	}

	var (
		suggestions            []string
		hasResults             bool
		suggestErr, instantErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		suggestions, suggestErr = v.suggestions(gctx, query)
		return nil
	})
	g.Go(func() error {
		hasResults, instantErr = v.hasResults(gctx, query)
		return nil
	})
	_ = g.Wait()

	if suggestErr != nil && instantErr != nil {
		v.log.Warn("query validation failed",
			zap.String("query", query), zap.Error(errors.Join(suggestErr, instantErr)))
		return Permissive()
	}
	if suggestErr != nil {
		v.log.Debug("suggestions unavailable", zap.Error(suggestErr))
	}
	if instantErr != nil {
		v.log.Debug("instant answer unavailable", zap.Error(instantErr))
	}

	result := verdict(hasResults, suggestions)
	if v.cache != nil {
		if err := v.cache.Put(ctx, key, query, "", result); err != nil {
			v.log.Warn("validation cache write failed", zap.Error(err))
		}
	}

	// Spread consecutive lookups out.
	if v.delay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(v.delay):
		}
	}
	return result
}

func verdict(hasResults bool, suggestions []string) models.Validation {
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	confidence := 0.2
	switch {
	case hasResults:
		confidence = 0.9
	case len(suggestions) > 0:
		confidence = 0.7
	}
	return models.Validation{
		IsValid:     hasResults || len(suggestions) > 0,
		HasResults:  hasResults,
		Suggestions: suggestions,
		Confidence:  confidence,
	}
}

func (v *Validator) getJSON(ctx context.Context, endpoint string, params url.Values, dst any) error {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header = httputil.JSONHeaders()

	resp, err := v.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d", endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%s: decode: %w", endpoint, err)
	}
	return nil
}

// suggestions returns autocomplete phrases other than the query itself.
// Entries are either {"phrase": "..."} objects or bare strings.
func (v *Validator) suggestions(ctx context.Context, query string) ([]string, error) {
	var items []json.RawMessage
	params := url.Values{"q": {query}, "kl": {"us-en"}}
	if err := v.getJSON(ctx, v.autocomplete, params, &items); err != nil {
		return nil, err
	}

	var out []string
	for _, raw := range items {
		var phrase string
		var obj struct {
			Phrase string `json:"phrase"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil {
			phrase = obj.Phrase
		} else if err := json.Unmarshal(raw, &phrase); err != nil {
			continue
		}
		phrase = strings.TrimSpace(phrase)
		if phrase == "" || strings.EqualFold(phrase, query) {
			continue
		}
		out = append(out, phrase)
		if len(out) == 10 {
			break
		}
	}
	return out, nil
}

// hasResults reports whether the instant answer API knows the query.
func (v *Validator) hasResults(ctx context.Context, query string) (bool, error) {
	var ia struct {
		AbstractText  string            `json:"AbstractText"`
		Answer        any               `json:"Answer"`
		RelatedTopics []json.RawMessage `json:"RelatedTopics"`
	}
	params := url.Values{"q": {query}, "format": {"json"}, "no_html": {"1"}, "skip_disambig": {"1"}}
	if err := v.getJSON(ctx, v.instant, params, &ia); err != nil {
		return false, err
	}
	return ia.AbstractText != "" || truthy(ia.Answer) || len(ia.RelatedTopics) > 0, nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case map[string]any:
		return len(x) > 0
	case []any:
		return len(x) > 0
	default:
		return true
	}
}
