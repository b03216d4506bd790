package merchant

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ddgPage = `<html><body>
<div class="result results_links results_links_deep web-result">
 <div class="links_main links_deep result__body">
  <h2 class="result__title"><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fshop.example%2Fkeyboard&amp;rut=abc">Keychron K2 now $79.99 at Shop</a></h2>
  <a class="result__snippet" href="#">Wireless mechanical keyboard deal.</a>
 </div>
</div>
<div class="result">
 <div class="result__body">
  <h2 class="result__title"><a class="result__a" href="https://deals.example/k8">Keychron K8 review</a></h2>
  <a class="result__snippet" href="#">Today only: $1,099 bundle, was $1,299.</a>
 </div>
</div>
<div class="result">
 <div class="result__body">
  <h2 class="result__title"><a class="result__a" href="https://blog.example/">Top 10 keyboards of 2025</a></h2>
  <a class="result__snippet" href="#">No pricing here.</a>
 </div>
</div>
</body></html>`

func htmlResponder(body string) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(http.StatusOK, body)
		resp.Header.Set("Content-Type", "text/html; charset=utf-8")
		return resp, nil
	}
}

func TestDuckDuckGo_Search(t *testing.T) {
	client, mt := mockClient()
	var gotQuery string
	mt.RegisterResponder(http.MethodGet, duckDuckGoEndpoint, func(req *http.Request) (*http.Response, error) {
		gotQuery = req.URL.Query().Get("q")
		return htmlResponder(ddgPage)(req)
	})

	d := NewDuckDuckGo(Deps{Client: client})
	listings, err := d.Search(context.Background(), "keychron", 10)
	require.NoError(t, err)

	assert.Equal(t, "keychron deal price", gotQuery)
	require.Len(t, listings, 2)

	assert.Equal(t, "Keychron K2 now $79.99 at Shop", listings[0].Title)
	assert.Equal(t, 79.99, listings[0].BasePrice)
	assert.Equal(t, "https://shop.example/keyboard", listings[0].ProductURL)
	assert.Equal(t, "duckduckgo", listings[0].Merchant)
	assert.Empty(t, listings[0].ImageURL)

	assert.Equal(t, 1099.0, listings[1].BasePrice, "price taken from snippet")
	assert.Equal(t, "https://deals.example/k8", listings[1].ProductURL)
}

func TestDuckDuckGo_Search_maxResults(t *testing.T) {
	client, mt := mockClient()
	mt.RegisterResponder(http.MethodGet, duckDuckGoEndpoint, htmlResponder(ddgPage))

	listings, err := NewDuckDuckGo(Deps{Client: client}).Search(context.Background(), "keychron", 1)
	require.NoError(t, err)
	assert.Len(t, listings, 1)
}

func TestDuckDuckGo_Search_statusError(t *testing.T) {
	client, mt := mockClient()
	mt.RegisterResponder(http.MethodGet, duckDuckGoEndpoint,
		httpmock.NewStringResponder(http.StatusTooManyRequests, ""))

	_, err := NewDuckDuckGo(Deps{Client: client}).Search(context.Background(), "keychron", 5)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
}

func TestTextPrice(t *testing.T) {
	p, ok := textPrice("Save big: $ 49.5 today")
	require.True(t, ok)
	assert.Equal(t, 49.5, p)

	_, ok = textPrice("iPhone 15 Pro")
	assert.False(t, ok)
}
