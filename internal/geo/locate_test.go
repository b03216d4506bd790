package geo

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockLocator(apiKey string) (*Locator, *httpmock.MockTransport) {
	mt := httpmock.NewMockTransport()
	return NewLocator(&http.Client{Transport: mt}, apiKey, nil), mt
}

func TestLocator_Locate(t *testing.T) {
	l, mt := newMockLocator("")
	mt.RegisterResponder(http.MethodGet, "http://ip-api.com/json/8.8.8.8",
		httpmock.NewStringResponder(http.StatusOK, `{"status":"success","country":"United States","region":"CA","regionName":"California","regionCode":"CA","city":"Mountain View","zip":"94043"}`))

	loc := l.Locate(context.Background(), "8.8.8.8")
	require.NotNil(t, loc)
	assert.Equal(t, "United States", loc.Country)
	assert.Equal(t, "CA", loc.Region)
	assert.Equal(t, "CA", loc.State)
	assert.Equal(t, "Mountain View", loc.City)
	assert.Equal(t, "94043", loc.Zip)
}

func TestLocator_Locate_fallbacks(t *testing.T) {
	l, mt := newMockLocator("")
	mt.RegisterResponder(http.MethodGet, "http://ip-api.com/json/1.1.1.1",
		httpmock.NewStringResponder(http.StatusOK, `{"regionName":"Texas","regionCode":"TX","country":""}`))

	assert.Nil(t, l.Locate(context.Background(), "1.1.1.1"), "neither success nor country")

	l, mt = newMockLocator("")
	mt.RegisterResponder(http.MethodGet, "http://ip-api.com/json/1.1.1.1",
		httpmock.NewStringResponder(http.StatusOK, `{"status":"success","regionName":"Texas","regionCode":"TX"}`))

	loc := l.Locate(context.Background(), "1.1.1.1")
	require.NotNil(t, loc)
	assert.Equal(t, "US", loc.Country)
	assert.Equal(t, "Texas", loc.Region)
	assert.Equal(t, "TX", loc.State)
}

func TestLocator_Locate_apiKey(t *testing.T) {
	l, mt := newMockLocator("s3cret")
	mt.RegisterResponder(http.MethodGet, "http://ip-api.com/json/8.8.4.4",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "s3cret", req.URL.Query().Get("key"))
			return httpmock.NewStringResponse(http.StatusOK, `{"status":"success","country":"US","regionCode":"NY"}`), nil
		})

	loc := l.Locate(context.Background(), "8.8.4.4")
	require.NotNil(t, loc)
	assert.Equal(t, "NY", loc.State)
}

func TestLocator_Locate_skipsNonPublic(t *testing.T) {
	l, mt := newMockLocator("")

	for _, ip := range []string{"", "not-an-ip", "127.0.0.1", "::1", "10.1.2.3", "192.168.0.5", "172.20.0.1", "169.254.169.254", "fd00::1"} {
		assert.Nil(t, l.Locate(context.Background(), ip), ip)
	}
	assert.Zero(t, mt.GetTotalCallCount())
}

func TestLocator_Locate_failures(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
	}{
		{"server error", httpmock.NewStringResponder(http.StatusServiceUnavailable, "")},
		{"bad json", httpmock.NewStringResponder(http.StatusOK, `<html>`)},
		{"fail status", httpmock.NewStringResponder(http.StatusOK, `{"status":"fail","message":"reserved range"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, mt := newMockLocator("")
			mt.RegisterResponder(http.MethodGet, "http://ip-api.com/json/9.9.9.9", tt.responder)
			assert.Nil(t, l.Locate(context.Background(), "9.9.9.9"))
		})
	}
}

func TestLocator_Locate_stateFromRegion(t *testing.T) {
	l, mt := newMockLocator("")
	mt.RegisterResponder(http.MethodGet, "http://ip-api.com/json/9.9.9.9",
		httpmock.NewStringResponder(http.StatusOK, `{"status":"success","country":"United States","region":"wa","regionName":"Washington"}`))

	loc := l.Locate(context.Background(), "9.9.9.9")
	require.NotNil(t, loc)
	assert.Equal(t, "WA", loc.State)
	assert.Equal(t, "wa", loc.Region)
}
