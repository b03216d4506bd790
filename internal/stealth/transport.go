package stealth

import (
	"net/http"
)

// Transport is an http.RoundTripper that dresses outgoing requests as a
// browser and optionally routes them through a rotating proxy.
// Fingerprint → Proxy → Send. Pacing and robots checks belong to callers.
type Transport struct {
	Base        http.RoundTripper
	Fingerprint *FingerprintPool
	Proxy       *ProxyRotator
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())

	if t.Fingerprint != nil {
		fp := t.Fingerprint.Next()
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", fp.UserAgent)
		}
		for key, vals := range fp.Headers {
			if req.Header.Get(key) == "" {
				req.Header[key] = append([]string(nil), vals...)
			}
		}
	}

	transport := t.Base
	if t.Proxy != nil {
		transport = t.Proxy.Next().Transport()
	}
	if transport == nil {
		transport = http.DefaultTransport
	}

	return transport.RoundTrip(req)
}
