package mcp

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/server"
)

// Handler serves MCP over streamable HTTP, guarded by Bearer token auth
// when apiKey is set.
func Handler(d Deps, apiKey string) http.Handler {
	var h http.Handler = server.NewStreamableHTTPServer(NewServer(d), server.WithStateLess(true))
	if apiKey != "" {
		h = bearerAuth(apiKey, h)
	}
	return h
}

// bearerAuth rejects requests whose Authorization header does not carry
// apiKey. Rejections use the same error body as the REST API.
func bearerAuth(apiKey string, next http.Handler) http.Handler {
	want := []byte(apiKey)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		switch {
		case !ok:
			unauthorized(w, `Bearer realm="closeshave"`, "Bearer token required")
		case subtle.ConstantTimeCompare([]byte(token), want) != 1:
			unauthorized(w, `Bearer realm="closeshave", error="invalid_token"`, "Invalid API key")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func unauthorized(w http.ResponseWriter, challenge, msg string) {
	w.Header().Set("WWW-Authenticate", challenge)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "UNAUTHORIZED",
		"message": msg,
	})
}
