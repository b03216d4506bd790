// Package api serves the search pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/lukman83/closeshave/internal/metrics"
	"github.com/lukman83/closeshave/internal/models"
	"github.com/lukman83/closeshave/internal/validate"
	"go.uber.org/zap"
)

const serviceName = "CloseShave Web Scraper API"

type Searcher interface {
	Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error)
}

type QueryValidator interface {
	Validate(ctx context.Context, query string) models.Validation
}

type MerchantLister interface {
	List() []models.MerchantInfo
}

// Options wires the handlers. Validator nil means validation is disabled;
// MCP and Metrics nil leave their routes unmounted.
type Options struct {
	Version        string
	Search         Searcher
	Validator      QueryValidator
	Merchants      MerchantLister
	ImageProxy     *ImageProxy
	Metrics        *metrics.Metrics
	MCP            http.Handler
	CORSOrigins    []string
	RequestTimeout time.Duration
	Log            *zap.Logger
}

type Handlers struct {
	opts Options
	log  *zap.Logger
}

func NewHandlers(opts Options) *Handlers {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 120 * time.Second
	}
	if opts.ImageProxy == nil {
		opts.ImageProxy = NewImageProxy(nil)
	}
	return &Handlers{opts: opts, log: log}
}

// Router builds the chi router with middleware and every route.
func (h *Handlers) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if h.opts.Metrics != nil {
		r.Handle("/metrics", h.opts.Metrics.Handler())
	}
	if h.opts.MCP != nil {
		r.Handle("/mcp", h.opts.MCP)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(h.opts.RequestTimeout))

		r.Get("/", h.Root)
		r.Route("/api", func(r chi.Router) {
			r.Post("/search", h.Search)
			r.Post("/validate", h.Validate)
			r.Get("/health", h.Health)
			r.Get("/merchants", h.ListMerchants)
			r.Get("/image-proxy", h.ImageProxy)
		})
	})

	return r
}

func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{
		"name":    serviceName,
		"version": h.opts.Version,
		"status":  "running",
	})
}

// Search runs a multi-merchant search. The client address is used for
// tax estimation.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, validationError("Request validation failed", map[string]any{"body": err.Error()}))
		return
	}
	req.ClientIP = clientIP(r)

	resp, err := h.opts.Search.Search(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

type validateRequest struct {
	Query string `json:"query"`
}

func (h *Handlers) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, validationError("Request validation failed", map[string]any{"body": err.Error()}))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		h.respondError(w, r, validationError("Query cannot be empty", nil))
		return
	}
	if h.opts.Validator == nil {
		h.respondJSON(w, http.StatusOK, validate.Permissive())
		return
	}
	h.respondJSON(w, http.StatusOK, h.opts.Validator.Validate(r.Context(), req.Query))
}

type healthResponse struct {
	Status    string                `json:"status"`
	Version   string                `json:"version"`
	Merchants []models.MerchantInfo `json:"merchants"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Version:   h.opts.Version,
		Merchants: h.merchants(),
	})
}

func (h *Handlers) ListMerchants(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string][]models.MerchantInfo{"merchants": h.merchants()})
}

func (h *Handlers) ImageProxy(w http.ResponseWriter, r *http.Request) {
	img, err := h.opts.ImageProxy.Fetch(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Body)
}

func (h *Handlers) merchants() []models.MerchantInfo {
	if h.opts.Merchants == nil {
		return []models.MerchantInfo{}
	}
	return h.opts.Merchants.List()
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := toAPIError(err)
	fields := []zap.Field{
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.String("code", apiErr.Code),
		zap.Error(err),
	}
	if apiErr.Status >= http.StatusInternalServerError {
		h.log.Error("request failed", fields...)
	} else {
		h.log.Warn("request rejected", fields...)
	}
	h.respondJSON(w, apiErr.Status, apiErr)
}

const maxRequestBody = 1 << 20

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	return dec.Decode(v)
}

// clientIP strips the port RemoteAddr carries when RealIP found no header.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
