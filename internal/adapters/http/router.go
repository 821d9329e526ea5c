package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/cors"

	"github.com/kirillkom/docs-assistant/internal/config"
	"github.com/kirillkom/docs-assistant/internal/core/domain"
	"github.com/kirillkom/docs-assistant/internal/core/ports"
	"github.com/kirillkom/docs-assistant/internal/observability/metrics"
)

const maxRequestBody = 1 << 20

// SynonymSuggester backs /v1/synonyms/suggest.
type SynonymSuggester interface {
	ExpandQuery(query string) domain.ExpandedQuery
	SuggestedCanonicalTerms(query string) []string
}

// Services are the inbound ports the router dispatches to. Nil Ingestor or
// Pages disable the ingestion endpoints; a nil MCP handler leaves /mcp unmounted.
type Services struct {
	Retriever ports.ContentRetriever
	Chat      ports.ChatResponder
	Scraper   ports.WebScraper
	Ingestor  ports.WebsiteIngestor
	Pages     ports.WebsitePageReader
	Synonyms  SynonymSuggester
	Metrics   *metrics.HTTPServerMetrics
	MCP       http.Handler
}

type Router struct {
	cfg      config.Config
	services Services
	limiter  *rateLimiterStore
}

func NewRouter(cfg config.Config, services Services) *Router {
	return &Router{
		cfg:      cfg,
		services: services,
		limiter:  newRateLimiterStore(cfg.APIRateLimitRPS, cfg.APIRateLimitBurst, cfg.APIRateLimitClients),
	}
}

func (rt *Router) Handler() http.Handler {
	timeout := rt.cfg.RequestTimeout()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/v1/retrieve", timeoutMiddleware(http.HandlerFunc(rt.retrieve), timeout))
	mux.Handle("/v1/technical", timeoutMiddleware(http.HandlerFunc(rt.technical), timeout))
	mux.Handle("/v1/scrape", timeoutMiddleware(http.HandlerFunc(rt.scrape), timeout))
	mux.HandleFunc("/v1/scrape/status", rt.scrapeStatus)
	mux.HandleFunc("/v1/website/ingest", rt.ingestWebsite)
	mux.HandleFunc("/v1/chat", rt.chat)
	mux.HandleFunc("/v1/synonyms/suggest", rt.suggestSynonyms)
	if rt.services.Metrics != nil {
		mux.Handle("/metrics", rt.services.Metrics.Handler())
	}
	if rt.services.MCP != nil {
		mcpHandler := timeoutMiddleware(rt.services.MCP, timeout)
		mux.Handle("/mcp", mcpHandler)
		mux.Handle("/mcp/", mcpHandler)
	}

	var handler http.Handler = mux
	handler = apiKeyMiddleware(handler, rt.cfg.ValidAPIKeys)
	handler = backpressureMiddleware(handler, rt.cfg.APIBackpressureMax, time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.limiter)
	handler = cors.New(cors.Options{
		AllowedOrigins: rt.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key", requestIDHeader, "Mcp-Session-Id"},
		ExposedHeaders: []string{requestIDHeader, "Retry-After", "Mcp-Session-Id"},
		MaxAge:         600,
	}).Handler(handler)
	if rt.services.Metrics != nil {
		handler = rt.services.Metrics.Middleware(handler)
	}
	handler = recoverMiddleware(handler)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type retrieveRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`
}

type retrieveResponse struct {
	Mode      domain.RetrievalMode       `json:"mode,omitempty"`
	Count     int                        `json:"count"`
	Documents []domain.RetrievedDocument `json:"documents"`
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req retrieveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	start := time.Now()
	mode := domain.ParseRetrievalMode(req.Mode)
	docs, err := rt.services.Retriever.RetrieveContent(r.Context(), req.Query, mode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.recordRetrieval("retrieve", string(mode), len(docs), time.Since(start))
	writeJSON(w, http.StatusOK, retrieveResponse{Mode: mode, Count: len(docs), Documents: nonNilDocs(docs)})
}

func (rt *Router) technical(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req retrieveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	start := time.Now()
	docs, err := rt.services.Retriever.FindTechnicalContent(r.Context(), req.Query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.recordRetrieval("technical", "api", len(docs), time.Since(start))
	writeJSON(w, http.StatusOK, retrieveResponse{Count: len(docs), Documents: nonNilDocs(docs)})
}

func (rt *Router) scrape(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		URL string `json:"url"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	content, err := rt.services.Scraper.Scrape(r.Context(), req.URL)
	if err != nil {
		if domain.IsKind(err, domain.ErrWhitelist) {
			writeJSON(w, http.StatusForbidden, map[string]string{
				"error":             err.Error(),
				"available_targets": rt.services.Scraper.AvailableTargets(),
			})
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}

type scrapeStatusResponse struct {
	Enabled   bool                 `json:"enabled"`
	Targets   string               `json:"targets"`
	Whitelist domain.WhitelistInfo `json:"whitelist"`
	Pages     []domain.WebsitePage `json:"pages,omitempty"`
}

// scrapeStatus reports the whitelist and, with ?url=, the ingestion state of
// one page. Without ?url= it lists recently updated pages.
func (rt *Router) scrapeStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	scraper := rt.services.Scraper
	resp := scrapeStatusResponse{
		Enabled:   scraper.IsEnabled(),
		Targets:   scraper.AvailableTargets(),
		Whitelist: scraper.WhitelistInfo(),
	}
	if rt.services.Pages == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if rawURL := strings.TrimSpace(r.URL.Query().Get("url")); rawURL != "" {
		page, err := rt.services.Pages.GetByURL(r.Context(), rawURL)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp.Pages = []domain.WebsitePage{*page}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	pages, err := rt.services.Pages.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp.Pages = pages
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) ingestWebsite(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if rt.services.Ingestor == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "website ingestion is not configured"})
		return
	}
	var req struct {
		URL string `json:"url"`
		All bool   `json:"all"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.All {
		pages, err := rt.services.Ingestor.EnqueueWhitelist(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"queued": len(pages), "pages": pages})
		return
	}

	page, err := rt.services.Ingestor.Enqueue(r.Context(), req.URL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, page)
}

func (rt *Router) suggestSynonyms(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameter q is required"})
		return
	}

	expanded := rt.services.Synonyms.ExpandQuery(query)
	suggestions := rt.services.Synonyms.SuggestedCanonicalTerms(query)
	if suggestions == nil {
		suggestions = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"original":     expanded.Original,
		"expanded":     expanded.Expanded,
		"has_synonyms": len(suggestions) > 0,
		"suggestions":  suggestions,
	})
}

func (rt *Router) recordRetrieval(endpoint, mode string, sources int, duration time.Duration) {
	if rt.services.Metrics != nil {
		rt.services.Metrics.RecordRetrieval(endpoint, mode, sources, duration)
	}
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	return false
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(dst)
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request body is required"})
		return false
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
	return false
}

func nonNilDocs(docs []domain.RetrievedDocument) []domain.RetrievedDocument {
	if docs == nil {
		return []domain.RetrievedDocument{}
	}
	return docs
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
