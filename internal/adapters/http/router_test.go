package httpadapter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/docs-assistant/internal/config"
	"github.com/kirillkom/docs-assistant/internal/core/domain"
	"github.com/kirillkom/docs-assistant/internal/observability/metrics"
)

type retrieverFake struct {
	docs     []domain.RetrievedDocument
	err      error
	lastMode domain.RetrievalMode
}

func (f *retrieverFake) RetrieveContent(_ context.Context, _ string, mode domain.RetrievalMode) ([]domain.RetrievedDocument, error) {
	f.lastMode = mode
	return f.docs, f.err
}

func (f *retrieverFake) FindTechnicalContent(context.Context, string) ([]domain.RetrievedDocument, error) {
	return f.docs, f.err
}

type scraperFake struct {
	content *domain.ScrapedContent
	err     error
}

func (f scraperFake) Scrape(context.Context, string) (*domain.ScrapedContent, error) {
	return f.content, f.err
}
func (f scraperFake) IsURLAllowed(string) bool { return true }
func (f scraperFake) IsEnabled() bool          { return true }
func (f scraperFake) AvailableTargets() string { return "Available URLs: https://elasticpath.com/pricing" }
func (f scraperFake) WhitelistInfo() domain.WhitelistInfo {
	return domain.WhitelistInfo{AllowedURLs: []string{"https://elasticpath.com/pricing"}, TotalAllowedURLs: 1}
}

type chatFake struct {
	deltas []string
	err    error
	sErr   error
}

func (f chatFake) StreamAnswer(context.Context, domain.ChatRequest) (*domain.AnswerStream, error) {
	if f.err != nil {
		return nil, f.err
	}
	deltas := make(chan string, len(f.deltas))
	for _, d := range f.deltas {
		deltas <- d
	}
	close(deltas)
	errs := make(chan error, 1)
	if f.sErr != nil {
		errs <- f.sErr
	}
	close(errs)
	return &domain.AnswerStream{
		Sources: []domain.RetrievedDocument{{Metadata: domain.DocumentMetadata{URL: "https://elasticpath.dev/docs/carts", SourceCollection: domain.SourceDocumentation}}},
		Deltas:  deltas,
		Err:     errs,
	}, nil
}

type ingestorFake struct {
	err error
}

func (f ingestorFake) Enqueue(_ context.Context, rawURL string) (*domain.WebsitePage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.WebsitePage{URL: rawURL, Status: domain.PageStatusQueued}, nil
}

func (f ingestorFake) EnqueueWhitelist(context.Context) ([]domain.WebsitePage, error) {
	return []domain.WebsitePage{{URL: "https://elasticpath.com/pricing", Status: domain.PageStatusQueued}}, f.err
}

func (f ingestorFake) IngestURL(context.Context, string) error { return f.err }

type pagesFake struct {
	err error
}

func (f pagesFake) GetByURL(_ context.Context, rawURL string) (*domain.WebsitePage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.WebsitePage{URL: rawURL, Status: domain.PageStatusIndexed, ChunkCount: 3}, nil
}

func (f pagesFake) List(context.Context, int) ([]domain.WebsitePage, error) {
	return []domain.WebsitePage{{URL: "https://elasticpath.com/pricing", Status: domain.PageStatusIndexed}}, f.err
}

type synonymsFake struct{}

func (synonymsFake) ExpandQuery(q string) domain.ExpandedQuery {
	return domain.ExpandedQuery{Original: q, Expanded: q + " Product Experience Manager"}
}
func (synonymsFake) SuggestedCanonicalTerms(string) []string {
	return []string{"Product Experience Manager"}
}

func testServices() Services {
	return Services{
		Retriever: &retrieverFake{},
		Chat:      chatFake{deltas: []string{"Hello", " world"}},
		Scraper:   scraperFake{},
		Ingestor:  ingestorFake{},
		Pages:     pagesFake{},
		Synonyms:  synonymsFake{},
	}
}

func newTestHandler(cfg config.Config, services Services) http.Handler {
	return NewRouter(cfg, services).Handler()
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestHealthzAndRequestID(t *testing.T) {
	handler := newTestHandler(config.Config{}, testServices())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestRetrieveParsesModeAndReturnsDocuments(t *testing.T) {
	retriever := &retrieverFake{docs: []domain.RetrievedDocument{{PageContent: "a"}, {PageContent: "b"}}}
	services := testServices()
	services.Retriever = retriever
	services.Metrics = metrics.NewHTTPServerMetrics("api")
	handler := newTestHandler(config.Config{}, services)

	res := postJSON(t, handler, "/v1/retrieve", map[string]any{"query": "SSO", "mode": "rfp"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var resp retrieveResponse
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 || resp.Mode != domain.ModeRFP || retriever.lastMode != domain.ModeRFP {
		t.Fatalf("unexpected response: %+v (mode seen %q)", resp, retriever.lastMode)
	}
}

func TestRetrieveEmptyResultIsJSONArray(t *testing.T) {
	handler := newTestHandler(config.Config{}, testServices())

	res := postJSON(t, handler, "/v1/technical", map[string]any{"query": "carts"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"documents":[]`) {
		t.Fatalf("expected empty documents array, got %s", res.Body.String())
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid input", err: domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("query is required")), want: http.StatusBadRequest},
		{name: "invalid url", err: domain.WrapError(domain.ErrValidation, "scrape", errors.New("bad")), want: http.StatusBadRequest},
		{name: "not found", err: domain.WrapError(domain.ErrNotFound, "page", errors.New("missing")), want: http.StatusNotFound},
		{name: "quality", err: domain.WrapError(domain.ErrQuality, "scrape", errors.New("12 words")), want: http.StatusUnprocessableEntity},
		{name: "fetch", err: domain.WrapError(domain.ErrFetch, "scrape", errors.New("timeout")), want: http.StatusBadGateway},
		{name: "temporary", err: domain.WrapError(domain.ErrTemporary, "embed", errors.New("503")), want: http.StatusServiceUnavailable},
		{name: "collection", err: domain.WrapError(domain.ErrCollectionUnavailable, "search", errors.New("down")), want: http.StatusServiceUnavailable},
		{name: "deadline", err: context.DeadlineExceeded, want: http.StatusGatewayTimeout},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapErrorToHTTPStatus(tt.err); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestRetrieveHidesInternalErrors(t *testing.T) {
	services := testServices()
	services.Retriever = &retrieverFake{err: errors.New("dial tcp 10.0.0.5:6333: refused")}
	handler := newTestHandler(config.Config{}, services)

	res := postJSON(t, handler, "/v1/retrieve", map[string]any{"query": "x"})
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), "10.0.0.5") {
		t.Fatalf("internal error leaked: %s", res.Body.String())
	}
}

func TestScrapeWhitelistRejectionIncludesTargets(t *testing.T) {
	services := testServices()
	services.Scraper = scraperFake{err: domain.WrapError(domain.ErrWhitelist, "scrape", errors.New("https://evil.example"))}
	handler := newTestHandler(config.Config{}, services)

	res := postJSON(t, handler, "/v1/scrape", map[string]any{"url": "https://evil.example"})
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", res.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(res.Body.Bytes(), &body)
	if !strings.Contains(body["available_targets"], "elasticpath.com/pricing") {
		t.Fatalf("expected available targets in body, got %v", body)
	}
}

func TestScrapeStatusForSinglePage(t *testing.T) {
	handler := newTestHandler(config.Config{}, testServices())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/scrape/status?url=https://elasticpath.com/pricing", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var resp scrapeStatusResponse
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Enabled || len(resp.Pages) != 1 || resp.Pages[0].ChunkCount != 3 {
		t.Fatalf("unexpected status: %+v", resp)
	}
}

func TestIngestWebsiteQueuesPages(t *testing.T) {
	handler := newTestHandler(config.Config{}, testServices())

	res := postJSON(t, handler, "/v1/website/ingest", map[string]any{"url": "https://elasticpath.com/pricing"})
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	res = postJSON(t, handler, "/v1/website/ingest", map[string]any{"all": true})
	if res.Code != http.StatusAccepted || !strings.Contains(res.Body.String(), `"queued":1`) {
		t.Fatalf("unexpected whitelist ingest response %d: %s", res.Code, res.Body.String())
	}
}

func TestIngestWebsiteRejectsNonWhitelistedURL(t *testing.T) {
	services := testServices()
	services.Ingestor = ingestorFake{err: domain.WrapError(domain.ErrWhitelist, "enqueue", errors.New("nope"))}
	handler := newTestHandler(config.Config{}, services)

	res := postJSON(t, handler, "/v1/website/ingest", map[string]any{"url": "https://evil.example"})
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", res.Code)
	}
}

func TestChatStreamsSSE(t *testing.T) {
	handler := newTestHandler(config.Config{}, testServices())

	res := postJSON(t, handler, "/v1/chat", domain.ChatRequest{Messages: []domain.ChatMessage{{Role: "user", Content: "What is a cart?"}}})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var events []string
	scanner := bufio.NewScanner(strings.NewReader(res.Body.String()))
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
			events = append(events, strings.TrimPrefix(line, "data: "))
		}
	}
	want := []string{
		`{"sources":[{"collection":"Documentation","link":"https://elasticpath.dev/docs/carts"}]}`,
		`{"content":"Hello"}`,
		`{"content":" world"}`,
		"[DONE]",
	}
	if len(events) != len(want) {
		t.Fatalf("unexpected events: %v", events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], events[i])
		}
	}
}

func TestChatStreamErrorIsReportedBeforeDone(t *testing.T) {
	services := testServices()
	services.Chat = chatFake{deltas: []string{"partial"}, sErr: errors.New("ollama down")}
	handler := newTestHandler(config.Config{}, services)

	res := postJSON(t, handler, "/v1/chat", domain.ChatRequest{Messages: []domain.ChatMessage{{Role: "user", Content: "q"}}})
	body := res.Body.String()
	if !strings.Contains(body, `"error":"answer generation failed"`) || !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Fatalf("unexpected stream: %q", body)
	}
}

func TestChatValidationErrorIsJSON400(t *testing.T) {
	services := testServices()
	services.Chat = chatFake{err: domain.WrapError(domain.ErrInvalidInput, "validate chat request", errors.New("invalid message role"))}
	handler := newTestHandler(config.Config{}, services)

	res := postJSON(t, handler, "/v1/chat", map[string]any{"messages": []map[string]string{{"role": "robot", "content": "hi"}}})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSynonymSuggest(t *testing.T) {
	handler := newTestHandler(config.Config{}, testServices())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/synonyms/suggest?q=pim", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"has_synonyms":true`) {
		t.Fatalf("unexpected body: %s", res.Body.String())
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/synonyms/suggest", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without q, got %d", res.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(config.Config{}, testServices())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/retrieve", nil))
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestMetricsEndpointIsServed(t *testing.T) {
	services := testServices()
	services.Metrics = metrics.NewHTTPServerMetrics("api")
	handler := newTestHandler(config.Config{ValidAPIKeys: []string{"secret"}}, services)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected open /metrics, got %d", res.Code)
	}
}

func TestMCPRequestsCarryDeadline(t *testing.T) {
	var deadlines []time.Time
	services := testServices()
	services.MCP = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if deadline, ok := r.Context().Deadline(); ok {
			deadlines = append(deadlines, deadline)
		}
		w.WriteHeader(http.StatusAccepted)
	})
	handler := newTestHandler(config.Config{RAGRequestTimeoutSec: 3}, services)

	start := time.Now()
	for _, path := range []string{"/mcp", "/mcp/"} {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`)))
		if res.Code != http.StatusAccepted {
			t.Fatalf("%s: expected 202, got %d", path, res.Code)
		}
	}
	if len(deadlines) != 2 {
		t.Fatalf("expected a deadline on every MCP request, got %d", len(deadlines))
	}
	for _, deadline := range deadlines {
		if deadline.After(start.Add(4 * time.Second)) {
			t.Fatalf("deadline %v exceeds configured timeout", deadline)
		}
	}
}
