package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/docs-assistant/internal/core/domain"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultMinWords = 50
	maxBodyBytes    = 5 << 20
	maxRedirects    = 10

	userAgent      = "ElasticPath-Chatbot/1.0 (Web Scraper)"
	acceptHeader   = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguage = "en-US,en;q=0.5"
)

// Observer receives one outcome per Scrape call: ok, invalid, rejected,
// fetch_error or low_quality.
type Observer interface {
	ObserveScrape(outcome string)
}

type Options struct {
	// Timeout is capped at DefaultTimeout.
	Timeout time.Duration
	// MinWords below DefaultMinWords is raised to it.
	MinWords   int
	HTTPClient *http.Client
	Observer   Observer
}

// Scraper fetches allow-listed HTML pages and reduces them to attributed text.
type Scraper struct {
	whitelist  *Whitelist
	httpClient *http.Client
	timeout    time.Duration
	minWords   int
	observer   Observer
}

func New(whitelist *Whitelist, opts Options) *Scraper {
	if whitelist == nil {
		whitelist = NewWhitelist(nil, nil)
	}
	// Options may tighten the fetch deadline or raise the word floor, never
	// loosen either.
	timeout := opts.Timeout
	if timeout <= 0 || timeout > DefaultTimeout {
		timeout = DefaultTimeout
	}
	minWords := max(opts.MinWords, DefaultMinWords)

	client := &http.Client{}
	if opts.HTTPClient != nil {
		copied := *opts.HTTPClient
		client = &copied
	}
	// Redirects must stay inside the allow-list as well.
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		if !whitelist.Allows(req.URL.String()) {
			return domain.WrapError(domain.ErrWhitelist, "follow redirect", fmt.Errorf("redirect to %s is not allowed", req.URL))
		}
		return nil
	}

	observer := opts.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	return &Scraper{
		whitelist:  whitelist,
		httpClient: client,
		timeout:    timeout,
		minWords:   minWords,
		observer:   observer,
	}
}

func (s *Scraper) IsEnabled() bool                      { return s.whitelist.Enabled() }
func (s *Scraper) IsURLAllowed(rawURL string) bool      { return s.whitelist.Allows(strings.TrimSpace(rawURL)) }
func (s *Scraper) AvailableTargets() string             { return s.whitelist.Targets() }
func (s *Scraper) IsTopicLikelyAvailable(t string) bool { return s.whitelist.TopicLikelyAvailable(t) }

func (s *Scraper) WhitelistInfo() domain.WhitelistInfo {
	urls, domains := s.whitelist.URLs(), s.whitelist.Domains()
	return domain.WhitelistInfo{
		AllowedURLs:         urls,
		AllowedDomains:      domains,
		TotalAllowedURLs:    len(urls),
		TotalAllowedDomains: len(domains),
	}
}

// Scrape validates, checks the allow-list before any network access, fetches
// and cleans the page. Pages under the word floor fail with domain.ErrQuality.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (*domain.ScrapedContent, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := parseTarget(rawURL)
	if err != nil {
		s.observer.ObserveScrape("invalid")
		return nil, domain.WrapError(domain.ErrValidation, "scrape", err)
	}
	if !s.whitelist.Allows(rawURL) {
		slog.Warn("scrape_rejected", "url", rawURL, "host", u.Hostname())
		s.observer.ObserveScrape("rejected")
		return nil, domain.WrapError(domain.ErrWhitelist, "scrape", fmt.Errorf("url %s is not in the allowed whitelist", rawURL))
	}

	started := time.Now()
	body, err := s.fetch(ctx, rawURL)
	if err != nil {
		slog.Warn("scrape_failed", "url", rawURL, "error", err)
		s.observer.ObserveScrape("fetch_error")
		if domain.IsKind(err, domain.ErrWhitelist) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrFetch, "scrape", err)
	}

	page, err := extractPage(body)
	if err != nil {
		s.observer.ObserveScrape("fetch_error")
		return nil, domain.WrapError(domain.ErrFetch, "scrape", fmt.Errorf("parse html: %w", err))
	}

	words := len(strings.Fields(page.text))
	if words < s.minWords {
		s.observer.ObserveScrape("low_quality")
		return nil, domain.WrapError(domain.ErrQuality, "scrape", fmt.Errorf("%s yielded %d words, need at least %d", rawURL, words, s.minWords))
	}

	host := u.Hostname()
	attribution := fmt.Sprintf("Content scraped from %s (%s)", host, rawURL)
	slog.Info("scrape_completed",
		"url", rawURL,
		"words", words,
		"duration_ms", float64(time.Since(started).Microseconds())/1000.0,
	)
	s.observer.ObserveScrape("ok")

	return &domain.ScrapedContent{
		Title:             page.title,
		Content:           attribution + "\n\n" + page.text,
		URL:               rawURL,
		Domain:            host,
		Timestamp:         time.Now().UTC(),
		WordCount:         words,
		SourceAttribution: attribution,
	}, nil
}

func (s *Scraper) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguage)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) && domain.IsKind(urlErr.Err, domain.ErrWhitelist) {
			return nil, urlErr.Err
		}
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("http status %d - %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return nil, fmt.Errorf("unsupported content type %q, only html pages can be scraped", contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func parseTarget(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		return nil, errors.New("url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q: absolute http(s) url required", rawURL)
	}
	return u, nil
}

type noopObserver struct{}

func (noopObserver) ObserveScrape(string) {}
