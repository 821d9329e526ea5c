package web

import (
	"fmt"
	"net/url"
	"strings"
)

// Whitelist is the literal scraping allow-list. It is built once at startup
// and never mutated, so concurrent reads need no locking.
type Whitelist struct {
	urls    []string
	domains []string
	parsed  []*url.URL
}

func NewWhitelist(urls, domains []string) *Whitelist {
	w := &Whitelist{}
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		w.urls = append(w.urls, raw)
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			w.parsed = append(w.parsed, u)
		}
	}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			w.domains = append(w.domains, d)
		}
	}
	return w
}

func (w *Whitelist) URLs() []string    { return append([]string(nil), w.urls...) }
func (w *Whitelist) Domains() []string { return append([]string(nil), w.domains...) }

func (w *Whitelist) Enabled() bool {
	return len(w.urls) > 0 || len(w.domains) > 0
}

// Allows reports whether rawURL is an allowed URL, sits on an allowed domain,
// or extends the path of an allowed URL on the same host.
func (w *Whitelist) Allows(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	for _, allowed := range w.urls {
		if allowed == rawURL {
			return true
		}
	}

	host := strings.ToLower(u.Hostname())
	for _, d := range w.domains {
		if host == d {
			return true
		}
	}

	for _, allowed := range w.parsed {
		if !strings.EqualFold(allowed.Hostname(), host) {
			continue
		}
		if extendsPath(u.Path, allowed.Path) {
			return true
		}
	}
	return false
}

// extendsPath matches whole path segments only: "/pricing" extends to
// "/pricing/enterprise" but not to "/pricing-old".
func extendsPath(path, base string) bool {
	if base == "" || base == "/" {
		return true
	}
	if path == base {
		return true
	}
	if strings.HasSuffix(base, "/") {
		return strings.HasPrefix(path, base)
	}
	return strings.HasPrefix(path, base+"/")
}

// Validate reports malformed allow-list entries.
func (w *Whitelist) Validate() []error {
	var errs []error
	for _, raw := range w.urls {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("allowed url %q is not an absolute http(s) url", raw))
		}
	}
	for _, d := range w.domains {
		if strings.ContainsAny(d, "/:?# ") || !strings.Contains(d, ".") {
			errs = append(errs, fmt.Errorf("allowed domain %q must be a bare hostname", d))
		}
	}
	return errs
}

// Targets renders the allow-list for prompts and diagnostics.
func (w *Whitelist) Targets() string {
	if !w.Enabled() {
		return "Web scraping is not enabled. No external URLs can be scraped."
	}
	var parts []string
	if len(w.urls) > 0 {
		parts = append(parts, "Specific URLs: "+strings.Join(w.urls, ", "))
	}
	if len(w.domains) > 0 {
		parts = append(parts, "Entire domains: "+strings.Join(w.domains, ", "))
	}
	return "Available scraping targets: " + strings.Join(parts, "; ")
}

var topicKeywords = []string{"pricing", "docs", "api", "features"}

// TopicLikelyAvailable is a cheap hint whether an allow-listed target may
// cover the topic. It never grants access.
func (w *Whitelist) TopicLikelyAvailable(topic string) bool {
	if !w.Enabled() {
		return false
	}
	topic = strings.ToLower(strings.TrimSpace(topic))
	if topic == "" {
		return false
	}
	for _, raw := range w.urls {
		lower := strings.ToLower(raw)
		if strings.Contains(lower, topic) {
			return true
		}
		for _, kw := range topicKeywords {
			if strings.Contains(topic, kw) && strings.Contains(lower, kw) {
				return true
			}
		}
	}
	for _, d := range w.domains {
		if strings.Contains(d, topic) || (strings.Contains(topic, "elasticpath") && strings.Contains(d, "elasticpath")) {
			return true
		}
	}
	return false
}
