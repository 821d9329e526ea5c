package usecase

import "strings"

// ClassifierRulesVersion identifies the active website-content rule list.
const ClassifierRulesVersion = "2"

type sourceRule struct {
	name  string
	match func(source string) bool
}

var (
	websiteTLDSegments = []string{".com/", ".dev/", ".io/", ".org/", ".net/"}
	marketingDomains   = []string{"elasticpath.com", "elasticpath.dev", "www.elasticpath.com", "www.elasticpath.dev"}
	scrapedPrefixes    = []string{"scraped-", "website-", "web:"}
)

var websiteRules = []sourceRule{
	{name: "url_scheme", match: func(s string) bool {
		return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
	}},
	{name: "tld_path_segment", match: func(s string) bool {
		for _, seg := range websiteTLDSegments {
			if strings.Contains(s, seg) {
				return true
			}
		}
		return false
	}},
	{name: "marketing_domain", match: func(s string) bool {
		for _, d := range marketingDomains {
			if s == d || strings.HasPrefix(s, d+"/") {
				return true
			}
		}
		return false
	}},
	{name: "scraped_prefix", match: func(s string) bool {
		for _, p := range scrapedPrefixes {
			if strings.HasPrefix(s, p) {
				return true
			}
		}
		return false
	}},
}

// WebsiteContentClassifier flags documents that originate from scraped web pages
// rather than curated documentation.
type WebsiteContentClassifier struct {
	rules []sourceRule
}

func NewWebsiteContentClassifier() *WebsiteContentClassifier {
	return &WebsiteContentClassifier{rules: websiteRules}
}

func (c *WebsiteContentClassifier) IsWebsiteContent(source string) bool {
	_, ok := c.MatchedRule(source)
	return ok
}

// MatchedRule reports which rule flagged the source, for logging.
func (c *WebsiteContentClassifier) MatchedRule(source string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(source))
	if s == "" {
		return "", false
	}
	for _, rule := range c.rules {
		if rule.match(s) {
			return rule.name, true
		}
	}
	return "", false
}
