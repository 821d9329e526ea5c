package domain

import "time"

// ScrapedContent is the cleaned, attributed text of one allow-listed page.
type ScrapedContent struct {
	Title             string    `json:"title"`
	Content           string    `json:"content"`
	URL               string    `json:"url"`
	Domain            string    `json:"domain"`
	Timestamp         time.Time `json:"timestamp"`
	WordCount         int       `json:"word_count"`
	SourceAttribution string    `json:"source_attribution"`
}

type WhitelistInfo struct {
	AllowedURLs         []string `json:"allowed_urls"`
	AllowedDomains      []string `json:"allowed_domains"`
	TotalAllowedURLs    int      `json:"total_allowed_urls"`
	TotalAllowedDomains int      `json:"total_allowed_domains"`
}

type PageStatus string

const (
	PageStatusQueued  PageStatus = "queued"
	PageStatusScraped PageStatus = "scraped"
	PageStatusIndexed PageStatus = "indexed"
	PageStatusFailed  PageStatus = "failed"
)

// WebsitePage tracks ingestion of one URL into the website collection.
type WebsitePage struct {
	URL        string     `json:"url"`
	Domain     string     `json:"domain"`
	Title      string     `json:"title,omitempty"`
	WordCount  int        `json:"word_count"`
	ChunkCount int        `json:"chunk_count"`
	Status     PageStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
	ScrapedAt  *time.Time `json:"scraped_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ScrapeRequest is the queue payload asking the worker to (re)ingest a URL.
type ScrapeRequest struct {
	URL         string    `json:"url"`
	RequestedAt time.Time `json:"requested_at"`
	RequestID   string    `json:"request_id,omitempty"`
}
