package ports

import (
	"context"

	"github.com/kirillkom/docs-assistant/internal/core/domain"
)

// ContentRetriever is the inbound contract for mode-aware multi-collection retrieval.
type ContentRetriever interface {
	RetrieveContent(ctx context.Context, query string, mode domain.RetrievalMode) ([]domain.RetrievedDocument, error)
	FindTechnicalContent(ctx context.Context, query string) ([]domain.RetrievedDocument, error)
}

// WebScraper fetches and cleans allow-listed pages.
type WebScraper interface {
	Scrape(ctx context.Context, rawURL string) (*domain.ScrapedContent, error)
	IsURLAllowed(rawURL string) bool
	IsEnabled() bool
	AvailableTargets() string
	WhitelistInfo() domain.WhitelistInfo
}

// ChatResponder streams a grounded answer for a validated chat request.
type ChatResponder interface {
	StreamAnswer(ctx context.Context, req domain.ChatRequest) (*domain.AnswerStream, error)
}

// WebsiteIngestor is the inbound contract for website collection maintenance.
type WebsiteIngestor interface {
	Enqueue(ctx context.Context, rawURL string) (*domain.WebsitePage, error)
	EnqueueWhitelist(ctx context.Context) ([]domain.WebsitePage, error)
	IngestURL(ctx context.Context, rawURL string) error
}

// WebsitePageReader is the inbound read model for ingestion state.
type WebsitePageReader interface {
	GetByURL(ctx context.Context, rawURL string) (*domain.WebsitePage, error)
	List(ctx context.Context, limit int) ([]domain.WebsitePage, error)
}
