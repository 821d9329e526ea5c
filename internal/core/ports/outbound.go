package ports

import (
	"context"

	"github.com/kirillkom/docs-assistant/internal/core/domain"
)

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher runs similarity search against one named collection.
type VectorSearcher interface {
	Search(ctx context.Context, collection domain.CollectionSpec, queryVector []float32, limit int) ([]domain.RetrievedDocument, error)
}

// VectorIndexer writes and removes chunks of a named collection.
type VectorIndexer interface {
	IndexDocuments(ctx context.Context, collection string, docs []domain.RetrievedDocument, vectors [][]float32) error
	DeleteBySource(ctx context.Context, collection, source string) error
}

// QueryExpander rewrites a raw query with domain vocabulary.
type QueryExpander interface {
	Expand(query string) string
}

// ContentClassifier decides whether a source identifier points at scraped web content.
type ContentClassifier interface {
	IsWebsiteContent(source string) bool
}

// Chunker splits text into semantically usable chunks.
type Chunker interface {
	Split(text string) []string
}

// ScrapeQueue publishes/consumes website scrape requests.
type ScrapeQueue interface {
	PublishScrapeRequest(ctx context.Context, req domain.ScrapeRequest) error
	SubscribeScrapeRequests(ctx context.Context, handler func(context.Context, domain.ScrapeRequest) error) error
}

// WebsitePageRepository persists website ingestion state.
type WebsitePageRepository interface {
	Upsert(ctx context.Context, page *domain.WebsitePage) error
	GetByURL(ctx context.Context, rawURL string) (*domain.WebsitePage, error)
	UpdateStatus(ctx context.Context, rawURL string, status domain.PageStatus, errMessage string) error
	MarkIndexed(ctx context.Context, page *domain.WebsitePage) error
	List(ctx context.Context, limit int) ([]domain.WebsitePage, error)
}

// AnswerStreamer produces answer text deltas for a prepared prompt.
type AnswerStreamer interface {
	StreamFromPrompt(ctx context.Context, prompt string) (<-chan string, <-chan error)
}

// RetrievalObserver receives per-collection search outcomes.
type RetrievalObserver interface {
	ObserveCollectionSearch(collection string, outcome string, docs int)
	ObserveWebsiteFiltered(collection string, dropped int)
}
