package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docs-assistant/internal/core/domain"
	"github.com/kirillkom/docs-assistant/internal/core/ports"
)

// WebsiteIngestUseCase keeps the website collection in sync with allow-listed pages.
type WebsiteIngestUseCase struct {
	scraper    ports.WebScraper
	chunker    ports.Chunker
	embedder   ports.Embedder
	indexer    ports.VectorIndexer
	repo       ports.WebsitePageRepository
	queue      ports.ScrapeQueue
	collection string
}

func NewWebsiteIngestUseCase(
	scraper ports.WebScraper,
	chunker ports.Chunker,
	embedder ports.Embedder,
	indexer ports.VectorIndexer,
	repo ports.WebsitePageRepository,
	queue ports.ScrapeQueue,
	collection string,
) *WebsiteIngestUseCase {
	return &WebsiteIngestUseCase{
		scraper:    scraper,
		chunker:    chunker,
		embedder:   embedder,
		indexer:    indexer,
		repo:       repo,
		queue:      queue,
		collection: collection,
	}
}

// Enqueue registers the page as queued and publishes a scrape request.
// URLs outside the whitelist are rejected before anything is written.
func (uc *WebsiteIngestUseCase) Enqueue(ctx context.Context, rawURL string) (*domain.WebsitePage, error) {
	rawURL = strings.TrimSpace(rawURL)
	host, err := pageHost(rawURL)
	if err != nil {
		return nil, err
	}
	if !uc.scraper.IsURLAllowed(rawURL) {
		return nil, domain.WrapError(domain.ErrWhitelist, "enqueue website page", fmt.Errorf("url %s is not in the scraping whitelist", rawURL))
	}

	now := time.Now().UTC()
	page := &domain.WebsitePage{
		URL:       rawURL,
		Domain:    host,
		Status:    domain.PageStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.repo.Upsert(ctx, page); err != nil {
		return nil, fmt.Errorf("register website page: %w", err)
	}

	req := domain.ScrapeRequest{URL: rawURL, RequestedAt: now, RequestID: uuid.NewString()}
	if err := uc.queue.PublishScrapeRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("publish scrape request: %w", err)
	}
	return page, nil
}

// EnqueueWhitelist queues every explicitly allow-listed URL. Allowed domains
// are not crawled.
func (uc *WebsiteIngestUseCase) EnqueueWhitelist(ctx context.Context) ([]domain.WebsitePage, error) {
	info := uc.scraper.WhitelistInfo()
	pages := make([]domain.WebsitePage, 0, len(info.AllowedURLs))
	for _, rawURL := range info.AllowedURLs {
		page, err := uc.Enqueue(ctx, rawURL)
		if err != nil {
			return pages, fmt.Errorf("enqueue %s: %w", rawURL, err)
		}
		pages = append(pages, *page)
	}
	return pages, nil
}

// IngestURL scrapes one page and replaces its chunks in the website collection.
func (uc *WebsiteIngestUseCase) IngestURL(ctx context.Context, rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	page, err := uc.loadOrRegister(ctx, rawURL)
	if err != nil {
		return err
	}

	if err := uc.ingestPipeline(ctx, page); err != nil {
		if failErr := uc.markFailed(ctx, rawURL, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}
	return nil
}

// RemoveURL deletes every indexed chunk of the page.
func (uc *WebsiteIngestUseCase) RemoveURL(ctx context.Context, rawURL string) error {
	source, err := WebsiteSource(rawURL)
	if err != nil {
		return err
	}
	if err := uc.indexer.DeleteBySource(ctx, uc.collection, source); err != nil {
		return fmt.Errorf("delete indexed chunks: %w", err)
	}
	return nil
}

func (uc *WebsiteIngestUseCase) ingestPipeline(ctx context.Context, page *domain.WebsitePage) error {
	content, err := uc.scraper.Scrape(ctx, page.URL)
	if err != nil {
		return fmt.Errorf("scrape page: %w", err)
	}
	if err := uc.repo.UpdateStatus(ctx, page.URL, domain.PageStatusScraped, ""); err != nil {
		return fmt.Errorf("set status=scraped: %w", err)
	}

	chunks := uc.chunker.Split(content.Content)
	if len(chunks) == 0 {
		return domain.WrapError(domain.ErrQuality, "chunk page", errors.New("chunking produced zero chunks"))
	}

	vectors, err := uc.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}

	if err := uc.RemoveURL(ctx, page.URL); err != nil {
		return err
	}
	docs, err := websiteChunks(content, chunks)
	if err != nil {
		return err
	}
	if err := uc.indexer.IndexDocuments(ctx, uc.collection, docs, vectors); err != nil {
		return fmt.Errorf("index chunks in vector db: %w", err)
	}

	scrapedAt := content.Timestamp
	page.Title = content.Title
	page.Domain = content.Domain
	page.WordCount = content.WordCount
	page.ChunkCount = len(chunks)
	page.ScrapedAt = &scrapedAt
	page.Status = domain.PageStatusIndexed
	page.Error = ""
	page.UpdatedAt = time.Now().UTC()
	if err := uc.repo.MarkIndexed(ctx, page); err != nil {
		return fmt.Errorf("set status=indexed: %w", err)
	}
	return nil
}

func (uc *WebsiteIngestUseCase) loadOrRegister(ctx context.Context, rawURL string) (*domain.WebsitePage, error) {
	page, err := uc.repo.GetByURL(ctx, rawURL)
	if err == nil {
		return page, nil
	}
	if !domain.IsKind(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("fetch website page: %w", err)
	}

	host, err := pageHost(rawURL)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	page = &domain.WebsitePage{
		URL:       rawURL,
		Domain:    host,
		Status:    domain.PageStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.repo.Upsert(ctx, page); err != nil {
		return nil, fmt.Errorf("register website page: %w", err)
	}
	return page, nil
}

func (uc *WebsiteIngestUseCase) markFailed(ctx context.Context, rawURL string, ingestErr error) error {
	if ingestErr == nil {
		return nil
	}
	return uc.repo.UpdateStatus(ctx, rawURL, domain.PageStatusFailed, ingestErr.Error())
}

// WebsiteSource is the stored source identifier of a scraped page:
// "scraped-" followed by host and path.
func WebsiteSource(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return "", domain.WrapError(domain.ErrValidation, "website source", fmt.Errorf("invalid url %q", rawURL))
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return "scraped-" + u.Hostname() + path, nil
}

func websiteChunks(content *domain.ScrapedContent, chunks []string) ([]domain.RetrievedDocument, error) {
	source, err := WebsiteSource(content.URL)
	if err != nil {
		return nil, err
	}
	docs := make([]domain.RetrievedDocument, 0, len(chunks))
	for i, chunk := range chunks {
		docs = append(docs, domain.RetrievedDocument{
			PageContent: chunk,
			Metadata: domain.DocumentMetadata{
				Source:            source,
				Domain:            content.Domain,
				URL:               content.URL,
				Title:             content.Title,
				ContentType:       domain.ContentTypeWebsiteScraped,
				SourceAttribution: content.SourceAttribution,
				ChunkIndex:        i,
				Extra: map[string]string{
					"scraped_at": content.Timestamp.UTC().Format(time.RFC3339),
					"word_count": fmt.Sprint(content.WordCount),
				},
			},
		})
	}
	return docs, nil
}

func pageHost(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", domain.WrapError(domain.ErrValidation, "parse page url", fmt.Errorf("invalid url %q", rawURL))
	}
	return u.Hostname(), nil
}
