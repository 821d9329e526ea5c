package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/kirillkom/docs-assistant/internal/core/domain"
	"github.com/kirillkom/docs-assistant/internal/core/ports"
)

const (
	singleModeTopK   = 5
	rfpStageTopK     = 3
	supplementTopK   = 2
	rfpContextGoal   = 5
	maxContextDocs   = 8
	rfpWeight        = 1.0
	docsWeight       = 0.8
	websiteWeight    = 0.6
	singleModeWeight = 1.0
)

// CollectionRetrievers groups the logical collections the orchestrator may query.
// A nil entry is treated as an unavailable collection.
type CollectionRetrievers struct {
	Documentation CollectionSearcher
	APIReference  CollectionSearcher
	RFP           CollectionSearcher
	Website       CollectionSearcher
	EPCC          CollectionSearcher
	EPSM          CollectionSearcher
}

type RetrievalOptions struct {
	Observer ports.RetrievalObserver
	// FallbackScraper, when set, is consulted in rfp mode for allow-listed URLs
	// mentioned in the query once the collections came up short.
	FallbackScraper ports.WebScraper
}

// RetrievalUseCase assembles prioritized context from several collections.
type RetrievalUseCase struct {
	expander    ports.QueryExpander
	classifier  ports.ContentClassifier
	collections CollectionRetrievers
	observer    ports.RetrievalObserver
	scraper     ports.WebScraper
}

func NewRetrievalUseCase(
	expander ports.QueryExpander,
	classifier ports.ContentClassifier,
	collections CollectionRetrievers,
	opts RetrievalOptions,
) *RetrievalUseCase {
	observer := opts.Observer
	if observer == nil {
		observer = noopRetrievalObserver{}
	}
	return &RetrievalUseCase{
		expander:    expander,
		classifier:  classifier,
		collections: collections,
		observer:    observer,
		scraper:     opts.FallbackScraper,
	}
}

// RetrieveContent returns at most eight documents for the query. Per-collection
// failures are logged and skipped; when every collection fails the result is
// empty and the error is nil.
func (uc *RetrievalUseCase) RetrieveContent(ctx context.Context, query string, mode domain.RetrievalMode) ([]domain.RetrievedDocument, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve content", errors.New("query is required"))
	}
	expanded := uc.expander.Expand(query)

	if mode == domain.ModeRFP {
		return uc.retrieveRFP(ctx, query, expanded), nil
	}
	return uc.retrieveSingle(ctx, mode, expanded), nil
}

// FindTechnicalContent searches the API reference collection only.
func (uc *RetrievalUseCase) FindTechnicalContent(ctx context.Context, query string) ([]domain.RetrievedDocument, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "find technical content", errors.New("query is required"))
	}
	docs := uc.search(ctx, uc.collections.APIReference, uc.expander.Expand(query), singleModeTopK)
	tagDocuments(docs, domain.SourceAPIDocumentation, singleModeWeight)
	if docs == nil {
		docs = []domain.RetrievedDocument{}
	}
	return docs, nil
}

func (uc *RetrievalUseCase) retrieveSingle(ctx context.Context, mode domain.RetrievalMode, expanded string) []domain.RetrievedDocument {
	searcher, source := uc.collections.Documentation, domain.SourceDocumentation
	switch mode {
	case domain.ModeEPCC:
		searcher, source = uc.collections.EPCC, domain.SourceEPCC
	case domain.ModeEPSM:
		searcher, source = uc.collections.EPSM, domain.SourceEPSM
	}

	docs := uc.search(ctx, searcher, expanded, singleModeTopK)
	docs = uc.dropWebsiteContent(searcher, docs)
	tagDocuments(docs, source, singleModeWeight)

	slog.Debug("retrieval_completed", "mode", string(mode), "documents", len(docs))
	if docs == nil {
		docs = []domain.RetrievedDocument{}
	}
	return docs
}

// retrieveRFP runs the priority stages RFP > Documentation > Website, stopping
// as soon as the context goal is met. Results keep stage order.
func (uc *RetrievalUseCase) retrieveRFP(ctx context.Context, query, expanded string) []domain.RetrievedDocument {
	acc := newContextAccumulator(maxContextDocs)

	rfp := uc.search(ctx, uc.collections.RFP, expanded, rfpStageTopK)
	tagDocuments(rfp, domain.SourceRFP, rfpWeight)
	acc.add(rfp)
	slog.Debug("retrieval_stage", "mode", "rfp", "stage", "rfp", "documents", len(rfp), "accumulated", acc.count())

	if acc.count() < rfpContextGoal {
		docs := uc.search(ctx, uc.collections.Documentation, expanded, supplementTopK)
		docs = uc.dropWebsiteContent(uc.collections.Documentation, docs)
		tagDocuments(docs, domain.SourceDocumentation, docsWeight)
		acc.add(docs)
		slog.Debug("retrieval_stage", "mode", "rfp", "stage", "documentation", "documents", len(docs), "accumulated", acc.count())
	}

	if acc.count() < rfpContextGoal {
		web := uc.search(ctx, uc.collections.Website, expanded, supplementTopK)
		web = keepScrapedWebsiteContent(web)
		tagDocuments(web, domain.SourceWebsite, websiteWeight)
		acc.add(web)
		slog.Debug("retrieval_stage", "mode", "rfp", "stage", "website", "documents", len(web), "accumulated", acc.count())
	}

	if acc.count() < rfpContextGoal && uc.scraper != nil {
		if doc, ok := uc.scrapeMentionedURL(ctx, query); ok {
			acc.add([]domain.RetrievedDocument{doc})
		}
	}

	return acc.items
}

func (uc *RetrievalUseCase) search(ctx context.Context, searcher CollectionSearcher, query string, topK int) []domain.RetrievedDocument {
	if searcher == nil {
		return nil
	}
	name := searcher.Collection().Name

	docs, err := searcher.SimilaritySearch(ctx, query, topK)
	if err != nil {
		slog.Warn("collection_search_failed", "collection", name, "top_k", topK, "error", err)
		uc.observer.ObserveCollectionSearch(name, "error", 0)
		return nil
	}
	uc.observer.ObserveCollectionSearch(name, "ok", len(docs))
	return docs
}

func (uc *RetrievalUseCase) dropWebsiteContent(searcher CollectionSearcher, docs []domain.RetrievedDocument) []domain.RetrievedDocument {
	if len(docs) == 0 {
		return docs
	}
	out := docs[:0]
	for _, doc := range docs {
		if uc.classifier.IsWebsiteContent(doc.Metadata.Source) {
			continue
		}
		out = append(out, doc)
	}
	if dropped := len(docs) - len(out); dropped > 0 && searcher != nil {
		name := searcher.Collection().Name
		slog.Info("website_content_filtered", "collection", name, "dropped", dropped)
		uc.observer.ObserveWebsiteFiltered(name, dropped)
	}
	return out
}

func (uc *RetrievalUseCase) scrapeMentionedURL(ctx context.Context, query string) (domain.RetrievedDocument, bool) {
	rawURL := firstURL(query)
	if rawURL == "" {
		return domain.RetrievedDocument{}, false
	}

	content, err := uc.scraper.Scrape(ctx, rawURL)
	if err != nil {
		if domain.IsKind(err, domain.ErrWhitelist) {
			slog.Warn("scrape_fallback_rejected", "url", rawURL, "error", err)
		} else {
			slog.Info("scrape_fallback_skipped", "url", rawURL, "error", err)
		}
		return domain.RetrievedDocument{}, false
	}

	return domain.RetrievedDocument{
		PageContent: content.Content,
		Metadata: domain.DocumentMetadata{
			Source:            content.URL,
			SourceCollection:  domain.SourceWebsite,
			Domain:            content.Domain,
			URL:               content.URL,
			Title:             content.Title,
			ContentType:       domain.ContentTypeWebsiteScraped,
			SourceAttribution: content.SourceAttribution,
			CollectionWeight:  websiteWeight,
		},
	}, true
}

func keepScrapedWebsiteContent(docs []domain.RetrievedDocument) []domain.RetrievedDocument {
	out := docs[:0]
	for _, doc := range docs {
		if doc.Metadata.ContentType == domain.ContentTypeWebsiteScraped {
			out = append(out, doc)
		}
	}
	return out
}

func tagDocuments(docs []domain.RetrievedDocument, source domain.SourceCollection, weight float64) {
	for i := range docs {
		docs[i].Metadata.SourceCollection = source
		docs[i].Metadata.CollectionWeight = weight
	}
}

func firstURL(text string) string {
	for _, field := range strings.Fields(text) {
		field = strings.TrimRightFunc(field, func(r rune) bool {
			return unicode.IsPunct(r) && r != '/'
		})
		field = strings.TrimLeft(field, "(<\"'")
		if strings.HasPrefix(field, "http://") || strings.HasPrefix(field, "https://") {
			return field
		}
	}
	return ""
}

// contextAccumulator appends in priority order, skips repeats and enforces the cap.
type contextAccumulator struct {
	limit int
	seen  map[string]struct{}
	items []domain.RetrievedDocument
}

func newContextAccumulator(limit int) *contextAccumulator {
	return &contextAccumulator{
		limit: limit,
		seen:  make(map[string]struct{}),
		items: []domain.RetrievedDocument{},
	}
}

func (a *contextAccumulator) add(docs []domain.RetrievedDocument) {
	for _, doc := range docs {
		if len(a.items) >= a.limit {
			return
		}
		key := doc.Metadata.Source + "#" + strconv.Itoa(doc.Metadata.ChunkIndex) + "#" + doc.PageContent
		if _, dup := a.seen[key]; dup {
			continue
		}
		a.seen[key] = struct{}{}
		a.items = append(a.items, doc)
	}
}

func (a *contextAccumulator) count() int {
	return len(a.items)
}

type noopRetrievalObserver struct{}

func (noopRetrievalObserver) ObserveCollectionSearch(string, string, int) {}
func (noopRetrievalObserver) ObserveWebsiteFiltered(string, int)          {}
