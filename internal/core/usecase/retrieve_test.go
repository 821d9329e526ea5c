package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kirillkom/docs-assistant/internal/core/domain"
)

type expanderFake struct{}

func (expanderFake) Expand(query string) string { return query + " expanded" }

type searcherFake struct {
	spec    domain.CollectionSpec
	docs    []domain.RetrievedDocument
	err     error
	calls   int
	queries []string
	topKs   []int
}

func (f *searcherFake) Collection() domain.CollectionSpec { return f.spec }

func (f *searcherFake) SimilaritySearch(_ context.Context, query string, topK int) ([]domain.RetrievedDocument, error) {
	f.calls++
	f.queries = append(f.queries, query)
	f.topKs = append(f.topKs, topK)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.RetrievedDocument, len(f.docs))
	copy(out, f.docs)
	return out, nil
}

type scraperFake struct {
	content *domain.ScrapedContent
	err     error
	urls    []string
	allowed []string
	targets string
}

func (f *scraperFake) Scrape(_ context.Context, rawURL string) (*domain.ScrapedContent, error) {
	f.urls = append(f.urls, rawURL)
	return f.content, f.err
}
func (f *scraperFake) IsURLAllowed(rawURL string) bool {
	for _, allowed := range f.allowed {
		if allowed == rawURL {
			return true
		}
	}
	return false
}
func (f *scraperFake) IsEnabled() bool          { return len(f.allowed) > 0 }
func (f *scraperFake) AvailableTargets() string { return f.targets }
func (f *scraperFake) WhitelistInfo() domain.WhitelistInfo {
	return domain.WhitelistInfo{AllowedURLs: f.allowed, TotalAllowedURLs: len(f.allowed)}
}

type observerFake struct {
	searches map[string]string
	filtered map[string]int
}

func newObserverFake() *observerFake {
	return &observerFake{searches: map[string]string{}, filtered: map[string]int{}}
}

func (f *observerFake) ObserveCollectionSearch(collection, outcome string, _ int) {
	f.searches[collection] = outcome
}
func (f *observerFake) ObserveWebsiteFiltered(collection string, dropped int) {
	f.filtered[collection] += dropped
}

func newSearcher(name string, docs ...domain.RetrievedDocument) *searcherFake {
	return &searcherFake{spec: domain.CollectionSpec{Name: name, IndexName: "vector_index"}, docs: docs}
}

func doc(source string) domain.RetrievedDocument {
	return domain.RetrievedDocument{PageContent: "content of " + source, Metadata: domain.DocumentMetadata{Source: source}}
}

func scrapedDoc(source string) domain.RetrievedDocument {
	d := doc(source)
	d.Metadata.ContentType = domain.ContentTypeWebsiteScraped
	return d
}

func docs(prefix string, n int) []domain.RetrievedDocument {
	out := make([]domain.RetrievedDocument, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, doc(fmt.Sprintf("%s/doc-%d.md", prefix, i)))
	}
	return out
}

type retrievalFixture struct {
	docs, api, rfp, website, epcc, epsm *searcherFake
	observer                            *observerFake
}

func newRetrievalFixture() *retrievalFixture {
	return &retrievalFixture{
		docs:     newSearcher("docs"),
		api:      newSearcher("api"),
		rfp:      newSearcher("rfp"),
		website:  newSearcher("website"),
		epcc:     newSearcher("epcc"),
		epsm:     newSearcher("epsm"),
		observer: newObserverFake(),
	}
}

func (f *retrievalFixture) useCase(scraper *scraperFake) *RetrievalUseCase {
	opts := RetrievalOptions{Observer: f.observer}
	if scraper != nil {
		opts.FallbackScraper = scraper
	}
	return NewRetrievalUseCase(expanderFake{}, NewWebsiteContentClassifier(), CollectionRetrievers{
		Documentation: f.docs,
		APIReference:  f.api,
		RFP:           f.rfp,
		Website:       f.website,
		EPCC:          f.epcc,
		EPSM:          f.epsm,
	}, opts)
}

func TestRetrieveContentEPCCTagsAllDocuments(t *testing.T) {
	f := newRetrievalFixture()
	f.epcc.docs = docs("pxm", 5)
	uc := f.useCase(nil)

	got, err := uc.RetrieveContent(context.Background(), "What is PXM?", domain.ModeEPCC)
	if err != nil {
		t.Fatalf("RetrieveContent() error = %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 documents, got %d", len(got))
	}
	for _, d := range got {
		if d.Metadata.SourceCollection != domain.SourceEPCC {
			t.Fatalf("expected EPCC tag, got %q", d.Metadata.SourceCollection)
		}
	}
	if f.epcc.queries[0] != "What is PXM? expanded" {
		t.Fatalf("expected expanded query, got %q", f.epcc.queries[0])
	}
	if f.epcc.topKs[0] != 5 {
		t.Fatalf("expected topK=5, got %d", f.epcc.topKs[0])
	}
	if f.docs.calls != 0 || f.epsm.calls != 0 || f.rfp.calls != 0 {
		t.Fatalf("expected only the epcc collection to be queried")
	}
}

func TestRetrieveContentSingleModesDropWebsiteContent(t *testing.T) {
	for _, mode := range []domain.RetrievalMode{domain.ModeEPCC, domain.ModeEPSM, domain.ModeStandard} {
		t.Run(string(mode), func(t *testing.T) {
			f := newRetrievalFixture()
			mixed := []domain.RetrievedDocument{
				doc("docs/carts.md"),
				doc("https://elasticpath.com/pricing"),
				scrapedDoc("scraped-elasticpath-pricing"),
				doc("docs/checkout.md"),
			}
			f.epcc.docs, f.epsm.docs, f.docs.docs = mixed, mixed, mixed
			uc := f.useCase(nil)

			got, err := uc.RetrieveContent(context.Background(), "cart", mode)
			if err != nil {
				t.Fatalf("RetrieveContent() error = %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("expected 2 curated documents, got %d", len(got))
			}
			classifier := NewWebsiteContentClassifier()
			for _, d := range got {
				if classifier.IsWebsiteContent(d.Metadata.Source) {
					t.Fatalf("website document leaked into %s results: %s", mode, d.Metadata.Source)
				}
			}
		})
	}
}

func TestRetrieveContentStandardTagsDocumentation(t *testing.T) {
	f := newRetrievalFixture()
	f.docs.docs = docs("guides", 2)
	uc := f.useCase(nil)

	got, err := uc.RetrieveContent(context.Background(), "checkout", domain.ModeStandard)
	if err != nil {
		t.Fatalf("RetrieveContent() error = %v", err)
	}
	if len(got) != 2 || got[0].Metadata.SourceCollection != domain.SourceDocumentation {
		t.Fatalf("unexpected standard results: %+v", got)
	}
}

func TestRetrieveContentRFPStopsWhenRFPFillsContext(t *testing.T) {
	f := newRetrievalFixture()
	f.rfp.docs = docs("rfp", 5)
	uc := f.useCase(nil)

	got, err := uc.RetrieveContent(context.Background(), "security questionnaire", domain.ModeRFP)
	if err != nil {
		t.Fatalf("RetrieveContent() error = %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 documents, got %d", len(got))
	}
	if f.docs.calls != 0 || f.website.calls != 0 {
		t.Fatalf("expected early termination, docs calls=%d website calls=%d", f.docs.calls, f.website.calls)
	}
	if f.rfp.topKs[0] != 3 {
		t.Fatalf("expected rfp topK=3, got %d", f.rfp.topKs[0])
	}
}

func TestRetrieveContentRFPAccumulatesStagesInPriorityOrder(t *testing.T) {
	f := newRetrievalFixture()
	f.rfp.docs = docs("rfp", 2)
	f.docs.docs = []domain.RetrievedDocument{doc("docs/a.md"), doc("https://elasticpath.dev/docs/a")}
	f.website.docs = []domain.RetrievedDocument{scrapedDoc("scraped-elasticpath.dev/pricing"), doc("misc/unflagged.md")}
	uc := f.useCase(nil)

	got, err := uc.RetrieveContent(context.Background(), "pricing", domain.ModeRFP)
	if err != nil {
		t.Fatalf("RetrieveContent() error = %v", err)
	}

	want := []struct {
		source     string
		collection domain.SourceCollection
		weight     float64
	}{
		{"rfp/doc-0.md", domain.SourceRFP, 1.0},
		{"rfp/doc-1.md", domain.SourceRFP, 1.0},
		{"docs/a.md", domain.SourceDocumentation, 0.8},
		{"scraped-elasticpath.dev/pricing", domain.SourceWebsite, 0.6},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d documents, got %d: %+v", len(want), len(got), got)
	}
	for i, w := range want {
		if got[i].Metadata.Source != w.source || got[i].Metadata.SourceCollection != w.collection || got[i].Metadata.CollectionWeight != w.weight {
			t.Fatalf("document %d = %+v, want %+v", i, got[i].Metadata, w)
		}
	}
	if f.docs.topKs[0] != 2 || f.website.topKs[0] != 2 {
		t.Fatalf("expected supplement stages to use topK=2")
	}
	if f.observer.filtered["docs"] != 1 {
		t.Fatalf("expected one filtered website document, got %d", f.observer.filtered["docs"])
	}
}

func TestRetrieveContentRFPSkipsWebsiteStageWhenDocsFillContext(t *testing.T) {
	f := newRetrievalFixture()
	f.rfp.docs = docs("rfp", 3)
	f.docs.docs = docs("docs", 2)
	uc := f.useCase(nil)

	got, _ := uc.RetrieveContent(context.Background(), "sso", domain.ModeRFP)
	if len(got) != 5 {
		t.Fatalf("expected 5 documents, got %d", len(got))
	}
	if f.website.calls != 0 {
		t.Fatalf("website collection must not be queried once the goal is met")
	}
}

func TestRetrieveContentRFPToleratesCollectionFailures(t *testing.T) {
	f := newRetrievalFixture()
	f.rfp.err = errors.New("connection refused")
	f.docs.docs = docs("docs", 2)
	f.website.err = errors.New("timeout")
	uc := f.useCase(nil)

	got, err := uc.RetrieveContent(context.Background(), "sso", domain.ModeRFP)
	if err != nil {
		t.Fatalf("expected failures to degrade, got %v", err)
	}
	if len(got) != 2 || got[0].Metadata.SourceCollection != domain.SourceDocumentation {
		t.Fatalf("unexpected results: %+v", got)
	}
	if f.observer.searches["rfp"] != "error" || f.observer.searches["docs"] != "ok" {
		t.Fatalf("unexpected observed outcomes: %+v", f.observer.searches)
	}
}

func TestRetrieveContentAllCollectionsFailReturnsEmpty(t *testing.T) {
	f := newRetrievalFixture()
	boom := errors.New("down")
	f.rfp.err, f.docs.err, f.website.err, f.epcc.err = boom, boom, boom, boom
	uc := f.useCase(nil)

	for _, mode := range []domain.RetrievalMode{domain.ModeRFP, domain.ModeEPCC} {
		got, err := uc.RetrieveContent(context.Background(), "anything", mode)
		if err != nil {
			t.Fatalf("%s: expected nil error, got %v", mode, err)
		}
		if got == nil || len(got) != 0 {
			t.Fatalf("%s: expected empty non-nil result, got %+v", mode, got)
		}
	}
}

func TestRetrieveContentRFPCapsAtEight(t *testing.T) {
	f := newRetrievalFixture()
	f.rfp.docs = docs("rfp", 12)
	uc := f.useCase(nil)

	got, _ := uc.RetrieveContent(context.Background(), "compliance", domain.ModeRFP)
	if len(got) != 8 {
		t.Fatalf("expected cap of 8, got %d", len(got))
	}
}

func TestRetrieveContentRFPSkipsDuplicateAcrossStages(t *testing.T) {
	f := newRetrievalFixture()
	shared := doc("shared/answer.md")
	f.rfp.docs = []domain.RetrievedDocument{shared}
	f.docs.docs = []domain.RetrievedDocument{shared, doc("docs/b.md")}
	uc := f.useCase(nil)

	got, _ := uc.RetrieveContent(context.Background(), "sla", domain.ModeRFP)
	if len(got) != 2 {
		t.Fatalf("expected duplicate to be skipped, got %d documents", len(got))
	}
	if got[0].Metadata.SourceCollection != domain.SourceRFP {
		t.Fatalf("expected first occurrence to keep RFP tag, got %q", got[0].Metadata.SourceCollection)
	}
}

func TestRetrieveContentRFPFallsBackToScraper(t *testing.T) {
	f := newRetrievalFixture()
	scraper := &scraperFake{content: &domain.ScrapedContent{
		Title:   "Pricing",
		Content: "Content scraped from elasticpath.com (https://elasticpath.com/pricing)\n\nplans",
		URL:     "https://elasticpath.com/pricing",
		Domain:  "elasticpath.com",
	}}
	uc := f.useCase(scraper)

	got, err := uc.RetrieveContent(context.Background(), "what does https://elasticpath.com/pricing, say?", domain.ModeRFP)
	if err != nil {
		t.Fatalf("RetrieveContent() error = %v", err)
	}
	if len(scraper.urls) != 1 || scraper.urls[0] != "https://elasticpath.com/pricing" {
		t.Fatalf("unexpected scraped urls: %v", scraper.urls)
	}
	if len(got) != 1 || got[0].Metadata.SourceCollection != domain.SourceWebsite || got[0].Metadata.ContentType != domain.ContentTypeWebsiteScraped {
		t.Fatalf("unexpected fallback result: %+v", got)
	}
}

func TestRetrieveContentRFPFallbackRespectsWhitelist(t *testing.T) {
	f := newRetrievalFixture()
	scraper := &scraperFake{err: domain.WrapError(domain.ErrWhitelist, "scrape", errors.New("https://evil.example.com/"))}
	uc := f.useCase(scraper)

	got, err := uc.RetrieveContent(context.Background(), "summarise https://evil.example.com/", domain.ModeRFP)
	if err != nil {
		t.Fatalf("RetrieveContent() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no documents, got %+v", got)
	}
}

func TestRetrieveContentSingleModeNeverScrapes(t *testing.T) {
	f := newRetrievalFixture()
	scraper := &scraperFake{}
	uc := f.useCase(scraper)

	_, _ = uc.RetrieveContent(context.Background(), "see https://elasticpath.com/pricing", domain.ModeEPCC)
	if len(scraper.urls) != 0 {
		t.Fatalf("epcc mode must not scrape, got %v", scraper.urls)
	}
}

func TestRetrieveContentRejectsEmptyQuery(t *testing.T) {
	uc := newRetrievalFixture().useCase(nil)
	_, err := uc.RetrieveContent(context.Background(), "  ", domain.ModeStandard)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestFindTechnicalContentUsesAPICollection(t *testing.T) {
	f := newRetrievalFixture()
	f.api.docs = docs("api", 3)
	uc := f.useCase(nil)

	got, err := uc.FindTechnicalContent(context.Background(), "create a cart")
	if err != nil {
		t.Fatalf("FindTechnicalContent() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(got))
	}
	for _, d := range got {
		if d.Metadata.SourceCollection != domain.SourceAPIDocumentation {
			t.Fatalf("expected APIDocumentation tag, got %q", d.Metadata.SourceCollection)
		}
	}
	if f.api.queries[0] != "create a cart expanded" || f.docs.calls != 0 {
		t.Fatalf("expected only the api collection to receive the expanded query")
	}
}

func TestFindTechnicalContentFailureReturnsEmpty(t *testing.T) {
	f := newRetrievalFixture()
	f.api.err = errors.New("down")
	uc := f.useCase(nil)

	got, err := uc.FindTechnicalContent(context.Background(), "orders endpoint")
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("expected empty result without error, got %+v, %v", got, err)
	}
}
