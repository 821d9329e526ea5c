package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/docs-assistant/internal/core/domain"
)

type embedderFake struct {
	queries []string
	err     error
}

func (f *embedderFake) Embed(_ context.Context, chunks []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(chunks))
	for i := range chunks {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type vectorSearcherFake struct {
	docs        []domain.RetrievedDocument
	err         error
	collections []domain.CollectionSpec
	limits      []int
}

func (f *vectorSearcherFake) Search(_ context.Context, collection domain.CollectionSpec, _ []float32, limit int) ([]domain.RetrievedDocument, error) {
	f.collections = append(f.collections, collection)
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

func TestCollectionRetrieverSearchesConfiguredCollection(t *testing.T) {
	spec := domain.CollectionSpec{Name: "epcc_docs", IndexName: "vector_index", Source: domain.SourceEPCC}
	stored := domain.RetrievedDocument{
		PageContent: "Product Experience Manager lets you ...",
		Metadata: domain.DocumentMetadata{
			Source: "docs/pxm/overview.md",
			Title:  "PXM overview",
			Extra:  map[string]string{"section": "products"},
		},
		Score: 0.91,
	}
	embedder := &embedderFake{}
	vectors := &vectorSearcherFake{docs: []domain.RetrievedDocument{stored}}
	r := NewCollectionRetriever(spec, embedder, vectors)

	got, err := r.SimilaritySearch(context.Background(), "pxm Product Experience Manager", 4)
	if err != nil {
		t.Fatalf("SimilaritySearch() error = %v", err)
	}
	if len(embedder.queries) != 1 || embedder.queries[0] != "pxm Product Experience Manager" {
		t.Fatalf("expected query to be embedded as given, got %v", embedder.queries)
	}
	if vectors.collections[0].Name != "epcc_docs" || vectors.limits[0] != 4 {
		t.Fatalf("unexpected search call: %+v limit=%d", vectors.collections[0], vectors.limits[0])
	}
	if len(got) != 1 || got[0].Metadata.Source != stored.Metadata.Source || got[0].Metadata.Extra["section"] != "products" {
		t.Fatalf("expected metadata to be returned unchanged, got %+v", got)
	}
	if got[0].Metadata.SourceCollection != "" {
		t.Fatalf("retriever must not tag documents, got %q", got[0].Metadata.SourceCollection)
	}
}

func TestCollectionRetrieverDefaultsAndTruncatesTopK(t *testing.T) {
	vectors := &vectorSearcherFake{docs: docs("many", 9)}
	r := NewCollectionRetriever(domain.CollectionSpec{Name: "docs"}, &embedderFake{}, vectors)

	got, err := r.SimilaritySearch(context.Background(), "carts", 0)
	if err != nil {
		t.Fatalf("SimilaritySearch() error = %v", err)
	}
	if vectors.limits[0] != 5 {
		t.Fatalf("expected default topK=5, got %d", vectors.limits[0])
	}
	if len(got) != 5 {
		t.Fatalf("expected result truncated to 5, got %d", len(got))
	}
}

func TestCollectionRetrieverPropagatesFailures(t *testing.T) {
	spec := domain.CollectionSpec{Name: "rfp"}

	r := NewCollectionRetriever(spec, &embedderFake{err: errors.New("ollama down")}, &vectorSearcherFake{})
	if _, err := r.SimilaritySearch(context.Background(), "sso", 3); !domain.IsKind(err, domain.ErrCollectionUnavailable) {
		t.Fatalf("expected ErrCollectionUnavailable from embedder failure, got %v", err)
	}

	r = NewCollectionRetriever(spec, &embedderFake{}, &vectorSearcherFake{err: errors.New("index missing")})
	if _, err := r.SimilaritySearch(context.Background(), "sso", 3); !domain.IsKind(err, domain.ErrCollectionUnavailable) {
		t.Fatalf("expected ErrCollectionUnavailable from search failure, got %v", err)
	}

	if _, err := r.SimilaritySearch(context.Background(), "", 3); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty query, got %v", err)
	}
}
