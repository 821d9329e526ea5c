package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/kirillkom/docs-assistant/internal/core/domain"
	"github.com/kirillkom/docs-assistant/internal/core/ports"
)

const defaultTopK = 5

// CollectionSearcher is one similarity-searchable logical collection.
type CollectionSearcher interface {
	Collection() domain.CollectionSpec
	SimilaritySearch(ctx context.Context, query string, topK int) ([]domain.RetrievedDocument, error)
}

// CollectionRetriever embeds the (already expanded) query and searches one collection.
type CollectionRetriever struct {
	spec     domain.CollectionSpec
	embedder ports.Embedder
	vectorDB ports.VectorSearcher
}

func NewCollectionRetriever(spec domain.CollectionSpec, embedder ports.Embedder, vectorDB ports.VectorSearcher) *CollectionRetriever {
	return &CollectionRetriever{
		spec:     spec,
		embedder: embedder,
		vectorDB: vectorDB,
	}
}

func (r *CollectionRetriever) Collection() domain.CollectionSpec {
	return r.spec
}

// SimilaritySearch returns up to topK documents, most similar first, with
// metadata exactly as stored. Failures are returned to the caller.
func (r *CollectionRetriever) SimilaritySearch(ctx context.Context, query string, topK int) ([]domain.RetrievedDocument, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "similarity search", errors.New("query is required"))
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCollectionUnavailable, "embed query for "+r.spec.Name, err)
	}

	docs, err := r.vectorDB.Search(ctx, r.spec, vector, topK)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCollectionUnavailable, "search "+r.spec.Name, err)
	}
	if len(docs) > topK {
		docs = docs[:topK]
	}
	return docs, nil
}
