package chromem

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/google/uuid"
	chromemdb "github.com/philippgille/chromem-go"

	"github.com/kirillkom/docs-assistant/internal/core/domain"
)

const (
	metaSource            = "source"
	metaDomain            = "domain"
	metaURL               = "url"
	metaTitle             = "title"
	metaContentType       = "content_type"
	metaSourceAttribution = "source_attribution"
	metaChunkIndex        = "chunk_index"
)

var errNoEmbedder = errors.New("chromem store expects precomputed embeddings")

// Store is an embedded vector backend for local runs and tests. Vectors are
// always computed by the configured Embedder, never by chromem itself.
type Store struct {
	db *chromemdb.DB
}

// New opens a persistent store under path, or an in-memory one when path is empty.
func New(path string) (*Store, error) {
	if path == "" {
		return &Store{db: chromemdb.NewDB()}, nil
	}
	db, err := chromemdb.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Search(ctx context.Context, collection domain.CollectionSpec, queryVector []float32, limit int) ([]domain.RetrievedDocument, error) {
	col := s.db.GetCollection(collection.Name, refuseEmbedding)
	if col == nil {
		return nil, domain.WrapError(domain.ErrNotFound, "chromem search", fmt.Errorf("collection %q does not exist", collection.Name))
	}
	n := min(limit, col.Count())
	if n <= 0 {
		return []domain.RetrievedDocument{}, nil
	}

	var where map[string]string
	if collection.Source == domain.SourceWebsite {
		where = map[string]string{metaContentType: domain.ContentTypeWebsiteScraped}
	}
	results, err := col.QueryEmbedding(ctx, queryVector, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query %s: %w", collection.Name, err)
	}

	out := make([]domain.RetrievedDocument, 0, len(results))
	for _, r := range results {
		out = append(out, domain.RetrievedDocument{
			PageContent: r.Content,
			Metadata:    metadataFromMap(r.Metadata),
			Score:       float64(r.Similarity),
		})
	}
	return out, nil
}

func (s *Store) IndexDocuments(ctx context.Context, collection string, docs []domain.RetrievedDocument, vectors [][]float32) error {
	if len(docs) == 0 {
		return nil
	}
	if len(docs) != len(vectors) {
		return fmt.Errorf("documents/vectors mismatch: %d/%d", len(docs), len(vectors))
	}
	col, err := s.db.GetOrCreateCollection(collection, nil, refuseEmbedding)
	if err != nil {
		return fmt.Errorf("open chromem collection %s: %w", collection, err)
	}

	batch := make([]chromemdb.Document, 0, len(docs))
	for i, doc := range docs {
		batch = append(batch, chromemdb.Document{
			ID:        documentID(doc.Metadata),
			Content:   doc.PageContent,
			Metadata:  metadataToMap(doc.Metadata),
			Embedding: vectors[i],
		})
	}
	if err := col.AddDocuments(ctx, batch, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add documents to %s: %w", collection, err)
	}
	return nil
}

func (s *Store) DeleteBySource(ctx context.Context, collection, source string) error {
	col := s.db.GetCollection(collection, refuseEmbedding)
	if col == nil {
		return nil
	}
	if err := col.Delete(ctx, map[string]string{metaSource: source}, nil); err != nil {
		return fmt.Errorf("delete %s from %s: %w", source, collection, err)
	}
	return nil
}

func refuseEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedder
}

func documentID(meta domain.DocumentMetadata) string {
	key := meta.Source + "#" + strconv.Itoa(meta.ChunkIndex)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

func metadataToMap(meta domain.DocumentMetadata) map[string]string {
	m := make(map[string]string, len(meta.Extra)+7)
	for k, v := range meta.Extra {
		m[k] = v
	}
	m[metaSource] = meta.Source
	m[metaChunkIndex] = strconv.Itoa(meta.ChunkIndex)
	putIfNotEmpty(m, metaDomain, meta.Domain)
	putIfNotEmpty(m, metaURL, meta.URL)
	putIfNotEmpty(m, metaTitle, meta.Title)
	putIfNotEmpty(m, metaContentType, meta.ContentType)
	putIfNotEmpty(m, metaSourceAttribution, meta.SourceAttribution)
	return m
}

func metadataFromMap(m map[string]string) domain.DocumentMetadata {
	meta := domain.DocumentMetadata{
		Source:            m[metaSource],
		Domain:            m[metaDomain],
		URL:               m[metaURL],
		Title:             m[metaTitle],
		ContentType:       m[metaContentType],
		SourceAttribution: m[metaSourceAttribution],
	}
	meta.ChunkIndex, _ = strconv.Atoi(m[metaChunkIndex])
	for k, v := range m {
		switch k {
		case metaSource, metaDomain, metaURL, metaTitle, metaContentType, metaSourceAttribution, metaChunkIndex:
			continue
		}
		if meta.Extra == nil {
			meta.Extra = make(map[string]string)
		}
		meta.Extra[k] = v
	}
	return meta
}

func putIfNotEmpty(m map[string]string, key, value string) {
	if value != "" {
		m[key] = value
	}
}
