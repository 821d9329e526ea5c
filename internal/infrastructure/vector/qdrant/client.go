package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/docs-assistant/internal/core/domain"
	"github.com/kirillkom/docs-assistant/internal/infrastructure/resilience"
)

const serviceName = "qdrant"

// Client serves every logical collection from one Qdrant instance. Each
// collection holds a single named vector (the configured index name).
type Client struct {
	baseURL    string
	vectorName string
	httpClient *http.Client
	exec       *resilience.Executor

	ensureMu sync.Mutex
	ensured  map[string]int
}

func New(baseURL, vectorName string, exec *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		vectorName: vectorName,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		exec:       exec,
		ensured:    make(map[string]int),
	}
}

func (c *Client) Search(
	ctx context.Context,
	collection domain.CollectionSpec,
	queryVector []float32,
	limit int,
) ([]domain.RetrievedDocument, error) {
	reqBody := map[string]any{
		"vector":       c.queryVector(collection, queryVector),
		"limit":        limit,
		"with_payload": true,
	}
	if collection.Source == domain.SourceWebsite {
		reqBody["filter"] = matchFilter(payloadContentType, domain.ContentTypeWebsiteScraped)
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(collection.Name))
	if err := c.do(ctx, "vector.search."+collection.Name, http.MethodPost, path, reqBody, &searchResp); err != nil {
		return nil, err
	}

	out := make([]domain.RetrievedDocument, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, documentFromPayload(r.Payload, r.Score))
	}
	return out, nil
}

func (c *Client) IndexDocuments(ctx context.Context, collection string, docs []domain.RetrievedDocument, vectors [][]float32) error {
	if len(docs) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(docs) != len(vectors) {
		return fmt.Errorf("documents/vectors mismatch: %d/%d", len(docs), len(vectors))
	}
	if err := c.ensureCollection(ctx, collection, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string               `json:"id"`
		Vector  map[string][]float32 `json:"vector"`
		Payload map[string]any       `json:"payload"`
	}
	points := make([]point, 0, len(docs))
	for i, doc := range docs {
		points = append(points, point{
			ID:      pointID(doc.Metadata),
			Vector:  map[string][]float32{c.vectorName: vectors[i]},
			Payload: payloadFromDocument(doc),
		})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", url.PathEscape(collection))
	return c.do(ctx, "vector.upsert."+collection, http.MethodPut, path, map[string]any{"points": points}, nil)
}

// DeleteBySource removes every point whose payload source matches. A missing
// collection counts as already empty.
func (c *Client) DeleteBySource(ctx context.Context, collection, source string) error {
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", url.PathEscape(collection))
	body := map[string]any{"filter": matchFilter(payloadSource, source)}

	err := c.do(ctx, "vector.delete."+collection, http.MethodPost, path, body, nil)
	if isStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

func (c *Client) queryVector(collection domain.CollectionSpec, vector []float32) map[string]any {
	name := collection.IndexName
	if name == "" {
		name = c.vectorName
	}
	return map[string]any{"name": name, "vector": vector}
}

func (c *Client) ensureCollection(ctx context.Context, collection string, vectorSize int) error {
	c.ensureMu.Lock()
	if size, ok := c.ensured[collection]; ok && size == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	body := map[string]any{
		"vectors": map[string]any{
			c.vectorName: map[string]any{
				"size":     vectorSize,
				"distance": "Cosine",
			},
		},
	}
	path := fmt.Sprintf("/collections/%s", url.PathEscape(collection))
	err := c.do(ctx, "vector.ensure."+collection, http.MethodPut, path, body, nil)
	// 409 when the collection already exists on some server versions.
	if err != nil && !isStatus(err, http.StatusConflict) {
		return err
	}

	c.ensureMu.Lock()
	c.ensured[collection] = vectorSize
	c.ensureMu.Unlock()
	return nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	err = c.exec.Execute(ctx, operation, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return resilience.NewHTTPStatusError(serviceName, operation, resp)
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}, resilience.ClassifyHTTPError)
	return resilience.WrapTemporary(operation, err)
}

func matchFilter(key, value string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{
				"key":   key,
				"match": map[string]any{"value": value},
			},
		},
	}
}
