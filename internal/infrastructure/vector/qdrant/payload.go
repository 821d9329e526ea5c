package qdrant

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/kirillkom/docs-assistant/internal/core/domain"
	"github.com/kirillkom/docs-assistant/internal/infrastructure/resilience"
)

const (
	payloadText              = "text"
	payloadSource            = "source"
	payloadDomain            = "domain"
	payloadURL               = "url"
	payloadTitle             = "title"
	payloadContentType       = "content_type"
	payloadSourceAttribution = "source_attribution"
	payloadChunkIndex        = "chunk_index"
)

var knownPayloadKeys = map[string]bool{
	payloadText:              true,
	payloadSource:            true,
	payloadDomain:            true,
	payloadURL:               true,
	payloadTitle:             true,
	payloadContentType:       true,
	payloadSourceAttribution: true,
	payloadChunkIndex:        true,
}

func payloadFromDocument(doc domain.RetrievedDocument) map[string]any {
	meta := doc.Metadata
	payload := map[string]any{
		payloadText:        doc.PageContent,
		payloadSource:      meta.Source,
		payloadChunkIndex:  meta.ChunkIndex,
		payloadContentType: meta.ContentType,
	}
	setIfNotEmpty(payload, payloadDomain, meta.Domain)
	setIfNotEmpty(payload, payloadURL, meta.URL)
	setIfNotEmpty(payload, payloadTitle, meta.Title)
	setIfNotEmpty(payload, payloadSourceAttribution, meta.SourceAttribution)
	for k, v := range meta.Extra {
		if !knownPayloadKeys[k] {
			payload[k] = v
		}
	}
	return payload
}

func documentFromPayload(payload map[string]any, score float64) domain.RetrievedDocument {
	meta := domain.DocumentMetadata{
		Source:            getStringPayload(payload, payloadSource),
		Domain:            getStringPayload(payload, payloadDomain),
		URL:               getStringPayload(payload, payloadURL),
		Title:             getStringPayload(payload, payloadTitle),
		ContentType:       getStringPayload(payload, payloadContentType),
		SourceAttribution: getStringPayload(payload, payloadSourceAttribution),
		ChunkIndex:        getIntPayload(payload, payloadChunkIndex),
	}
	for k, v := range payload {
		if knownPayloadKeys[k] {
			continue
		}
		if meta.Extra == nil {
			meta.Extra = make(map[string]string)
		}
		meta.Extra[k] = fmt.Sprintf("%v", v)
	}
	return domain.RetrievedDocument{
		PageContent: getStringPayload(payload, payloadText),
		Metadata:    meta,
		Score:       score,
	}
}

// pointID is stable per source and chunk so re-ingesting a page overwrites it.
func pointID(meta domain.DocumentMetadata) string {
	key := meta.Source + "#" + strconv.Itoa(meta.ChunkIndex)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

func setIfNotEmpty(payload map[string]any, key, value string) {
	if value != "" {
		payload[key] = value
	}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

func isStatus(err error, code int) bool {
	var statusErr *resilience.HTTPStatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
