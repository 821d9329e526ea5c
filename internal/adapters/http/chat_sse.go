package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/kirillkom/docs-assistant/internal/core/domain"
	"github.com/kirillkom/docs-assistant/internal/core/usecase"
)

type chatChunk struct {
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

type chatSources struct {
	Sources []chatSource `json:"sources"`
}

type chatSource struct {
	Collection domain.SourceCollection `json:"collection,omitempty"`
	Title      string                  `json:"title,omitempty"`
	Link       string                  `json:"link"`
}

// chat streams the answer as SSE: one optional sources event, one event per
// delta, then "data: [DONE]".
func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req domain.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	stream, err := rt.services.Chat.StreamAnswer(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming is not supported by response writer"})
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if len(stream.Sources) > 0 {
		if err := writeSSE(w, sourcesEvent(stream.Sources)); err != nil {
			return
		}
		flusher.Flush()
	}

	for delta := range stream.Deltas {
		if err := writeSSE(w, chatChunk{Content: delta}); err != nil {
			slog.Warn("chat_client_gone", "request_id", requestIDFromContext(r.Context()), "error", err)
			return
		}
		flusher.Flush()
	}
	if err := <-stream.Err; err != nil {
		slog.Error("chat_stream_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		_ = writeSSE(w, chatChunk{Error: "answer generation failed"})
	}

	_, _ = io.WriteString(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func sourcesEvent(docs []domain.RetrievedDocument) chatSources {
	out := chatSources{Sources: make([]chatSource, 0, len(docs))}
	for _, doc := range docs {
		out.Sources = append(out.Sources, chatSource{
			Collection: doc.Metadata.SourceCollection,
			Title:      doc.Metadata.Title,
			Link:       usecase.DocumentLink(doc.Metadata),
		})
	}
	return out
}

func writeSSE(w io.Writer, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
