package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/docs-assistant/internal/core/domain"
	"github.com/kirillkom/docs-assistant/internal/core/ports"
)

const (
	insufficientContextReply = "Sorry, I don't know."
	defaultRetrievalTimeout  = 45 * time.Second
)

// ChatUseCase grounds an answer on retrieved context and streams it back.
type ChatUseCase struct {
	retriever ports.ContentRetriever
	streamer  ports.AnswerStreamer
	scraper   ports.WebScraper
	// Bounds collection lookups only; the streamed generation runs on the
	// caller's context.
	retrievalTimeout time.Duration
}

func NewChatUseCase(retriever ports.ContentRetriever, streamer ports.AnswerStreamer, scraper ports.WebScraper, retrievalTimeout time.Duration) *ChatUseCase {
	if retrievalTimeout <= 0 {
		retrievalTimeout = defaultRetrievalTimeout
	}
	return &ChatUseCase{
		retriever:        retriever,
		streamer:         streamer,
		scraper:          scraper,
		retrievalTimeout: retrievalTimeout,
	}
}

func (uc *ChatUseCase) StreamAnswer(ctx context.Context, req domain.ChatRequest) (*domain.AnswerStream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	question := req.LastUserMessage()
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "stream answer", errors.New("a user message is required"))
	}
	mode := domain.ParseRetrievalMode(req.Mode)

	sources, err := uc.retrieve(ctx, question, mode)
	if err != nil {
		return nil, err
	}

	if len(sources) == 0 {
		slog.Info("chat_insufficient_context", "mode", string(mode))
		return staticAnswer(insufficientContextReply), nil
	}

	targets := ""
	if uc.scraper != nil {
		targets = uc.scraper.AvailableTargets()
	}
	prompt := buildChatPrompt(mode, req.Messages, question, sources, targets)
	deltas, errs := uc.streamer.StreamFromPrompt(ctx, prompt)
	return &domain.AnswerStream{
		Sources: sources,
		Deltas:  deltas,
		Err:     errs,
	}, nil
}

func (uc *ChatUseCase) retrieve(ctx context.Context, question string, mode domain.RetrievalMode) ([]domain.RetrievedDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.retrievalTimeout)
	defer cancel()

	sources, err := uc.retriever.RetrieveContent(ctx, question, mode)
	if err != nil {
		return nil, fmt.Errorf("retrieve content: %w", err)
	}
	if mode == domain.ModeStandard || mode == domain.ModeEPCC {
		sources = uc.appendTechnical(ctx, question, sources)
	}
	return sources, nil
}

func (uc *ChatUseCase) appendTechnical(ctx context.Context, question string, sources []domain.RetrievedDocument) []domain.RetrievedDocument {
	technical, err := uc.retriever.FindTechnicalContent(ctx, question)
	if err != nil {
		slog.Warn("technical_lookup_failed", "error", err)
		return sources
	}
	acc := newContextAccumulator(maxContextDocs)
	acc.add(sources)
	acc.add(technical)
	return acc.items
}

func staticAnswer(text string) *domain.AnswerStream {
	deltas := make(chan string, 1)
	errs := make(chan error)
	deltas <- text
	close(deltas)
	close(errs)
	return &domain.AnswerStream{
		Sources: []domain.RetrievedDocument{},
		Deltas:  deltas,
		Err:     errs,
	}
}
