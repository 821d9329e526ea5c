package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/docs-assistant/internal/adapters/mcp"
	"github.com/kirillkom/docs-assistant/internal/config"
	"github.com/kirillkom/docs-assistant/internal/core/domain"
	"github.com/kirillkom/docs-assistant/internal/core/ports"
	"github.com/kirillkom/docs-assistant/internal/core/synonym"
	"github.com/kirillkom/docs-assistant/internal/core/usecase"
	"github.com/kirillkom/docs-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/docs-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/docs-assistant/internal/infrastructure/llm/openai"
	"github.com/kirillkom/docs-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/docs-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/docs-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/docs-assistant/internal/infrastructure/scraper/web"
	"github.com/kirillkom/docs-assistant/internal/infrastructure/vector/chromem"
	"github.com/kirillkom/docs-assistant/internal/infrastructure/vector/qdrant"
)

const (
	VectorBackendQdrant  = "qdrant"
	VectorBackendChromem = "chromem"
)

// Options select the optional parts of the graph. Ingestion opens Postgres
// and NATS; without it only retrieval, chat and scraping are wired.
type Options struct {
	Ingestion         bool
	RetrievalObserver ports.RetrievalObserver
	ScrapeObserver    web.Observer
}

type vectorStore interface {
	ports.VectorSearcher
	ports.VectorIndexer
}

type App struct {
	Config config.Config

	Synonyms  *synonym.Expander
	Whitelist *web.Whitelist
	Scraper   *web.Scraper
	Retriever *usecase.RetrievalUseCase
	Chat      *usecase.ChatUseCase
	MCP       *server.MCPServer

	// Set only when Options.Ingestion is true.
	Queue  *nats.Queue
	Pages  *postgres.WebsitePageRepository
	Ingest *usecase.WebsiteIngestUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	exec := resilience.NewExecutor(resilienceConfig(cfg))

	expander, err := newSynonymExpander(cfg.SynonymsPath)
	if err != nil {
		return nil, fmt.Errorf("init synonym expander: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, exec)
	embedder, err := newEmbedder(cfg, ollamaClient, exec)
	if err != nil {
		return nil, err
	}
	store, err := newVectorStore(cfg, exec)
	if err != nil {
		return nil, err
	}

	whitelist := web.NewWhitelist(cfg.AllowedScrapeURLs, cfg.AllowedScrapeDomains)
	for _, werr := range whitelist.Validate() {
		slog.Warn("scrape_whitelist_invalid", "error", werr)
	}
	scraper := web.New(whitelist, web.Options{Observer: opts.ScrapeObserver})

	collection := func(name string, source domain.SourceCollection) usecase.CollectionSearcher {
		spec := domain.CollectionSpec{Name: name, IndexName: cfg.VectorIndexName, Source: source}
		return usecase.NewCollectionRetriever(spec, embedder, store)
	}
	retrievalOpts := usecase.RetrievalOptions{Observer: opts.RetrievalObserver}
	if cfg.RAGScrapeFallback {
		retrievalOpts.FallbackScraper = scraper
	}
	retriever := usecase.NewRetrievalUseCase(
		expander,
		usecase.NewWebsiteContentClassifier(),
		usecase.CollectionRetrievers{
			Documentation: collection(cfg.CollectionDocs, domain.SourceDocumentation),
			APIReference:  collection(cfg.CollectionAPI, domain.SourceAPIDocumentation),
			RFP:           collection(cfg.CollectionRFP, domain.SourceRFP),
			Website:       collection(cfg.CollectionWebsite, domain.SourceWebsite),
			EPCC:          collection(cfg.CollectionEPCC, domain.SourceEPCC),
			EPSM:          collection(cfg.CollectionEPSM, domain.SourceEPSM),
		},
		retrievalOpts,
	)
	chat := usecase.NewChatUseCase(retriever, ollama.NewStreamer(ollamaClient), scraper, cfg.RequestTimeout())
	mcpServer := mcpadapter.NewServer(mcpadapter.NewTools(retriever, scraper))

	app := &App{
		Config:    cfg,
		Synonyms:  expander,
		Whitelist: whitelist,
		Scraper:   scraper,
		Retriever: retriever,
		Chat:      chat,
		MCP:       mcpServer,
	}
	if !opts.Ingestion {
		return app, nil
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: exec,
		Logger:             slog.Default(),
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init scrape queue: %w", err)
	}

	app.Queue = queue
	app.Pages = postgres.NewWebsitePageRepository(db)
	app.Ingest = usecase.NewWebsiteIngestUseCase(
		scraper,
		chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder,
		store,
		app.Pages,
		queue,
		cfg.CollectionWebsite,
	)
	app.closeFn = closeAll(queue, db)
	return app, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func closeAll(queue *nats.Queue, db *sql.DB) func() {
	return func() {
		queue.Close()
		_ = db.Close()
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	rc.RetryInitialBackoff = cfg.ResilienceRetryInitialBackoff
	rc.RetryMaxBackoff = cfg.ResilienceRetryMaxBackoff
	rc.BreakerEnabled = cfg.ResilienceBreakerEnabled
	if cfg.ResilienceBreakerMinRequests > 0 {
		rc.BreakerMinRequests = uint32(cfg.ResilienceBreakerMinRequests)
	}
	rc.BreakerFailureRatio = cfg.ResilienceBreakerFailureRatio
	rc.BreakerOpenTimeout = cfg.ResilienceBreakerOpenTimeout
	return rc
}

func newSynonymExpander(path string) (*synonym.Expander, error) {
	if path == "" {
		return synonym.NewDefaultExpander()
	}
	groups, err := synonym.LoadGroups(path)
	if err != nil {
		return nil, err
	}
	return synonym.NewExpander(groups), nil
}

func newEmbedder(cfg config.Config, client *ollama.Client, exec *resilience.Executor) (ports.Embedder, error) {
	switch cfg.EmbeddingsProvider {
	case "", "ollama":
		return ollama.NewEmbedder(client), nil
	case "openai":
		return openai.NewEmbedder(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIEmbedModel, exec), nil
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", cfg.EmbeddingsProvider)
	}
}

func newVectorStore(cfg config.Config, exec *resilience.Executor) (vectorStore, error) {
	switch cfg.VectorBackend {
	case "", VectorBackendQdrant:
		return qdrant.New(cfg.QdrantURL, cfg.VectorIndexName, exec), nil
	case VectorBackendChromem:
		store, err := chromem.New(cfg.ChromemPath)
		if err != nil {
			return nil, fmt.Errorf("open chromem store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}
