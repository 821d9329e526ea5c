package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/docs-assistant/internal/adapters/http"
	mcpadapter "github.com/kirillkom/docs-assistant/internal/adapters/mcp"
	"github.com/kirillkom/docs-assistant/internal/bootstrap"
	"github.com/kirillkom/docs-assistant/internal/config"
	"github.com/kirillkom/docs-assistant/internal/observability/logging"
	"github.com/kirillkom/docs-assistant/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup("docs-api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Ingestion:         true,
		RetrievalObserver: httpMetrics,
		ScrapeObserver:    httpMetrics,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Retriever: app.Retriever,
		Chat:      app.Chat,
		Scraper:   app.Scraper,
		Ingestor:  app.Ingest,
		Pages:     app.Pages,
		Synonyms:  app.Synonyms,
		Metrics:   httpMetrics,
		MCP:       mcpadapter.HTTPHandler(app.MCP, "/mcp"),
	}).Handler()
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort, "vector_backend", cfg.VectorBackend, "scraping_enabled", app.Scraper.IsEnabled())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
