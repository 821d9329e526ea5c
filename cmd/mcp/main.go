package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/docs-assistant/internal/bootstrap"
	"github.com/kirillkom/docs-assistant/internal/config"
	"github.com/kirillkom/docs-assistant/internal/observability/logging"
)

// The stdio transport owns stdout, so logs go to stderr.
func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(os.Stderr, "docs-mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	app, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	logger.Info("mcp_stdio_started", "scraping_enabled", app.Scraper.IsEnabled())
	if err := server.ServeStdio(app.MCP); err != nil {
		logger.Error("mcp_stdio_failed", "error", err)
		os.Exit(1)
	}
}
