// Package mcpadapter exposes retrieval and scraping as Model Context Protocol tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/docs-assistant/internal/core/domain"
	"github.com/kirillkom/docs-assistant/internal/core/ports"
)

const (
	serverName    = "docs-assistant"
	serverVersion = "1.0.0"

	ToolRetrieveContent      = "retrieve_content"
	ToolFindTechnicalContent = "find_technical_content"
	ToolScrapeWebpage        = "scrape_webpage"
	ToolGetScrapingTargets   = "get_scraping_targets"
)

type Tools struct {
	retriever ports.ContentRetriever
	scraper   ports.WebScraper
}

func NewTools(retriever ports.ContentRetriever, scraper ports.WebScraper) *Tools {
	return &Tools{retriever: retriever, scraper: scraper}
}

// NewServer registers every tool on a fresh MCP server.
func NewServer(tools *Tools) *server.MCPServer {
	s := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))
	for _, t := range tools.ServerTools() {
		s.AddTool(t.Tool, t.Handler)
	}
	return s
}

// HTTPHandler serves the tools over streamable HTTP at endpointPath.
func HTTPHandler(s *server.MCPServer, endpointPath string) *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s,
		server.WithEndpointPath(endpointPath),
		server.WithStateLess(true),
	)
}

func (t *Tools) ServerTools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool(ToolRetrieveContent,
				mcp.WithDescription("Retrieve documentation context for a question. In rfp mode RFP answers come first, then documentation, then scraped website pages."),
				mcp.WithString("query", mcp.Required(), mcp.Description("The user question or search phrase")),
				mcp.WithString("mode",
					mcp.Description("Retrieval mode"),
					mcp.Enum(string(domain.ModeStandard), string(domain.ModeEPCC), string(domain.ModeEPSM), string(domain.ModeRFP)),
					mcp.DefaultString(string(domain.ModeStandard)),
				),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.retrieveContent,
		},
		{
			Tool: mcp.NewTool(ToolFindTechnicalContent,
				mcp.WithDescription("Search the API reference for endpoints, parameters and schemas."),
				mcp.WithString("query", mcp.Required(), mcp.Description("Technical question or API term")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.findTechnicalContent,
		},
		{
			Tool: mcp.NewTool(ToolScrapeWebpage,
				mcp.WithDescription("Fetch the cleaned text of an allow-listed web page."),
				mcp.WithString("url", mcp.Required(), mcp.Description("Absolute http(s) URL on the scraping whitelist")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.scrapeWebpage,
		},
		{
			Tool: mcp.NewTool(ToolGetScrapingTargets,
				mcp.WithDescription("List the URLs and domains the assistant is allowed to scrape."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.getScrapingTargets,
		},
	}
}

func (t *Tools) retrieveContent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultErrorf("query parameter is required and must be a string: %v", err), nil
	}
	mode := domain.ParseRetrievalMode(request.GetString("mode", string(domain.ModeStandard)))

	docs, err := t.retriever.RetrieveContent(ctx, query, mode)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("failed to retrieve content", err), nil
	}
	return documentsResult(docs)
}

func (t *Tools) findTechnicalContent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultErrorf("query parameter is required and must be a string: %v", err), nil
	}

	docs, err := t.retriever.FindTechnicalContent(ctx, query)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("failed to search the API reference", err), nil
	}
	return documentsResult(docs)
}

func (t *Tools) scrapeWebpage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultErrorf("url parameter is required and must be a string: %v", err), nil
	}

	content, err := t.scraper.Scrape(ctx, rawURL)
	if err != nil {
		slog.Warn("mcp_scrape_failed", "url", rawURL, "error", err)
		if domain.IsKind(err, domain.ErrWhitelist) {
			return mcp.NewToolResultErrorf("%s is not allowed. %s", rawURL, t.scraper.AvailableTargets()), nil
		}
		return mcp.NewToolResultErrorFromErr("failed to scrape page", err), nil
	}
	return jsonResult(content)
}

func (t *Tools) getScrapingTargets(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info := t.scraper.WhitelistInfo()
	return mcp.NewToolResultStructured(info, t.scraper.AvailableTargets()), nil
}

type documentsPayload struct {
	Count     int                        `json:"count"`
	Documents []domain.RetrievedDocument `json:"documents"`
}

func documentsResult(docs []domain.RetrievedDocument) (*mcp.CallToolResult, error) {
	if docs == nil {
		docs = []domain.RetrievedDocument{}
	}
	return jsonResult(documentsPayload{Count: len(docs), Documents: docs})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
