// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Fable tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ellsworth/fable/internal/docservice"
)

// Server wraps the MCP server with Fable tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
}

// New creates a new MCP server with all Fable tools registered.
func New(svc *docservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Fable",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read a chapter or wiki page, including its body."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("list_chapters",
		mcp.WithDescription("List a project's chapters in manuscript order."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project id")),
	), s.listChapters)

	s.mcp.AddTool(mcp.NewTool("list_wiki_pages",
		mcp.WithDescription("List a project's wiki pages ordered by title."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project id")),
	), s.listWikiPages)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all documents whose bodies link to the specified document."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_mentions",
		mcp.WithDescription("Find all chapters that mention the specified wiki page."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Wiki page id")),
	), s.getMentions)

	s.mcp.AddTool(mcp.NewTool("create_wiki_page",
		mcp.WithDescription("Create a wiki page. Body text may cross-reference other "+
			"documents with [[Title]] links; read the page format via the "+
			"fable://page-format resource first."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project id")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Page title")),
		mcp.WithString("content", mcp.Description("Initial body content")),
	), s.createWikiPage)

	s.mcp.AddTool(mcp.NewTool("get_page_contract",
		mcp.WithDescription("Returns the canonical Fable page format contract. "+
			"Call this before creating wiki pages to ensure correct link markup."),
	), s.getPageContract)

	// Resource: page format contract.
	s.mcp.AddResource(
		mcp.NewResource("fable://page-format", "Page Format Contract",
			mcp.WithResourceDescription("Canonical document format, including [[Title]] link markup."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPageFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.GetDocument(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(doc, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listChapters(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := req.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	docs, err := s.svc.ListChapters(ctx, projectID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var lines []string
	for _, d := range docs {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%d words", d.ID, d.Title, d.WordCount))
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no chapters"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) listWikiPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := req.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	docs, err := s.svc.ListWikiPages(ctx, projectID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var lines []string
	for _, d := range docs {
		lines = append(lines, fmt.Sprintf("%s\t%s\t[%s]", d.ID, d.Title, strings.Join(d.Tags, ", ")))
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no wiki pages"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.svc.Backlinks(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	out, _ := json.MarshalIndent(bl, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getMentions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ms, err := s.svc.Mentions(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(ms) == 0 {
		return mcp.NewToolResultText("no mentions found"), nil
	}
	out, _ := json.MarshalIndent(ms, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createWikiPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := req.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	doc, err := s.svc.CreateWikiPage(ctx, projectID, title, nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if content, cErr := req.RequireString("content"); cErr == nil && content != "" {
		if _, sErr := s.svc.SaveDocument(ctx, doc.ID, content); sErr != nil {
			return mcp.NewToolResultError(sErr.Error()), nil
		}
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%s)", doc.ID, doc.Slug)), nil
}

func (s *Server) getPageContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PageFormatContract), nil
}

func (s *Server) readPageFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "fable://page-format",
			MIMEType: "text/markdown",
			Text:     PageFormatContract,
		},
	}, nil
}
