// Package mcp exposes the assistant as Model Context Protocol tools so
// external agents can index, query and scaffold projects.
package mcp

import (
	"context"
	"log/slog"

	"github.com/arturoeanton/go-codebase-assistant/internal/service"
	"github.com/mark3labs/mcp-go/server"
)

// Version is reported to MCP clients.
const Version = "2.0.0"

// Server serves the tools over streamable HTTP.
type Server struct {
	mcp  *server.MCPServer
	http *server.StreamableHTTPServer
	port string
}

// NewServer registers every tool on a new MCP server.
func NewServer(indexer *service.Indexer, assistant *service.Assistant, generator *service.Generator, port string) *Server {
	s := server.NewMCPServer(
		"codebase-assistant",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	indexTool := NewIndexTool(indexer)
	s.AddTool(indexTool.Definition(), indexTool.Handle)

	statusTool := NewStatusTool(indexer)
	s.AddTool(statusTool.Definition(), statusTool.Handle)

	clearTool := NewClearTool(indexer)
	s.AddTool(clearTool.Definition(), clearTool.Handle)

	queryTool := NewQueryTool(assistant)
	s.AddTool(queryTool.Definition(), queryTool.Handle)

	generateTool := NewGenerateTool(generator)
	s.AddTool(generateTool.Definition(), generateTool.Handle)

	return &Server{mcp: s, http: server.NewStreamableHTTPServer(s), port: port}
}

// Start listens on the configured port and blocks.
func (s *Server) Start() error {
	slog.Info("MCP server starting", "port", s.port)
	return s.http.Start(":" + s.port)
}

// Shutdown stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
