package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/warmintro/warmintro/internal/ingest"
	"github.com/warmintro/warmintro/internal/retrieval"
	"github.com/warmintro/warmintro/internal/storage"
	"github.com/warmintro/warmintro/internal/synthesis"
)

// Server wraps the MCP server with its dependencies.
type Server struct {
	server *mcp.Server
}

// Config holds server dependencies.
type Config struct {
	Store        storage.ChunkStore
	Pipeline     *ingest.Pipeline
	Retriever    *retrieval.Retriever
	Orchestrator *synthesis.Orchestrator
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	impl := &mcp.Implementation{
		Name:    "warmintro-server",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest_document",
		Description: "Ingest a document (resume, personal notes, company research, job description) so future emails can be grounded in it. Returns the document ID and chunk count.",
	}, makeIngestHandler(cfg.Pipeline))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "compose_email",
		Description: "Compose a personalized outreach email grounded in the owner's ingested documents. Returns subject, body, and source citations.",
	}, makeComposeHandler(cfg.Retriever, cfg.Orchestrator))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List the owner's ingested documents with their types and titles.",
	}, makeListHandler(cfg.Store))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_document",
		Description: "Delete a document and all of its chunks.",
	}, makeDeleteHandler(cfg.Store))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_store_status",
		Description: "Get document and chunk counts for an owner.",
	}, makeStatusHandler(cfg.Store))

	return &Server{server: server}
}

// Run starts the server with stdio transport (blocks until the client
// disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance for transport
// handlers that need to wrap it.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
