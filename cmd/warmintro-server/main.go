// Package main provides the warmintro MCP server entry point.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/warmintro/warmintro/internal/config"
	"github.com/warmintro/warmintro/internal/embedding"
	"github.com/warmintro/warmintro/internal/ingest"
	mcpserver "github.com/warmintro/warmintro/internal/mcp"
	"github.com/warmintro/warmintro/internal/retrieval"
	"github.com/warmintro/warmintro/internal/segment"
	"github.com/warmintro/warmintro/internal/storage"
	"github.com/warmintro/warmintro/internal/synthesis"
)

func main() {
	// Load .env if present (local development), ignore if missing
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Cancel on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	store, err := storage.NewQdrantStore(cfg.Qdrant.Host, cfg.Qdrant.Port)
	if err != nil {
		log.Fatalf("failed to connect to Qdrant: %v", err)
	}
	defer store.Close()

	if err := store.EnsureCollection(ctx); err != nil {
		log.Fatalf("failed to ensure collection: %v", err)
	}

	client, err := embedding.NewClient()
	if err != nil {
		log.Fatalf("failed to create OpenAI client: %v", err)
	}
	embedder := embedding.NewEmbedder(client, cfg.OpenAI.EmbeddingBatchSize)

	logger := slog.Default()
	segmenter := segment.New()
	pipeline := ingest.NewPipeline(segmenter, embedder, store, logger)
	retriever := retrieval.New(store, embedder, logger)
	generator := synthesis.NewOpenAIGenerator(client.Client(), cfg.OpenAI.GenerationModel)
	orchestrator := synthesis.NewOrchestrator(generator, logger)

	server := mcpserver.NewServer(&mcpserver.Config{
		Store:        store,
		Pipeline:     pipeline,
		Retriever:    retriever,
		Orchestrator: orchestrator,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/", mcpserver.NewLandingHandler())
	mux.HandleFunc("/health", mcpserver.NewHealthHandler(store))
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(server, nil))

	addr := "0.0.0.0:" + cfg.Server.Port

	if cfg.Server.HTTPMode {
		// HTTP mode: serve MCP over HTTP for remote clients
		log.Printf("Starting HTTP server on %s (MCP at /mcp, health at /health)", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
		return
	}

	// Stdio mode: MCP over stdin/stdout with the health endpoint in the
	// background for local testing
	go func() {
		log.Printf("Starting health server on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("Health server error: %v", err)
		}
	}()

	log.Println("Starting warmintro MCP server (stdio mode)...")
	if err := server.Run(ctx); err != nil {
		log.Printf("server error: %v", err)
		os.Exit(1)
	}
}
