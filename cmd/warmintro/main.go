// Package main provides the warmintro CLI for document ingestion and
// email composition.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/warmintro/warmintro/internal/assembly"
	"github.com/warmintro/warmintro/internal/document"
	"github.com/warmintro/warmintro/internal/embedding"
	ghclient "github.com/warmintro/warmintro/internal/github"
	"github.com/warmintro/warmintro/internal/ingest"
	"github.com/warmintro/warmintro/internal/retrieval"
	"github.com/warmintro/warmintro/internal/segment"
	"github.com/warmintro/warmintro/internal/storage"
	"github.com/warmintro/warmintro/internal/synthesis"
)

var (
	flagOwner   string
	flagType    string
	flagTitle   string
	flagCompany string
	flagRole    string
	flagFocus   []string
	flagPath    string
)

var rootCmd = &cobra.Command{
	Use:   "warmintro",
	Short: "Personalized job outreach grounded in your own documents",
	Long:  "CLI for ingesting documents and composing outreach emails backed by Qdrant",
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest a local document file",
	Long: `Segments, embeds, and stores one document.

The document type controls how content is segmented:
  resume           section-aware splitting (skills, experience, ...)
  personal_info    classified into background/preferences/goals/strengths/values
  company_research paragraph splitting with topic classification
  job_description  paragraph splitting
  note             markdown-aware or generic splitting

Environment variables:
  QDRANT_HOST    Qdrant hostname (default: localhost)
  QDRANT_PORT    Qdrant gRPC port (default: 6334)
  OPENAI_API_KEY OpenAI API key for embeddings (required)`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var importCmd = &cobra.Command{
	Use:   "ingest-github <owner/repo>",
	Short: "Import a document folder from a GitHub repository",
	Long: `Recursively imports .md and .txt files from a repository.

Document types are inferred from the top-level directory of each file:
resume/, personal/, companies/, jobs/, notes/. Files elsewhere import
as notes.

Set GITHUB_TOKEN for private repositories and higher rate limits.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var composeCmd = &cobra.Command{
	Use:   "compose <instruction>",
	Short: "Compose an outreach email from ingested documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompose,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show document and chunk counts for an owner",
	RunE:  runStatus,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagOwner, "owner", "", "owner ID the documents belong to (required)")
	rootCmd.MarkPersistentFlagRequired("owner")

	ingestCmd.Flags().StringVar(&flagType, "type", "note", "document type (resume, personal_info, company_research, job_description, note)")
	ingestCmd.Flags().StringVar(&flagTitle, "title", "", "document title (defaults to the file name)")

	importCmd.Flags().StringVar(&flagPath, "path", "", "repository subdirectory to import from (default: repository root)")

	composeCmd.Flags().StringVar(&flagCompany, "company", "", "target company name")
	composeCmd.Flags().StringVar(&flagRole, "role", "", "target role")
	composeCmd.Flags().StringSliceVar(&flagFocus, "focus", nil, "focus areas to emphasize")

	rootCmd.AddCommand(ingestCmd, importCmd, composeCmd, statusCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	docType := document.Type(flagType)
	if !docType.Valid() {
		return fmt.Errorf("unknown document type %q", flagType)
	}

	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	title := flagTitle
	if title == "" {
		name := filepath.Base(args[0])
		title = strings.TrimSuffix(name, filepath.Ext(name))
	}

	pipeline, store, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := pipeline.Ingest(ctx, ingest.Request{
		OwnerID: flagOwner,
		Title:   title,
		Type:    docType,
		Content: string(content),
	})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Printf("Ingested %q as %s\n", title, docType)
	fmt.Printf("  Document ID: %s\n", result.DocumentID)
	fmt.Printf("  Chunks: %d\n", result.ChunkCount)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()

	parts := strings.SplitN(args[0], "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("repository must be in owner/repo form, got %q", args[0])
	}

	pipeline, store, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	gh, err := ghclient.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create GitHub client: %w", err)
	}
	fetcher := ghclient.NewFetcher(gh, parts[0], parts[1], flagPath)

	fmt.Printf("Listing files in %s...\n", args[0])
	files, err := fetcher.ListFiles(ctx)
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}
	fmt.Printf("Found %d files\n\n", len(files))

	var succeeded, chunks int
	var failed []string
	for _, relPath := range files {
		fetched, err := fetcher.FetchFile(ctx, relPath)
		if err != nil {
			fmt.Printf("  FAIL %s: %v\n", relPath, err)
			failed = append(failed, relPath)
			continue
		}

		result, err := pipeline.Ingest(ctx, ingest.Request{
			OwnerID: flagOwner,
			Title:   fetched.Title,
			Type:    fetched.Type,
			Content: fetched.Content,
			Metadata: map[string]string{
				"source": "github:" + args[0] + "/" + relPath,
			},
		})
		if err != nil {
			fmt.Printf("  FAIL %s: %v\n", relPath, err)
			failed = append(failed, relPath)
			continue
		}

		fmt.Printf("  OK   %s (%s, %d chunks)\n", relPath, fetched.Type, result.ChunkCount)
		succeeded++
		chunks += result.ChunkCount
	}

	fmt.Println()
	fmt.Printf("Imported %d/%d files, %d chunks, in %s\n",
		succeeded, len(files), chunks, time.Since(start).Round(time.Second))
	if len(failed) > 0 {
		fmt.Printf("Failed: %s\n", strings.Join(failed, ", "))
	}
	return nil
}

func runCompose(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, client, embedder, err := buildCore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	logger := slog.Default()
	retriever := retrieval.New(store, embedder, logger)
	generator := synthesis.NewOpenAIGenerator(client.Client(), "")
	orchestrator := synthesis.NewOrchestrator(generator, logger)

	ranked, err := retriever.Retrieve(ctx, retrieval.Query{
		OwnerID:       flagOwner,
		Text:          args[0],
		TargetCompany: flagCompany,
		TargetRole:    flagRole,
		FocusAreas:    flagFocus,
	})
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	bundle := assembly.Assemble(ranked)
	result, err := orchestrator.Synthesize(ctx, bundle, synthesis.Request{
		Instruction:   args[0],
		TargetCompany: flagCompany,
		TargetRole:    flagRole,
	})
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}

	fmt.Printf("Subject: %s\n\n%s\n", result.Subject, result.Body)
	if result.SourcesNote != "" {
		fmt.Printf("\nSources: %s\n", result.SourcesNote)
	}
	for _, src := range result.TopSources {
		fmt.Printf("  - %s [%s/%s] %d%%\n",
			src.DocumentTitle, src.DocumentType, src.ChunkType, src.SimilarityPercent)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := connectStore()
	if err != nil {
		return err
	}
	defer store.Close()

	docs, chunks, err := store.Stats(ctx, flagOwner)
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}
	fmt.Printf("Owner %s: %d documents, %d chunks\n", flagOwner, docs, chunks)

	list, err := store.ListDocuments(ctx, flagOwner)
	if err != nil {
		return fmt.Errorf("list documents failed: %w", err)
	}
	for _, doc := range list {
		fmt.Printf("  %s  %-16s %s\n", doc.ID, doc.Type, doc.Title)
	}
	return nil
}

func connectStore() (*storage.QdrantStore, error) {
	host := getEnv("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)

	store, err := storage.NewQdrantStore(host, port)
	if err != nil {
		return nil, fmt.Errorf("connect to Qdrant at %s:%d: %w", host, port, err)
	}
	return store, nil
}

func buildCore(ctx context.Context) (*storage.QdrantStore, *embedding.Client, *embedding.Embedder, error) {
	store, err := connectStore()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := store.EnsureCollection(ctx); err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("ensure collection: %w", err)
	}

	client, err := embedding.NewClient()
	if err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("create OpenAI client: %w", err)
	}
	embedder := embedding.NewEmbedder(client, 0) // default batch size

	return store, client, embedder, nil
}

func buildPipeline(ctx context.Context) (*ingest.Pipeline, *storage.QdrantStore, error) {
	store, _, embedder, err := buildCore(ctx)
	if err != nil {
		return nil, nil, err
	}
	pipeline := ingest.NewPipeline(segment.New(), embedder, store, slog.Default())
	return pipeline, store, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}
