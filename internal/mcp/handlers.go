package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/warmintro/warmintro/internal/assembly"
	"github.com/warmintro/warmintro/internal/document"
	"github.com/warmintro/warmintro/internal/ingest"
	"github.com/warmintro/warmintro/internal/retrieval"
	"github.com/warmintro/warmintro/internal/storage"
	"github.com/warmintro/warmintro/internal/synthesis"
)

// makeIngestHandler creates the ingest_document tool handler.
func makeIngestHandler(pipeline *ingest.Pipeline) func(
	context.Context, *mcp.CallToolRequest, IngestDocumentInput,
) (*mcp.CallToolResult, IngestDocumentOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IngestDocumentInput) (
		*mcp.CallToolResult, IngestDocumentOutput, error,
	) {
		result, err := pipeline.Ingest(ctx, ingest.Request{
			OwnerID: input.OwnerID,
			Title:   input.Title,
			Type:    document.Type(input.DocumentType),
			Content: input.Content,
		})
		if err != nil {
			return nil, IngestDocumentOutput{}, fmt.Errorf("ingest failed: %w", err)
		}

		return nil, IngestDocumentOutput{
			DocumentID: result.DocumentID,
			ChunkCount: result.ChunkCount,
		}, nil
	}
}

// makeComposeHandler creates the compose_email tool handler.
// Compose flow:
// 1. Retrieve scoped context (degrades to empty on store failure)
// 2. Assemble the context bundle
// 3. Synthesize the email with citations
func makeComposeHandler(retriever *retrieval.Retriever, orchestrator *synthesis.Orchestrator) func(
	context.Context, *mcp.CallToolRequest, ComposeEmailInput,
) (*mcp.CallToolResult, ComposeEmailOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ComposeEmailInput) (
		*mcp.CallToolResult, ComposeEmailOutput, error,
	) {
		query := retrieval.Query{
			OwnerID:       input.OwnerID,
			Text:          input.Query,
			TargetCompany: input.TargetCompany,
			TargetRole:    input.TargetRole,
			FocusAreas:    input.FocusAreas,
		}

		ranked, err := retriever.Retrieve(ctx, query)
		if err != nil {
			return nil, ComposeEmailOutput{}, fmt.Errorf("retrieval failed: %w", err)
		}

		bundle := assembly.Assemble(ranked)

		result, err := orchestrator.Synthesize(ctx, bundle, synthesis.Request{
			Instruction:   input.Query,
			TargetCompany: input.TargetCompany,
			TargetRole:    input.TargetRole,
			EmailType:     input.EmailType,
		})
		if err != nil {
			return nil, ComposeEmailOutput{}, fmt.Errorf("synthesis failed: %w", err)
		}

		// Zero citations is a success with an empty sources array, not
		// an error.
		sources := result.Sources
		if sources == nil {
			sources = []synthesis.SourceGroup{}
		}
		top := result.TopSources
		if top == nil {
			top = []synthesis.Citation{}
		}

		return nil, ComposeEmailOutput{
			Subject:     result.Subject,
			Body:        result.Body,
			SourcesNote: result.SourcesNote,
			Sources:     sources,
			TopSources:  top,
			Metadata: ComposeMetadata{
				ChunksUsed:  len(ranked),
				SearchQuery: query.SearchString(),
			},
		}, nil
	}
}

// makeListHandler creates the list_documents tool handler.
func makeListHandler(store storage.ChunkStore) func(
	context.Context, *mcp.CallToolRequest, ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListDocumentsInput) (
		*mcp.CallToolResult, ListDocumentsOutput, error,
	) {
		docs, err := store.ListDocuments(ctx, input.OwnerID)
		if err != nil {
			return nil, ListDocumentsOutput{}, fmt.Errorf("failed to list documents: %w", err)
		}

		summaries := make([]DocumentSummary, 0, len(docs))
		for _, doc := range docs {
			summaries = append(summaries, DocumentSummary{
				ID:           doc.ID,
				Title:        doc.Title,
				DocumentType: string(doc.Type),
				CreatedAt:    doc.CreatedAt,
			})
		}

		return nil, ListDocumentsOutput{
			Documents: summaries,
			Count:     len(summaries),
		}, nil
	}
}

// makeDeleteHandler creates the delete_document tool handler. Deletion
// cascades to the document's chunks.
func makeDeleteHandler(store storage.ChunkStore) func(
	context.Context, *mcp.CallToolRequest, DeleteDocumentInput,
) (*mcp.CallToolResult, DeleteDocumentOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input DeleteDocumentInput) (
		*mcp.CallToolResult, DeleteDocumentOutput, error,
	) {
		if err := store.DeleteDocument(ctx, input.DocumentID); err != nil {
			return nil, DeleteDocumentOutput{}, fmt.Errorf("failed to delete document: %w", err)
		}
		return nil, DeleteDocumentOutput{Deleted: true}, nil
	}
}

// makeStatusHandler creates the get_store_status tool handler.
func makeStatusHandler(store storage.ChunkStore) func(
	context.Context, *mcp.CallToolRequest, StoreStatusInput,
) (*mcp.CallToolResult, StoreStatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StoreStatusInput) (
		*mcp.CallToolResult, StoreStatusOutput, error,
	) {
		docs, chunks, err := store.Stats(ctx, input.OwnerID)
		if err != nil {
			return nil, StoreStatusOutput{}, fmt.Errorf("failed to get store status: %w", err)
		}
		return nil, StoreStatusOutput{Documents: docs, Chunks: chunks}, nil
	}
}
