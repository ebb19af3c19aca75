// Package storage persists documents and chunks and answers
// vector-similarity queries scoped by owner and document type.
package storage

import (
	"context"

	"github.com/warmintro/warmintro/internal/document"
)

// VectorDimension is the embedding size stored for each chunk. Matches
// embedding.Dimension (text-embedding-3-small).
const VectorDimension = 1536

// ChunkStore is the persistence boundary for the ingest and retrieval
// pipelines. A document.Type of "" means no type filter.
type ChunkStore interface {
	// InsertDocument stores a parent document. Parent documents carry
	// no vector; they exist for listing and cascade deletion.
	InsertDocument(ctx context.Context, doc *document.Document) error

	// InsertChunks stores embedded chunks belonging to a document.
	InsertChunks(ctx context.Context, chunks []*document.Chunk) error

	// QuerySimilar returns chunks ordered by descending similarity,
	// excluding results below threshold and truncated to limit.
	QuerySimilar(ctx context.Context, vector []float32, ownerID string, docType document.Type, threshold float64, limit int) ([]document.ScoredChunk, error)

	// ListAll returns up to limit chunks for the owner without a
	// similarity query. Callers assign a synthetic score of 1.0.
	ListAll(ctx context.Context, ownerID string, docType document.Type, limit int) ([]*document.Chunk, error)

	// ListDocuments returns the owner's parent documents.
	ListDocuments(ctx context.Context, ownerID string) ([]*document.Document, error)

	// DeleteDocument removes a document and cascades to its chunks.
	// Returns ErrDocumentNotFound for an unknown document ID.
	DeleteDocument(ctx context.Context, docID string) error

	// Stats reports how many documents and chunks the owner has.
	Stats(ctx context.Context, ownerID string) (docs, chunks int, err error)
}
