// Package ingest drives the document ingestion path: validate, segment,
// embed, persist. Ingestion failures are fatal to that document; the
// caller re-submits.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/warmintro/warmintro/internal/document"
	"github.com/warmintro/warmintro/internal/embedding"
	"github.com/warmintro/warmintro/internal/segment"
	"github.com/warmintro/warmintro/internal/storage"
)

// Request is the ingest entrypoint input.
type Request struct {
	OwnerID  string
	Title    string
	Type     document.Type
	Content  string
	Metadata map[string]string
}

// Result reports what ingestion produced.
type Result struct {
	DocumentID string
	ChunkCount int
}

// Embedder is the slice of the embedding client the pipeline needs.
// Satisfied by *embedding.Embedder.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

var _ Embedder = (*embedding.Embedder)(nil)

// Pipeline wires the segmenter, embedder, and chunk store.
type Pipeline struct {
	segmenter *segment.Segmenter
	embedder  Embedder
	store     storage.ChunkStore
	logger    *slog.Logger
}

// NewPipeline creates an ingest pipeline.
func NewPipeline(segmenter *segment.Segmenter, embedder Embedder, store storage.ChunkStore, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		segmenter: segmenter,
		embedder:  embedder,
		store:     store,
		logger:    logger,
	}
}

// Ingest segments, embeds, and stores one document. Documents are
// immutable once chunked: re-ingestion creates a new document rather
// than mutating chunks in place.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, fmt.Errorf("%w: owner id is required", document.ErrValidation)
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", document.ErrValidation)
	}
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown document type %q", document.ErrValidation, req.Type)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Untitled"
	}

	pieces := p.segmenter.Segment(req.Content, req.Type)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("%w: content produced no chunks", document.ErrValidation)
	}
	p.logger.Debug("segmented document", "title", title, "type", string(req.Type), "pieces", len(pieces))

	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		texts[i] = piece.Content
	}
	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	doc := &document.Document{
		ID:        uuid.New().String(),
		OwnerID:   req.OwnerID,
		Title:     title,
		Type:      req.Type,
		Content:   req.Content,
		Metadata:  req.Metadata,
		CreatedAt: time.Now(),
	}
	if err := p.store.InsertDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	chunks := make([]*document.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = &document.Chunk{
			ID:            uuid.New().String(),
			ParentDocID:   doc.ID,
			OwnerID:       doc.OwnerID,
			DocumentType:  doc.Type,
			DocumentTitle: doc.Title,
			ChunkType:     piece.ChunkType,
			Ordinal:       i,
			Content:       piece.Content,
			Metadata:      piece.Metadata,
			Embedding:     vectors[i],
		}
	}
	if err := p.store.InsertChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("store chunks: %w", err)
	}

	p.logger.Info("ingested document",
		"document_id", doc.ID,
		"owner", doc.OwnerID,
		"type", string(doc.Type),
		"chunks", len(chunks),
	)
	return &Result{DocumentID: doc.ID, ChunkCount: len(chunks)}, nil
}
