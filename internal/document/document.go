// Package document defines the core domain types shared by the ingest
// and retrieval pipelines.
package document

import (
	"errors"
	"time"
)

// ErrValidation marks malformed or missing input. Surfaced to the
// caller immediately, never retried.
var ErrValidation = errors.New("invalid request")

// Type classifies a source document and drives segmentation and
// retrieval policy.
type Type string

const (
	TypeResume          Type = "resume"
	TypePersonalInfo    Type = "personal_info"
	TypeCompanyResearch Type = "company_research"
	TypeJobDescription  Type = "job_description"
	TypeNote            Type = "note"
)

// Valid reports whether t is one of the known document types.
func (t Type) Valid() bool {
	switch t {
	case TypeResume, TypePersonalInfo, TypeCompanyResearch, TypeJobDescription, TypeNote:
		return true
	}
	return false
}

// Document is an owned piece of source material. Documents are immutable
// once chunked; re-ingestion creates a new document.
type Document struct {
	ID        string
	OwnerID   string
	Title     string
	Type      Type
	Content   string
	Metadata  map[string]string
	CreatedAt time.Time
}

// Chunk is a contiguous, semantically bounded excerpt of a Document.
// Ordinals are unique and increasing within a document. Chunks are never
// mutated after creation and are deleted only by cascading deletion of
// the parent document.
type Chunk struct {
	ID            string
	ParentDocID   string
	OwnerID       string
	DocumentType  Type
	DocumentTitle string // denormalized for citations and filtering
	ChunkType     string
	Ordinal       int
	Content       string
	Metadata      map[string]string
	Embedding     []float32
}

// ScoredChunk pairs a Chunk with a similarity score for one query.
// It is transient: constructed per query and discarded after the
// retrieval round completes.
type ScoredChunk struct {
	Chunk *Chunk
	Score float64
}
