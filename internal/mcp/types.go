// Package mcp exposes the ingest and retrieve-and-synthesize
// entrypoints as MCP tools.
package mcp

import (
	"time"

	"github.com/warmintro/warmintro/internal/synthesis"
)

// IngestDocumentInput defines the input for the ingest_document tool.
type IngestDocumentInput struct {
	// OwnerID scopes the document to one user.
	OwnerID string `json:"owner_id" jsonschema:"required,description=Identifier of the document owner"`
	// Title names the document for citations.
	Title string `json:"title,omitempty" jsonschema:"description=Document title shown in source citations"`
	// DocumentType is one of resume, personal_info, company_research, job_description, note.
	DocumentType string `json:"document_type" jsonschema:"required,description=One of: resume personal_info company_research job_description note"`
	// Content is the raw document text.
	Content string `json:"content" jsonschema:"required,description=Raw text content of the document"`
}

// IngestDocumentOutput reports what ingestion produced.
type IngestDocumentOutput struct {
	DocumentID string `json:"document_id"`
	ChunkCount int    `json:"chunk_count"`
}

// ComposeEmailInput defines the input for the compose_email tool.
type ComposeEmailInput struct {
	OwnerID       string   `json:"owner_id" jsonschema:"required,description=Identifier of the document owner"`
	Query         string   `json:"query,omitempty" jsonschema:"description=Free-text description of what the email should emphasize"`
	TargetCompany string   `json:"target_company,omitempty" jsonschema:"description=Company the email is addressed to"`
	TargetRole    string   `json:"target_role,omitempty" jsonschema:"description=Role being applied or reached out for"`
	FocusAreas    []string `json:"focus_areas,omitempty" jsonschema:"description=Topics to emphasize when retrieving context"`
	EmailType     string   `json:"email_type,omitempty" jsonschema:"description=Kind of email e.g. cold-outreach application follow-up"`
}

// ComposeMetadata describes how the email was grounded.
type ComposeMetadata struct {
	ChunksUsed  int    `json:"chunks_used"`
	SearchQuery string `json:"search_query"`
}

// ComposeEmailOutput is the generated artifact with citations.
type ComposeEmailOutput struct {
	Subject     string                  `json:"subject"`
	Body        string                  `json:"body"`
	SourcesNote string                  `json:"sources_note,omitempty"`
	Sources     []synthesis.SourceGroup `json:"sources"`
	TopSources  []synthesis.Citation    `json:"top_sources"`
	Metadata    ComposeMetadata         `json:"metadata"`
}

// ListDocumentsInput defines the input for the list_documents tool.
type ListDocumentsInput struct {
	OwnerID string `json:"owner_id" jsonschema:"required,description=Identifier of the document owner"`
}

// DocumentSummary is one listed document.
type DocumentSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	DocumentType string    `json:"document_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListDocumentsOutput contains the owner's documents.
type ListDocumentsOutput struct {
	Documents []DocumentSummary `json:"documents"`
	Count     int               `json:"count"`
}

// DeleteDocumentInput defines the input for the delete_document tool.
type DeleteDocumentInput struct {
	DocumentID string `json:"document_id" jsonschema:"required,description=ID of the document to delete with its chunks"`
}

// DeleteDocumentOutput confirms the cascade deletion.
type DeleteDocumentOutput struct {
	Deleted bool `json:"deleted"`
}

// StoreStatusInput defines the input for the get_store_status tool.
type StoreStatusInput struct {
	OwnerID string `json:"owner_id" jsonschema:"required,description=Identifier of the document owner"`
}

// StoreStatusOutput reports per-owner store counts.
type StoreStatusOutput struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}
