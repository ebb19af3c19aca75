// Package assembly reshapes ranked chunks into a typed context bundle
// with stable, named slots for prompt construction.
package assembly

import "github.com/warmintro/warmintro/internal/document"

// Recognized chunk-type keys per group. Unrecognized keys route to the
// group's default bucket.
var (
	resumeKeys = keySet("summary", "skills", "experience", "education",
		"achievements", "projects", "personal_details")
	personalKeys = keySet("background", "preferences", "goals", "strengths", "values")
	companyKeys  = keySet("overview", "culture", "products", "tech_stack",
		"recent_news", "leadership")
)

const (
	resumeDefault   = "experience"
	personalDefault = "background"
	companyDefault  = "overview"
)

// Bundle groups retrieved chunk content by document-type and
// chunk-type. Built fresh per synthesis request, never persisted.
type Bundle struct {
	Resume   map[string][]string
	Personal map[string][]string
	Company  map[string][]string
	Other    []string

	// Chunks keeps the ranked inputs for source citations.
	Chunks []document.ScoredChunk
}

// Assemble routes each chunk's content into bundle[group][chunkType],
// falling back to the group default bucket for unrecognized chunk
// types. Chunks from document types without a group land in Other.
func Assemble(ranked []document.ScoredChunk) *Bundle {
	b := &Bundle{
		Resume:   make(map[string][]string),
		Personal: make(map[string][]string),
		Company:  make(map[string][]string),
		Chunks:   ranked,
	}

	for _, sc := range ranked {
		chunk := sc.Chunk
		switch chunk.DocumentType {
		case document.TypeResume:
			key := chunk.ChunkType
			if !resumeKeys[key] {
				key = resumeDefault
			}
			b.Resume[key] = append(b.Resume[key], chunk.Content)
		case document.TypePersonalInfo:
			key := chunk.ChunkType
			if !personalKeys[key] {
				key = personalDefault
			}
			b.Personal[key] = append(b.Personal[key], chunk.Content)
		case document.TypeCompanyResearch:
			key := chunk.ChunkType
			if !companyKeys[key] {
				key = companyDefault
			}
			b.Company[key] = append(b.Company[key], chunk.Content)
		default:
			b.Other = append(b.Other, chunk.Content)
		}
	}
	return b
}

// Empty reports whether no content was routed anywhere.
func (b *Bundle) Empty() bool {
	return len(b.Resume) == 0 && len(b.Personal) == 0 &&
		len(b.Company) == 0 && len(b.Other) == 0
}

func keySet(keys ...string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}
