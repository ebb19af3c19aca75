package storage

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/warmintro/warmintro/internal/document"
)

// MemoryStore is a brute-force in-memory ChunkStore using cosine
// similarity. It backs unit tests and a no-Qdrant development mode.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string]*document.Document
	chunks []*document.Chunk
	fail   error
}

var _ ChunkStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*document.Document)}
}

// FailWith makes every subsequent operation return err, until called
// with nil again. Used to exercise degraded-store paths in tests.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *MemoryStore) InsertDocument(ctx context.Context, doc *document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.docs[doc.ID] = doc
	return nil
}

func (s *MemoryStore) InsertChunks(ctx context.Context, chunks []*document.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.chunks = append(s.chunks, chunks...)
	return nil
}

func (s *MemoryStore) QuerySimilar(ctx context.Context, vector []float32, ownerID string, docType document.Type, threshold float64, limit int) ([]document.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return nil, s.fail
	}

	var scored []document.ScoredChunk
	for _, chunk := range s.chunks {
		if !matches(chunk, ownerID, docType) {
			continue
		}
		score := cosine(vector, chunk.Embedding)
		if score < threshold {
			continue
		}
		scored = append(scored, document.ScoredChunk{Chunk: chunk, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (s *MemoryStore) ListAll(ctx context.Context, ownerID string, docType document.Type, limit int) ([]*document.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return nil, s.fail
	}

	var out []*document.Chunk
	for _, chunk := range s.chunks {
		if !matches(chunk, ownerID, docType) {
			continue
		}
		out = append(out, chunk)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) ListDocuments(ctx context.Context, ownerID string) ([]*document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return nil, s.fail
	}

	var docs []*document.Document
	for _, doc := range s.docs {
		if doc.OwnerID == ownerID {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *MemoryStore) DeleteDocument(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}

	if _, ok := s.docs[docID]; !ok {
		return ErrDocumentNotFound
	}
	delete(s.docs, docID)
	kept := s.chunks[:0]
	for _, chunk := range s.chunks {
		if chunk.ParentDocID != docID {
			kept = append(kept, chunk)
		}
	}
	s.chunks = kept
	return nil
}

func (s *MemoryStore) Stats(ctx context.Context, ownerID string) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return 0, 0, s.fail
	}

	docs := 0
	for _, doc := range s.docs {
		if doc.OwnerID == ownerID {
			docs++
		}
	}
	chunks := 0
	for _, chunk := range s.chunks {
		if chunk.OwnerID == ownerID {
			chunks++
		}
	}
	return docs, chunks, nil
}

func matches(chunk *document.Chunk, ownerID string, docType document.Type) bool {
	if chunk.OwnerID != ownerID {
		return false
	}
	return docType == "" || chunk.DocumentType == docType
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
