package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/warmintro/warmintro/internal/document"
	"github.com/warmintro/warmintro/internal/storage"
)

// queryVector is what the stub embedder returns for every text, so a
// chunk embedded as vec(s) scores exactly s against any query.
var queryVector = []float32{1, 0, 0}

type stubEmbedder struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	err := e.err
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return queryVector, nil
}

func (e *stubEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// vec builds a unit vector whose cosine similarity with queryVector is
// exactly score.
func vec(score float64) []float32 {
	return []float32{float32(score), float32(math.Sqrt(1 - score*score)), 0}
}

func seedChunk(t *testing.T, store *storage.MemoryStore, owner string, docType document.Type, content string, score float64) {
	t.Helper()
	err := store.InsertChunks(context.Background(), []*document.Chunk{{
		ID:           fmt.Sprintf("%s-%s-%d", docType, content[:min(8, len(content))], int(score*1000)),
		ParentDocID:  "doc-1",
		OwnerID:      owner,
		DocumentType: docType,
		ChunkType:    "general",
		Content:      content,
		Embedding:    vec(score),
	}})
	if err != nil {
		t.Fatalf("seed chunk: %v", err)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func TestRetrieve_RanksAndCaps(t *testing.T) {
	store := storage.NewMemoryStore()
	score := 0.95
	for _, cat := range []struct {
		docType document.Type
		count   int
	}{
		{document.TypeResume, 8},
		{document.TypePersonalInfo, 4},
		{document.TypeCompanyResearch, 3},
		{document.TypeJobDescription, 3},
		{document.TypeNote, 2},
	} {
		for i := 0; i < cat.count; i++ {
			content := fmt.Sprintf("distinct %s content number %d about topic %d", cat.docType, i, i)
			seedChunk(t, store, "owner-1", cat.docType, content, score)
			score -= 0.01
		}
	}

	r := New(store, &stubEmbedder{}, nil)
	results, err := r.Retrieve(context.Background(), Query{OwnerID: "owner-1", Text: "backend role"})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	if len(results) != MaxResults {
		t.Errorf("Expected %d results, got %d", MaxResults, len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("Results not sorted descending at %d: %f > %f",
				i, results[i].Score, results[i-1].Score)
		}
	}
	if math.Abs(results[0].Score-0.95) > 0.001 {
		t.Errorf("Top score: expected ~0.95, got %f", results[0].Score)
	}
	if results[0].Chunk.DocumentType != document.TypeResume {
		t.Errorf("Top result type: expected resume, got %q", results[0].Chunk.DocumentType)
	}
}

func TestRetrieve_DeduplicatesAcrossCategories(t *testing.T) {
	store := storage.NewMemoryStore()
	shared := "I led the migration of the billing system to a new platform with zero downtime over six months of careful work."
	seedChunk(t, store, "owner-1", document.TypeResume, shared, 0.80)
	seedChunk(t, store, "owner-1", document.TypeNote, shared, 0.90)
	seedChunk(t, store, "owner-1", document.TypeResume, "a completely different achievement about leading teams", 0.75)

	r := New(store, &stubEmbedder{}, nil)
	results, err := r.Retrieve(context.Background(), Query{OwnerID: "owner-1", Text: "billing"})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("Expected 2 results after dedup, got %d", len(results))
	}
	// The duplicate keeps the higher of its two scores.
	if math.Abs(results[0].Score-0.90) > 0.001 {
		t.Errorf("Deduped chunk score: expected ~0.90, got %f", results[0].Score)
	}
	if !strings.Contains(results[0].Chunk.Content, "billing system") {
		t.Errorf("Unexpected top result: %q", results[0].Chunk.Content)
	}
}

func TestRetrieve_CompanyThresholdStricter(t *testing.T) {
	store := storage.NewMemoryStore()
	seedChunk(t, store, "owner-1", document.TypeCompanyResearch, "marginally relevant company fact about the office dog", 0.65)
	seedChunk(t, store, "owner-1", document.TypeResume, "marginally relevant resume line about spreadsheets", 0.65)

	r := New(store, &stubEmbedder{}, nil)
	results, err := r.Retrieve(context.Background(), Query{OwnerID: "owner-1", Text: "anything"})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("Expected only the resume chunk, got %d results", len(results))
	}
	if results[0].Chunk.DocumentType != document.TypeResume {
		t.Errorf("Expected resume chunk to survive, got %q", results[0].Chunk.DocumentType)
	}
}

func TestRetrieve_EmptyQueryListsAll(t *testing.T) {
	store := storage.NewMemoryStore()
	seedChunk(t, store, "owner-1", document.TypeResume, "stored resume content for listing", 0.5)
	seedChunk(t, store, "owner-1", document.TypeNote, "stored note content for listing", 0.3)

	r := New(store, &stubEmbedder{}, nil)
	results, err := r.Retrieve(context.Background(), Query{OwnerID: "owner-1"})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	for i, sc := range results {
		if sc.Score != 1.0 {
			t.Errorf("Result %d: expected synthetic score 1.0, got %f", i, sc.Score)
		}
	}
}

func TestRetrieve_OwnerScoped(t *testing.T) {
	store := storage.NewMemoryStore()
	seedChunk(t, store, "owner-1", document.TypeResume, "content belonging to owner one", 0.9)
	seedChunk(t, store, "owner-2", document.TypeResume, "content belonging to owner two", 0.9)

	r := New(store, &stubEmbedder{}, nil)
	results, err := r.Retrieve(context.Background(), Query{OwnerID: "owner-1", Text: "content"})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].Chunk.OwnerID != "owner-1" {
		t.Errorf("Leaked chunk from owner %q", results[0].Chunk.OwnerID)
	}
}

func TestRetrieve_MissingOwnerID(t *testing.T) {
	r := New(storage.NewMemoryStore(), &stubEmbedder{}, nil)
	_, err := r.Retrieve(context.Background(), Query{Text: "query without owner"})
	if !errors.Is(err, document.ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}
}

// TestRetrieve_StoreUnavailable verifies the degraded path: an
// unavailable store yields an empty result, not an error.
func TestRetrieve_StoreUnavailable(t *testing.T) {
	store := storage.NewMemoryStore()
	store.FailWith(storage.ErrStoreUnavailable)

	r := New(store, &stubEmbedder{}, nil)
	results, err := r.Retrieve(context.Background(), Query{OwnerID: "owner-1", Text: "anything"})
	if err != nil {
		t.Fatalf("Expected degraded success, got error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected empty results, got %d", len(results))
	}
}

// TestRetrieve_EmbedderFailure verifies that embedding failures are
// absorbed the same way as store failures.
func TestRetrieve_EmbedderFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	seedChunk(t, store, "owner-1", document.TypeResume, "content that would otherwise match", 0.9)

	r := New(store, &stubEmbedder{err: errors.New("rate limited")}, nil)
	results, err := r.Retrieve(context.Background(), Query{OwnerID: "owner-1", Text: "anything"})
	if err != nil {
		t.Fatalf("Expected degraded success, got error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected empty results, got %d", len(results))
	}
}

// TestRetrieve_EmbedCache verifies repeated retrieval reuses cached
// query embeddings instead of re-embedding.
func TestRetrieve_EmbedCache(t *testing.T) {
	store := storage.NewMemoryStore()
	embedder := &stubEmbedder{}
	r := New(store, embedder, nil)
	q := Query{OwnerID: "owner-1", Text: "same query"}

	if _, err := r.Retrieve(context.Background(), q); err != nil {
		t.Fatalf("first retrieve: %v", err)
	}
	first := embedder.callCount()
	if _, err := r.Retrieve(context.Background(), q); err != nil {
		t.Fatalf("second retrieve: %v", err)
	}

	if got := embedder.callCount(); got != first {
		t.Errorf("Expected cached embeddings on repeat, calls went %d -> %d", first, got)
	}
}

func TestQuery_SearchString(t *testing.T) {
	q := Query{
		Text:          "reach out about the opening",
		TargetCompany: "Acme",
		TargetRole:    "Staff Engineer",
		FocusAreas:    []string{"distributed systems"},
	}
	got := q.SearchString()

	for _, want := range []string{"reach out about the opening", "Acme", "Staff Engineer", "distributed systems", "experience", "skills", "achievements", "projects"} {
		if !strings.Contains(got, want) {
			t.Errorf("SearchString missing %q: %q", want, got)
		}
	}
}

func TestFingerprint_NormalizesAndTruncates(t *testing.T) {
	a := fingerprint("  Led   THE Migration\nof billing  ")
	b := fingerprint("led the migration of billing")
	if a != b {
		t.Errorf("Fingerprints should match after normalization: %q vs %q", a, b)
	}

	long := strings.Repeat("x", 300)
	if got := len(fingerprint(long)); got != fingerprintLength {
		t.Errorf("Expected fingerprint length %d, got %d", fingerprintLength, got)
	}
}
