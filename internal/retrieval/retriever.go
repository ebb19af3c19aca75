// Package retrieval issues scoped similarity queries per document
// category, merges and deduplicates the results, and ranks them into a
// bounded context set.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/warmintro/warmintro/internal/cache"
	"github.com/warmintro/warmintro/internal/document"
	"github.com/warmintro/warmintro/internal/storage"
)

const (
	// MaxResults is the hard ceiling across all categories. It bounds
	// downstream prompt size regardless of per-category caps.
	MaxResults = 15

	// fingerprintLength is how much normalized content the dedup
	// fingerprint keeps. Known tradeoff: long shared prefixes can
	// falsely merge distinct chunks.
	fingerprintLength = 100

	defaultQueryTimeout = 10 * time.Second
	embedCacheTTL       = 5 * time.Minute
)

// boostTerms bias the query embedding toward professionally relevant
// content.
var boostTerms = []string{"experience", "skills", "achievements", "projects"}

// categoryPolicy tunes one scoped query. Résumés get the largest cap
// as the primary evidence source; company research gets a stricter
// threshold because hallucinated company facts are the most damaging
// false positives.
type categoryPolicy struct {
	docType   document.Type
	augment   string
	threshold float64
	limit     int
}

// categories fixes the processing order for the five scoped queries.
var categories = []categoryPolicy{
	{document.TypeResume, "skills experience achievements", 0.6, 8},
	{document.TypePersonalInfo, "preferences goals strengths values", 0.6, 4},
	{document.TypeCompanyResearch, "", 0.7, 3},
	{document.TypeJobDescription, "requirements responsibilities", 0.6, 3},
	{document.TypeNote, "", 0.6, 2},
}

// Embedder is the slice of the embedding client the retriever needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Query describes one retrieval round.
type Query struct {
	OwnerID       string
	Text          string
	TargetCompany string
	TargetRole    string
	FocusAreas    []string
}

// SearchString is the base query string: free text plus targeting terms
// plus the fixed boost keywords.
func (q Query) SearchString() string {
	parts := []string{q.Text, q.TargetCompany, q.TargetRole}
	parts = append(parts, q.FocusAreas...)
	parts = append(parts, boostTerms...)

	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// empty reports whether the caller supplied no query text at all, which
// routes retrieval to the ListAll path.
func (q Query) empty() bool {
	return strings.TrimSpace(q.Text) == "" &&
		strings.TrimSpace(q.TargetCompany) == "" &&
		strings.TrimSpace(q.TargetRole) == "" &&
		len(q.FocusAreas) == 0
}

// Retriever fans out the per-category queries and assembles a ranked,
// deduplicated result set.
type Retriever struct {
	store      storage.ChunkStore
	embedder   Embedder
	embedCache *cache.TTL[string, []float32]
	timeout    time.Duration
	logger     *slog.Logger
}

// New creates a Retriever with the default per-query timeout.
func New(store storage.ChunkStore, embedder Embedder, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		store:      store,
		embedder:   embedder,
		embedCache: cache.NewTTL[string, []float32](embedCacheTTL),
		timeout:    defaultQueryTimeout,
		logger:     logger,
	}
}

// Retrieve returns at most MaxResults chunks ordered by descending
// similarity. A failed category contributes nothing; a fully
// unavailable store yields an empty result, not an error, so synthesis
// can degrade to an ungrounded generation.
func (r *Retriever) Retrieve(ctx context.Context, q Query) ([]document.ScoredChunk, error) {
	if strings.TrimSpace(q.OwnerID) == "" {
		return nil, fmt.Errorf("%w: owner id is required", document.ErrValidation)
	}

	if q.empty() {
		return r.listAll(ctx, q.OwnerID)
	}

	base := q.SearchString()

	// Fan out one goroutine per category into fixed slots, so the merge
	// order is independent of completion order.
	perCategory := make([][]document.ScoredChunk, len(categories))
	var wg sync.WaitGroup
	for i, cat := range categories {
		wg.Add(1)
		go func(slot int, cat categoryPolicy) {
			defer wg.Done()
			results, err := r.queryCategory(ctx, q.OwnerID, base, cat)
			if err != nil {
				r.logger.Warn("category query failed",
					"document_type", string(cat.docType), "error", err)
				return
			}
			perCategory[slot] = results
		}(i, cat)
	}
	wg.Wait()

	merged := dedupe(perCategory)
	rank(merged)
	if len(merged) > MaxResults {
		merged = merged[:MaxResults]
	}
	return merged, nil
}

// queryCategory embeds the augmented query and runs one scoped search
// under a bounded timeout.
func (r *Retriever) queryCategory(ctx context.Context, ownerID, base string, cat categoryPolicy) ([]document.ScoredChunk, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	text := base
	if cat.augment != "" {
		text = base + " " + cat.augment
	}

	vector, err := r.embedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return r.store.QuerySimilar(ctx, vector, ownerID, cat.docType, cat.threshold, cat.limit)
}

// embedQuery caches query embeddings so categories sharing the same
// augmented text (and repeated requests) embed once.
func (r *Retriever) embedQuery(ctx context.Context, text string) ([]float32, error) {
	if vector, ok := r.embedCache.Get(text); ok {
		return vector, nil
	}
	vector, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	r.embedCache.Set(text, vector)
	return vector, nil
}

// listAll returns every stored chunk for the owner with a synthetic
// similarity of 1.0, used when no query text is supplied.
func (r *Retriever) listAll(ctx context.Context, ownerID string) ([]document.ScoredChunk, error) {
	chunks, err := r.store.ListAll(ctx, ownerID, "", MaxResults)
	if err != nil {
		r.logger.Warn("list all failed, returning empty context", "error", err)
		return nil, nil
	}
	results := make([]document.ScoredChunk, len(chunks))
	for i, chunk := range chunks {
		results[i] = document.ScoredChunk{Chunk: chunk, Score: 1.0}
	}
	return results, nil
}

// dedupe unions category results in fixed category order, dropping
// chunks whose fingerprint was already seen. A later duplicate replaces
// an earlier one only when its similarity is strictly higher, which
// keeps the tie-break deterministic under concurrent fan-out.
func dedupe(perCategory [][]document.ScoredChunk) []document.ScoredChunk {
	seen := make(map[string]int)
	var out []document.ScoredChunk

	for _, results := range perCategory {
		for _, sc := range results {
			fp := fingerprint(sc.Chunk.Content)
			if at, ok := seen[fp]; ok {
				if sc.Score > out[at].Score {
					out[at] = sc
				}
				continue
			}
			seen[fp] = len(out)
			out = append(out, sc)
		}
	}
	return out
}

// rank sorts by similarity descending. The sort is stable so equal
// scores keep category order.
func rank(results []document.ScoredChunk) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// fingerprint normalizes content (lowercase, whitespace collapsed) and
// keeps the first fingerprintLength characters.
func fingerprint(content string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(content)), " ")
	if len(normalized) > fingerprintLength {
		normalized = normalized[:fingerprintLength]
	}
	return normalized
}
