//go:build integration
// +build integration

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warmintro/warmintro/internal/document"
)

// setupTestStore creates a store against a local Qdrant and ensures the
// collection exists. Skips the test if Qdrant is not running.
func setupTestStore(t *testing.T) *QdrantStore {
	store, err := NewQdrantStore("localhost", 6334)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}

	err = store.EnsureCollection(context.Background())
	require.NoError(t, err, "Failed to ensure collection")

	return store
}

func fakeEmbedding(seed float32) []float32 {
	v := make([]float32, VectorDimension)
	for i := range v {
		v[i] = seed
	}
	return v
}

func TestQdrant_DocumentRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	owner := "test-owner-" + uuid.New().String()

	doc := &document.Document{
		ID:      uuid.New().String(),
		OwnerID: owner,
		Title:   "Roundtrip Resume",
		Type:    document.TypeResume,
		Content: "Summary\nTest resume content.",
		Metadata: map[string]string{
			"source": "unit-test",
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	err := store.InsertDocument(ctx, doc)
	require.NoError(t, err, "Failed to insert document")

	docs, err := store.ListDocuments(ctx, owner)
	require.NoError(t, err, "Failed to list documents")
	require.Len(t, docs, 1)

	got := docs[0]
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, doc.Title, got.Title)
	assert.Equal(t, doc.Type, got.Type)
	assert.Equal(t, doc.Content, got.Content)
	assert.Equal(t, "unit-test", got.Metadata["source"])
	assert.WithinDuration(t, doc.CreatedAt, got.CreatedAt, time.Second)
}

func TestQdrant_ChunkSearchRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	owner := "test-owner-" + uuid.New().String()
	docID := uuid.New().String()

	err := store.InsertDocument(ctx, &document.Document{
		ID:        docID,
		OwnerID:   owner,
		Title:     "Search Resume",
		Type:      document.TypeResume,
		Content:   "full content",
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	chunk := &document.Chunk{
		ID:            uuid.New().String(),
		ParentDocID:   docID,
		OwnerID:       owner,
		DocumentType:  document.TypeResume,
		DocumentTitle: "Search Resume",
		ChunkType:     "skills",
		Ordinal:       0,
		Content:       "Go, Python, Kubernetes",
		Metadata:      map[string]string{"section": "skills"},
		Embedding:     fakeEmbedding(0.1),
	}
	err = store.InsertChunks(ctx, []*document.Chunk{chunk})
	require.NoError(t, err, "Failed to insert chunk")

	results, err := store.QuerySimilar(ctx, fakeEmbedding(0.1), owner, document.TypeResume, 0.5, 10)
	require.NoError(t, err, "Failed to query")
	require.Len(t, results, 1)

	got := results[0]
	assert.Equal(t, chunk.ID, got.Chunk.ID)
	assert.Equal(t, chunk.Content, got.Chunk.Content)
	assert.Equal(t, chunk.ChunkType, got.Chunk.ChunkType)
	assert.Equal(t, chunk.DocumentTitle, got.Chunk.DocumentTitle)
	assert.Equal(t, "skills", got.Chunk.Metadata["section"])
	assert.InDelta(t, 1.0, got.Score, 0.01, "identical vectors should score ~1.0")

	// Another owner must not see the chunk.
	other, err := store.QuerySimilar(ctx, fakeEmbedding(0.1), "someone-else", document.TypeResume, 0.5, 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestQdrant_DimensionValidation(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	err := store.InsertChunks(ctx, []*document.Chunk{{
		ID:        uuid.New().String(),
		OwnerID:   "owner",
		Embedding: []float32{1, 2, 3},
	}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = store.QuerySimilar(ctx, []float32{1, 2, 3}, "owner", "", 0.5, 10)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestQdrant_DeleteCascades(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	owner := "test-owner-" + uuid.New().String()
	docID := uuid.New().String()

	err := store.InsertDocument(ctx, &document.Document{
		ID:        docID,
		OwnerID:   owner,
		Title:     "Doomed",
		Type:      document.TypeNote,
		Content:   "to be deleted",
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	chunks := []*document.Chunk{
		{
			ID:           uuid.New().String(),
			ParentDocID:  docID,
			OwnerID:      owner,
			DocumentType: document.TypeNote,
			ChunkType:    "general",
			Content:      "chunk one",
			Embedding:    fakeEmbedding(0.2),
		},
		{
			ID:           uuid.New().String(),
			ParentDocID:  docID,
			OwnerID:      owner,
			DocumentType: document.TypeNote,
			ChunkType:    "general",
			Ordinal:      1,
			Content:      "chunk two",
			Embedding:    fakeEmbedding(0.3),
		},
	}
	require.NoError(t, store.InsertChunks(ctx, chunks))

	docs, chunkCount, err := store.Stats(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, docs)
	assert.Equal(t, 2, chunkCount)

	require.NoError(t, store.DeleteDocument(ctx, docID))

	docs, chunkCount, err = store.Stats(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 0, docs)
	assert.Equal(t, 0, chunkCount)
}

func TestQdrant_ListAllRespectsLimit(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	owner := "test-owner-" + uuid.New().String()
	docID := uuid.New().String()

	var chunks []*document.Chunk
	for i := 0; i < 5; i++ {
		chunks = append(chunks, &document.Chunk{
			ID:           uuid.New().String(),
			ParentDocID:  docID,
			OwnerID:      owner,
			DocumentType: document.TypeNote,
			ChunkType:    "general",
			Ordinal:      i,
			Content:      "listable chunk",
			Embedding:    fakeEmbedding(0.4),
		})
	}
	require.NoError(t, store.InsertChunks(ctx, chunks))

	got, err := store.ListAll(ctx, owner, document.TypeNote, 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
