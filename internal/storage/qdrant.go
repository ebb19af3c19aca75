package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"

	"github.com/warmintro/warmintro/internal/document"
)

// CollectionName is the single Qdrant collection holding parent
// documents and chunks. Parents have no vector; chunks carry a named
// "content" vector.
const CollectionName = "user_documents"

// QdrantStore implements ChunkStore on a Qdrant instance over gRPC.
type QdrantStore struct {
	client *qdrant.Client
	host   string
	port   int
}

var _ ChunkStore = (*QdrantStore)(nil)

// NewQdrantStore connects to Qdrant and validates health with
// exponential backoff, failing fast if the server is unreachable.
func NewQdrantStore(host string, port int) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	store := &QdrantStore{client: client, host: host, port: port}

	if err := store.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return store, nil
}

// healthCheckWithRetry retries health checks for up to 30 seconds
// (500ms initial interval, 10s max).
func (s *QdrantStore) healthCheckWithRetry(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(b, ctx))
}

// Health performs a single health check.
func (s *QdrantStore) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection creates the collection and payload indexes if they
// do not exist. Idempotent.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("%w: list collections: %v", ErrStoreUnavailable, err)
	}
	for _, name := range collections {
		if name == CollectionName {
			return nil
		}
	}

	// Named vectors let parent documents (no vector) and chunks share
	// the collection.
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: CollectionName,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			"content": {
				Size:     VectorDimension,
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	return s.createPayloadIndexes(ctx)
}

// createPayloadIndexes indexes every filterable field. Without these,
// scoped queries degrade badly.
func (s *QdrantStore) createPayloadIndexes(ctx context.Context) error {
	fields := []string{
		"type",          // "parent" vs "chunk"
		"owner_id",      // scope every query by owner
		"document_type", // per-category retrieval filter
		"chunk_type",    // section tag
		"parent_doc_id", // cascade deletion
	}
	for _, field := range fields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: CollectionName,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("create index for field %s: %w", field, err)
		}
	}
	return nil
}

// Close closes the client connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *QdrantStore) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: CollectionName,
			Points:         points,
		})
		return err
	}, backoff.WithContext(b, ctx))
}

// InsertDocument stores a parent document without a vector.
func (s *QdrantStore) InsertDocument(ctx context.Context, doc *document.Document) error {
	payload := map[string]any{
		"type":          "parent",
		"owner_id":      doc.OwnerID,
		"document_type": string(doc.Type),
		"title":         doc.Title,
		"content":       doc.Content,
		"created_at":    doc.CreatedAt.UTC().Format(time.RFC3339),
	}
	if len(doc.Metadata) > 0 {
		meta := make(map[string]any, len(doc.Metadata))
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		payload["metadata"] = meta
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(doc.ID),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{}),
		Payload: qdrant.NewValueMap(payload),
	}

	if err := s.upsertWithRetry(ctx, []*qdrant.PointStruct{point}); err != nil {
		return fmt.Errorf("%w: upsert document: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// InsertChunks stores embedded chunks in batches of 100.
func (s *QdrantStore) InsertChunks(ctx context.Context, chunks []*document.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for i, chunk := range chunks {
		if len(chunk.Embedding) != VectorDimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(chunk.Embedding), VectorDimension)
		}
	}

	const batchSize = 100
	for i := 0; i < len(chunks); i += batchSize {
		end := min(i+batchSize, len(chunks))
		batch := chunks[i:end]
		points := make([]*qdrant.PointStruct, len(batch))
		for j, chunk := range batch {
			points[j] = &qdrant.PointStruct{
				Id: qdrant.NewIDUUID(chunk.ID),
				Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
					"content": qdrant.NewVector(chunk.Embedding...),
				}),
				Payload: qdrant.NewValueMap(chunkPayload(chunk)),
			}
		}
		if err := s.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("%w: upsert batch %d-%d: %v", ErrStoreUnavailable, i, end, err)
		}
	}
	return nil
}

func chunkPayload(chunk *document.Chunk) map[string]any {
	payload := map[string]any{
		"type":          "chunk",
		"owner_id":      chunk.OwnerID,
		"document_type": string(chunk.DocumentType),
		"title":         chunk.DocumentTitle,
		"chunk_type":    chunk.ChunkType,
		"ordinal":       chunk.Ordinal,
		"parent_doc_id": chunk.ParentDocID,
		"content":       chunk.Content,
	}
	if len(chunk.Metadata) > 0 {
		meta := make(map[string]any, len(chunk.Metadata))
		for k, v := range chunk.Metadata {
			meta[k] = v
		}
		payload["metadata"] = meta
	}
	return payload
}

func chunkFromPayload(id string, payload map[string]*qdrant.Value) *document.Chunk {
	chunk := &document.Chunk{
		ID:            id,
		ParentDocID:   payload["parent_doc_id"].GetStringValue(),
		OwnerID:       payload["owner_id"].GetStringValue(),
		DocumentType:  document.Type(payload["document_type"].GetStringValue()),
		DocumentTitle: payload["title"].GetStringValue(),
		ChunkType:     payload["chunk_type"].GetStringValue(),
		Ordinal:       int(payload["ordinal"].GetIntegerValue()),
		Content:       payload["content"].GetStringValue(),
	}
	if meta := payload["metadata"].GetStructValue(); meta != nil {
		chunk.Metadata = make(map[string]string, len(meta.Fields))
		for k, v := range meta.Fields {
			chunk.Metadata[k] = v.GetStringValue()
		}
	}
	return chunk
}

func chunkFilter(ownerID string, docType document.Type) *qdrant.Filter {
	must := []*qdrant.Condition{
		qdrant.NewMatch("type", "chunk"),
		qdrant.NewMatch("owner_id", ownerID),
	}
	if docType != "" {
		must = append(must, qdrant.NewMatch("document_type", string(docType)))
	}
	return &qdrant.Filter{Must: must}
}

// QuerySimilar runs a vector search over the owner's chunks. Results
// come back ordered by descending similarity, with Qdrant enforcing the
// score threshold server-side.
func (s *QdrantStore) QuerySimilar(ctx context.Context, vector []float32, ownerID string, docType document.Type, threshold float64, limit int) ([]document.ScoredChunk, error) {
	if len(vector) != VectorDimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), VectorDimension)
	}

	vectorName := "content"
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: CollectionName,
		Query:          qdrant.NewQuery(vector...),
		Using:          &vectorName,
		Filter:         chunkFilter(ownerID, docType),
		ScoreThreshold: qdrant.PtrOf(float32(threshold)),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrStoreUnavailable, err)
	}

	scored := make([]document.ScoredChunk, 0, len(results))
	for _, result := range results {
		scored = append(scored, document.ScoredChunk{
			Chunk: chunkFromPayload(result.Id.GetUuid(), result.Payload),
			Score: float64(result.Score),
		})
	}
	return scored, nil
}

// ListAll scrolls the owner's chunks without a similarity query, up to
// limit, ordered by insertion.
func (s *QdrantStore) ListAll(ctx context.Context, ownerID string, docType document.Type, limit int) ([]*document.Chunk, error) {
	var chunks []*document.Chunk
	var offset *qdrant.PointId

	filter := chunkFilter(ownerID, docType)
	batchSize := uint32(100)

	for {
		remaining := limit - len(chunks)
		if remaining <= 0 {
			break
		}
		pageSize := batchSize
		if uint32(remaining) < pageSize {
			pageSize = uint32(remaining)
		}

		results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: CollectionName,
			Filter:         filter,
			Limit:          qdrant.PtrOf(pageSize),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: scroll chunks: %v", ErrStoreUnavailable, err)
		}

		for _, result := range results {
			chunks = append(chunks, chunkFromPayload(result.Id.GetUuid(), result.Payload))
		}

		if uint32(len(results)) < pageSize {
			break
		}
		offset = results[len(results)-1].Id
	}

	return chunks, nil
}

// ListDocuments scrolls the owner's parent documents.
func (s *QdrantStore) ListDocuments(ctx context.Context, ownerID string) ([]*document.Document, error) {
	var docs []*document.Document
	var offset *qdrant.PointId

	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("type", "parent"),
			qdrant.NewMatch("owner_id", ownerID),
		},
	}
	batchSize := uint32(100)

	for {
		results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: CollectionName,
			Filter:         filter,
			Limit:          qdrant.PtrOf(batchSize),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: scroll documents: %v", ErrStoreUnavailable, err)
		}

		for _, result := range results {
			payload := result.Payload
			doc := &document.Document{
				ID:      result.Id.GetUuid(),
				OwnerID: payload["owner_id"].GetStringValue(),
				Type:    document.Type(payload["document_type"].GetStringValue()),
				Title:   payload["title"].GetStringValue(),
				Content: payload["content"].GetStringValue(),
			}
			if createdAt, err := time.Parse(time.RFC3339, payload["created_at"].GetStringValue()); err == nil {
				doc.CreatedAt = createdAt
			}
			if meta := payload["metadata"].GetStructValue(); meta != nil {
				doc.Metadata = make(map[string]string, len(meta.Fields))
				for k, v := range meta.Fields {
					doc.Metadata[k] = v.GetStringValue()
				}
			}
			docs = append(docs, doc)
		}

		if uint32(len(results)) < batchSize {
			break
		}
		offset = results[len(results)-1].Id
	}

	return docs, nil
}

// DeleteDocument removes the parent point and every chunk pointing at
// it in a single filtered delete. Returns ErrDocumentNotFound when no
// parent with that ID exists.
func (s *QdrantStore) DeleteDocument(ctx context.Context, docID string) error {
	existing, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: CollectionName,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewHasID(qdrant.NewIDUUID(docID)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: check document: %v", ErrStoreUnavailable, err)
	}
	if existing == 0 {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, docID)
	}

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: CollectionName,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Should: []*qdrant.Condition{
				qdrant.NewHasID(qdrant.NewIDUUID(docID)),
				qdrant.NewMatch("parent_doc_id", docID),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: delete document: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Stats counts the owner's parent documents and chunks.
func (s *QdrantStore) Stats(ctx context.Context, ownerID string) (int, int, error) {
	docs, err := s.count(ctx, ownerID, "parent")
	if err != nil {
		return 0, 0, err
	}
	chunks, err := s.count(ctx, ownerID, "chunk")
	if err != nil {
		return 0, 0, err
	}
	return docs, chunks, nil
}

func (s *QdrantStore) count(ctx context.Context, ownerID, pointType string) (int, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: CollectionName,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("type", pointType),
				qdrant.NewMatch("owner_id", ownerID),
			},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("%w: count %s points: %v", ErrStoreUnavailable, pointType, err)
	}
	return int(count), nil
}
