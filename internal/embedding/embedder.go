// Package embedding converts chunk and query text into fixed-length
// vectors via the OpenAI embedding API.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

// ErrEmbeddingService marks a failure of the external embedding
// endpoint. It is always propagated: an unembeddable chunk is never
// silently dropped.
var ErrEmbeddingService = errors.New("embedding service failure")

const (
	// Model is the OpenAI embedding model.
	Model = "text-embedding-3-small"

	// Dimension is the vector size produced by Model. Must match
	// storage.VectorDimension.
	Dimension = 1536

	// DefaultBatchSize balances requests-per-minute against
	// tokens-per-minute rate limits.
	DefaultBatchSize = 500
)

// Embedder generates embeddings in batches with exponential backoff on
// rate-limit errors.
type Embedder struct {
	client    *Client
	batchSize int
}

// NewEmbedder creates an Embedder. A batchSize of 0 selects
// DefaultBatchSize.
func NewEmbedder(client *Client, batchSize int) *Embedder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Embedder{client: client, batchSize: batchSize}
}

// Embed returns the vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts returns one vector per input text, in input order.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	var all [][]float32
	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		vectors, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("%w: batch %d-%d: %v", ErrEmbeddingService, i, end, err)
		}
		all = append(all, vectors...)
	}
	return all, nil
}

// embedBatch calls the API once, retrying with exponential backoff on
// HTTP 429. Other errors are permanent.
func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		resp, err := e.client.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: Model,
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Data) != len(texts) {
			return backoff.Permanent(fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
		}

		vectors = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			vectors[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return vectors, err
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 narrows the API's float64 vectors for storage.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
