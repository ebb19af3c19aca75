package synthesis

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
)

// ErrGenerationService marks a failure of the external text generation
// service. Propagated with the underlying cause, never retried here:
// retry policy belongs to the service client, not this layer.
var ErrGenerationService = errors.New("generation service failure")

// DefaultModel is the chat model used for email generation.
const DefaultModel = openai.ChatModelGPT4o

// Generator produces free-form text from a system instruction and a
// prompt. No structural guarantee on the output; the orchestrator
// parses it defensively.
type Generator interface {
	Generate(ctx context.Context, systemInstruction, prompt string) (string, error)
}

// OpenAIGenerator implements Generator on the OpenAI chat completions
// API, sharing the client used for embeddings.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator creates a generator. An empty model selects
// DefaultModel.
func NewOpenAIGenerator(client *openai.Client, model string) *OpenAIGenerator {
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIGenerator{client: client, model: model}
}

// Generate runs one chat completion.
func (g *OpenAIGenerator) Generate(ctx context.Context, systemInstruction, prompt string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemInstruction),
			openai.UserMessage(prompt),
		},
		Model: g.model,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationService, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrGenerationService)
	}
	return resp.Choices[0].Message.Content, nil
}
