package embedding

import (
	"fmt"
	"os"

	"github.com/openai/openai-go"
)

// Client wraps the OpenAI client used for embedding and generation.
type Client struct {
	client *openai.Client
}

// NewClient creates an OpenAI client. It requires OPENAI_API_KEY in the
// environment and fails fast when it is missing.
func NewClient() (*Client, error) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	// openai-go reads OPENAI_API_KEY from the environment
	client := openai.NewClient()

	return &Client{client: &client}, nil
}

// Client returns the underlying OpenAI client so the synthesis layer
// can share one connection for chat completions.
func (c *Client) Client() *openai.Client {
	return c.client
}
