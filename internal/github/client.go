// Package github imports a user's document folder from a GitHub
// repository, for people who keep their résumé and notes under version
// control.
package github

import (
	"context"
	"os"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"
)

// Client wraps the GitHub API client with rate limiting support.
type Client struct {
	*github.Client
}

// NewClient creates a GitHub client with automatic rate-limit handling.
// If GITHUB_TOKEN is set the client is authenticated, which raises the
// rate limit and allows private repositories.
func NewClient(ctx context.Context) (*Client, error) {
	rateLimiter, err := github_ratelimit.NewRateLimitWaiterClient(nil)
	if err != nil {
		return nil, err
	}

	ghClient := github.NewClient(rateLimiter)
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		ghClient = ghClient.WithAuthToken(token)
	}

	return &Client{Client: ghClient}, nil
}
