// Package llm is the gateway to the text and image generation providers.
// Every provider call goes through a keypool so a rate-limited key is
// swapped for the next one before the request fails.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"creatorstudio/internal/keypool"
)

const defaultMaxTokens = 4096

var (
	// ErrRateLimited is returned after every key in the rotation was rate limited.
	ErrRateLimited = keypool.ErrRateLimited
	// ErrProviderUnavailable is returned when no client is configured for a model.
	ErrProviderUnavailable = errors.New("llm provider not configured")
	// ErrEmptyResponse is returned when the provider answered without text.
	ErrEmptyResponse = errors.New("empty response from model")
)

// Request is a single-turn prompt.
type Request struct {
	Model     string
	System    string
	Prompt    string
	MaxTokens int64
}

func (r Request) maxTokens() int64 {
	if r.MaxTokens > 0 {
		return r.MaxTokens
	}
	return defaultMaxTokens
}

// Client generates text from a prompt.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
	// Stream calls onDelta for every text fragment and returns the full text.
	// An error from onDelta aborts the stream.
	Stream(ctx context.Context, req Request, onDelta func(string) error) (string, error)
}

// IsAnthropicModel reports whether model is served by Anthropic.
func IsAnthropicModel(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "claude")
}

// Router dispatches requests to the provider that serves the requested model.
type Router struct {
	openAI       Client
	anthropic    Client
	defaultModel string
}

// NewRouter returns a Router. Either client may be nil when its provider has
// no keys configured.
func NewRouter(openAI, anthropic Client, defaultModel string) *Router {
	return &Router{openAI: openAI, anthropic: anthropic, defaultModel: defaultModel}
}

func (r *Router) route(req Request) (Client, Request, error) {
	if strings.TrimSpace(req.Model) == "" {
		req.Model = r.defaultModel
	}
	c := r.openAI
	if IsAnthropicModel(req.Model) {
		c = r.anthropic
	}
	if c == nil {
		return nil, req, fmt.Errorf("%w: %s", ErrProviderUnavailable, req.Model)
	}
	return c, req, nil
}

// Generate implements Client.
func (r *Router) Generate(ctx context.Context, req Request) (string, error) {
	c, req, err := r.route(req)
	if err != nil {
		return "", err
	}
	return c.Generate(ctx, req)
}

// Stream implements Client.
func (r *Router) Stream(ctx context.Context, req Request, onDelta func(string) error) (string, error) {
	c, req, err := r.route(req)
	if err != nil {
		return "", err
	}
	return c.Stream(ctx, req, onDelta)
}

// ResolveModel returns the model a request for model would use.
func (r *Router) ResolveModel(model string) string {
	if strings.TrimSpace(model) == "" {
		return r.defaultModel
	}
	return model
}
