package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"creatorstudio/internal/keypool"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient talks to the Anthropic messages API.
type AnthropicClient struct {
	client anthropic.Client
	keys   *keypool.Pool
}

// NewAnthropicClient returns a client using keys in rotation.
func NewAnthropicClient(keys *keypool.Pool, baseURL string) *AnthropicClient {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicClient{client: anthropic.NewClient(opts...), keys: keys}
}

func isAnthropicRateLimit(err error) bool {
	var apiErr *anthropic.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

func anthropicParams(req Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: req.maxTokens(),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if strings.TrimSpace(req.System) != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	return params
}

// Generate implements Client.
func (c *AnthropicClient) Generate(ctx context.Context, req Request) (string, error) {
	params := anthropicParams(req)
	var out strings.Builder
	err := c.keys.Do(ctx, isAnthropicRateLimit, func(key string) error {
		msg, err := c.client.Messages.New(ctx, params, option.WithAPIKey(key))
		if err != nil {
			return err
		}
		out.Reset()
		for _, block := range msg.Content {
			if block.Type == "text" {
				out.WriteString(block.Text)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out.String()) == "" {
		return "", ErrEmptyResponse
	}
	return out.String(), nil
}

// Stream implements Client.
func (c *AnthropicClient) Stream(ctx context.Context, req Request, onDelta func(string) error) (string, error) {
	params := anthropicParams(req)
	var full strings.Builder
	emitted := false
	retryable := func(err error) bool { return !emitted && isAnthropicRateLimit(err) }

	err := c.keys.Do(ctx, retryable, func(key string) error {
		stream := c.client.Messages.NewStreaming(ctx, params, option.WithAPIKey(key))
		defer stream.Close()
		for stream.Next() {
			event := stream.Current()
			ev, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			delta, ok := ev.Delta.AsAny().(anthropic.TextDelta)
			if !ok || delta.Text == "" {
				continue
			}
			emitted = true
			full.WriteString(delta.Text)
			if err := onDelta(delta.Text); err != nil {
				return err
			}
		}
		return stream.Err()
	})
	if err != nil {
		return full.String(), err
	}
	if strings.TrimSpace(full.String()) == "" {
		return "", ErrEmptyResponse
	}
	return full.String(), nil
}
