package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"creatorstudio/internal/keypool"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// OpenAIClient talks to the OpenAI chat completions API.
type OpenAIClient struct {
	client openai.Client
	keys   *keypool.Pool
}

// NewOpenAIClient returns a client using keys in rotation. baseURL may be
// empty for the public endpoint.
func NewOpenAIClient(keys *keypool.Pool, baseURL string) *OpenAIClient {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIClient{client: openai.NewClient(opts...), keys: keys}
}

func isOpenAIRateLimit(err error) bool {
	var apiErr *openai.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

func openAIParams(req Request) openai.ChatCompletionNewParams {
	var msgs []openai.ChatCompletionMessageParamUnion
	if strings.TrimSpace(req.System) != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))
	return openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(req.Model),
		Messages:            msgs,
		MaxCompletionTokens: openai.Int(req.maxTokens()),
	}
}

// Generate implements Client.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	params := openAIParams(req)
	var out string
	err := c.keys.Do(ctx, isOpenAIRateLimit, func(key string) error {
		resp, err := c.client.Chat.Completions.New(ctx, params, option.WithAPIKey(key))
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return ErrEmptyResponse
		}
		out = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

// Stream implements Client. A rate limit is only retried on another key
// while nothing has been emitted yet.
func (c *OpenAIClient) Stream(ctx context.Context, req Request, onDelta func(string) error) (string, error) {
	params := openAIParams(req)
	var full strings.Builder
	emitted := false
	retryable := func(err error) bool { return !emitted && isOpenAIRateLimit(err) }

	err := c.keys.Do(ctx, retryable, func(key string) error {
		stream := c.client.Chat.Completions.NewStreaming(ctx, params, option.WithAPIKey(key))
		defer stream.Close()
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			emitted = true
			full.WriteString(delta)
			if err := onDelta(delta); err != nil {
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
