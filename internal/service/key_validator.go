package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	defaultOpenAIURL    = "https://api.openai.com/v1"
	defaultAnthropicURL = "https://api.anthropic.com/v1"
	validationTimeout   = 10 * time.Second
)

// KeyValidator checks an API key against its provider with a cheap call.
type KeyValidator interface {
	ValidateAPIKey(ctx context.Context, apiKey string) error
}

type httpKeyValidator struct {
	client  *http.Client
	baseURL string
	build   func(ctx context.Context, baseURL, apiKey string) (*http.Request, error)
}

// NewOpenAIValidator lists models with the key. baseURL may be empty.
func NewOpenAIValidator(baseURL string) KeyValidator {
	return &httpKeyValidator{
		client:  &http.Client{Timeout: validationTimeout},
		baseURL: orDefault(baseURL, defaultOpenAIURL),
		build: func(ctx context.Context, baseURL, apiKey string) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/models", nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "Bearer "+apiKey)
			return req, nil
		},
	}
}

// NewAnthropicValidator sends a one-token message with the key.
func NewAnthropicValidator(baseURL string) KeyValidator {
	return &httpKeyValidator{
		client:  &http.Client{Timeout: validationTimeout},
		baseURL: orDefault(baseURL, defaultAnthropicURL),
		build: func(ctx context.Context, baseURL, apiKey string) (*http.Request, error) {
			body, err := json.Marshal(map[string]any{
				"model":      "claude-haiku-4-5",
				"max_tokens": 1,
				"messages":   []map[string]string{{"role": "user", "content": "ping"}},
			})
			if err != nil {
				return nil, err
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/messages", bytes.NewReader(body))
			if err != nil {
				return nil, err
			}
			req.Header.Set("x-api-key", apiKey)
			req.Header.Set("anthropic-version", "2023-06-01")
			req.Header.Set("Content-Type", "application/json")
			return req, nil
		},
	}
}

func orDefault(v, def string) string {
	if v = strings.TrimRight(strings.TrimSpace(v), "/"); v != "" {
		return v
	}
	return def
}

func (v *httpKeyValidator) ValidateAPIKey(ctx context.Context, apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidAPIKey)
	}
	req, err := v.build(ctx, v.baseURL, apiKey)
	if err != nil {
		return fmt.Errorf("building validation request: %w", err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("validating API key: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("reading validation response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrInvalidAPIKey, providerMessage(body, "unauthorized"))
	case resp.StatusCode == http.StatusTooManyRequests:
		// Rate limited means the key authenticated.
		return nil
	default:
		return fmt.Errorf("API key validation failed: %s", providerMessage(body, fmt.Sprintf("HTTP %d", resp.StatusCode)))
	}
}

func providerMessage(body []byte, fallback string) string {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	return fallback
}
