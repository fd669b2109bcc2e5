package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIValidator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		switch r.Header.Get("Authorization") {
		case "Bearer sk-good":
			w.WriteHeader(http.StatusOK)
		case "Bearer sk-busy":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
		}
	}))
	defer srv.Close()

	v := NewOpenAIValidator(srv.URL + "/")
	ctx := context.Background()
	require.NoError(t, v.ValidateAPIKey(ctx, "sk-good"))
	require.NoError(t, v.ValidateAPIKey(ctx, "sk-busy"))

	err := v.ValidateAPIKey(ctx, "sk-bad")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
	assert.Contains(t, err.Error(), "Incorrect API key provided")

	assert.ErrorIs(t, v.ValidateAPIKey(ctx, "  "), ErrInvalidAPIKey)
}

func TestAnthropicValidator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/messages", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))
		if r.Header.Get("x-api-key") == "good" {
			_, _ = w.Write([]byte(`{"id":"msg_1"}`))
			return
		}
		if r.Header.Get("x-api-key") == "broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	v := NewAnthropicValidator(srv.URL)
	ctx := context.Background()
	require.NoError(t, v.ValidateAPIKey(ctx, "good"))
	assert.ErrorIs(t, v.ValidateAPIKey(ctx, "bad"), ErrInvalidAPIKey)

	err := v.ValidateAPIKey(ctx, "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidAPIKey)
}
