package service

import (
	"context"
	"fmt"

	"creatorstudio/internal/keypool"
	"creatorstudio/internal/llm"

	"github.com/rs/zerolog"
)

// APIKeyService lets users bring their own provider keys.
type APIKeyService interface {
	Save(ctx context.Context, userID, provider, apiKey string) error
	Delete(ctx context.Context, userID, provider string) error
}

type apiKeyService struct {
	secrets    SecretStore
	validators map[string]KeyValidator
	logger     zerolog.Logger
}

func NewAPIKeyService(secrets SecretStore, validators map[string]KeyValidator, logger zerolog.Logger) APIKeyService {
	return &apiKeyService{
		secrets:    secrets,
		validators: validators,
		logger:     logger.With().Str("service", "APIKeyService").Logger(),
	}
}

func (s *apiKeyService) Save(ctx context.Context, userID, provider, apiKey string) error {
	v, ok := s.validators[provider]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	if s.secrets == nil {
		return fmt.Errorf("%w: key storage", ErrUnavailable)
	}
	if err := v.ValidateAPIKey(ctx, apiKey); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Str("provider", provider).Msg("API key rejected by provider")
		return err
	}
	if err := s.secrets.StoreUserAPIKey(ctx, userID, provider, apiKey); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("provider", provider).Msg("Failed to store API key")
		return err
	}
	s.logger.Info().Str("user_id", userID).Str("provider", provider).Msg("Stored user API key")
	return nil
}

func (s *apiKeyService) Delete(ctx context.Context, userID, provider string) error {
	if _, ok := s.validators[provider]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	if s.secrets == nil {
		return fmt.Errorf("%w: key storage", ErrUnavailable)
	}
	if err := s.secrets.DeleteUserAPIKey(ctx, userID, provider); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("provider", provider).Msg("Failed to delete API key")
		return err
	}
	return nil
}

// ModelClients picks the LLM client for a user's request: the user's own key
// when one is stored for the model's provider, the shared key pool otherwise.
type ModelClients struct {
	shared           *llm.Router
	secrets          SecretStore
	openAIBaseURL    string
	anthropicBaseURL string
	logger           zerolog.Logger
}

// NewModelClients returns a resolver. secrets may be nil to always use the
// shared pools.
func NewModelClients(shared *llm.Router, secrets SecretStore, openAIBaseURL, anthropicBaseURL string, logger zerolog.Logger) *ModelClients {
	return &ModelClients{
		shared:           shared,
		secrets:          secrets,
		openAIBaseURL:    openAIBaseURL,
		anthropicBaseURL: anthropicBaseURL,
		logger:           logger.With().Str("service", "ModelClients").Logger(),
	}
}

// For returns the client and the resolved model name.
func (m *ModelClients) For(ctx context.Context, userID, model string) (llm.Client, string) {
	model = m.shared.ResolveModel(model)
	if m.secrets == nil {
		return m.shared, model
	}
	provider := ProviderOpenAI
	if llm.IsAnthropicModel(model) {
		provider = ProviderAnthropic
	}
	key, err := m.secrets.GetUserAPIKey(ctx, userID, provider)
	if err != nil || key == "" {
		return m.shared, model
	}
	m.logger.Debug().Str("user_id", userID).Str("provider", provider).Msg("Using user API key")
	pool := keypool.New([]string{key})
	if provider == ProviderAnthropic {
		return llm.NewAnthropicClient(pool, m.anthropicBaseURL), model
	}
	return llm.NewOpenAIClient(pool, m.openAIBaseURL), model
}
