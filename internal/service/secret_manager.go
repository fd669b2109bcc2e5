package service

import (
	"context"
	"errors"
	"fmt"

	"creatorstudio/internal/config"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// SecretStore keeps users' own provider API keys.
type SecretStore interface {
	StoreUserAPIKey(ctx context.Context, userID, provider, apiKey string) error
	GetUserAPIKey(ctx context.Context, userID, provider string) (string, error)
	DeleteUserAPIKey(ctx context.Context, userID, provider string) error
}

type secretManagerStore struct {
	client    *secretmanager.Client
	projectID string
}

// NewSecretManagerStore connects to Google Secret Manager. It needs a real
// project even in development.
func NewSecretManagerStore(ctx context.Context, cfg *config.Config) (SecretStore, error) {
	if cfg.GCPProjectID == "" {
		return nil, errors.New("secret manager: GCP project id is not set")
	}
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating Secret Manager client: %w", err)
	}
	return &secretManagerStore{client: client, projectID: cfg.GCPProjectID}, nil
}

func secretID(userID, provider string) string {
	return fmt.Sprintf("user-%s-%s-key", userID, provider)
}

func (s *secretManagerStore) secretPath(userID, provider string) string {
	return fmt.Sprintf("projects/%s/secrets/%s", s.projectID, secretID(userID, provider))
}

func (s *secretManagerStore) StoreUserAPIKey(ctx context.Context, userID, provider, apiKey string) error {
	path := s.secretPath(userID, provider)
	if _, err := s.client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{Name: path}); err != nil {
		_, err := s.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
			Parent:   "projects/" + s.projectID,
			SecretId: secretID(userID, provider),
			Secret: &secretmanagerpb.Secret{
				Labels: map[string]string{"provider": provider},
				Replication: &secretmanagerpb.Replication{
					Replication: &secretmanagerpb.Replication_Automatic_{
						Automatic: &secretmanagerpb.Replication_Automatic{},
					},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("creating secret for %s: %w", provider, err)
		}
	}

	_, err := s.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent:  path,
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(apiKey)},
	})
	if err != nil {
		return fmt.Errorf("adding secret version for %s: %w", provider, err)
	}
	return nil
}

func (s *secretManagerStore) GetUserAPIKey(ctx context.Context, userID, provider string) (string, error) {
	result, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: s.secretPath(userID, provider) + "/versions/latest",
	})
	if err != nil {
		return "", fmt.Errorf("accessing %s key: %w", provider, err)
	}
	return string(result.Payload.Data), nil
}

func (s *secretManagerStore) DeleteUserAPIKey(ctx context.Context, userID, provider string) error {
	if err := s.client.DeleteSecret(ctx, &secretmanagerpb.DeleteSecretRequest{Name: s.secretPath(userID, provider)}); err != nil {
		return fmt.Errorf("deleting %s key: %w", provider, err)
	}
	return nil
}
