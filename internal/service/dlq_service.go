package service

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"creatorstudio/internal/model"
	"creatorstudio/internal/repository"

	"github.com/rs/zerolog"
)

// DeadLetter is a Pub/Sub push delivery from a dead letter subscription.
type DeadLetter struct {
	Subscription string
	MessageID    string
	Data         string // base64
	Attributes   map[string]string
}

type DLQService interface {
	ProcessAndSave(ctx context.Context, msg DeadLetter) error
}

type dlqService struct {
	repo   repository.DLQRepository
	logger zerolog.Logger
}

func NewDLQService(repo repository.DLQRepository, logger zerolog.Logger) DLQService {
	return &dlqService{repo: repo, logger: logger.With().Str("service", "DLQService").Logger()}
}

func (s *dlqService) ProcessAndSave(ctx context.Context, msg DeadLetter) error {
	payload, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		// Keep undecodable data verbatim.
		payload = []byte(msg.Data)
	}

	var attrs *string
	if len(msg.Attributes) > 0 {
		if b, err := json.Marshal(msg.Attributes); err == nil {
			v := string(b)
			attrs = &v
		}
	}

	dl := &model.DeadLetterMessage{
		SubscriptionName: msg.Subscription,
		MessageID:        msg.MessageID,
		Payload:          string(payload),
		Attributes:       attrs,
		Status:           "unprocessed",
	}
	if err := s.repo.Create(ctx, dl); err != nil {
		return err
	}
	s.logger.Warn().Str("subscription", msg.Subscription).Str("message_id", msg.MessageID).Msg("Dead letter stored")
	return nil
}
