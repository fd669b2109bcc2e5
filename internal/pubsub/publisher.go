package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"creatorstudio/internal/config"
	"creatorstudio/internal/model"

	"cloud.google.com/go/pubsub"
)

// Publisher defines an interface for publishing messages.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, attrs map[string]string) (string, error)
}

// PubSubPublisher is an implementation of Publisher using Google Pub/Sub.
type PubSubPublisher struct {
	client *pubsub.Client
}

// NewPublisher creates a new PubSubPublisher using the GCP project from config.
// PUBSUB_EMULATOR_HOST is honoured by the client library.
func NewPublisher(ctx context.Context, cfg *config.Config) (*PubSubPublisher, error) {
	if cfg.GCPProjectID == "" {
		return nil, errors.New("pubsub: GCP project id is required")
	}
	client, err := pubsub.NewClient(ctx, cfg.GCPProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating Pub/Sub client: %w", err)
	}
	return &PubSubPublisher{client: client}, nil
}

// Publish sends the payload to the given Pub/Sub topic and returns the message ID.
func (p *PubSubPublisher) Publish(ctx context.Context, topic string, payload []byte, attrs map[string]string) (string, error) {
	t := p.client.Topic(topic)
	defer t.Stop()
	result := t.Publish(ctx, &pubsub.Message{Data: payload, Attributes: attrs})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publishing to topic %s: %w", topic, err)
	}
	return id, nil
}

func (p *PubSubPublisher) Close() error {
	return p.client.Close()
}

// AlertEvent is the message body published for a new classifier alert.
type AlertEvent struct {
	AlertID      string    `json:"alert_id"`
	MonitorID    string    `json:"monitor_id"`
	UserID       string    `json:"user_id"`
	ChannelTitle string    `json:"channel_title"`
	VideoID      string    `json:"video_id"`
	VideoTitle   string    `json:"video_title"`
	Label        string    `json:"label"`
	Score        int       `json:"score"`
	VPH          float64   `json:"vph"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

func NewAlertEvent(a *model.Alert, channelTitle string) AlertEvent {
	return AlertEvent{
		AlertID:      a.ID,
		MonitorID:    a.MonitorID,
		UserID:       a.UserID,
		ChannelTitle: channelTitle,
		VideoID:      a.VideoID,
		VideoTitle:   a.VideoTitle,
		Label:        a.Label,
		Score:        a.Score,
		VPH:          a.VPH,
		Reason:       a.Reason,
		CreatedAt:    a.CreatedAt,
	}
}

// PublishAlert encodes ev and publishes it with user_id and label attributes
// so subscriptions can filter on them.
func PublishAlert(ctx context.Context, pub Publisher, topic string, ev AlertEvent) (string, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("encoding alert %s: %w", ev.AlertID, err)
	}
	return pub.Publish(ctx, topic, payload, map[string]string{
		"user_id": ev.UserID,
		"label":   ev.Label,
	})
}
