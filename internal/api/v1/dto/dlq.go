package dto

import "creatorstudio/internal/service"

// PubSubPushRequest is the request body for a Pub/Sub push notification.
type PubSubPushRequest struct {
	Message      PubSubMessage `json:"message" validate:"required"`
	Subscription string        `json:"subscription" validate:"required"`
}

// PubSubMessage is the actual message from Pub/Sub.
type PubSubMessage struct {
	Data       string            `json:"data"` // Base64-encoded
	MessageID  string            `json:"messageId" validate:"required"`
	Attributes map[string]string `json:"attributes"`
}

func (r PubSubPushRequest) DeadLetter() service.DeadLetter {
	return service.DeadLetter{
		Subscription: r.Subscription,
		MessageID:    r.Message.MessageID,
		Data:         r.Message.Data,
		Attributes:   r.Message.Attributes,
	}
}
