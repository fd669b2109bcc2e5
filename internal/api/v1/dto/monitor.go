package dto

import "time"

// MonitorCreateRequest is the body of POST /monitors. Channel is a channel
// id, an @handle or a channel URL.
type MonitorCreateRequest struct {
	Channel string `json:"channel" validate:"required,max=200"`
}

// ClassifyRequest is the body of POST /monitors/classify. Either VPH or
// PublishedAt must be set; with PublishedAt the rate is computed from Views.
type ClassifyRequest struct {
	VPH             *float64   `json:"vph,omitempty" validate:"omitempty,gte=0"`
	Views           int64      `json:"views,omitempty" validate:"gte=0"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	SubscriberCount int64      `json:"subscriber_count" validate:"gte=0"`
}
