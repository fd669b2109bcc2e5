package model

import "time"

// Monitor is a competitor channel watched by a user.
type Monitor struct {
	ID                string     `db:"id" json:"id"`
	UserID            string     `db:"user_id" json:"user_id"`
	ChannelID         string     `db:"channel_id" json:"channel_id"`
	ChannelTitle      string     `db:"channel_title" json:"channel_title"`
	UploadsPlaylistID string     `db:"uploads_playlist_id" json:"uploads_playlist_id"`
	SubscriberCount   int64      `db:"subscriber_count" json:"subscriber_count"`
	Active            bool       `db:"active" json:"active"`
	LastScannedAt     *time.Time `db:"last_scanned_at" json:"last_scanned_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// Snapshot is a video's statistics at one scan.
type Snapshot struct {
	ID          string    `db:"id" json:"id"`
	MonitorID   string    `db:"monitor_id" json:"monitor_id"`
	VideoID     string    `db:"video_id" json:"video_id"`
	VideoTitle  string    `db:"video_title" json:"video_title"`
	PublishedAt time.Time `db:"published_at" json:"published_at"`
	Views       int64     `db:"views" json:"views"`
	VPH         float64   `db:"vph" json:"vph"`
	Label       string    `db:"label" json:"label"`
	Score       int       `db:"score" json:"score"`
	CapturedAt  time.Time `db:"captured_at" json:"captured_at"`
}

// Alert is raised when a monitored video is classified viral or explosive.
type Alert struct {
	ID         string    `db:"id" json:"id"`
	MonitorID  string    `db:"monitor_id" json:"monitor_id"`
	UserID     string    `db:"user_id" json:"user_id"`
	VideoID    string    `db:"video_id" json:"video_id"`
	VideoTitle string    `db:"video_title" json:"video_title"`
	Label      string    `db:"label" json:"label"`
	Score      int       `db:"score" json:"score"`
	VPH        float64   `db:"vph" json:"vph"`
	Reason     string    `db:"reason" json:"reason"`
	Read       bool      `db:"read" json:"read"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
