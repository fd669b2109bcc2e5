// Package youtube reads channel and video statistics from the YouTube Data
// API for niche research and competitor monitoring.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"creatorstudio/internal/keypool"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

// ErrChannelNotFound is returned when a channel id or handle resolves to nothing.
var ErrChannelNotFound = errors.New("channel not found")

// Channel is the subset of channel data the product uses.
type Channel struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	ThumbnailURL      string `json:"thumbnail_url"`
	SubscriberCount   int64  `json:"subscriber_count"`
	UploadsPlaylistID string `json:"uploads_playlist_id"`
}

// Video carries the statistics needed to compute views per hour.
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ChannelID    string    `json:"channel_id"`
	ChannelTitle string    `json:"channel_title"`
	PublishedAt  time.Time `json:"published_at"`
	Views        int64     `json:"views"`
	Likes        int64     `json:"likes"`
	Comments     int64     `json:"comments"`
}

// Client wraps one YouTube service per API key.
type Client struct {
	keys     *keypool.Pool
	services map[string]*yt.Service
	cache    ChannelCache
}

// NewClient builds a service for every key. endpoint overrides the API base
// URL when non-empty. cache may be nil.
func NewClient(ctx context.Context, keys []string, endpoint string, cache ChannelCache) (*Client, error) {
	pool := keypool.New(keys)
	if pool.Len() == 0 {
		return nil, keypool.ErrNoKeys
	}
	services := make(map[string]*yt.Service, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		opts := []option.ClientOption{option.WithAPIKey(k)}
		if endpoint != "" {
			opts = append(opts, option.WithEndpoint(endpoint))
		}
		svc, err := yt.NewService(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating youtube service: %w", err)
		}
		services[k] = svc
	}
	return &Client{keys: pool, services: services, cache: cache}, nil
}

// isQuotaError reports 429s and the 403 quota reasons YouTube uses instead.
func isQuotaError(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	if apiErr.Code != http.StatusForbidden {
		return false
	}
	for _, item := range apiErr.Errors {
		switch item.Reason {
		case "quotaExceeded", "rateLimitExceeded", "userRateLimitExceeded", "dailyLimitExceeded":
			return true
		}
	}
	return false
}

func (c *Client) do(ctx context.Context, fn func(svc *yt.Service) error) error {
	return c.keys.Do(ctx, isQuotaError, func(key string) error {
		return fn(c.services[key])
	})
}

// Channel resolves a channel by id ("UC...") or handle ("@name").
func (c *Client) Channel(ctx context.Context, idOrHandle string) (*Channel, error) {
	idOrHandle = strings.TrimSpace(idOrHandle)
	if idOrHandle == "" {
		return nil, ErrChannelNotFound
	}
	if c.cache != nil {
		if ch, err := c.cache.Get(ctx, idOrHandle); err == nil && ch != nil {
			return ch, nil
		}
	}

	var resp *yt.ChannelListResponse
	err := c.do(ctx, func(svc *yt.Service) error {
		call := svc.Channels.List([]string{"snippet", "statistics", "contentDetails"})
		if strings.HasPrefix(idOrHandle, "@") {
			call = call.ForHandle(idOrHandle)
		} else {
			call = call.Id(idOrHandle)
		}
		var err error
		resp, err = call.Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing channel %s: %w", idOrHandle, err)
	}
	if len(resp.Items) == 0 {
		return nil, ErrChannelNotFound
	}

	item := resp.Items[0]
	ch := &Channel{ID: item.Id}
	if item.Snippet != nil {
		ch.Title = item.Snippet.Title
		if item.Snippet.Thumbnails != nil && item.Snippet.Thumbnails.Default != nil {
			ch.ThumbnailURL = item.Snippet.Thumbnails.Default.Url
		}
	}
	if item.Statistics != nil {
		ch.SubscriberCount = int64(item.Statistics.SubscriberCount)
	}
	if item.ContentDetails != nil && item.ContentDetails.RelatedPlaylists != nil {
		ch.UploadsPlaylistID = item.ContentDetails.RelatedPlaylists.Uploads
	}

	if c.cache != nil {
		_ = c.cache.Set(ctx, idOrHandle, ch)
	}
	return ch, nil
}

// RecentVideos returns statistics for the newest uploads of a playlist.
func (c *Client) RecentVideos(ctx context.Context, playlistID string, max int64) ([]Video, error) {
	var ids []string
	err := c.do(ctx, func(svc *yt.Service) error {
		resp, err := svc.PlaylistItems.List([]string{"contentDetails"}).
			PlaylistId(playlistID).
			MaxResults(max).
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		ids = ids[:0]
		for _, it := range resp.Items {
			if it.ContentDetails != nil && it.ContentDetails.VideoId != "" {
				ids = append(ids, it.ContentDetails.VideoId)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing playlist %s: %w", playlistID, err)
	}
	return c.Videos(ctx, ids)
}

// SearchVideos returns the most viewed videos matching query.
func (c *Client) SearchVideos(ctx context.Context, query string, max int64) ([]Video, error) {
	var ids []string
	err := c.do(ctx, func(svc *yt.Service) error {
		resp, err := svc.Search.List([]string{"id"}).
			Q(query).
			Type("video").
			Order("viewCount").
			MaxResults(max).
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		ids = ids[:0]
		for _, it := range resp.Items {
			if it.Id != nil && it.Id.VideoId != "" {
				ids = append(ids, it.Id.VideoId)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}
	return c.Videos(ctx, ids)
}

// Videos fetches snippet and statistics for ids.
func (c *Client) Videos(ctx context.Context, ids []string) ([]Video, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []Video
	err := c.do(ctx, func(svc *yt.Service) error {
		resp, err := svc.Videos.List([]string{"snippet", "statistics"}).Id(ids...).Context(ctx).Do()
		if err != nil {
			return err
		}
		out = out[:0]
		for _, it := range resp.Items {
			out = append(out, toVideo(it))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing videos: %w", err)
	}
	return out, nil
}

func toVideo(it *yt.Video) Video {
	v := Video{ID: it.Id}
	if it.Snippet != nil {
		v.Title = it.Snippet.Title
		v.ChannelID = it.Snippet.ChannelId
		v.ChannelTitle = it.Snippet.ChannelTitle
		if t, err := time.Parse(time.RFC3339, it.Snippet.PublishedAt); err == nil {
			v.PublishedAt = t
		}
	}
	if it.Statistics != nil {
		v.Views = int64(it.Statistics.ViewCount)
		v.Likes = int64(it.Statistics.LikeCount)
		v.Comments = int64(it.Statistics.CommentCount)
	}
	return v
}
