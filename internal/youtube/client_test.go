package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu sync.Mutex
	m  map[string]*Channel
}

func (c *memCache) Get(_ context.Context, key string) (*Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m[key], nil
}

func (c *memCache) Set(_ context.Context, key string, ch *Channel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = ch
	return nil
}

func newStub(t *testing.T, quotaKeys map[string]bool) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		mu.Lock()
		seen = append(seen, key)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if quotaKeys[key] {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"quota","errors":[{"reason":"quotaExceeded","domain":"youtube.quota"}]}}`))
			return
		}
		switch {
		case strings.HasSuffix(r.URL.Path, "/channels"):
			_, _ = w.Write([]byte(`{"items":[{"id":"UC123","snippet":{"title":"Camera Lab"},
"statistics":{"subscriberCount":"45000"},"contentDetails":{"relatedPlaylists":{"uploads":"UU123"}}}]}`))
		case strings.HasSuffix(r.URL.Path, "/playlistItems"):
			_, _ = w.Write([]byte(`{"items":[{"contentDetails":{"videoId":"v1"}},{"contentDetails":{"videoId":"v2"}}]}`))
		case strings.HasSuffix(r.URL.Path, "/search"):
			_, _ = w.Write([]byte(`{"items":[{"id":{"kind":"youtube#video","videoId":"v1"}}]}`))
		case strings.HasSuffix(r.URL.Path, "/videos"):
			_, _ = w.Write([]byte(`{"items":[
{"id":"v1","snippet":{"title":"First","channelId":"UC123","publishedAt":"2026-01-01T00:00:00Z"},"statistics":{"viewCount":"12000","likeCount":"300"}},
{"id":"v2","snippet":{"title":"Second","channelId":"UC123","publishedAt":"2026-01-02T00:00:00Z"},"statistics":{"viewCount":"800"}}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	return srv, &seen
}

func TestChannelRotatesOnQuotaAndCaches(t *testing.T) {
	srv, seen := newStub(t, map[string]bool{"spent": true})
	defer srv.Close()

	cache := &memCache{m: map[string]*Channel{}}
	c, err := NewClient(context.Background(), []string{"spent", "fresh"}, srv.URL+"/", cache)
	require.NoError(t, err)

	ch, err := c.Channel(context.Background(), "UC123")
	require.NoError(t, err)
	assert.Equal(t, "Camera Lab", ch.Title)
	assert.Equal(t, int64(45000), ch.SubscriberCount)
	assert.Equal(t, "UU123", ch.UploadsPlaylistID)
	assert.Equal(t, []string{"spent", "fresh"}, *seen)

	_, err = c.Channel(context.Background(), "UC123")
	require.NoError(t, err)
	assert.Len(t, *seen, 2, "second lookup should be served from cache")
}

func TestRecentVideos(t *testing.T) {
	srv, _ := newStub(t, nil)
	defer srv.Close()

	c, err := NewClient(context.Background(), []string{"k"}, srv.URL+"/", nil)
	require.NoError(t, err)

	videos, err := c.RecentVideos(context.Background(), "UU123", 10)
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, int64(12000), videos[0].Views)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), videos[0].PublishedAt.UTC())
}

func TestSearchVideos(t *testing.T) {
	srv, _ := newStub(t, nil)
	defer srv.Close()

	c, err := NewClient(context.Background(), []string{"k"}, srv.URL+"/", nil)
	require.NoError(t, err)

	videos, err := c.SearchVideos(context.Background(), "budget cameras", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, videos)
}

func TestNewClientWithoutKeys(t *testing.T) {
	_, err := NewClient(context.Background(), nil, "", nil)
	assert.Error(t, err)
}
