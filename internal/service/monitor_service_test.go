package service

import (
	"context"
	"testing"
	"time"

	"creatorstudio/internal/model"
	"creatorstudio/internal/velocity"
	"creatorstudio/internal/youtube"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitorService(repo *fakeMonitors, videos *fakeVideos, queue *fakeQueue, pub *fakePublisher, now time.Time) *monitorService {
	svc := NewMonitorService(repo, videos, queue, pub, MonitorConfig{QueueName: "monitor_scans", AlertTopic: "alerts"}, zerolog.Nop()).(*monitorService)
	svc.now = func() time.Time { return now }
	return svc
}

func TestMonitorScanStoresSnapshotsAndDedupesAlerts(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeMonitors{monitor: &model.Monitor{ID: "m1", UserID: "u1", ChannelID: "UC1", Active: true}}
	videos := &fakeVideos{
		channel: &youtube.Channel{ID: "UC1", Title: "Tiny Kitchen", SubscriberCount: 5000, UploadsPlaylistID: "UU1"},
		videos: []youtube.Video{
			{ID: "hot", Title: "Burger", Views: 5000, PublishedAt: now.Add(-2 * time.Hour)},
			{ID: "slow", Title: "Soup", Views: 100, PublishedAt: now.Add(-48 * time.Hour)},
		},
	}
	pub := &fakePublisher{}
	svc := newTestMonitorService(repo, videos, &fakeQueue{}, pub, now)

	report, err := svc.Scan(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Videos)
	assert.Equal(t, 1, report.Alerts)
	assert.True(t, repo.updated)

	require.Len(t, repo.snapshots, 2)
	assert.Equal(t, string(velocity.LabelExplosive), repo.snapshots[0].Label)
	assert.InDelta(t, 2500, repo.snapshots[0].VPH, 1e-9)
	assert.Equal(t, string(velocity.LabelNormal), repo.snapshots[1].Label)

	require.Len(t, pub.attrs, 1)
	assert.Equal(t, "u1", pub.attrs[0]["user_id"])

	report, err = svc.Scan(context.Background(), "m1")
	require.NoError(t, err)
	assert.Zero(t, report.Alerts)
	assert.Len(t, repo.snapshots, 4)
	assert.Len(t, pub.attrs, 1)
}

func TestMonitorScanSkipsMissingAndInactive(t *testing.T) {
	repo := &fakeMonitors{}
	svc := newTestMonitorService(repo, &fakeVideos{}, &fakeQueue{}, nil, time.Now())

	report, err := svc.Scan(context.Background(), "gone")
	require.NoError(t, err)
	assert.True(t, report.Skipped)

	repo.monitor = &model.Monitor{ID: "m1", Active: false}
	report, err = svc.Scan(context.Background(), "m1")
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Empty(t, repo.snapshots)
}

func TestMonitorCreate(t *testing.T) {
	repo := &fakeMonitors{}
	svc := newTestMonitorService(repo, &fakeVideos{}, &fakeQueue{}, nil, time.Now())

	_, err := svc.Create(context.Background(), "u1", "@nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Create(context.Background(), "u1", " ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	svc.videos = &fakeVideos{channel: &youtube.Channel{ID: "UC9", Title: "Nine", SubscriberCount: 42, UploadsPlaylistID: "UU9"}}
	m, err := svc.Create(context.Background(), "u1", "@nine")
	require.NoError(t, err)
	assert.Equal(t, "UC9", m.ChannelID)
	assert.Equal(t, "UU9", m.UploadsPlaylistID)
	assert.Equal(t, int64(42), m.SubscriberCount)
}

func TestMonitorQueueing(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeMonitors{monitor: &model.Monitor{ID: "m1", UserID: "u1", Active: true}}
	queue := &fakeQueue{}
	svc := newTestMonitorService(repo, &fakeVideos{}, queue, nil, now)

	n, err := svc.EnqueueActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.ErrorIs(t, svc.RequestScan(context.Background(), "u2", "m1"), ErrNotFound)
	require.NoError(t, svc.RequestScan(context.Background(), "u1", "m1"))
	require.Len(t, queue.jobs, 4)
	assert.Equal(t, ScanJob{MonitorID: "m1", RequestedBy: "u1", EnqueuedAt: now}, queue.jobs[3])
}
