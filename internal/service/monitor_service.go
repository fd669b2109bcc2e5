package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"creatorstudio/internal/model"
	"creatorstudio/internal/pubsub"
	"creatorstudio/internal/repository"
	"creatorstudio/internal/velocity"
	"creatorstudio/internal/youtube"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ScanJob is the payload of a monitor scan queue message.
type ScanJob struct {
	MonitorID   string    `json:"monitor_id"`
	RequestedBy string    `json:"requested_by,omitempty"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// Enqueuer sends JSON jobs to a named queue.
type Enqueuer interface {
	SendJSON(ctx context.Context, queue string, v any) (int64, error)
}

// ScanReport summarises one monitor scan.
type ScanReport struct {
	MonitorID string `json:"monitor_id"`
	Videos    int    `json:"videos"`
	Alerts    int    `json:"alerts"`
	Skipped   bool   `json:"skipped,omitempty"`
}

type MonitorService interface {
	Create(ctx context.Context, userID, channel string) (*model.Monitor, error)
	List(ctx context.Context, userID string) ([]model.Monitor, error)
	Get(ctx context.Context, userID, id string) (*model.Monitor, error)
	Delete(ctx context.Context, userID, id string) error
	RequestScan(ctx context.Context, userID, id string) error
	Alerts(ctx context.Context, userID, id string, limit int) ([]model.Alert, error)
	Snapshots(ctx context.Context, userID, id string, limit int) ([]model.Snapshot, error)
	MarkAlertRead(ctx context.Context, userID, alertID string) error
	Classify(vph float64, subscriberCount int64) velocity.Classification

	// EnqueueActive queues a scan for every active monitor.
	EnqueueActive(ctx context.Context) (int, error)
	// Scan fetches fresh statistics for a monitor, stores snapshots and
	// raises alerts for viral and explosive videos.
	Scan(ctx context.Context, monitorID string) (*ScanReport, error)
}

type MonitorConfig struct {
	QueueName     string
	AlertTopic    string
	VideosPerScan int
}

type monitorService struct {
	repo      repository.MonitorRepository
	videos    VideoSource
	queue     Enqueuer
	publisher pubsub.Publisher
	cfg       MonitorConfig
	now       func() time.Time
	logger    zerolog.Logger
}

// NewMonitorService wires the monitor feature. publisher may be nil, in which
// case alerts are only stored.
func NewMonitorService(repo repository.MonitorRepository, videos VideoSource, queue Enqueuer, publisher pubsub.Publisher, cfg MonitorConfig, logger zerolog.Logger) MonitorService {
	if cfg.VideosPerScan <= 0 {
		cfg.VideosPerScan = 10
	}
	return &monitorService{
		repo:      repo,
		videos:    videos,
		queue:     queue,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger.With().Str("service", "MonitorService").Logger(),
	}
}

func (s *monitorService) Create(ctx context.Context, userID, channel string) (*model.Monitor, error) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return nil, fmt.Errorf("%w: channel is required", ErrInvalidInput)
	}
	ch, err := s.videos.Channel(ctx, channel)
	if err != nil {
		if errors.Is(err, youtube.ErrChannelNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}
	m := &model.Monitor{
		UserID:            userID,
		ChannelID:         ch.ID,
		ChannelTitle:      ch.Title,
		UploadsPlaylistID: ch.UploadsPlaylistID,
		SubscriberCount:   ch.SubscriberCount,
	}
	if err := s.repo.CreateMonitor(ctx, m); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("channel_id", ch.ID).Msg("Failed to create monitor")
		return nil, err
	}
	s.logger.Info().Str("monitor_id", m.ID).Str("channel_id", ch.ID).Msg("Monitor created")
	return m, nil
}

func (s *monitorService) List(ctx context.Context, userID string) ([]model.Monitor, error) {
	return s.repo.ListMonitors(ctx, userID)
}

func (s *monitorService) Get(ctx context.Context, userID, id string) (*model.Monitor, error) {
	m, err := s.repo.GetMonitor(ctx, id, userID)
	return m, translate(err)
}

func (s *monitorService) Delete(ctx context.Context, userID, id string) error {
	return translate(s.repo.DeleteMonitor(ctx, id, userID))
}

func (s *monitorService) RequestScan(ctx context.Context, userID, id string) error {
	if _, err := s.repo.GetMonitor(ctx, id, userID); err != nil {
		return translate(err)
	}
	msgID, err := s.queue.SendJSON(ctx, s.cfg.QueueName, ScanJob{MonitorID: id, RequestedBy: userID, EnqueuedAt: s.now()})
	if err != nil {
		s.logger.Error().Err(err).Str("monitor_id", id).Msg("Failed to enqueue scan")
		return err
	}
	s.logger.Info().Str("monitor_id", id).Int64("msg_id", msgID).Msg("Scan requested")
	return nil
}

func (s *monitorService) Alerts(ctx context.Context, userID, id string, limit int) ([]model.Alert, error) {
	limit, _ = clampPage(limit, 0)
	return s.repo.ListAlerts(ctx, id, userID, limit)
}

func (s *monitorService) Snapshots(ctx context.Context, userID, id string, limit int) ([]model.Snapshot, error) {
	if _, err := s.repo.GetMonitor(ctx, id, userID); err != nil {
		return nil, translate(err)
	}
	limit, _ = clampPage(limit, 0)
	return s.repo.ListSnapshots(ctx, id, limit)
}

func (s *monitorService) MarkAlertRead(ctx context.Context, userID, alertID string) error {
	return translate(s.repo.MarkAlertRead(ctx, alertID, userID))
}

func (s *monitorService) Classify(vph float64, subscriberCount int64) velocity.Classification {
	return velocity.Classify(vph, subscriberCount)
}

func (s *monitorService) EnqueueActive(ctx context.Context) (int, error) {
	ids, err := s.repo.ListActiveMonitorIDs(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	sent := 0
	for _, id := range ids {
		if _, err := s.queue.SendJSON(ctx, s.cfg.QueueName, ScanJob{MonitorID: id, EnqueuedAt: now}); err != nil {
			return sent, fmt.Errorf("enqueueing monitor %s: %w", id, err)
		}
		sent++
	}
	return sent, nil
}

func (s *monitorService) Scan(ctx context.Context, monitorID string) (*ScanReport, error) {
	report := &ScanReport{MonitorID: monitorID}
	m, err := s.repo.GetMonitorByID(ctx, monitorID)
	if errors.Is(err, pgx.ErrNoRows) {
		s.logger.Info().Str("monitor_id", monitorID).Msg("Monitor gone, dropping scan")
		report.Skipped = true
		return report, nil
	}
	if err != nil {
		return nil, err
	}
	if !m.Active {
		report.Skipped = true
		return report, nil
	}

	ch, err := s.videos.Channel(ctx, m.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("refreshing channel %s: %w", m.ChannelID, err)
	}
	videos, err := s.videos.RecentVideos(ctx, ch.UploadsPlaylistID, int64(s.cfg.VideosPerScan))
	if err != nil {
		return nil, fmt.Errorf("fetching uploads of %s: %w", m.ChannelID, err)
	}

	now := s.now()
	snaps := make([]model.Snapshot, 0, len(videos))
	var alerts []model.Alert
	for _, v := range videos {
		vph := velocity.VPH(v.Views, v.PublishedAt, now)
		c := velocity.Classify(vph, ch.SubscriberCount)
		snaps = append(snaps, model.Snapshot{
			MonitorID:   m.ID,
			VideoID:     v.ID,
			VideoTitle:  v.Title,
			PublishedAt: v.PublishedAt,
			Views:       v.Views,
			VPH:         vph,
			Label:       string(c.Label),
			Score:       c.Score,
			CapturedAt:  now,
		})
		if velocity.ShouldAlert(c.Label) {
			alerts = append(alerts, model.Alert{
				MonitorID:  m.ID,
				UserID:     m.UserID,
				VideoID:    v.ID,
				VideoTitle: v.Title,
				Label:      string(c.Label),
				Score:      c.Score,
				VPH:        vph,
				Reason:     c.Reason,
			})
		}
	}
	if err := s.repo.InsertSnapshots(ctx, snaps); err != nil {
		return nil, err
	}
	report.Videos = len(snaps)

	for i := range alerts {
		a := &alerts[i]
		created, err := s.repo.InsertAlert(ctx, a)
		if err != nil {
			return nil, err
		}
		if !created {
			continue
		}
		report.Alerts++
		s.publish(ctx, a, ch.Title)
	}

	if err := s.repo.UpdateChannelStats(ctx, m.ID, ch.Title, ch.SubscriberCount, now); err != nil {
		return nil, err
	}
	s.logger.Info().Str("monitor_id", m.ID).Int("videos", report.Videos).Int("alerts", report.Alerts).Msg("Monitor scanned")
	return report, nil
}

// publish is best effort: the alert row is already the source of truth.
func (s *monitorService) publish(ctx context.Context, a *model.Alert, channelTitle string) {
	if s.publisher == nil || s.cfg.AlertTopic == "" {
		return
	}
	msgID, err := pubsub.PublishAlert(ctx, s.publisher, s.cfg.AlertTopic, pubsub.NewAlertEvent(a, channelTitle))
	if err != nil {
		s.logger.Error().Err(err).Str("alert_id", a.ID).Msg("Failed to publish alert event")
		return
	}
	s.logger.Debug().Str("alert_id", a.ID).Str("msg_id", msgID).Msg("Alert event published")
}
