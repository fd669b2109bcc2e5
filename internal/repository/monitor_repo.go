package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"creatorstudio/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MonitorRepository stores watched channels, their scan snapshots and alerts.
type MonitorRepository interface {
	CreateMonitor(ctx context.Context, m *model.Monitor) error
	GetMonitor(ctx context.Context, id, userID string) (*model.Monitor, error)
	// GetMonitorByID skips the ownership check. Workers only.
	GetMonitorByID(ctx context.Context, id string) (*model.Monitor, error)
	ListMonitors(ctx context.Context, userID string) ([]model.Monitor, error)
	ListActiveMonitorIDs(ctx context.Context) ([]string, error)
	DeleteMonitor(ctx context.Context, id, userID string) error
	UpdateChannelStats(ctx context.Context, id, title string, subscribers int64, scannedAt time.Time) error

	InsertSnapshots(ctx context.Context, snaps []model.Snapshot) error
	ListSnapshots(ctx context.Context, monitorID string, limit int) ([]model.Snapshot, error)

	// InsertAlert stores a once per (monitor, video, label) and reports
	// whether a new row was written.
	InsertAlert(ctx context.Context, a *model.Alert) (bool, error)
	ListAlerts(ctx context.Context, monitorID, userID string, limit int) ([]model.Alert, error)
	MarkAlertRead(ctx context.Context, id, userID string) error
}

type monitorRepo struct {
	pool *pgxpool.Pool
}

func NewMonitorRepo(pool *pgxpool.Pool) MonitorRepository {
	return &monitorRepo{pool: pool}
}

const monitorColumns = `id, user_id, channel_id, channel_title, uploads_playlist_id, subscriber_count, active, last_scanned_at, created_at, updated_at`

func scanMonitor(row pgx.Row) (*model.Monitor, error) {
	var m model.Monitor
	err := row.Scan(&m.ID, &m.UserID, &m.ChannelID, &m.ChannelTitle, &m.UploadsPlaylistID,
		&m.SubscriberCount, &m.Active, &m.LastScannedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *monitorRepo) CreateMonitor(ctx context.Context, m *model.Monitor) error {
	query := `
		INSERT INTO monitors (user_id, channel_id, channel_title, uploads_playlist_id, subscriber_count, active)
		VALUES ($1, $2, $3, $4, $5, true)
		ON CONFLICT (user_id, channel_id) DO UPDATE
		SET channel_title = EXCLUDED.channel_title,
		    uploads_playlist_id = EXCLUDED.uploads_playlist_id,
		    subscriber_count = EXCLUDED.subscriber_count,
		    active = true,
		    updated_at = NOW()
		RETURNING ` + monitorColumns
	created, err := scanMonitor(r.pool.QueryRow(ctx, query, m.UserID, m.ChannelID, m.ChannelTitle, m.UploadsPlaylistID, m.SubscriberCount))
	if err != nil {
		return fmt.Errorf("creating monitor for channel %s: %w", m.ChannelID, err)
	}
	*m = *created
	return nil
}

func (r *monitorRepo) GetMonitor(ctx context.Context, id, userID string) (*model.Monitor, error) {
	m, err := scanMonitor(r.pool.QueryRow(ctx, `SELECT `+monitorColumns+` FROM monitors WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("monitor %s not found: %w", id, err)
		}
		return nil, fmt.Errorf("getting monitor %s: %w", id, err)
	}
	return m, nil
}

func (r *monitorRepo) GetMonitorByID(ctx context.Context, id string) (*model.Monitor, error) {
	m, err := scanMonitor(r.pool.QueryRow(ctx, `SELECT `+monitorColumns+` FROM monitors WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("getting monitor %s: %w", id, err)
	}
	return m, nil
}

func (r *monitorRepo) ListMonitors(ctx context.Context, userID string) ([]model.Monitor, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+monitorColumns+` FROM monitors WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying monitors: %w", err)
	}
	defer rows.Close()

	out := []model.Monitor{}
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning monitor row: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating monitor rows: %w", err)
	}
	return out, nil
}

func (r *monitorRepo) ListActiveMonitorIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM monitors WHERE active ORDER BY last_scanned_at NULLS FIRST`)
	if err != nil {
		return nil, fmt.Errorf("querying active monitors: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collecting active monitors: %w", err)
	}
	return ids, nil
}

func (r *monitorRepo) DeleteMonitor(ctx context.Context, id, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM monitors WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting monitor %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("monitor %s not found: %w", id, pgx.ErrNoRows)
	}
	return nil
}

func (r *monitorRepo) UpdateChannelStats(ctx context.Context, id, title string, subscribers int64, scannedAt time.Time) error {
	const q = `
		UPDATE monitors
		SET channel_title = $2, subscriber_count = $3, last_scanned_at = $4, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.pool.Exec(ctx, q, id, title, subscribers, scannedAt); err != nil {
		return fmt.Errorf("updating monitor %s stats: %w", id, err)
	}
	return nil
}

func (r *monitorRepo) InsertSnapshots(ctx context.Context, snaps []model.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	const q = `
		INSERT INTO snapshots (monitor_id, video_id, video_title, published_at, views, vph, label, score, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	batch := &pgx.Batch{}
	for _, s := range snaps {
		batch.Queue(q, s.MonitorID, s.VideoID, s.VideoTitle, s.PublishedAt, s.Views, s.VPH, s.Label, s.Score, s.CapturedAt)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting %d snapshots: %w", len(snaps), err)
	}
	return nil
}

func (r *monitorRepo) ListSnapshots(ctx context.Context, monitorID string, limit int) ([]model.Snapshot, error) {
	const q = `
		SELECT id, monitor_id, video_id, video_title, published_at, views, vph, label, score, captured_at
		FROM snapshots
		WHERE monitor_id = $1
		ORDER BY captured_at DESC, vph DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, q, monitorID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	out := []model.Snapshot{}
	for rows.Next() {
		var s model.Snapshot
		if err := rows.Scan(&s.ID, &s.MonitorID, &s.VideoID, &s.VideoTitle, &s.PublishedAt,
			&s.Views, &s.VPH, &s.Label, &s.Score, &s.CapturedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshot rows: %w", err)
	}
	return out, nil
}

func (r *monitorRepo) InsertAlert(ctx context.Context, a *model.Alert) (bool, error) {
	const q = `
		INSERT INTO alerts (monitor_id, user_id, video_id, video_title, label, score, vph, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (monitor_id, video_id, label) DO NOTHING
		RETURNING id, read, created_at
	`
	err := r.pool.QueryRow(ctx, q, a.MonitorID, a.UserID, a.VideoID, a.VideoTitle, a.Label, a.Score, a.VPH, a.Reason).
		Scan(&a.ID, &a.Read, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("inserting alert for video %s: %w", a.VideoID, err)
	}
	return true, nil
}

func (r *monitorRepo) ListAlerts(ctx context.Context, monitorID, userID string, limit int) ([]model.Alert, error) {
	const q = `
		SELECT id, monitor_id, user_id, video_id, video_title, label, score, vph, reason, read, created_at
		FROM alerts
		WHERE monitor_id = $1 AND user_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, q, monitorID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	out := []model.Alert{}
	for rows.Next() {
		var a model.Alert
		if err := rows.Scan(&a.ID, &a.MonitorID, &a.UserID, &a.VideoID, &a.VideoTitle,
			&a.Label, &a.Score, &a.VPH, &a.Reason, &a.Read, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning alert row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alert rows: %w", err)
	}
	return out, nil
}

func (r *monitorRepo) MarkAlertRead(ctx context.Context, id, userID string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE alerts SET read = true WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("marking alert %s read: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alert %s not found: %w", id, pgx.ErrNoRows)
	}
	return nil
}
