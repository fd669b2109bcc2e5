package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"creatorstudio/internal/llm"
	"creatorstudio/internal/model"
	"creatorstudio/internal/repository"
	"creatorstudio/internal/youtube"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// fakeLLM answers every request with reply, streaming it in words.
type fakeLLM struct {
	reply    string
	err      error
	requests []llm.Request
}

func (f *fakeLLM) Generate(_ context.Context, req llm.Request) (string, error) {
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

func (f *fakeLLM) Stream(_ context.Context, req llm.Request, onDelta func(string) error) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	for _, part := range []string{f.reply[:len(f.reply)/2], f.reply[len(f.reply)/2:]} {
		if err := onDelta(part); err != nil {
			return "", err
		}
	}
	return f.reply, nil
}

func clientsFor(c llm.Client) *ModelClients {
	return NewModelClients(llm.NewRouter(c, c, "gpt-test"), nil, "", "", zerolog.Nop())
}

type fakeUsage struct {
	denied   bool
	reserved int
	released int
}

func (f *fakeUsage) Reserve(context.Context, string, model.Kind) (func(), error) {
	if f.denied {
		return nil, ErrQuotaExceeded
	}
	f.reserved++
	return func() { f.released++ }, nil
}

func (f *fakeUsage) GetUsage(context.Context, string) (*model.UserUsage, error) {
	return &model.UserUsage{CurrentUsage: f.reserved - f.released}, nil
}

type fakeGenerations struct {
	mu   sync.Mutex
	rows []*model.Generation
	err  error
}

func (f *fakeGenerations) Create(_ context.Context, g *model.Generation) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	g.ID = fmt.Sprintf("gen-%d", len(f.rows)+1)
	g.CreatedAt = time.Now()
	f.rows = append(f.rows, g)
	return nil
}

func (f *fakeGenerations) Get(_ context.Context, kind model.Kind, id, userID string) (*model.Generation, error) {
	for _, g := range f.rows {
		if g.Kind == kind && g.ID == id && g.UserID == userID {
			cp := *g
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%s %s not found: %w", kind, id, pgx.ErrNoRows)
}

func (f *fakeGenerations) List(_ context.Context, kind model.Kind, userID string, limit, offset int) ([]model.Generation, error) {
	var out []model.Generation
	for _, g := range f.rows {
		if g.Kind == kind && g.UserID == userID {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (f *fakeGenerations) Delete(_ context.Context, kind model.Kind, id, userID string) error {
	for i, g := range f.rows {
		if g.Kind == kind && g.ID == id && g.UserID == userID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%s %s not found: %w", kind, id, pgx.ErrNoRows)
}

type fakeStore struct {
	objects map[string][]byte
	deleted []string
}

func newFakeStore() *fakeStore { return &fakeStore{objects: map[string][]byte{}} }

func (f *fakeStore) Put(_ context.Context, key string, body []byte, _ string) error {
	f.objects[key] = body
	return nil
}

func (f *fakeStore) PresignGet(_ context.Context, key string) (string, error) {
	return "https://signed.example/" + key, nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeImages struct{ prompts []string }

func (f *fakeImages) GenerateImage(_ context.Context, prompt, _ string) ([]byte, error) {
	f.prompts = append(f.prompts, prompt)
	return []byte("\x89PNG"), nil
}

type fakeVideos struct {
	channel *youtube.Channel
	videos  []youtube.Video
}

func (f *fakeVideos) Channel(_ context.Context, idOrHandle string) (*youtube.Channel, error) {
	if f.channel == nil {
		return nil, youtube.ErrChannelNotFound
	}
	return f.channel, nil
}

func (f *fakeVideos) RecentVideos(context.Context, string, int64) ([]youtube.Video, error) {
	return f.videos, nil
}

func (f *fakeVideos) SearchVideos(context.Context, string, int64) ([]youtube.Video, error) {
	return f.videos, nil
}

type fakeQueue struct{ jobs []any }

func (f *fakeQueue) SendJSON(_ context.Context, _ string, v any) (int64, error) {
	f.jobs = append(f.jobs, v)
	return int64(len(f.jobs)), nil
}

type fakePublisher struct{ attrs []map[string]string }

func (f *fakePublisher) Publish(_ context.Context, _ string, _ []byte, attrs map[string]string) (string, error) {
	f.attrs = append(f.attrs, attrs)
	return "m", nil
}

type fakeMonitors struct {
	repository.MonitorRepository
	monitor   *model.Monitor
	snapshots []model.Snapshot
	alerts    map[string]model.Alert
	updated   bool
}

func (f *fakeMonitors) GetMonitorByID(_ context.Context, id string) (*model.Monitor, error) {
	if f.monitor == nil || f.monitor.ID != id {
		return nil, fmt.Errorf("getting monitor %s: %w", id, pgx.ErrNoRows)
	}
	return f.monitor, nil
}

func (f *fakeMonitors) GetMonitor(ctx context.Context, id, userID string) (*model.Monitor, error) {
	m, err := f.GetMonitorByID(ctx, id)
	if err != nil || m.UserID != userID {
		return nil, fmt.Errorf("monitor %s not found: %w", id, pgx.ErrNoRows)
	}
	return m, nil
}

func (f *fakeMonitors) CreateMonitor(_ context.Context, m *model.Monitor) error {
	m.ID = "mon-1"
	m.Active = true
	f.monitor = m
	return nil
}

func (f *fakeMonitors) ListActiveMonitorIDs(context.Context) ([]string, error) {
	return []string{"a", "b", "c"}, nil
}

func (f *fakeMonitors) InsertSnapshots(_ context.Context, snaps []model.Snapshot) error {
	f.snapshots = append(f.snapshots, snaps...)
	return nil
}

func (f *fakeMonitors) InsertAlert(_ context.Context, a *model.Alert) (bool, error) {
	if f.alerts == nil {
		f.alerts = map[string]model.Alert{}
	}
	key := a.MonitorID + "/" + a.VideoID + "/" + a.Label
	if _, ok := f.alerts[key]; ok {
		return false, nil
	}
	a.ID = "alert-" + a.VideoID
	f.alerts[key] = *a
	return true, nil
}

func (f *fakeMonitors) UpdateChannelStats(context.Context, string, string, int64, time.Time) error {
	f.updated = true
	return nil
}

type fakeSubscriptions struct {
	repository.SubscriptionRepository
	active     *model.UserSubscription
	existing   bool
	plans      map[string]*model.SubscriptionPlan
	upserted   []string
	downgraded []string
}

func (f *fakeSubscriptions) GetActiveSubscription(_ context.Context, userID string) (*model.UserSubscription, error) {
	if f.active == nil {
		return nil, fmt.Errorf("fetch active subscription for user %s: %w", userID, pgx.ErrNoRows)
	}
	return f.active, nil
}

func (f *fakeSubscriptions) GetSubscription(_ context.Context, userID string) (*model.UserSubscription, error) {
	if !f.existing && f.active == nil {
		return nil, fmt.Errorf("fetch subscription for user %s: %w", userID, pgx.ErrNoRows)
	}
	return &model.UserSubscription{UserID: userID, PlanID: "free"}, nil
}

func (f *fakeSubscriptions) start(userID, planID string) {
	now := time.Now()
	f.active = &model.UserSubscription{UserID: userID, PlanID: planID, StartsAt: now, EndsAt: now.AddDate(0, 1, 0), Status: "active"}
}

func (f *fakeSubscriptions) UpsertSubscription(_ context.Context, userID, planID string) error {
	f.upserted = append(f.upserted, userID)
	f.start(userID, planID)
	return nil
}

func (f *fakeSubscriptions) DowngradeUserToFreePlan(_ context.Context, userID, planID string) error {
	f.downgraded = append(f.downgraded, userID)
	f.start(userID, planID)
	return nil
}

func (f *fakeSubscriptions) GetPlanByID(_ context.Context, planID string) (*model.SubscriptionPlan, error) {
	if p, ok := f.plans[planID]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("fetch plan %s: %w", planID, pgx.ErrNoRows)
}

type fakeUsageRepo struct {
	count    int
	released []int64
}

func (f *fakeUsageRepo) CheckAndRecordGeneration(_ context.Context, _, _ string, _, _ time.Time, max int) (int64, error) {
	if max > 0 && f.count >= max {
		return 0, repository.ErrGenerationLimitExceeded
	}
	f.count++
	return int64(f.count), nil
}

func (f *fakeUsageRepo) ReleaseGeneration(_ context.Context, id int64) error {
	f.count--
	f.released = append(f.released, id)
	return nil
}

func (f *fakeUsageRepo) CountGenerationsInTimeRange(context.Context, string, time.Time, time.Time) (int, error) {
	return f.count, nil
}
