package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"creatorstudio/internal/pgmq"
	"creatorstudio/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mu      sync.Mutex
	pending []*pgmq.Message
	sent    map[string][]any
	deleted []int64
}

func (q *fakeQueue) ReadWithPoll(ctx context.Context, _ string, _, _, _ int) ([]*pgmq.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, ctx.Err()
	}
	m := q.pending[0]
	q.pending = q.pending[1:]
	return []*pgmq.Message{m}, nil
}

func (q *fakeQueue) SendJSON(_ context.Context, queue string, v any) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.sent == nil {
		q.sent = map[string][]any{}
	}
	q.sent[queue] = append(q.sent[queue], v)
	return int64(len(q.sent[queue])), nil
}

func (q *fakeQueue) Delete(_ context.Context, _ string, ids []int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted = append(q.deleted, ids...)
	return nil
}

type fakeScanner struct {
	failures map[string]int
	calls    map[string]int
}

func (s *fakeScanner) Scan(_ context.Context, id string) (*service.ScanReport, error) {
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[id]++
	if s.calls[id] <= s.failures[id] {
		return nil, errors.New("youtube unavailable")
	}
	return &service.ScanReport{MonitorID: id, Videos: 3}, nil
}

func job(t *testing.T, id int64, monitorID string, readCount int) *pgmq.Message {
	data, err := json.Marshal(service.ScanJob{MonitorID: monitorID})
	require.NoError(t, err)
	return &pgmq.Message{ID: id, ReadCount: readCount, Data: data}
}

var testCfg = Config{Queue: "scans", DeadLetterQueue: "scans_dlq", MaxRetries: 3, BackoffInitial: time.Millisecond, BackoffMax: 2 * time.Millisecond}

func TestHandleRetriesThenSucceeds(t *testing.T) {
	q := &fakeQueue{}
	s := &fakeScanner{failures: map[string]int{"m1": 2}}
	handle(context.Background(), zerolog.Nop(), q, s, testCfg, job(t, 1, "m1", 1))

	assert.Equal(t, 3, s.calls["m1"])
	assert.Equal(t, []int64{1}, q.deleted)
	assert.Empty(t, q.sent["scans_dlq"])
}

func TestHandleMovesExhaustedJobToDLQ(t *testing.T) {
	q := &fakeQueue{}
	s := &fakeScanner{failures: map[string]int{"m1": 10}}
	handle(context.Background(), zerolog.Nop(), q, s, testCfg, job(t, 7, "m1", 1))

	assert.Equal(t, 3, s.calls["m1"])
	assert.Equal(t, []int64{7}, q.deleted)
	require.Len(t, q.sent["scans_dlq"], 1)
	dl := q.sent["scans_dlq"][0].(DeadLetter)
	assert.Equal(t, "m1", dl.Job.MonitorID)
	assert.Equal(t, 3, dl.Attempts)
	assert.Equal(t, "youtube unavailable", dl.Message)
}

func TestHandleDropsMalformedAndOverReadJobs(t *testing.T) {
	q := &fakeQueue{}
	s := &fakeScanner{}
	handle(context.Background(), zerolog.Nop(), q, s, testCfg, &pgmq.Message{ID: 1, ReadCount: 1, Data: []byte(`{"nope":true}`)})
	handle(context.Background(), zerolog.Nop(), q, s, testCfg, job(t, 2, "m2", 4))

	assert.Equal(t, []int64{1, 2}, q.deleted)
	assert.Zero(t, s.calls["m2"])
	assert.Len(t, q.sent["scans_dlq"], 1)
}

func TestRunStopsOnCancel(t *testing.T) {
	q := &fakeQueue{pending: []*pgmq.Message{job(t, 1, "m1", 1), job(t, 2, "m2", 1)}}
	s := &fakeScanner{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Run(ctx, zerolog.Nop(), q, s, testCfg) }()

	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.deleted) == 2
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
