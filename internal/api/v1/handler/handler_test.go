package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"creatorstudio/internal/llm"
	"creatorstudio/internal/middleware"
	"creatorstudio/internal/model"
	"creatorstudio/internal/service"
	"creatorstudio/internal/stream"
	"creatorstudio/internal/velocity"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuth reads the caller from the X-Test-User header; X-Test-Admin marks
// the caller as an administrator.
func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if u := r.Header.Get("X-Test-User"); u != "" {
			ctx = context.WithValue(ctx, middleware.UserContextKey, u)
			ctx = context.WithValue(ctx, middleware.AdminContextKey, r.Header.Get("X-Test-Admin") == "true")
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func do(t *testing.T, mux http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

type fakeContent struct {
	service.ContentService
	deltas   []string
	err      error
	failAt   int
	gotInput service.IdeasInput
}

func (f *fakeContent) GenerateIdeas(_ context.Context, userID string, in service.IdeasInput) (*model.Generation, error) {
	f.gotInput = in
	if f.err != nil {
		return nil, f.err
	}
	return &model.Generation{ID: "gen-1", UserID: userID, Kind: model.KindIdea, Result: json.RawMessage(`{"ideas":[]}`)}, nil
}

func (f *fakeContent) Translate(_ context.Context, userID string, _ service.TranslationInput, onDelta func(string) error) (*model.Generation, error) {
	for i, d := range f.deltas {
		if f.err != nil && i == f.failAt {
			return nil, f.err
		}
		if err := onDelta(d); err != nil {
			return nil, err
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &model.Generation{ID: "gen-2", UserID: userID, Kind: model.KindTranslation}, nil
}

func newGenerationMux(content service.ContentService) *http.ServeMux {
	mux := http.NewServeMux()
	h := NewGenerationHandler(content, nil, nil, nil, nil, newValidator(), zerolog.Nop())
	h.RegisterRoutes(mux, fakeAuth)
	return mux
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("monitor m1: %w", service.ErrNotFound), http.StatusNotFound},
		{service.ErrInvalidInput, http.StatusBadRequest},
		{service.ErrInvalidAPIKey, http.StatusBadRequest},
		{service.ErrQuotaExceeded, http.StatusPaymentRequired},
		{service.ErrRateLimited, http.StatusTooManyRequests},
		{service.ErrPaymentNotPending, http.StatusConflict},
		{llm.ErrInvalidJSON, http.StatusBadGateway},
		{llm.ErrProviderUnavailable, http.StatusServiceUnavailable},
		{service.ErrUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func TestFailHidesServerErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	fail(rec, zerolog.Nop(), errors.New("pq: connection refused"), "Failed to list")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")

	rec = httptest.NewRecorder()
	fail(rec, zerolog.Nop(), service.ErrQuotaExceeded, "Failed to generate")
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Contains(t, rec.Body.String(), service.ErrQuotaExceeded.Error())
}

func TestCreateIdeas(t *testing.T) {
	content := &fakeContent{}
	mux := newGenerationMux(content)

	rec := do(t, mux, http.MethodPost, "/ideas", "", `{"niche":"cooking"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, mux, http.MethodPost, "/ideas", "u1", `{"niche":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, mux, http.MethodPost, "/ideas", "u1", `{"niche":"cooking","count":99}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, mux, http.MethodPost, "/ideas", "u1", `{"niche":"cooking","count":5}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "cooking", content.gotInput.Niche)
	assert.Equal(t, 5, content.gotInput.Count)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "gen-1", body["id"])

	content.err = service.ErrQuotaExceeded
	rec = do(t, mux, http.MethodPost, "/ideas", "u1", `{"niche":"cooking"}`)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func readChunks(t *testing.T, body string) []stream.Chunk {
	t.Helper()
	r := bufio.NewReader(strings.NewReader(body))
	var out []stream.Chunk
	for {
		c, err := stream.ReadChunk(r)
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, *c)
	}
}

func TestCreateTranslationStreams(t *testing.T) {
	mux := newGenerationMux(&fakeContent{deltas: []string{"Hola ", "mundo"}})

	rec := do(t, mux, http.MethodPost, "/translations", "u1", `{"script":"Hello world","target_language":"es"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasSuffix(rec.Body.String(), "data: [DONE]\n\n"))

	chunks := readChunks(t, rec.Body.String())
	require.Len(t, chunks, 2)
	assert.Equal(t, "Hola ", chunks[0].Text)
	assert.Equal(t, "mundo", chunks[1].Text)
}

func TestCreateTranslationErrorBeforeFirstChunk(t *testing.T) {
	mux := newGenerationMux(&fakeContent{deltas: []string{"Hola"}, err: service.ErrQuotaExceeded, failAt: 0})

	rec := do(t, mux, http.MethodPost, "/translations", "u1", `{"script":"Hello","target_language":"es"}`)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.NotContains(t, rec.Body.String(), "data:")
}

func TestCreateTranslationErrorMidStream(t *testing.T) {
	mux := newGenerationMux(&fakeContent{deltas: []string{"Hola ", "mundo"}, err: llm.ErrProviderUnavailable, failAt: 1})

	rec := do(t, mux, http.MethodPost, "/translations", "u1", `{"script":"Hello world","target_language":"es"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	chunks := readChunks(t, rec.Body.String())
	require.Len(t, chunks, 2)
	assert.Equal(t, "Hola ", chunks[0].Text)
	assert.NotEmpty(t, chunks[1].Error)
	assert.True(t, strings.HasSuffix(rec.Body.String(), "data: [DONE]\n\n"))
}

type fakeMonitors struct {
	service.MonitorService
}

func (fakeMonitors) Classify(vph float64, subscriberCount int64) velocity.Classification {
	return velocity.Classify(vph, subscriberCount)
}

func (fakeMonitors) RequestScan(_ context.Context, userID, id string) error {
	if userID != "u1" || id != "m1" {
		return service.ErrNotFound
	}
	return nil
}

func TestClassify(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	h := NewMonitorHandler(fakeMonitors{}, newValidator(), zerolog.Nop())
	h.now = func() time.Time { return now }
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, fakeAuth)

	rec := do(t, mux, http.MethodPost, "/monitors/classify", "u1", `{"vph":250,"subscriber_count":5000}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var c velocity.Classification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.Equal(t, velocity.LabelViral, c.Label)
	assert.Equal(t, velocity.BucketMicro, c.Bucket)

	published := now.Add(-2 * time.Hour).Format(time.RFC3339)
	rec = do(t, mux, http.MethodPost, "/monitors/classify", "u1",
		fmt.Sprintf(`{"views":5000,"published_at":%q,"subscriber_count":5000}`, published))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.InDelta(t, 2500, c.VPH, 0.001)
	assert.Equal(t, velocity.LabelExplosive, c.Label)

	rec = do(t, mux, http.MethodPost, "/monitors/classify", "u1", `{"subscriber_count":5000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, mux, http.MethodPost, "/monitors/classify", "u1", `{"vph":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanMonitor(t *testing.T) {
	mux := http.NewServeMux()
	NewMonitorHandler(fakeMonitors{}, newValidator(), zerolog.Nop()).RegisterRoutes(mux, fakeAuth)

	assert.Equal(t, http.StatusAccepted, do(t, mux, http.MethodPost, "/monitors/m1/scan", "u1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodPost, "/monitors/m1/scan", "u2", "").Code)
}

type fakePaymentService struct {
	service.PaymentService
	reviewed map[string]string
}

func (f *fakePaymentService) ListAll(context.Context, string, int, int) ([]model.Payment, error) {
	return []model.Payment{{ID: "pay-1", Status: model.PaymentPending}}, nil
}

func (f *fakePaymentService) Approve(_ context.Context, adminID, paymentID, note string) (*model.Payment, error) {
	if paymentID != "pay-1" {
		return nil, service.ErrNotFound
	}
	if _, done := f.reviewed[paymentID]; done {
		return nil, service.ErrPaymentNotPending
	}
	f.reviewed[paymentID] = note
	return &model.Payment{ID: paymentID, Status: model.PaymentApproved}, nil
}

func TestAdminPaymentRoutes(t *testing.T) {
	payments := &fakePaymentService{reviewed: map[string]string{}}
	mux := http.NewServeMux()
	NewPaymentHandler(payments, newValidator(), zerolog.Nop()).RegisterRoutes(mux, fakeAuth, middleware.AdminMiddleware)

	admin := func(method, path, body string) *httptest.ResponseRecorder {
		var rd io.Reader
		if body != "" {
			rd = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, path, rd)
		req.Header.Set("X-Test-User", "admin-1")
		req.Header.Set("X-Test-Admin", "true")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusForbidden, do(t, mux, http.MethodGet, "/admin/payments", "u1", "").Code)
	assert.Equal(t, http.StatusOK, admin(http.MethodGet, "/admin/payments?status=pending", "").Code)

	rec := admin(http.MethodPost, "/admin/payments/pay-1/approve", `{"note":"receipt checked"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "receipt checked", payments.reviewed["pay-1"])

	assert.Equal(t, http.StatusConflict, admin(http.MethodPost, "/admin/payments/pay-1/approve", "").Code)
	assert.Equal(t, http.StatusNotFound, admin(http.MethodPost, "/admin/payments/pay-9/approve", "").Code)
}
