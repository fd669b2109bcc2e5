package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"creatorstudio/internal/util"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(UserID(r.Context())))
}

func token(t *testing.T, secret, sub, role string) string {
	t.Helper()
	claims := util.Claims{
		AppMetadata: util.AppMetadata{Role: role},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAuthMiddleware(t *testing.T) {
	h := AuthMiddleware("secret", zerolog.Nop())(http.HandlerFunc(okHandler))

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing", "", http.StatusUnauthorized, ""},
		{"malformed", "Token abc", http.StatusUnauthorized, ""},
		{"bad signature", "Bearer " + token(t, "other", "u1", ""), http.StatusUnauthorized, ""},
		{"valid", "Bearer " + token(t, "secret", "u1", ""), http.StatusOK, "u1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestAdminMiddleware(t *testing.T) {
	h := AuthMiddleware("secret", zerolog.Nop())(AdminMiddleware(http.HandlerFunc(okHandler)))

	req := httptest.NewRequest(http.MethodGet, "/admin/payments", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "secret", "u1", ""))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req.Header.Set("Authorization", "Bearer "+token(t, "secret", "boss", util.AdminRole))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type memCounter struct {
	mu   sync.Mutex
	m    map[string]int64
	fail bool
}

func (c *memCounter) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	if c.fail {
		return 0, errors.New("redis down")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key]++
	return c.m[key], nil
}

func withUser(r *http.Request, id string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), UserContextKey, id))
}

func TestRateLimitMiddleware(t *testing.T) {
	counter := &memCounter{m: map[string]int64{}}
	h := RateLimitMiddleware(counter, 2, time.Hour, zerolog.Nop())(http.HandlerFunc(okHandler))

	var codes []int
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodPost, "/ideas", nil), "u1"))
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	// Another user has their own budget.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodPost, "/ideas", nil), "u2"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitFailsOpen(t *testing.T) {
	h := RateLimitMiddleware(&memCounter{fail: true}, 1, time.Minute, zerolog.Nop())(http.HandlerFunc(okHandler))
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodPost, "/ideas", nil), "u1"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRedisCounterReportsUnreachableServer(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()

	_, err := NewRedisCounter(rdb).Incr(context.Background(), "cs:rate_limit:test", time.Minute)
	assert.Error(t, err)
}

func TestRedisCounterSetsExpiry(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping redis integration test")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	ctx := context.Background()
	key := "cs:rate_limit:test:" + time.Now().Format("150405.000000")
	defer rdb.Del(ctx, key)

	counter := NewRedisCounter(rdb)
	for want := int64(1); want <= 2; want++ {
		got, err := counter.Incr(ctx, key, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	ttl, err := rdb.PTTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute+time.Second)
}

func TestPubSubAuth(t *testing.T) {
	validate := func(_ context.Context, tok, aud string) (*idtoken.Payload, error) {
		if tok != "good" {
			return nil, errors.New("bad token")
		}
		return &idtoken.Payload{Audience: aud, Claims: map[string]interface{}{"email": "push@proj.iam.gserviceaccount.com"}}, nil
	}
	h := pubSubAuth(validate, false, "https://api/v1/dlq", "push@proj.iam.gserviceaccount.com", zerolog.Nop())(http.HandlerFunc(okHandler))

	for header, want := range map[string]int{
		"":            http.StatusUnauthorized,
		"Bearer bad":  http.StatusUnauthorized,
		"Bearer good": http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodPost, "/dlq", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "header %q", header)
	}

	local := pubSubAuth(validate, true, "", "", zerolog.Nop())(http.HandlerFunc(okHandler))
	rec := httptest.NewRecorder()
	local.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dlq", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
