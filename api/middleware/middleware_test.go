package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/guildscore-backend/pkg/errors"
	"github.com/angelmondragon/guildscore-backend/pkg/logger"
)

type fakeLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{counts: map[string]int64{}}
}

func (f *fakeLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func eventRouter(policy EventRateLimitPolicy, limiter fixedWindowLimiter) http.Handler {
	r := chi.NewRouter()
	r.With(EventRateLimit(policy, limiter, nil)).Post("/guilds/{guildID}/events/message", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	return r
}

func post(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
	return rec
}

func TestEventRateLimitBlocksPerGuild(t *testing.T) {
	limiter := newFakeLimiter()
	h := eventRouter(NewEventRateLimitPolicy(time.Minute, 2), limiter)

	assert.Equal(t, http.StatusAccepted, post(h, "/guilds/42/events/message").Code)
	assert.Equal(t, http.StatusAccepted, post(h, "/guilds/42/events/message").Code)

	rec := post(h, "/guilds/42/events/message")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, string(pkgerrors.CodeRateLimit), payload.Error.Code)

	assert.Equal(t, http.StatusAccepted, post(h, "/guilds/43/events/message").Code, "other guilds have their own window")
}

func TestEventRateLimitFailsOpen(t *testing.T) {
	limiter := newFakeLimiter()
	limiter.err = errors.New("redis down")
	h := eventRouter(NewEventRateLimitPolicy(time.Minute, 1), limiter)

	for range 3 {
		assert.Equal(t, http.StatusAccepted, post(h, "/guilds/42/events/message").Code)
	}
}

func TestEventRateLimitDisabled(t *testing.T) {
	limiter := newFakeLimiter()
	h := eventRouter(NewEventRateLimitPolicy(time.Minute, 0), limiter)
	for range 3 {
		assert.Equal(t, http.StatusAccepted, post(h, "/guilds/42/events/message").Code)
	}
	assert.Empty(t, limiter.counts)

	h = eventRouter(NewEventRateLimitPolicy(time.Minute, 5), nil)
	assert.Equal(t, http.StatusAccepted, post(h, "/guilds/42/events/message").Code)
}

func TestRequestIDPropagates(t *testing.T) {
	var seen string
	h := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w.Header().Get(requestIDHeader)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
	assert.Equal(t, "abc-123", seen)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, rec.Header().Get(requestIDHeader), 36)
}

func TestRecovererReturnsInternalError(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	h := Recoverer(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "kaboom")
}

func TestLoggingRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	h := Logging(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/teapot", nil))
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"path":"/teapot"`)
}
