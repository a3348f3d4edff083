package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/guildscore-backend/internal/activity"
	"github.com/angelmondragon/guildscore-backend/internal/scores"
	"github.com/angelmondragon/guildscore-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/guildscore-backend/pkg/errors"
)

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthReadySkipsNilDependencies(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	h := HealthReady(cfg, nil, map[string]Pinger{
		"database": pingerFunc(func(context.Context) error { return nil }),
		"redis":    nil,
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Checks map[string]string `json:"checks"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"database": "up"}, body.Data.Checks)
}

type stubActivity struct {
	ActivityService
	syncErr error
	guild   int64
	members []int64
}

func (s *stubActivity) SyncGuild(_ context.Context, guildID int64, present []int64) (activity.SyncResult, error) {
	s.guild, s.members = guildID, present
	return activity.SyncResult{Ensured: 1}, s.syncErr
}

func (s *stubActivity) MemberJoined(context.Context, int64, int64, bool) (scores.ScoreRecord, bool, error) {
	return scores.ScoreRecord{}, false, nil
}

func eventRequest(method, guild, body string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("guildID", guild)
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestEventSyncPassesMembers(t *testing.T) {
	svc := &stubActivity{}
	rec := httptest.NewRecorder()
	EventSync(svc, nil).ServeHTTP(rec, eventRequest(http.MethodPost, "42", `{"members": [3, 1]}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), svc.guild)
	assert.Equal(t, []int64{3, 1}, svc.members)
}

func TestEventSyncSurfacesAggregatedFailure(t *testing.T) {
	svc := &stubActivity{syncErr: multierr.Combine(
		errors.New("member 2: boom"),
		pkgerrors.New(pkgerrors.CodeStorageUnavailable, "down"),
	)}
	rec := httptest.NewRecorder()
	EventSync(svc, nil).ServeHTTP(rec, eventRequest(http.MethodPost, "42", `{"members": [1, 2]}`))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEventMemberJoinedBotHasNoRecord(t *testing.T) {
	rec := httptest.NewRecorder()
	EventMemberJoined(&stubActivity{}, nil).ServeHTTP(rec, eventRequest(http.MethodPost, "42", `{"member_id": 7, "bot": true}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"applied":false}}`, rec.Body.String())
}

func TestEventRequiresMembersList(t *testing.T) {
	rec := httptest.NewRecorder()
	EventSync(&stubActivity{}, nil).ServeHTTP(rec, eventRequest(http.MethodPost, "42", `{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	EventSync(&stubActivity{}, nil).ServeHTTP(rec, eventRequest(http.MethodPost, "0", `{"members": []}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
