package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/guildscore-backend/pkg/errors"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type incrementBody struct {
	Delta   *int64  `json:"delta" validate:"required"`
	Members []int64 `json:"members,omitempty" validate:"omitempty,max=3,dive,gt=0"`
}

func TestDecodeJSONBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		field   string
	}{
		{name: "valid", body: `{"delta": -5}`},
		{name: "zero delta is present", body: `{"delta": 0}`},
		{name: "missing required", body: `{}`, wantErr: true, field: "delta"},
		{name: "unknown field", body: `{"delta": 1, "extra": true}`, wantErr: true},
		{name: "empty body", body: ``, wantErr: true},
		{name: "non positive member", body: `{"delta": 1, "members": [1, 0]}`, wantErr: true, field: "members[1]"},
		{name: "too many members", body: `{"delta": 1, "members": [1, 2, 3, 4]}`, wantErr: true, field: "members"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dest incrementBody
			err := DecodeJSONBody(req, &dest)
			if !tt.wantErr {
				require.NoError(t, err)
				require.NotNil(t, dest.Delta)
				return
			}
			require.Error(t, err)
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
			if tt.field != "" {
				details, ok := pkgerrors.As(err).Details().(map[string]string)
				require.True(t, ok)
				assert.Contains(t, details, tt.field)
			}
		})
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=10&bad=x&big=500", nil)

	v, err := ParseQueryInt(req, "limit", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	v, err = ParseQueryInt(req, "missing", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 25, v)

	_, err = ParseQueryInt(req, "bad", 25, 1, 100)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = ParseQueryInt(req, "big", 25, 1, 100)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestParsePathID(t *testing.T) {
	withParam := func(value string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("guildID", value)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	id, err := ParsePathID(withParam("123456789012345678"), "guildID")
	require.NoError(t, err)
	assert.Equal(t, int64(123456789012345678), id)

	for _, raw := range []string{"", "0", "-4", "abc", "99999999999999999999"} {
		_, err := ParsePathID(withParam(raw), "guildID")
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidKey), "value %q", raw)
	}
}

func TestParseQueryChoice(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?sort=SCORE&bad=name", nil)

	v, err := ParseQueryChoice(req, "sort", "score")
	require.NoError(t, err)
	assert.Equal(t, "score", v)

	v, err = ParseQueryChoice(req, "missing", "score")
	require.NoError(t, err)
	assert.Empty(t, v)

	_, err = ParseQueryChoice(req, "bad", "score")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
