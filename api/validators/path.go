package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/guildscore-backend/pkg/errors"
	"github.com/go-chi/chi/v5"
)

// ParsePathID reads a positive snowflake-style id from a chi route param.
func ParsePathID(r *http.Request, param string) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeInvalidKey, "id must be a positive integer").
			WithDetails(map[string]any{"field": param, "value": raw})
	}
	return value, nil
}
