package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/guildscore-backend/api/responses"
	pkgerrors "github.com/angelmondragon/guildscore-backend/pkg/errors"
	"github.com/angelmondragon/guildscore-backend/pkg/logger"
)

type fixedWindowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// EventRateLimitPolicy caps how many events a single guild may submit per window.
type EventRateLimitPolicy struct {
	window time.Duration
	limit  int
}

func NewEventRateLimitPolicy(window time.Duration, limit int) EventRateLimitPolicy {
	return EventRateLimitPolicy{window: window, limit: limit}
}

func (p EventRateLimitPolicy) enabled() bool {
	return p.window > 0 && p.limit > 0
}

func (p EventRateLimitPolicy) scope(guildID string) string {
	return fmt.Sprintf("events:%s", guildID)
}

// EventRateLimit throttles event ingestion per guild using a fixed window
// counter. When the counter store errors the request goes through.
func EventRateLimit(policy EventRateLimitPolicy, limiter fixedWindowLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			guildID := strings.TrimSpace(chi.URLParam(r, "guildID"))
			if _, err := strconv.ParseInt(guildID, 10, 64); err != nil {
				// the handler reports the bad id
				next.ServeHTTP(w, r)
				return
			}

			allowed, count, err := limiter.FixedWindowAllow(ctx, policy.scope(guildID), int64(policy.limit), policy.window)
			if err != nil {
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "error", err.Error()), "events.rate_limit.unavailable")
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"guild_id":       guildID,
						"events":         count,
						"limit":          policy.limit,
						"window_seconds": int(policy.window.Seconds()),
					}), "events.rate_limit.blocked")
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(policy.window.Seconds())))
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many events for this guild"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
