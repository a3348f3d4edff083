package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/guildscore-backend/api/controllers"
	"github.com/angelmondragon/guildscore-backend/api/middleware"
	"github.com/angelmondragon/guildscore-backend/pkg/config"
	"github.com/angelmondragon/guildscore-backend/pkg/db"
	"github.com/angelmondragon/guildscore-backend/pkg/logger"
	"github.com/angelmondragon/guildscore-backend/pkg/redis"
)

// NewRouter wires every HTTP route. redisClient and gatherer may be nil.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	store controllers.ScoreStore,
	activityService controllers.ActivityService,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	deps := map[string]controllers.Pinger{"database": dbP}
	if redisClient != nil {
		deps["redis"] = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	eventPolicy := middleware.NewEventRateLimitPolicy(cfg.Activity.EventRateWindow, cfg.Activity.EventRateLimit)
	var eventLimit func(http.Handler) http.Handler
	if redisClient != nil {
		eventLimit = middleware.EventRateLimit(eventPolicy, redisClient, logg)
	} else {
		eventLimit = middleware.EventRateLimit(eventPolicy, nil, logg)
	}

	r.Route("/api/v1/guilds/{guildID}", func(r chi.Router) {
		r.Get("/leaderboard", controllers.Leaderboard(store, logg))
		r.Get("/active", controllers.ActiveListing(store, logg))

		r.Route("/members/{memberID}", func(r chi.Router) {
			r.Get("/", controllers.ScoreGet(store, logg))
			r.Put("/", controllers.ScorePut(store, logg))
			r.Delete("/", controllers.ScoreDelete(store, logg))
			r.Post("/increment", controllers.ScoreIncrement(store, logg))
			r.Patch("/active", controllers.ScoreSetActive(store, logg))
			r.Get("/rank", controllers.ScoreRank(store, logg))
		})

		r.Route("/events", func(r chi.Router) {
			r.Use(eventLimit)
			r.Post("/member-joined", controllers.EventMemberJoined(activityService, logg))
			r.Post("/member-left", controllers.EventMemberLeft(activityService, logg))
			r.Post("/message", controllers.EventMessage(activityService, logg))
			r.Post("/guild-joined", controllers.EventGuildJoined(activityService, logg))
			r.Post("/guild-left", controllers.EventGuildLeft(activityService, logg))
			r.Post("/sync", controllers.EventSync(activityService, logg))
		})
	})

	return r
}
