package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/careloop/patient-portal/internal/instantconsult"
	"github.com/careloop/patient-portal/internal/schedule"
)

type RouterConfig struct {
	Schedule *schedule.Service
	Instant  *instantconsult.Service
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Log      zerolog.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Scheduling endpoints
	r.Get("/doctors/{name}/slots", listSlotsHandler(cfg.Schedule))
	r.Post("/appointments", bookAppointmentHandler(cfg.Schedule))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Schedule))

	// Instant consult endpoints. Status updates arrive from two origins,
	// the clinic admin UI and the external video platform, so this group
	// accepts cross-origin calls.
	r.Route("/instant-consults", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))

		r.Post("/", requestInstantConsultHandler(cfg.Instant))
		r.Get("/waiting", waitingListHandler(cfg.Instant))
		r.Patch("/{id}", updateInstantConsultHandler(cfg.Instant))
		r.Patch("/meeting/{ref}", updateInstantConsultByRefHandler(cfg.Instant))
	})

	return r
}
