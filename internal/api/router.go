package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/carepoint/booking-service/internal/booking"
)

type RouterConfig struct {
	Service        *booking.Service
	Cache          BlockedDateInvalidator
	PgPool         *pgxpool.Pool
	Redis          *redis.Client
	Logger         *zap.Logger
	Location       *time.Location
	Env            string
	Version        string
	CORSOrigin     string
	WriteRateLimit int // per-IP writes per minute on the booking endpoints
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	origin := cfg.CORSOrigin
	if origin == "" {
		origin = "*"
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{origin},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	h := NewHandlers(cfg.Service, cfg.Cache, cfg.Location, cfg.Logger)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Get("/availability", h.getDayAvailability)
	r.Get("/availability/slot", h.getSlotAvailability)
	r.Get("/appointments/{id}", h.getAppointment)

	// The write endpoints sit behind a per-IP rate limit: the abuse gate is
	// a pre-condition of the booking writer, not part of availability logic.
	r.Group(func(r chi.Router) {
		if cfg.WriteRateLimit > 0 {
			r.Use(httprate.LimitByIP(cfg.WriteRateLimit, time.Minute))
		}
		r.Post("/holds", h.placeHold)
		r.Post("/appointments", h.confirmAppointment)
	})

	r.Route("/internal", func(r chi.Router) {
		r.Post("/holds/sweep", h.sweepHolds)
		r.Post("/blocked-dates/invalidate", h.invalidateBlockedDate)
	})

	return r
}
