package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
	"github.com/hackgods/clinic-chat-scheduling/internal/chat"
	redisclient "github.com/hackgods/clinic-chat-scheduling/internal/redis"
)

// ChatEngine runs one dialogue turn; *chat.Engine implements it.
type ChatEngine interface {
	ProcessMessage(ctx context.Context, message string, conv *chat.Conversation) chat.Response
}

// AvailabilityChecker answers the single-slot bookability question;
// *appointment.Service implements it.
type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context, doctorID uuid.UUID, date time.Time, at appointment.TimeOfDay) (appointment.AvailabilityCheck, error)
}

type RouterConfig struct {
	Engine       ChatEngine
	Store        chat.Store
	Sessions     redisclient.Locker
	Catalog      appointment.CatalogRepository
	Availability AvailabilityChecker
	Metrics      http.Handler
	Logger       *slog.Logger

	// Nil dependencies are reported as disabled by the readiness probe.
	Postgres Pinger
	Redis    redis.UniversalClient

	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Sessions == nil {
		cfg.Sessions = redisclient.NewLocalSlotLocker()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Method(http.MethodPost, "/chat", &chatHandler{
		engine:   cfg.Engine,
		store:    cfg.Store,
		sessions: cfg.Sessions,
		logger:   cfg.Logger,
		now:      time.Now,
	})

	r.Get("/locations", listLocationsHandler(cfg.Catalog))
	r.Get("/locations/{id}/specialties", listSpecialtiesHandler(cfg.Catalog))
	r.Post("/availability/check", checkAvailabilityHandler(cfg.Availability))

	return r
}
