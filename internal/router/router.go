package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/quickbite/api/internal/config"
	"github.com/quickbite/api/internal/database"
	"github.com/quickbite/api/internal/enum"
	"github.com/quickbite/api/internal/handler"
	mw "github.com/quickbite/api/internal/middleware"
	"github.com/quickbite/api/internal/service"
	"github.com/quickbite/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Staff-only order routes are guarded only when cfg.StaffAuth is set.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, svc *service.OrderService) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(mw.RequestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Identity is optional everywhere; handlers decide what a caller may see.
	r.Use(mw.OptionalAuthenticate(cfg.JWTSecret))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		w.Header().Set("Content-Type", "application/json")
		if err := pool.Ping(ctx); err != nil {
			log.WithError(err).Warn("readiness check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Write([]byte(`{"status":"ready"}`))
	})

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/locations/{location}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	var guard func(http.Handler) http.Handler
	if cfg.StaffAuth {
		authn := mw.Authenticate(cfg.JWTSecret)
		requireStaff := mw.RequireRole(enum.UserRoleStaff, enum.UserRoleAdmin)
		guard = func(next http.Handler) http.Handler {
			return authn(requireStaff(next))
		}
	}

	orderHandler := handler.NewOrderHandler(svc, queries)
	orderHandler.RegisterRoutes(r, guard)

	// Reports always require a staff or admin token.
	tz, err := cfg.ReportLocation()
	if err != nil {
		log.WithError(err).Warn("falling back to UTC for reports")
		tz = time.UTC
	}
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))
		r.Use(mw.RequireRole(enum.UserRoleStaff, enum.UserRoleAdmin))
		handler.NewReportsHandler(queries, tz).RegisterRoutes(r)
	})

	log.WithFields(log.Fields{
		"staff_auth": cfg.StaffAuth,
		"identity":   cfg.IdentityEnabled(),
		"policy":     svc.Policy(),
	}).Info("router initialized")
	return r
}
