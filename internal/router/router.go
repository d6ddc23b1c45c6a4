package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appMiddleware "github.com/FACorreiaa/go-vacation-agent/app/middleware"
	"github.com/FACorreiaa/go-vacation-agent/internal/api"
	"github.com/FACorreiaa/go-vacation-agent/internal/api/plan"
)

// Config contains the handlers the router mounts.
type Config struct {
	PlanHandler    *plan.Handler
	MetricsHandler http.Handler
	AllowedOrigins []string
	Logger         *slog.Logger
}

// SetupRouter wires the public routes. Server-wide middleware (request id,
// logging, recoverer) is applied by the caller before mounting.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSONResponse(w, r, http.StatusOK, map[string]string{"message": "Vacation Agent API is running"})
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSONResponse(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", cfg.PlanHandler.Ready)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(appMiddleware.RequireJSON)

		r.Post("/plan", cfg.PlanHandler.CreatePlan)
		r.Get("/plans", cfg.PlanHandler.ListPlans)
		r.Get("/plans/{planID}", cfg.PlanHandler.GetPlan)
	})

	return r
}
