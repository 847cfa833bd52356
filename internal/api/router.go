package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/yegors/overhead/internal/auth"
	"github.com/yegors/overhead/internal/config"
	"github.com/yegors/overhead/pkg/logger"
)

// Router builds the HTTP surface
type Router struct {
	handler *Handler
	deps    Deps
	config  *config.Config
	logger  *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(deps Deps, cfg *config.Config, log *logger.Logger) *Router {
	if deps.Auth == nil {
		deps.Auth = auth.NewService(auth.Config{}, log)
	}
	return &Router{
		handler: NewHandler(deps, cfg, log),
		deps:    deps,
		config:  cfg,
		logger:  log.Named("api"),
	}
}

// Routes returns the root handler
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()
	h := rt.handler
	admin := rt.deps.Auth.RequireRole(auth.RoleAdmin)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(middleware.Recoverer)

	origins := rt.config.Server.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Compress(5))

		r.Get("/health", h.GetHealth)
		r.Get("/status", h.GetStatus)
		r.Get("/config", h.GetConfig)
		r.Get("/flight", h.GetFlight)
		r.Get("/sightings", h.GetSightings)
		r.Get("/enrichment/stats", h.GetEnrichmentStats)
		r.Get("/diagnostics/memory", h.GetMemory)

		r.Group(func(r chi.Router) {
			r.Use(admin)
			r.Post("/fetch", h.ForceFetch)
			if rt.config.Display.OverrideEndpoint {
				r.Put("/override", h.PutOverride)
			}
		})

		if rt.deps.Simulation != nil {
			r.Route("/simulation/aircraft", func(r chi.Router) {
				r.Get("/", h.ListSimulated)
				r.Group(func(r chi.Router) {
					r.Use(admin)
					r.Post("/", h.CreateSimulated)
					r.Put("/{hex}", h.UpdateSimulated)
					r.Delete("/{hex}", h.DeleteSimulated)
				})
			})
		}
	})

	if rt.config.Display.OverrideEndpoint {
		r.With(admin).Put("/test/closest", h.PutOverride)
	}

	if rt.config.Display.WebSocketBroadcast && rt.deps.WebSocket != nil {
		r.Get("/ws", rt.deps.WebSocket)
	}

	if dir := rt.config.Server.StaticFilesDir; dir != "" {
		r.Handle("/*", NewStaticFileHandler(dir, rt.logger))
	}

	return r
}

// requestLogger logs each request through the application logger
func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		rt.logger.Debug("HTTP request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Int("bytes", ww.BytesWritten()),
			logger.Duration("duration", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
