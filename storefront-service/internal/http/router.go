package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/template_store/pkg/logger"
	"github.com/fjod/template_store/storefront-service/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	RequestTimeout time.Duration
	Sessions       session.Store
	// Health reports whether the backing stores answer; nil means always healthy.
	Health func(ctx context.Context) error
	Logger *zap.Logger
}

type Handlers struct {
	Templates *TemplateHandler
	Auth      *AuthHandler
	Purchases *PurchaseHandler
}

type HealthResponse struct {
	Status string `json:"status"`
}

func NewRouter(cfg RouterConfig, h Handlers) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(logger.Middleware(cfg.Logger))
	r.Use(Recoverer(cfg.Logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(SessionMiddleware(cfg.Sessions, cfg.Logger))

	r.NotFound(NotFound(cfg.Logger))
	r.MethodNotAllowed(MethodNotAllowed(cfg.Logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(r.Context()); err != nil {
				logger.WithContext(r.Context(), cfg.Logger).Warn("health check failed", zap.Error(err))
				respondJSON(w, cfg.Logger, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
				return
			}
		}
		respondJSON(w, cfg.Logger, http.StatusOK, HealthResponse{Status: "ok"})
	})

	r.Get("/", h.Templates.List)

	r.Post("/login", h.Auth.Login)
	r.Post("/register", h.Auth.Register)
	r.Get("/logout", h.Auth.Logout)
	r.Get("/dashboard", h.Purchases.Dashboard)

	r.Route("/api", func(r chi.Router) {
		r.Get("/user", h.Auth.CurrentUser)
		r.Get("/templates", h.Templates.List)
		r.Get("/search", h.Templates.Search)
		r.Post("/purchase", h.Purchases.Purchase)
		r.Get("/download/{template_id}", h.Purchases.Download)
		r.Get("/download/{template_id}/archive", h.Purchases.Archive)
	})

	return otelhttp.NewHandler(r, "storefront-service")
}
