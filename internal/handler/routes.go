package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/liiist/liiist/internal/identity"
	"github.com/liiist/liiist/internal/middleware"
	"github.com/liiist/liiist/internal/service"
	"github.com/liiist/liiist/internal/session"
)

// RouterConfig wires the HTTP surface.
type RouterConfig struct {
	Handler  *Handler
	Health   *HealthHandler
	Metrics  *MetricsHandler
	Accounts *service.AccountService
	Lists    *service.ListService
	Sessions *session.Store
	Logger   *slog.Logger

	// SignInLimit throttles POST /sign-in. Nil disables throttling.
	SignInLimit  func(http.Handler) http.Handler
	Security     middleware.SecurityConfig
	CORS         middleware.CORSConfig
	MaxBodyBytes int64
	Development  bool
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.SignInLimit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	h := cfg.Handler

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger, cfg.Development))
	r.Use(middleware.Security(cfg.Security))
	r.Use(middleware.CORS(cfg.CORS))

	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)
	r.Get("/metrics", cfg.Metrics.Metrics)

	r.Group(func(r chi.Router) {
		r.Use(middleware.MaxBodySize(maxBody))
		r.Use(cfg.Sessions.Middleware)
		r.Use(identity.Provider(identity.SessionSource, logger))

		r.Get("/me", h.Me)

		r.With(limit).Post("/sign-in", h.Run("sign_in", cfg.Accounts.SignIn))
		r.Post("/sign-up", h.Run("sign_up", cfg.Accounts.SignUp))
		r.Post("/sign-out", h.Run("sign_out", cfg.Accounts.SignOut))
		r.Post("/account/password", h.Run("update_password", cfg.Accounts.UpdatePassword))

		r.Route("/lists", func(r chi.Router) {
			r.Get("/", h.Run("list_lists", cfg.Lists.All))
			r.Put("/{id}", h.Run("save_list", cfg.Lists.Save))
			r.Patch("/{id}", h.Run("adjust_list", cfg.Lists.Adjust))
			r.Post("/{id}/calculate", h.Run("calculate_list", cfg.Lists.Calculate))
		})
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
