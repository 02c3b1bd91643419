package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tendant/simple-idm-docstore/internal/http/features/accounts"
	"github.com/tendant/simple-idm-docstore/internal/http/middleware"
	"github.com/tendant/simple-idm-docstore/internal/httputil"
	"github.com/tendant/simple-idm-docstore/pkg/auth"
	"github.com/tendant/simple-idm-docstore/pkg/roles"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger         *slog.Logger
	Accounts       accounts.Store
	Roles          roles.Registry
	PasswordPolicy *auth.PasswordPolicy
	Lockout        accounts.LockoutPolicy
	AdminAuth      middleware.AdminAuthConfig

	RateLimitEnabled           bool
	RateLimitRequestsPerMinute int
	SecurityHeadersEnabled     bool
	MaxRequestBodySize         int64

	// Registerer receives the HTTP collectors and Gatherer serves /metrics.
	// Either may be nil.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) chi.Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	if cfg.Registerer != nil {
		r.Use(middleware.NewHTTPMetrics(cfg.Registerer).Instrument)
	}
	r.Use(middleware.SecurityHeaders(middleware.APISecurityHeaders(cfg.SecurityHeadersEnabled)))
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBodySize))
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	accountsHandler := accounts.NewHandler(cfg.Logger, cfg.Accounts, cfg.PasswordPolicy, cfg.Lockout)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(middleware.RateLimitConfig{
			Enabled:  cfg.RateLimitEnabled,
			Requests: cfg.RateLimitRequestsPerMinute,
			Window:   time.Minute,
			Logger:   cfg.Logger,
		}))
		r.Use(middleware.AdminAuth(cfg.AdminAuth))

		r.Get("/v1/roles", func(w http.ResponseWriter, r *http.Request) {
			httputil.JSON(w, http.StatusOK, map[string][]string{"roles": cfg.Roles.List()})
		})
		accountsHandler.RegisterRoutes(r)
	})

	return r
}
