// Package idm provides an embeddable account identity store backed by a
// document collection, with an optional admin HTTP API.
//
// Basic usage with the in-process collection:
//
//	store, err := idm.New(ctx, idm.Config{
//	    Collection:     memory.New(),
//	    Roles:          roles.NewStatic("admin", "user"),
//	    AdminJWTSecret: "your-secret-key-at-least-32-chars",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	account := domain.NewAccount()
//	account.UserName = "alice"
//	_ = store.Accounts().AddToRole(account, "user")
//	_ = store.Accounts().Create(ctx, account)
//
// Mounting the admin API:
//
//	r := chi.NewRouter()
//	r.Mount("/idm", store.Router())
//	http.ListenAndServe(":8080", r)
package idm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	httpserver "github.com/tendant/simple-idm-docstore/internal/http"
	"github.com/tendant/simple-idm-docstore/internal/http/features/accounts"
	"github.com/tendant/simple-idm-docstore/internal/http/middleware"
	"github.com/tendant/simple-idm-docstore/pkg/accountstore"
	"github.com/tendant/simple-idm-docstore/pkg/auth"
	"github.com/tendant/simple-idm-docstore/pkg/roles"
	"github.com/tendant/simple-idm-docstore/pkg/storage"
	"github.com/tendant/simple-idm-docstore/pkg/storage/instrumented"
)

// Config holds the configuration for the IDM library.
type Config struct {
	// Collection is the account document collection (required).
	Collection storage.Collection

	// Roles is the registry of valid role names (required).
	Roles roles.Registry

	// AdminJWTSecret signs admin API bearer tokens (required, min 32 chars).
	AdminJWTSecret string

	// AdminJWTIssuer is checked on admin tokens when set.
	AdminJWTIssuer string

	// AdminRole is the role admin tokens must carry (default: "admin").
	AdminRole string

	// PasswordPolicy is applied when the admin API sets passwords (optional).
	PasswordPolicy *auth.PasswordPolicy

	// Lockout decides when recorded access failures lock an account
	// (default: 5 failures, 15 minutes).
	Lockout accounts.LockoutPolicy

	// RateLimitRequestsPerMinute limits admin API calls per client IP.
	// Zero disables rate limiting.
	RateLimitRequestsPerMinute int

	// Registerer receives storage and HTTP metrics when set. If it is also a
	// prometheus.Gatherer the router serves /metrics.
	Registerer prometheus.Registerer

	// Logger is the structured logger (default: JSON to stdout).
	Logger *slog.Logger
}

// IDM is the main identity store instance.
type IDM struct {
	config     Config
	collection storage.Collection
	store      *accountstore.Store

	routerOnce sync.Once
	router     chi.Router
}

// New creates a new IDM instance. Collections that need provisioning are
// provisioned before New returns.
func New(ctx context.Context, cfg Config) (*IDM, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	collection := cfg.Collection
	if cfg.Registerer != nil {
		collection = instrumented.Wrap(collection, instrumented.NewMetrics(cfg.Registerer), cfg.Logger)
	}
	if p, ok := collection.(storage.Provisioner); ok {
		if err := p.EnsureCollection(ctx); err != nil {
			return nil, err
		}
	}

	return &IDM{
		config:     cfg,
		collection: collection,
		store:      accountstore.New(collection, cfg.Roles),
	}, nil
}

// Accounts returns the account store implementing every capability.
func (i *IDM) Accounts() *accountstore.Store {
	return i.store
}

// Collection returns the collection the store writes through, including
// any instrumentation wrapper.
func (i *IDM) Collection() storage.Collection {
	return i.collection
}

// Router returns a chi router with the admin API.
//
// Routes:
//
//	GET    /health
//	GET    /metrics                              (when a Gatherer is configured)
//	GET    /v1/roles
//	POST   /v1/accounts
//	GET    /v1/accounts?userName=|email=|loginProvider=&providerKey=
//	GET    /v1/accounts/{id}
//	PATCH  /v1/accounts/{id}
//	DELETE /v1/accounts/{id}
//	PUT    /v1/accounts/{id}/password
//	POST   /v1/accounts/{id}/roles
//	DELETE /v1/accounts/{id}/roles/{role}
//	POST   /v1/accounts/{id}/claims
//	DELETE /v1/accounts/{id}/claims?type=&value=
//	POST   /v1/accounts/{id}/logins
//	DELETE /v1/accounts/{id}/logins/{provider}/{key}
//	PUT    /v1/accounts/{id}/lockout
//	POST   /v1/accounts/{id}/access-failures
//	DELETE /v1/accounts/{id}/access-failures
//
// The router is built once; HTTP collectors register with the configured
// Registerer on first use.
func (i *IDM) Router() chi.Router {
	i.routerOnce.Do(i.buildRouter)
	return i.router
}

func (i *IDM) buildRouter() {
	gatherer, _ := i.config.Registerer.(prometheus.Gatherer)
	i.router = httpserver.NewRouter(httpserver.RouterConfig{
		Logger:         i.config.Logger,
		Accounts:       i.store,
		Roles:          i.config.Roles,
		PasswordPolicy: i.config.PasswordPolicy,
		Lockout:        i.config.Lockout,
		AdminAuth: middleware.AdminAuthConfig{
			Secret: []byte(i.config.AdminJWTSecret),
			Issuer: i.config.AdminJWTIssuer,
			Role:   i.config.AdminRole,
		},
		RateLimitEnabled:           i.config.RateLimitRequestsPerMinute > 0,
		RateLimitRequestsPerMinute: i.config.RateLimitRequestsPerMinute,
		SecurityHeadersEnabled:     true,
		MaxRequestBodySize:         1 << 20,
		Registerer:                 i.config.Registerer,
		Gatherer:                   gatherer,
	})
}

// Handler returns an http.Handler for mounting with http.StripPrefix:
//
//	mux := http.NewServeMux()
//	mux.Handle("/idm/", http.StripPrefix("/idm", store.Handler()))
func (i *IDM) Handler() http.Handler {
	return i.Router()
}

func validateConfig(cfg *Config) error {
	if cfg.Collection == nil {
		return errors.New("idm: Collection is required")
	}
	if cfg.Roles == nil {
		return errors.New("idm: Roles is required")
	}
	if cfg.AdminJWTSecret == "" {
		return errors.New("idm: AdminJWTSecret is required")
	}
	if len(cfg.AdminJWTSecret) < 32 {
		return errors.New("idm: AdminJWTSecret must be at least 32 characters")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.AdminRole == "" {
		cfg.AdminRole = "admin"
	}
	if cfg.Lockout.MaxFailedAttempts == 0 {
		cfg.Lockout.MaxFailedAttempts = accounts.DefaultLockoutPolicy.MaxFailedAttempts
	}
	if cfg.Lockout.Duration == 0 {
		cfg.Lockout.Duration = 15 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
}
