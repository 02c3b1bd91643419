package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/tendant/simple-idm-docstore/internal/backend"
	"github.com/tendant/simple-idm-docstore/internal/config"
	httpserver "github.com/tendant/simple-idm-docstore/internal/http"
	"github.com/tendant/simple-idm-docstore/internal/http/features/accounts"
	"github.com/tendant/simple-idm-docstore/internal/http/middleware"
	"github.com/tendant/simple-idm-docstore/pkg/accountstore"
	"github.com/tendant/simple-idm-docstore/pkg/auth"
	"github.com/tendant/simple-idm-docstore/pkg/roles"
	"github.com/tendant/simple-idm-docstore/pkg/storage/instrumented"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		registry *prometheus.Registry
		metrics  *instrumented.Metrics
	)
	if cfg.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = instrumented.NewMetrics(registry)
	}

	store, err := backend.Open(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close storage backend", "error", err)
		}
	}()

	registryRoles := roles.NewStatic(cfg.Roles...)
	routerCfg := httpserver.RouterConfig{
		Logger:         logger,
		Accounts:       accountstore.New(store.Collection, registryRoles),
		Roles:          registryRoles,
		PasswordPolicy: auth.NewPasswordPolicy(cfg.PasswordPolicy),
		Lockout: accounts.LockoutPolicy{
			MaxFailedAttempts: cfg.MaxFailedAccessAttempts,
			Duration:          cfg.LockoutDuration,
		},
		AdminAuth: middleware.AdminAuthConfig{
			Secret: []byte(cfg.AdminJWTSecret),
			Issuer: cfg.AdminJWTIssuer,
			Role:   cfg.AdminRole,
		},
		RateLimitEnabled:           cfg.RateLimitEnabled,
		RateLimitRequestsPerMinute: cfg.RateLimitRequestsPerMinute,
		SecurityHeadersEnabled:     cfg.SecurityHeadersEnabled,
		MaxRequestBodySize:         cfg.MaxRequestBodySize,
	}
	if registry != nil {
		routerCfg.Registerer = registry
		routerCfg.Gatherer = registry
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      httpserver.NewRouter(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
