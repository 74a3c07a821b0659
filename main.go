package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/s1natex/taskapi/internal/config"
	"github.com/s1natex/taskapi/internal/middleware"
	"github.com/s1natex/taskapi/internal/storage"
	"github.com/s1natex/taskapi/internal/tasks"
	"github.com/s1natex/taskapi/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger) // for third-party packages that use slog

	if err := run(cfg, logger); err != nil {
		logger.Error("server_error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		Exporter:    cfg.TraceExporter,
		ServiceName: cfg.ServiceName,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing_shutdown_error", slog.String("error", err.Error()))
		}
	}()

	repo, closeRepo, err := openRepo(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()
	logger.Info("store_ready", slog.String("driver", cfg.StoreDriver))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(cfg, repo, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_listen", slog.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server_shutdown")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server_stopped")
	return nil
}

// openRepo returns the task store selected by STORE_DRIVER and its closer.
func openRepo(ctx context.Context, cfg config.Config) (tasks.Repository, func(), error) {
	if cfg.StoreDriver == "memory" {
		return tasks.NewInMemoryRepo(), func() {}, nil
	}

	dsn := cfg.DatabaseURL
	if cfg.StoreDriver == storage.DriverSQLite {
		var err error
		if dsn, err = storage.SQLiteFileDSN(cfg.SQLitePath); err != nil {
			return nil, nil, fmt.Errorf("sqlite path: %w", err)
		}
	}
	db, err := storage.Open(ctx, cfg.StoreDriver, dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := storage.ApplyMigrations(ctx, db, cfg.StoreDriver); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return tasks.NewSQLRepo(db, cfg.StoreDriver), func() { _ = db.Close() }, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// newRouter wires the health and metrics endpoints, task routes, and middleware stack
func newRouter(cfg config.Config, repo tasks.Repository, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// RequestID first so downstream can include it (logger, errors, etc.)
	r.Use(chimw.RequestID)
	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.MetricsMiddleware)
	// logger sits outside Recoverer so recovered panics are logged as 500s
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "Trace-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(middleware.RateLimitMiddleware(middleware.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)))
	r.Use(middleware.AuthMiddleware(middleware.AuthConfig{
		Mode:        middleware.AuthMode(cfg.AuthMode),
		APIKey:      cfg.AuthAPIKey,
		BearerToken: cfg.AuthBearerToken,
		JWTSecret:   cfg.JWTSecret,
		SkipPaths:   []string{"/health", "/metrics"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status, body := http.StatusOK, "ok"
		if p, ok := repo.(pinger); ok {
			if err := p.Ping(r.Context()); err != nil {
				logger.Warn("health_ping_failed", slog.String("error", err.Error()))
				status, body = http.StatusServiceUnavailable, "unavailable"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": body})
	})
	r.Method(http.MethodGet, "/metrics", middleware.MetricsHandler())

	tasks.RegisterRoutes(r, tasks.NewService(repo, logger), logger)

	return r
}

func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}
