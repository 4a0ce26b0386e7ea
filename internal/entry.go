// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/careerlink/internal/api"
	"github.com/starford/careerlink/internal/jobs"
	"github.com/starford/careerlink/internal/linker"
	"github.com/starford/careerlink/internal/records"
	"github.com/starford/careerlink/internal/sse"
	"github.com/starford/careerlink/internal/store"
	"github.com/starford/careerlink/internal/watch"
)

// setup applies options, installs the default logger and opens the store.
func setup(opts []Option) (*application, *slog.Logger, store.Store, error) {
	app := &application{logOut: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, nil, nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_driver", cfg.Store.Driver),
		slog.Bool("atomic_links", cfg.Linking.Atomic),
		slog.Bool("sweeper", cfg.Sweeper.Enabled),
		slog.Bool("watch", cfg.Watch.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	s, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init store: %w", err)
	}
	return app, logger, s, nil
}

// Run starts the HTTP server and background jobs with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, logger, s, err := setup(opts)
	if err != nil {
		return err
	}
	defer s.Close()

	cfg := app.config

	// Writes made here are timestamped so the watcher can skip them.
	tracked := store.Track(s)

	// SSE broker.
	broker := sse.NewBroker(cfg.Events.Throttle)
	defer broker.Close()

	auditor := linker.NewAuditor(tracked, logger)
	links := linker.NewRegistry(tracked,
		linker.WithLogger(logger),
		linker.WithAtomicWrites(cfg.Linking.Atomic),
		linker.WithNotifier(broker.PublishLinkEvent),
	)

	// Background jobs.
	sweep := jobs.NewSweepJob(auditor, cfg.Sweeper.Schedule,
		jobs.WithDryRun(cfg.Sweeper.DryRun),
		jobs.WithSweepLogger(logger),
		jobs.WithSweepNotifier(broker.PublishLinkEvent),
	)
	var scheduled []jobs.Job
	if cfg.Sweeper.Enabled {
		scheduled = append(scheduled, sweep)
	}
	runner, err := jobs.NewRunner(logger, scheduled...)
	if err != nil {
		return fmt.Errorf("init jobs: %w", err)
	}

	// Build API handler and router.
	h := api.NewHandler(records.NewService(tracked), links, auditor)
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := tracked.List(req.Context(), store.Resumes, store.FieldID); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	// Start the job runner.
	g.Go(func() error {
		return runner.Run(gCtx)
	})

	// Start the database watcher; external writes trigger a sweep.
	if cfg.Watch.Enabled {
		g.Go(func() error {
			return watch.Watch(gCtx, cfg.Store.DSN, cfg.Watch.Debounce, logger, func() {
				if !runner.Trigger(gCtx, jobs.SweepJobName) {
					logger.Debug("watcher: sweep skipped")
				}
			}, watch.WithLocalWrites(tracked.LastWrite))
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle graceful shutdown.
	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		cancel()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
