// Package server wires the HTTP surface and runs it until shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/olindqvist/terrain-grid-cache/internal/core/config"
	"github.com/olindqvist/terrain-grid-cache/internal/core/health"
	"github.com/olindqvist/terrain-grid-cache/internal/core/middleware"
	"github.com/olindqvist/terrain-grid-cache/internal/core/router"
)

// Run serves until ctx is done, then drains connections.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, rt *router.Router, sr health.StatsReporter) error {
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(sr))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	rt.Mount(r)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
