// Package server exposes the paste handler over a local HTTP API, so an
// editor plugin in any language can hand its paste events to linkpaste.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"linkpaste/history"
	"linkpaste/paste"
)

// Options configures the API.
type Options struct {
	// ConfigPath is where format selection changes are saved. Empty keeps
	// them in memory only.
	ConfigPath string
	// History, when set, is served from /api/history.
	History *history.Store
	// Logger receives one record per request. Defaults to slog.Default().
	Logger *slog.Logger
}

type handler struct {
	paste *paste.Handler
	opts  Options

	mu sync.Mutex // serializes settings edits
}

// RegisterRoutes builds the API router around h.
func RegisterRoutes(h *paste.Handler, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(opts.Logger))
	r.Use(middleware.Recoverer)

	api := &handler{paste: h, opts: opts}

	r.Post("/api/paste", api.handlePaste)
	r.Get("/api/formats", api.getFormats)
	r.Post("/api/formats", api.addFormat)
	r.Put("/api/formats/active", api.selectFormat)
	r.Patch("/api/formats/{name}", api.updateFormat)
	r.Delete("/api/formats/{name}", api.deleteFormat)
	r.Get("/api/history", api.getHistory)

	return r
}

// requestLogger logs each request through log once it completes.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("HTTP request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// Serve runs the API on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("linkpaste listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
