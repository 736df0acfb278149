// Package server exposes the thin HTTP layer over the replay pipeline:
// a landing page, fetch and export endpoints, health probes, and metrics.
// It injects correlation IDs into request contexts for consistent logging
// and includes permissive CORS for development.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/chat-rewind/config"
	"github.com/onnwee/chat-rewind/replay"
	"github.com/onnwee/chat-rewind/telemetry"
)

// NewMux returns the HTTP handler with all routes.
func NewMux(cfg *config.Config, source replay.Source) http.Handler {
	corsCfg := loadCORSConfig()
	limiter := newIPRateLimiter(loadRateLimiterConfig())

	handlers := NewHandlers(cfg, source)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", handlers.HandleHealthz)
	mux.HandleFunc("/readyz", handlers.HandleReadyz)
	mux.HandleFunc("/", handlers.HandleIndex)
	mux.HandleFunc("/api/fetch-chat", handlers.HandleFetchChat)
	mux.HandleFunc("/api/export.csv", handlers.HandleExportCSV)
	mux.HandleFunc("/api/export.html", handlers.HandleExportHTML)

	// Everything under /api/ does a full upstream fetch, so it gets rate
	// limited per client IP.
	limited := rateLimitMiddleware(mux, limiter)

	// Wrap with correlation ID injector and tracing middleware
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		ctx, span := telemetry.StartSpan(ctx, "http-server", r.Method+" "+r.URL.Path,
			telemetry.HTTPMethodAttr(r.Method),
			telemetry.HTTPRouteAttr(r.URL.Path),
			telemetry.HTTPURLAttr(r.URL.String()),
		)
		defer span.End()

		telemetry.LoggerWithCorr(ctx).Debug("request start",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("component", "http"))

		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		limited.ServeHTTP(rec, r.WithContext(ctx))

		telemetry.SetSpanHTTPStatus(span, rec.statusCode)
		if rec.statusCode >= 400 {
			code, msg := telemetry.ErrorStatus(fmt.Sprintf("HTTP %d", rec.statusCode))
			span.SetStatus(code, msg)
		}
	})
	return withCORSConfig(handler, corsCfg)
}

// statusRecorder wraps ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Flush implements http.Flusher if the underlying ResponseWriter supports it
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func Start(ctx context.Context, cfg *config.Config, source replay.Source, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      NewMux(cfg, source),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Minute, // export endpoints fetch the whole replay inline
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("http server error", slog.Any("err", err))
		return err
	}
	return nil
}
