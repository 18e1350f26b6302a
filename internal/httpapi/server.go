// Package httpapi serves the operational HTTP endpoints: health, Prometheus
// metrics and read-only session inspection.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nextlevelbuilder/supportdesk/internal/sessions"
)

// SessionReader looks up sessions without mutating them.
type SessionReader interface {
	Snapshot(userID string) (sessions.Session, bool)
}

// Check reports the health of one component; nil means healthy.
type Check func() error

// Config wires the ops endpoints.
type Config struct {
	Sessions SessionReader
	ReplyCap int                 // used to derive the session state
	Gatherer prometheus.Gatherer // defaults to prometheus.DefaultGatherer
	Checks   map[string]Check
}

// sessionView is the JSON shape of GET /v1/sessions/{userID}.
type sessionView struct {
	sessions.Session
	State sessions.State `json:"state"`
}

// NewRouter builds the chi router for the ops listener.
func NewRouter(cfg Config) http.Handler {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/healthz", healthHandler(cfg.Checks))
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	r.Get("/v1/sessions/{userID}", sessionHandler(cfg.Sessions, cfg.ReplyCap))
	return r
}

func healthHandler(checks map[string]Check) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		status := map[string]any{"status": "ok"}
		results := make(map[string]string, len(checks))
		code := http.StatusOK
		for name, check := range checks {
			if err := check(); err != nil {
				results[name] = err.Error()
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		status["checks"] = results
		JSON(w, code, status)
	}
}

func sessionHandler(reader SessionReader, replyCap int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			Error(w, http.StatusNotFound, "session store not available")
			return
		}
		userID := chi.URLParam(r, "userID")
		sess, ok := reader.Snapshot(userID)
		if !ok {
			Error(w, http.StatusNotFound, "session not found")
			return
		}
		JSON(w, http.StatusOK, sessionView{Session: sess, State: sess.State(replyCap)})
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("ops: encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Serve runs the ops listener until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("ops listener started", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		slog.Info("ops listener stopped")
		return nil
	}
}
