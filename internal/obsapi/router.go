// Package obsapi exposes a small HTTP sidecar for the UDS server:
// a liveness probe, Prometheus scraping, and a snapshot of active
// diagnostic sessions. It is entirely optional — a server started
// without it behaves identically on the wire (spec "SUPPLEMENTED
// FEATURES" 1. obsapi sidecar).
package obsapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/udsforge/udsforge/internal/logger"
)

// SessionView is one row of the /sessions snapshot, filled in by the
// caller from the live *server.Server state.
type SessionView struct {
	ClientAddr    string `json:"client_addr"`
	Session       string `json:"session"`
	SecurityLevel uint8  `json:"security_level"`
	Connected     bool   `json:"connected"`
}

// SessionsFunc produces the current session snapshot on demand; it
// keeps this package decoupled from pkg/uds/server's types.
type SessionsFunc func() []SessionView

// NewRouter builds the sidecar's chi router.
//
// Routes:
//   - GET /healthz  - liveness probe, always 200 once the process is up
//   - GET /metrics  - Prometheus scrape endpoint
//   - GET /sessions - JSON snapshot of active diagnostic sessions
func NewRouter(sessions SessionsFunc) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/sessions", func(w http.ResponseWriter, r *http.Request) {
		var views []SessionView
		if sessions != nil {
			views = sessions()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(views)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Debug("obsapi request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
		)
	})
}
