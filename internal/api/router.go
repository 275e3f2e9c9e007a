// Package api exposes the bot's local ops endpoint: health and metrics.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/agyrafa/livecodingtv-bot/internal/store"
)

// NewRouter builds the ops router.
func NewRouter(logger zerolog.Logger, kv store.KV) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", healthHandler(kv))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// healthHandler reports process health and store reachability.
func healthHandler(kv store.KV) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK

		storeCheck := "ok"
		if err := kv.Ping(r.Context()); err != nil {
			storeCheck = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    status,
			"checks":    map[string]string{"store": storeCheck},
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// requestLogger logs each ops request with zerolog.
func requestLogger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Dur("latency", time.Since(start)).
					Str("request_id", middleware.GetReqID(r.Context())).
					Msg("ops request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
