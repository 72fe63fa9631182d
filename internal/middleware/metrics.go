package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/retailops/refunds/internal/infrastructure/observability"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Metrics is middleware that records request counts and latency per route.
func Metrics(m *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(ww, r)

			route := routeLabel(r)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.statusCode)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// routeLabel keeps metric cardinality bounded. Matched requests report the
// chi pattern ("/api/v1/refunds/{id}"); for unmatched ones, raw refund and
// sale item IDs in the path collapse to a placeholder so every mistyped ID
// does not mint its own series.
func routeLabel(r *http.Request) string {
	if pattern := chi.RouteContext(r.Context()).RoutePattern(); pattern != "" {
		return pattern
	}

	segments := strings.Split(r.URL.Path, "/")
	for i, seg := range segments {
		if _, err := uuid.Parse(seg); err == nil {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
