package middleware

import (
	"net/http"
	"time"

	"mercator-hq/tollgate/pkg/telemetry/metrics"
)

// Metrics records request count, latency and in-flight requests, labelled
// by route pattern. A nil collector disables the middleware.
func Metrics(collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if collector == nil || !collector.Enabled() {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			collector.TrackInFlight(1)
			defer collector.TrackInFlight(-1)

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			collector.RecordHTTPRequest(r.Method, RoutePattern(r), rw.statusCode, time.Since(start))
		})
	}
}
