package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"mercator-hq/tollgate/pkg/telemetry/logging"
)

// Logging logs every request with structured logging and attaches logger
// to the request context for handlers (see logging.FromContext).
//
// Completed requests are logged at INFO, 4xx at WARN and 5xx at ERROR:
//
//	{
//	  "level": "INFO",
//	  "msg": "request completed",
//	  "method": "POST",
//	  "path": "/v1/buckets/agent-1/consume",
//	  "route": "/v1/buckets/{id}/consume",
//	  "status": 200,
//	  "latency_ms": 1,
//	  "request_id": "6f1c..."
//	}
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := logging.WithLogger(r.Context(), logger)
			rw := newResponseWriter(w)

			logger.DebugContext(ctx, "request started",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			r = r.WithContext(ctx)
			next.ServeHTTP(rw, r)

			level := slog.LevelInfo
			switch {
			case rw.statusCode >= 500:
				level = slog.LevelError
			case rw.statusCode >= 400:
				level = slog.LevelWarn
			}

			logger.Log(ctx, level, "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"route", RoutePattern(r),
				"status", rw.statusCode,
				"bytes", rw.size,
				"latency_ms", time.Since(start).Milliseconds(),
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		})
	}
}
