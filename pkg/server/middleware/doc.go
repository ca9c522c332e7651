// Package middleware provides the HTTP middleware chain of the Tollgate
// admin API.
//
// # Chain
//
// The server installs the middleware in this order (outermost first):
//
//	Recovery -> RequestID -> CORS -> Tracing -> Metrics -> Logging -> router
//
// Auth is installed on the /v1 subrouter only, so probes and /metrics stay
// reachable without a key. CORS answers preflight requests before routing.
//
// Recovery is outermost so a panic anywhere in the chain produces a JSON
// 500 response. RequestID runs before everything that logs or traces so
// the identifier is available to them.
//
// # Request IDs
//
// A client supplied X-Request-ID is reused; otherwise a UUID is generated.
// The ID is stored with logging.WithRequestID, so every log record written
// with a request context carries it.
//
// # Route Labels
//
// Metrics and spans are labelled with the chi route pattern (for example
// "/v1/buckets/{id}/consume"), never the raw path, so bucket identifiers do
// not become label values.
package middleware
