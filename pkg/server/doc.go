// Package server provides the Tollgate HTTP API: bucket administration,
// token consumption, snapshots and the operational endpoints.
//
// # Routes
//
//	GET    /v1/buckets                    list buckets
//	GET    /v1/buckets/{id}               bucket state
//	PUT    /v1/buckets/{id}               create (201) or replace (200) a bucket
//	DELETE /v1/buckets/{id}               remove a bucket
//	POST   /v1/buckets/{id}/consume       charge tokens: 200, 429 or 404
//	POST   /v1/buckets/{id}/refill        refill one bucket
//	GET    /v1/buckets/{id}/wait?tokens=N time until N tokens are available
//	POST   /v1/refill                     refill every bucket
//	GET    /v1/snapshot                   serialized registry
//	PUT    /v1/snapshot                   replace the registry (400 if malformed)
//	POST   /v1/snapshots                  persist the registry now
//	POST   /v1/snapshots/{id}/restore     load a persisted snapshot
//	GET    /health, /ready, /version, /metrics
//
// # Consume Requests
//
// A consume request is priced one of three ways:
//
//	{"tokens": 5}
//	{"usage": {"prompt_tokens": 120, "completion_tokens": 40}, "model": "gpt-4o"}
//	{"messages": [{"role": "user", "content": "..."}], "max_completion_tokens": 256, "model": "gpt-4o"}
//
// Usage and messages are converted to tokens with the configured per-model
// prices; without a price every prompt or completion token costs one token.
// An empty object ({}) consumes a single token.
// An exhausted bucket answers 429 with a Retry-After header (seconds,
// rounded up) unless the bucket never refills.
//
// # Authentication
//
// With server.auth.enabled every /v1 request needs an API key, by default
// as "Authorization: Bearer <key>". Missing or unknown keys get 401.
//
// # Unlimited Buckets
//
// Unlimited buckets report "capacity": "unlimited" and "unlimited": true
// and omit the balance, since JSON cannot encode infinity.
//
// # Lifecycle
//
//	srv := server.New(server.Options{Config: cfg, Manager: manager, Scheduler: sched})
//	if err := srv.Start(ctx); err != nil { // blocks until ctx is cancelled
//	    return err
//	}
//
// Start shuts the server down gracefully when ctx is cancelled, waiting up
// to server.shutdown_timeout for in-flight requests. Signal handling is
// left to the caller.
package server
