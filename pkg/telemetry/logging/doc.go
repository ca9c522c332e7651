// Package logging builds the structured loggers used across Tollgate.
//
// # Overview
//
// The package wraps log/slog to provide:
//   - JSON and text output with level parsing
//   - Request, bucket and trace identifiers taken from the context
//   - Masking of credentials (bearer tokens, API keys, secret-named fields)
//
// # Usage
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	logger.InfoContext(ctx, "bucket consumed", "tokens", 5)
//	// {"level":"INFO","msg":"bucket consumed","tokens":5,"request_id":"req-123"}
//
// Components receive a *slog.Logger and tag it with their name:
//
//	logger = logger.With("component", "limits.manager")
package logging
