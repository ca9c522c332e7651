package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/server/types"
	"mercator-hq/tollgate/pkg/telemetry/logging"
)

// APIKeyValidator checks API keys against a fixed set. Keys are compared by
// SHA-256 digest in constant time.
type APIKeyValidator struct {
	keys []apiKey
}

type apiKey struct {
	name     string
	digest   [sha256.Size]byte
	disabled bool
}

// NewAPIKeyValidator creates a validator for the configured keys.
func NewAPIKeyValidator(keys []config.APIKeyConfig) *APIKeyValidator {
	v := &APIKeyValidator{keys: make([]apiKey, 0, len(keys))}
	for _, k := range keys {
		v.keys = append(v.keys, apiKey{
			name:     k.Name,
			digest:   sha256.Sum256([]byte(k.Key)),
			disabled: k.Disabled,
		})
	}
	return v
}

// Validate returns the name of the matching enabled key.
func (v *APIKeyValidator) Validate(key string) (name string, ok bool) {
	digest := sha256.Sum256([]byte(key))

	// Every key is compared so timing does not reveal which one matched.
	matched := -1
	for i := range v.keys {
		if subtle.ConstantTimeCompare(digest[:], v.keys[i].digest[:]) == 1 {
			matched = i
		}
	}
	if matched < 0 || v.keys[matched].disabled {
		return "", false
	}
	return v.keys[matched].name, true
}

// Auth rejects requests without a valid API key with 401 in the API error
// format. The key is read from cfg.Header, after cfg.Scheme when one is set.
//
// Example usage:
//
//	router.Use(Auth(&cfg.Server.Auth, logger))
func Auth(cfg *config.AuthConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	validator := NewAPIKeyValidator(cfg.Keys)
	header, scheme := cfg.Header, cfg.Scheme

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, found := extractAPIKey(r, header, scheme)
			if !found {
				logger.WarnContext(r.Context(), "missing API key",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
				)
				writeUnauthorized(w, scheme, types.NewAuthenticationError(
					"Missing API key in "+header+" header", types.CodeMissingAPIKey))
				return
			}

			name, ok := validator.Validate(key)
			if !ok {
				logger.WarnContext(r.Context(), "invalid API key",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
				)
				writeUnauthorized(w, scheme, types.NewAuthenticationError(
					"Invalid API key", types.CodeInvalidAPIKey))
				return
			}

			// Handler logs carry the key name.
			ctx := r.Context()
			ctx = logging.WithLogger(ctx, logging.FromContext(ctx).With("api_key", name))
			logger.DebugContext(ctx, "API key authenticated", "api_key", name)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractAPIKey reads the key from header, stripping scheme when set.
// The scheme is matched case-insensitively.
func extractAPIKey(r *http.Request, header, scheme string) (string, bool) {
	value := strings.TrimSpace(r.Header.Get(header))
	if value == "" {
		return "", false
	}
	if scheme == "" {
		return value, true
	}

	prefix, key, ok := strings.Cut(value, " ")
	if !ok || !strings.EqualFold(prefix, scheme) {
		return "", false
	}
	key = strings.TrimSpace(key)
	return key, key != ""
}

func writeUnauthorized(w http.ResponseWriter, scheme string, errResp *types.ErrorResponse) {
	if scheme != "" {
		w.Header().Set("WWW-Authenticate", scheme)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(errResp)
}
