package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"mercator-hq/tollgate/pkg/limits"
	"mercator-hq/tollgate/pkg/limits/scheduler"
	"mercator-hq/tollgate/pkg/limits/storage"
	"mercator-hq/tollgate/pkg/server/types"
	"mercator-hq/tollgate/pkg/telemetry/logging"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, resp *types.ErrorResponse) {
	writeJSON(w, status, resp)
}

func newInvalid(message, param, code string) *types.ErrorResponse {
	return types.NewInvalidRequestError(message, param, code)
}

func newNotFound(message, code string) *types.ErrorResponse {
	return types.NewNotFoundError(message, code)
}

// handleError maps errors from the limits, scheduler and storage packages
// to HTTP responses. Unknown errors are logged and reported as 500.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, limits.ErrNotFound):
		writeError(w, http.StatusNotFound, newNotFound(err.Error(), types.CodeBucketNotFound))
	case errors.Is(err, limits.ErrMalformedSnapshot):
		writeError(w, http.StatusBadRequest, newInvalid(err.Error(), "", types.CodeMalformedSnapshot))
	case errors.Is(err, limits.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, newInvalid(err.Error(), "", types.CodeInvalidValue))
	case errors.Is(err, limits.ErrRefillUndefined):
		writeError(w, http.StatusConflict,
			types.NewErrorResponse(err.Error(), types.ErrorTypeConflict, "", types.CodeRefillUndefined))
	case errors.Is(err, scheduler.ErrNoBackend):
		writeError(w, http.StatusServiceUnavailable,
			types.NewServiceUnavailableError(err.Error(), types.CodeStorageUnavailable))
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, newNotFound(err.Error(), types.CodeSnapshotNotFound))
	default:
		logging.FromContext(r.Context()).ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError,
			types.NewServerError("An internal error occurred. Please try again later."))
	}
}

// decodeJSON decodes a size-limited JSON body into v, writing the error
// response itself on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, newInvalid(
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), "", types.CodeRequestTooLarge))
			return false
		}
		writeError(w, http.StatusBadRequest, newInvalid(
			fmt.Sprintf("invalid JSON body: %v", err), "", types.CodeInvalidJSON))
		return false
	}
	return true
}
