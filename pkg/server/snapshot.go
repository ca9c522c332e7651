package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mercator-hq/tollgate/pkg/limits/scheduler"
	"mercator-hq/tollgate/pkg/limits/storage"
	"mercator-hq/tollgate/pkg/server/types"
)

// handleGetSnapshot returns the serialized registry.
func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := s.manager.Serialize()
	if err != nil {
		handleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handlePutSnapshot replaces the registry with the uploaded snapshot.
// A malformed snapshot is rejected and the registry is left as it was.
func (s *Server) handlePutSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, newInvalid(
				fmt.Sprintf("snapshot exceeds %d bytes", tooLarge.Limit), "", types.CodeRequestTooLarge))
			return
		}
		handleError(w, r, err)
		return
	}

	if err := s.manager.Deserialize(data); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.SnapshotLoaded{Buckets: s.manager.Len()})
}

// handleCreateSnapshot persists the registry to the storage backend.
func (s *Server) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		handleError(w, r, scheduler.ErrNoBackend)
		return
	}

	snapshot, err := s.scheduler.SnapshotNow(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshotView(snapshot))
}

// handleRestoreSnapshot loads a persisted snapshot into the registry.
func (s *Server) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		handleError(w, r, scheduler.ErrNoBackend)
		return
	}

	snapshot, err := s.scheduler.RestoreID(r.Context(), chi.URLParam(r, "snapshotID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotView(snapshot))
}

func snapshotView(snapshot *storage.Snapshot) types.Snapshot {
	return types.Snapshot{
		ID:          snapshot.ID,
		BucketCount: snapshot.BucketCount,
		Bytes:       len(snapshot.Data),
		CreatedAt:   snapshot.CreatedAt.UTC(),
	}
}
