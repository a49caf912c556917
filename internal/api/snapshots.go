package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Priya8975/feature-materializer/internal/store"
)

type SnapshotHandler struct {
	store *store.PostgresStore
}

func NewSnapshotHandler(s *store.PostgresStore) *SnapshotHandler {
	return &SnapshotHandler{store: s}
}

// EntitySnapshots serves GET /api/v1/snapshots/{entity}?start=...&end=...
// with the offline snapshot history of one entity, for debugging materialization.
func (h *SnapshotHandler) EntitySnapshots(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "offline store not configured")
		return
	}

	entity := chi.URLParam(r, "entity")
	start, err := parseTimeParam(r, "start", time.Time{})
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid start time")
		return
	}
	end, err := parseTimeParam(r, "end", time.Now().UTC())
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid end time")
		return
	}

	snaps, err := h.store.EntityRange(r.Context(), entity, start, end)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to query snapshots")
		return
	}
	respondJSON(w, http.StatusOK, snaps)
}

func parseTimeParam(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return time.Parse(time.RFC3339, raw)
}
