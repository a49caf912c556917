package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Priya8975/feature-materializer/internal/online"
	"github.com/Priya8975/feature-materializer/internal/registry"
)

type FeatureHandler struct {
	registry *registry.Registry
	lookup   *online.Lookup
}

func NewFeatureHandler(reg *registry.Registry, lookup *online.Lookup) *FeatureHandler {
	return &FeatureHandler{registry: reg, lookup: lookup}
}

type lookupResponse struct {
	EntityKey string              `json:"entity_key"`
	Features  map[string]*float64 `json:"features"`
}

// Lookup serves GET /api/v1/features/{entity}?names=a,b with the latest
// synced value per feature. JSON null is the never-synced sentinel.
func (h *FeatureHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	if entity == "" {
		respondError(w, http.StatusBadRequest, "entity key is required")
		return
	}

	var names []string
	if q := r.URL.Query().Get("names"); q != "" {
		for _, n := range strings.Split(q, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
	}
	specs, err := h.registry.Specs(names)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(specs) == 0 {
		respondError(w, http.StatusBadRequest, "no features registered")
		return
	}

	featureNames := make([]string, len(specs))
	for i, s := range specs {
		featureNames[i] = s.Name
	}

	values, err := h.lookup.Get(r.Context(), entity, featureNames)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "online lookup failed")
		return
	}

	respondJSON(w, http.StatusOK, lookupResponse{EntityKey: entity, Features: values})
}

type specResponse struct {
	Name      string `json:"name"`
	KeyType   string `json:"key_type"`
	Transform string `json:"transform"`
	Window    string `json:"window,omitempty"`
	Interval  string `json:"interval,omitempty"`
	Anchor    string `json:"anchor,omitempty"`
}

// ListSpecs serves GET /api/v1/features, listing every registered feature.
func (h *FeatureHandler) ListSpecs(w http.ResponseWriter, r *http.Request) {
	specs, err := h.registry.Specs(nil)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list features")
		return
	}

	out := make([]specResponse, 0, len(specs))
	for _, s := range specs {
		resp := specResponse{
			Name:      s.Name,
			KeyType:   string(s.KeyType),
			Transform: s.Transform.String(),
		}
		if s.Windowed() {
			resp.Window = s.Window.String()
			resp.Interval = s.Interval.String()
		}
		if anchor, ok := h.registry.AnchorFor(s.Name); ok {
			resp.Anchor = anchor.Name
		}
		out = append(out, resp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	respondJSON(w, http.StatusOK, out)
}
