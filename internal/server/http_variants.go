package server

import (
	"encoding/json"
	"net/http"

	"github.com/groblegark/kconfig/internal/model"
)

// handleCreateVariant handles POST /v1/projects/{project}/configs/{name}/variants.
func (s *ConfigServer) handleCreateVariant(w http.ResponseWriter, r *http.Request) {
	actor := requireActor(w, r)
	if actor == "" {
		return
	}

	var in createVariantInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	v, err := s.createVariant(r.Context(), actor, r.PathValue("project"), r.PathValue("name"), in)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// handleListVariants handles GET /v1/projects/{project}/configs/{name}/variants.
func (s *ConfigServer) handleListVariants(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetConfigByName(r.Context(), r.PathValue("project"), r.PathValue("name"))
	if err != nil {
		writeOpError(w, err)
		return
	}
	variants, err := s.store.ListVariants(r.Context(), cfg.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list variants")
		return
	}
	if variants == nil {
		variants = []*model.Variant{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"variants": variants})
}

// handleGetVariant handles GET /v1/projects/{project}/configs/{name}/variants/{env}.
func (s *ConfigServer) handleGetVariant(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetConfigByName(r.Context(), r.PathValue("project"), r.PathValue("name"))
	if err != nil {
		writeOpError(w, err)
		return
	}
	v, err := s.store.GetVariantByEnvironment(r.Context(), cfg.ID, r.PathValue("env"))
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleUpdateVariant handles PATCH /v1/projects/{project}/configs/{name}/variants/{env}.
func (s *ConfigServer) handleUpdateVariant(w http.ResponseWriter, r *http.Request) {
	actor := requireActor(w, r)
	if actor == "" {
		return
	}

	var in updateVariantInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.Overrides != nil {
		in.overridesSet = true
	}

	v, err := s.updateVariant(r.Context(), actor,
		r.PathValue("project"), r.PathValue("name"), r.PathValue("env"), in)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleDeleteVariant handles DELETE /v1/projects/{project}/configs/{name}/variants/{env}.
func (s *ConfigServer) handleDeleteVariant(w http.ResponseWriter, r *http.Request) {
	actor := requireActor(w, r)
	if actor == "" {
		return
	}

	err := s.deleteVariant(r.Context(), actor,
		r.PathValue("project"), r.PathValue("name"), r.PathValue("env"))
	if err != nil {
		writeOpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
