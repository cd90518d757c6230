package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/groblegark/kconfig/internal/model"
)

// handleCreateConfig handles POST /v1/projects/{project}/configs.
func (s *ConfigServer) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	actor := requireActor(w, r)
	if actor == "" {
		return
	}

	var in createConfigInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	in.ProjectID = r.PathValue("project")

	cfg, err := s.createConfig(r.Context(), actor, in)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

// handleListConfigs handles GET /v1/projects/{project}/configs.
func (s *ConfigServer) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.ConfigFilter{
		ProjectID: r.PathValue("project"),
		Search:    q.Get("search"),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	configs, total, err := s.store.ListConfigs(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list configs")
		return
	}

	// Ensure configs is never null in JSON output.
	if configs == nil {
		configs = []*model.Config{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"configs": configs,
		"total":   total,
	})
}

// handleGetConfig handles GET /v1/projects/{project}/configs/{name}.
func (s *ConfigServer) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetConfigByName(r.Context(), r.PathValue("project"), r.PathValue("name"))
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleUpdateConfig handles PATCH /v1/projects/{project}/configs/{name}.
func (s *ConfigServer) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	actor := requireActor(w, r)
	if actor == "" {
		return
	}

	var in updateConfigInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	// For HTTP/JSON, members/overrides presence is inferred from non-nil.
	if in.Members != nil {
		in.membersSet = true
	}
	if in.Overrides != nil {
		in.overridesSet = true
	}

	cfg, err := s.updateConfig(r.Context(), actor, r.PathValue("project"), r.PathValue("name"), in)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleDeleteConfig handles DELETE /v1/projects/{project}/configs/{name}.
func (s *ConfigServer) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	actor := requireActor(w, r)
	if actor == "" {
		return
	}

	if err := s.deleteConfig(r.Context(), actor, r.PathValue("project"), r.PathValue("name")); err != nil {
		writeOpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEvaluateValue handles POST /v1/projects/{project}/configs/{name}/value.
// The body carries the evaluation context; the environment comes from the
// env query parameter. POST rather than GET because contexts can be large.
func (s *ConfigServer) handleEvaluateValue(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Context map[string]any `json:"context"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	out, err := s.evaluateValue(r.Context(),
		r.PathValue("project"), r.PathValue("name"),
		r.URL.Query().Get("env"), body.Context)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
