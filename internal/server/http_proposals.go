package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/groblegark/kconfig/internal/model"
)

// handleCreateProposal handles POST /v1/proposals.
func (s *ConfigServer) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	actor := requireActor(w, r)
	if actor == "" {
		return
	}

	var in createProposalInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	p, err := s.createProposal(r.Context(), actor, in)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// handleListProposals handles GET /v1/proposals.
func (s *ConfigServer) handleListProposals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.ProposalFilter{
		ConfigID:  q.Get("config_id"),
		ProjectID: q.Get("project"),
		VariantID: q.Get("variant_id"),
		Scope:     model.ProposalScope(q.Get("scope")),
		Status:    model.ProposalStatus(q.Get("status")),
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

	proposals, err := s.store.ListProposals(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list proposals")
		return
	}
	if proposals == nil {
		proposals = []*model.Proposal{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"proposals": proposals})
}

// handleGetProposal handles GET /v1/proposals/{id}.
func (s *ConfigServer) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProposal(r.Context(), r.PathValue("id"))
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleApproveProposal handles POST /v1/proposals/{id}/approve.
func (s *ConfigServer) handleApproveProposal(w http.ResponseWriter, r *http.Request) {
	actor := requireActor(w, r)
	if actor == "" {
		return
	}

	p, err := s.approveProposal(r.Context(), r.PathValue("id"), actor)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleRejectProposal handles POST /v1/proposals/{id}/reject.
func (s *ConfigServer) handleRejectProposal(w http.ResponseWriter, r *http.Request) {
	actor := requireActor(w, r)
	if actor == "" {
		return
	}

	p, err := s.rejectProposal(r.Context(), r.PathValue("id"), actor)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
