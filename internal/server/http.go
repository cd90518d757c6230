package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/groblegark/kconfig/internal/store"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header. Mutating routes read the
// acting user's email from the X-Actor header.
func (s *ConfigServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/projects/{project}/configs", s.handleCreateConfig)
	mux.HandleFunc("GET /v1/projects/{project}/configs", s.handleListConfigs)
	mux.HandleFunc("GET /v1/projects/{project}/configs/{name}", s.handleGetConfig)
	mux.HandleFunc("PATCH /v1/projects/{project}/configs/{name}", s.handleUpdateConfig)
	mux.HandleFunc("DELETE /v1/projects/{project}/configs/{name}", s.handleDeleteConfig)
	mux.HandleFunc("POST /v1/projects/{project}/configs/{name}/value", s.handleEvaluateValue)
	mux.HandleFunc("POST /v1/projects/{project}/configs/{name}/variants", s.handleCreateVariant)
	mux.HandleFunc("GET /v1/projects/{project}/configs/{name}/variants", s.handleListVariants)
	mux.HandleFunc("GET /v1/projects/{project}/configs/{name}/variants/{env}", s.handleGetVariant)
	mux.HandleFunc("PATCH /v1/projects/{project}/configs/{name}/variants/{env}", s.handleUpdateVariant)
	mux.HandleFunc("DELETE /v1/projects/{project}/configs/{name}/variants/{env}", s.handleDeleteVariant)
	mux.HandleFunc("POST /v1/proposals", s.handleCreateProposal)
	mux.HandleFunc("GET /v1/proposals", s.handleListProposals)
	mux.HandleFunc("GET /v1/proposals/{id}", s.handleGetProposal)
	mux.HandleFunc("POST /v1/proposals/{id}/approve", s.handleApproveProposal)
	mux.HandleFunc("POST /v1/proposals/{id}/reject", s.handleRejectProposal)
	mux.HandleFunc("GET /v1/stream", s.handleStream)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return RecoveryMiddleware(LoggingMiddleware(AuthMiddleware(authToken, mux)))
}

// handleHealth handles GET /v1/health.
func (s *ConfigServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// actorEmail extracts the acting user's email from the X-Actor header.
func actorEmail(r *http.Request) string {
	return r.Header.Get("X-Actor")
}

// requireActor writes a 400 and returns "" when no actor header is present.
func requireActor(w http.ResponseWriter, r *http.Request) string {
	actor := actorEmail(r)
	if actor == "" {
		writeError(w, http.StatusBadRequest, "X-Actor header is required")
	}
	return actor
}

// writeOpError maps an operation error onto the HTTP status surface:
// 400 for bad input, 403 for role violations, 404 for missing entities,
// 409 for lost optimistic-concurrency races and duplicate names.
func writeOpError(w http.ResponseWriter, err error) {
	var ie inputError
	var fe forbiddenError
	switch {
	case errors.As(err, &ie):
		writeError(w, http.StatusBadRequest, ie.Error())
	case errors.As(err, &fe):
		writeError(w, http.StatusForbidden, fe.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrVersionConflict), errors.Is(err, store.ErrDuplicateName):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
