package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/groblegark/kconfig/internal/audit"
	"github.com/groblegark/kconfig/internal/events"
	"github.com/groblegark/kconfig/internal/identity"
	"github.com/groblegark/kconfig/internal/model"
	"github.com/groblegark/kconfig/internal/store"
)

// ConfigServer serves the configuration governance API: versioned configs
// and variants, the proposal workflow, override evaluation, and the
// replication stream.
type ConfigServer struct {
	store     store.Store
	publisher events.Publisher
	auditor   audit.Emitter
	identity  identity.Provider
	hub       *streamHub
	registry  *prometheus.Registry
}

// NewConfigServer returns a new ConfigServer backed by the given store,
// publisher, audit emitter, and identity provider. Each server owns its
// metrics registry, exposed at /metrics.
func NewConfigServer(s store.Store, p events.Publisher, a audit.Emitter, id identity.Provider) *ConfigServer {
	registry := prometheus.NewRegistry()
	return &ConfigServer{
		store:     s,
		publisher: p,
		auditor:   a,
		identity:  id,
		hub:       newStreamHub(registry),
		registry:  registry,
	}
}

// recordAndPublish emits an audit record, publishes the event to the bus, and
// fans it out to connected stream subscribers. All three are best-effort;
// failures are logged but never roll back the committed mutation.
func (s *ConfigServer) recordAndPublish(ctx context.Context, topic string, rec audit.Record, event any) {
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	if payload, err := json.Marshal(event); err == nil {
		rec.Payload = payload
	}
	if err := s.auditor.Emit(ctx, rec); err != nil {
		slog.Warn("failed to emit audit record", "type", rec.Type, "config_id", rec.ConfigID, "error", err)
	}
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "config_id", rec.ConfigID, "error", err)
	}
	s.broadcastEvent(rec.ProjectID, topic, event)
}

// inputError indicates invalid user input.
// The HTTP layer maps this to 400.
type inputError string

func (e inputError) Error() string { return string(e) }

// forbiddenError indicates a role or self-approval violation.
// The HTTP layer maps this to 403.
type forbiddenError string

func (e forbiddenError) Error() string { return string(e) }

// effectiveRole combines the actor's project-level role with any per-config
// membership role. The stronger of the two wins.
func (s *ConfigServer) effectiveRole(ctx context.Context, cfg *model.Config, email string) (model.Role, error) {
	projectRole, err := s.identity.RoleFor(ctx, cfg.ProjectID, email)
	if err != nil {
		return "", err
	}
	switch cfg.MemberRoleFor(email) {
	case model.MemberEditor:
		return model.MaxRole(projectRole, model.RoleEditor), nil
	case model.MemberMaintainer:
		return model.MaxRole(projectRole, model.RoleMaintainer), nil
	}
	return projectRole, nil
}

// requireDirectMutation enforces the governance gate for mutations that
// bypass the proposal workflow: the actor needs the role the change set
// demands, and when the project requires proposals only owners and admins
// may write directly.
func (s *ConfigServer) requireDirectMutation(ctx context.Context, cfg *model.Config, email string, cs model.ChangeSet) error {
	role, err := s.effectiveRole(ctx, cfg, email)
	if err != nil {
		return err
	}
	if !role.Satisfies(cs.RequiredRole()) {
		return forbiddenError("role " + string(role) + " may not make this change")
	}
	flags, err := s.identity.ProjectFlags(ctx, cfg.ProjectID)
	if err != nil {
		return err
	}
	if flags.RequireProposals && !role.Satisfies(model.RoleOwner) {
		return forbiddenError("project requires changes to go through proposals")
	}
	return nil
}
