package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/groblegark/kconfig/internal/audit"
	"github.com/groblegark/kconfig/internal/events"
	"github.com/groblegark/kconfig/internal/model"
	"github.com/groblegark/kconfig/internal/store"
)

// createConfigInput holds transport-agnostic parameters for creating a config.
type createConfigInput struct {
	ProjectID   string           `json:"project_id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Value       json.RawMessage  `json:"value"`
	Schema      json.RawMessage  `json:"schema,omitempty"`
	Overrides   []model.Override `json:"overrides,omitempty"`
	Members     []model.Member   `json:"members,omitempty"`
}

// createConfig validates input, persists a new config at version 1, and
// publishes a ConfigCreated event. Returns inputError for validation
// failures and forbiddenError for role violations.
func (s *ConfigServer) createConfig(ctx context.Context, actor string, in createConfigInput) (*model.Config, error) {
	if in.ProjectID == "" {
		return nil, inputError("project_id is required")
	}

	now := time.Now().UTC()
	cfg := &model.Config{
		ID:          uuid.NewString(),
		ProjectID:   in.ProjectID,
		Name:        in.Name,
		Description: in.Description,
		Version:     1,
		Value:       in.Value,
		Schema:      in.Schema,
		Overrides:   in.Overrides,
		Members:     in.Members,
		CreatedAt:   now,
		CreatedBy:   model.NormalizeEmail(actor),
		UpdatedAt:   now,
	}

	if err := model.ValidateConfig(cfg); err != nil {
		return nil, inputError("invalid config: " + err.Error())
	}
	if err := model.ValidateOverrideReferences(cfg.ProjectID, cfg.Overrides); err != nil {
		return nil, inputError(err.Error())
	}

	cs := model.ChangeSet{
		Value:   true,
		Schema:  in.Schema != nil,
		Members: len(in.Members) > 0,
	}
	role, err := s.identity.RoleFor(ctx, in.ProjectID, actor)
	if err != nil {
		return nil, fmt.Errorf("resolve role: %w", err)
	}
	if !role.Satisfies(cs.RequiredRole()) {
		return nil, forbiddenError("role " + string(role) + " may not create this config")
	}

	if err := s.store.CreateConfig(ctx, cfg); err != nil {
		return nil, err
	}

	s.recordAndPublish(ctx, events.TopicConfigCreated, audit.Record{
		Type:      audit.TypeConfigCreated,
		Actor:     actor,
		ProjectID: cfg.ProjectID,
		ConfigID:  cfg.ID,
	}, events.ConfigCreated{Config: cfg})

	return cfg, nil
}

// updateConfigInput holds optional parameters for directly patching a config.
// Nil pointer fields mean "don't change". ExpectedVersion is required; the
// update only lands if the stored version still matches.
type updateConfigInput struct {
	ExpectedVersion int64            `json:"expected_version"`
	Description     *string          `json:"description,omitempty"`
	Value           json.RawMessage  `json:"value,omitempty"`
	Schema          json.RawMessage  `json:"schema,omitempty"`
	RemoveSchema    bool             `json:"remove_schema,omitempty"`
	Overrides       []model.Override `json:"overrides,omitempty"`
	Members         []model.Member   `json:"members,omitempty"`
	membersSet      bool
	overridesSet    bool
}

func (in updateConfigInput) changeSet() model.ChangeSet {
	return model.ChangeSet{
		Value:       in.Value != nil || in.overridesSet,
		Description: in.Description != nil,
		Schema:      in.Schema != nil || in.RemoveSchema,
		Members:     in.membersSet,
	}
}

// updateConfig applies a direct patch to a config under optimistic
// concurrency, auto-rejecting every pending proposal against the config row
// inside the same transaction.
func (s *ConfigServer) updateConfig(ctx context.Context, actor, projectID, name string, in updateConfigInput) (*model.Config, error) {
	if in.ExpectedVersion <= 0 {
		return nil, inputError("expected_version is required")
	}
	cs := in.changeSet()
	if cs.Empty() {
		return nil, inputError("no changes supplied")
	}

	cfg, err := s.store.GetConfigByName(ctx, projectID, name)
	if err != nil {
		return nil, err
	}

	if in.Description != nil {
		cfg.Description = *in.Description
	}
	if in.Value != nil {
		cfg.Value = in.Value
	}
	if in.Schema != nil {
		cfg.Schema = in.Schema
	}
	if in.RemoveSchema {
		cfg.Schema = nil
	}
	if in.overridesSet {
		cfg.Overrides = in.Overrides
	}
	if in.membersSet {
		cfg.Members = in.Members
	}

	if err := model.ValidateConfig(cfg); err != nil {
		return nil, inputError("invalid config: " + err.Error())
	}
	if err := model.ValidateOverrideReferences(cfg.ProjectID, cfg.Overrides); err != nil {
		return nil, inputError(err.Error())
	}
	if err := s.requireDirectMutation(ctx, cfg, actor, cs); err != nil {
		return nil, err
	}

	var cascaded []*model.Proposal
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		cascaded, err = rejectPendingForRow(ctx, tx, cfg.ID, "", model.Resolution{
			Reviewer: actor,
			Reason:   model.RejectedConfigEdited,
			At:       time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		return tx.UpdateConfig(ctx, cfg, in.ExpectedVersion)
	})
	if err != nil {
		return nil, err
	}

	s.recordAndPublish(ctx, events.TopicConfigUpdated, audit.Record{
		Type:      audit.TypeConfigUpdated,
		Actor:     actor,
		ProjectID: cfg.ProjectID,
		ConfigID:  cfg.ID,
	}, events.ConfigUpdated{Config: cfg, Changes: changesMap(cs)})
	s.publishCascades(ctx, actor, cfg.ProjectID, cascaded)

	return cfg, nil
}

// deleteConfig hard-deletes a config, its variants, and auto-rejects every
// pending proposal against it inside the same transaction.
func (s *ConfigServer) deleteConfig(ctx context.Context, actor, projectID, name string) error {
	cfg, err := s.store.GetConfigByName(ctx, projectID, name)
	if err != nil {
		return err
	}
	if err := s.requireDirectMutation(ctx, cfg, actor, model.ChangeSet{Delete: true}); err != nil {
		return err
	}

	var cascaded []*model.Proposal
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		pending, err := tx.ListPendingProposals(ctx, cfg.ID, "", "")
		if err != nil {
			return err
		}
		res := model.Resolution{
			Reviewer: actor,
			Reason:   model.RejectedConfigDeleted,
			At:       time.Now().UTC(),
		}
		for _, p := range pending {
			if err := tx.ResolveProposal(ctx, p.ID, res); err != nil {
				return fmt.Errorf("cascade proposal %s: %w", p.ID, err)
			}
		}
		cascaded = pending
		// Variants go with the config via the schema's cascade.
		return tx.DeleteConfig(ctx, cfg.ID)
	})
	if err != nil {
		return err
	}

	s.recordAndPublish(ctx, events.TopicConfigDeleted, audit.Record{
		Type:      audit.TypeConfigDeleted,
		Actor:     actor,
		ProjectID: cfg.ProjectID,
		ConfigID:  cfg.ID,
	}, events.ConfigDeleted{ConfigID: cfg.ID, ProjectID: cfg.ProjectID, Name: cfg.Name})
	s.publishCascades(ctx, actor, cfg.ProjectID, cascaded)

	return nil
}

// rejectPendingForRow rejects every pending proposal that targets a single
// versioned row: a variant row when variantID is set, otherwise the config
// row (config-scope proposals plus default-variant proposals). Runs inside
// the caller's transaction.
func rejectPendingForRow(ctx context.Context, tx store.Store, configID, variantID string, res model.Resolution) ([]*model.Proposal, error) {
	var pending []*model.Proposal
	if variantID != "" {
		var err error
		pending, err = tx.ListPendingProposals(ctx, configID, model.ScopeVariant, variantID)
		if err != nil {
			return nil, err
		}
	} else {
		configScoped, err := tx.ListPendingProposals(ctx, configID, model.ScopeConfig, "")
		if err != nil {
			return nil, err
		}
		defaultVariant, err := tx.ListPendingProposals(ctx, configID, model.ScopeVariant, "")
		if err != nil {
			return nil, err
		}
		pending = append(configScoped, defaultVariant...)
	}

	for _, p := range pending {
		if err := tx.ResolveProposal(ctx, p.ID, res); err != nil {
			return nil, fmt.Errorf("cascade proposal %s: %w", p.ID, err)
		}
		p.RejectedAt = &res.At
		p.Reviewer = res.Reviewer
		p.RejectionReason = res.Reason
		p.RejectedInFavorOf = res.RejectedInFavorOf
	}
	return pending, nil
}

// publishCascades emits one audit record and one event per auto-rejected
// proposal, after the transaction that rejected them has committed.
func (s *ConfigServer) publishCascades(ctx context.Context, actor, projectID string, cascaded []*model.Proposal) {
	for _, p := range cascaded {
		s.recordAndPublish(ctx, events.TopicProposalRejected, audit.Record{
			Type:       audit.TypeProposalRejected,
			Actor:      actor,
			ProjectID:  projectID,
			ConfigID:   p.ConfigID,
			VariantID:  p.VariantID,
			ProposalID: p.ID,
		}, events.ProposalRejected{
			Proposal:          p,
			Reason:            p.RejectionReason,
			RejectedInFavorOf: p.RejectedInFavorOf,
		})
	}
}

// changesMap renders a change set as the sparse map carried on update events.
func changesMap(cs model.ChangeSet) map[string]any {
	m := make(map[string]any)
	if cs.Value {
		m["value"] = true
	}
	if cs.Description {
		m["description"] = true
	}
	if cs.Schema {
		m["schema"] = true
	}
	if cs.Members {
		m["members"] = true
	}
	return m
}
