package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/groblegark/kconfig/internal/audit"
	"github.com/groblegark/kconfig/internal/events"
	"github.com/groblegark/kconfig/internal/idgen"
	"github.com/groblegark/kconfig/internal/model"
	"github.com/groblegark/kconfig/internal/store"
)

// createProposalInput holds transport-agnostic parameters for creating a
// proposal. Config scope changes description, members, or deletion; variant
// scope changes value, schema, or overrides of one variant (or the base
// config when environment_id is empty).
type createProposalInput struct {
	Scope         model.ProposalScope `json:"scope"`
	ConfigID      string              `json:"config_id"`
	EnvironmentID string              `json:"environment_id,omitempty"`
	Message       string              `json:"message,omitempty"`
	BaseVersion   int64               `json:"base_version"`

	ProposedDelete      bool             `json:"proposed_delete,omitempty"`
	ProposedDescription *string          `json:"proposed_description,omitempty"`
	ProposedMembers     []model.Member   `json:"proposed_members,omitempty"`
	ProposedValue       json.RawMessage  `json:"proposed_value,omitempty"`
	ProposedSchema      json.RawMessage  `json:"proposed_schema,omitempty"`
	RemoveSchema        bool             `json:"remove_schema,omitempty"`
	ProposedOverrides   []model.Override `json:"proposed_overrides,omitempty"`
}

// createProposal validates the proposed change and stores it pending. The
// base version must match the target row's current version at creation time;
// a mismatch fails with ErrVersionConflict so the proposer reloads first.
func (s *ConfigServer) createProposal(ctx context.Context, actor string, in createProposalInput) (*model.Proposal, error) {
	if !in.Scope.IsValid() {
		return nil, inputError("scope must be config or variant")
	}
	if in.ConfigID == "" {
		return nil, inputError("config_id is required")
	}
	if in.BaseVersion <= 0 {
		return nil, inputError("base_version is required")
	}

	cfg, err := s.store.GetConfig(ctx, in.ConfigID)
	if err != nil {
		return nil, err
	}

	id, err := idgen.Generate(idgen.PrefixProposal)
	if err != nil {
		return nil, err
	}
	p := &model.Proposal{
		ID:                  id,
		Scope:               in.Scope,
		ConfigID:            cfg.ID,
		ProjectID:           cfg.ProjectID,
		Proposer:            model.NormalizeEmail(actor),
		Message:             in.Message,
		BaseVersion:         in.BaseVersion,
		ProposedDelete:      in.ProposedDelete,
		ProposedDescription: in.ProposedDescription,
		ProposedMembers:     in.ProposedMembers,
		ProposedValue:       in.ProposedValue,
		ProposedSchema:      in.ProposedSchema,
		RemoveSchema:        in.RemoveSchema,
		ProposedOverrides:   in.ProposedOverrides,
		CreatedAt:           time.Now().UTC(),
	}

	currentVersion := cfg.Version
	switch in.Scope {
	case model.ScopeConfig:
		if in.EnvironmentID != "" {
			return nil, inputError("environment_id is only valid for variant proposals")
		}
		if in.ProposedValue != nil || in.ProposedSchema != nil || in.RemoveSchema || in.ProposedOverrides != nil {
			return nil, inputError("value, schema, and overrides changes use a variant proposal")
		}
	case model.ScopeVariant:
		if in.ProposedDelete || in.ProposedDescription != nil || in.ProposedMembers != nil {
			return nil, inputError("delete, description, and members changes use a config proposal")
		}
		if in.EnvironmentID != "" {
			v, err := s.store.GetVariantByEnvironment(ctx, cfg.ID, in.EnvironmentID)
			if err != nil {
				return nil, err
			}
			p.VariantID = v.ID
			currentVersion = v.Version
		}
	}
	if p.ChangeSet().Empty() {
		return nil, inputError("no changes proposed")
	}

	if p.ProposedMembers != nil {
		if err := model.ValidateMembers(p.ProposedMembers); err != nil {
			return nil, inputError(err.Error())
		}
	}
	if err := model.ValidateOverrideReferences(cfg.ProjectID, p.ProposedOverrides); err != nil {
		return nil, inputError(err.Error())
	}

	role, err := s.effectiveRole(ctx, cfg, actor)
	if err != nil {
		return nil, err
	}
	if !role.Satisfies(model.RoleViewer) {
		return nil, forbiddenError("actor has no role in project " + cfg.ProjectID)
	}

	if in.BaseVersion != currentVersion {
		return nil, fmt.Errorf("base version %d does not match current version %d: %w",
			in.BaseVersion, currentVersion, store.ErrVersionConflict)
	}

	if err := s.store.CreateProposal(ctx, p); err != nil {
		return nil, err
	}

	s.recordAndPublish(ctx, events.TopicProposalCreated, audit.Record{
		Type:       audit.TypeProposalCreated,
		Actor:      actor,
		ProjectID:  cfg.ProjectID,
		ConfigID:   cfg.ID,
		VariantID:  p.VariantID,
		ProposalID: p.ID,
	}, events.ProposalCreated{Proposal: p})

	return p, nil
}

// approveProposal runs the full approval transition: role and self-approval
// gates, version re-check, atomic apply plus sibling cascade, then audit and
// event emission for the approval and every cascaded rejection.
func (s *ConfigServer) approveProposal(ctx context.Context, id, actor string) (*model.Proposal, error) {
	p, err := s.store.GetProposal(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, inputError("proposal not found")
	}
	if err != nil {
		return nil, err
	}
	if p.Terminal() {
		return nil, inputError("proposal is already " + string(p.Status()))
	}

	cfg, err := s.store.GetConfig(ctx, p.ConfigID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, inputError("config for proposal no longer exists")
	}
	if err != nil {
		return nil, err
	}

	role, err := s.effectiveRole(ctx, cfg, actor)
	if err != nil {
		return nil, err
	}
	if !role.Satisfies(p.ChangeSet().RequiredRole()) {
		return nil, forbiddenError("role " + string(role) + " may not approve this change")
	}

	if model.NormalizeEmail(actor) == p.Proposer {
		flags, err := s.identity.ProjectFlags(ctx, cfg.ProjectID)
		if err != nil {
			return nil, err
		}
		if !flags.AllowSelfApprovals {
			return nil, forbiddenError("proposer may not approve their own proposal")
		}
	}

	// The proposed content is re-validated at approval time; the reference
	// rule could have been tightened since the proposal was created.
	if err := model.ValidateOverrideReferences(cfg.ProjectID, p.ProposedOverrides); err != nil {
		return nil, inputError(err.Error())
	}

	var variant *model.Variant
	if p.Scope == model.ScopeVariant && p.VariantID != "" {
		variant, err = s.store.GetVariant(ctx, p.VariantID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, inputError("variant for proposal no longer exists")
		}
		if err != nil {
			return nil, err
		}
	}

	currentVersion := cfg.Version
	if variant != nil {
		currentVersion = variant.Version
	}
	if currentVersion != p.BaseVersion {
		return nil, inputError("version mismatch: proposal was created against an older version")
	}

	now := time.Now().UTC()
	var cascaded []*model.Proposal
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.ResolveProposal(ctx, p.ID, model.Resolution{
			Approved: true,
			Reviewer: model.NormalizeEmail(actor),
			At:       now,
		}); err != nil {
			return err
		}

		if err := applyProposal(ctx, tx, p, cfg, variant); err != nil {
			return err
		}

		// Losing siblings terminate in the same unit of work as the win.
		res := model.Resolution{
			Reviewer:          model.NormalizeEmail(actor),
			Reason:            model.RejectedSiblingApproved,
			RejectedInFavorOf: p.ID,
			At:                now,
		}
		var cascadeErr error
		if p.ProposedDelete {
			cascaded, cascadeErr = rejectAllPending(ctx, tx, cfg.ID, res)
		} else {
			cascaded, cascadeErr = rejectPendingForRow(ctx, tx, cfg.ID, p.VariantID, res)
		}
		return cascadeErr
	})
	if err != nil {
		return nil, err
	}

	p.ApprovedAt = &now
	p.Reviewer = model.NormalizeEmail(actor)

	newVersion := cfg.Version
	if variant != nil {
		newVersion = variant.Version
	}
	s.recordAndPublish(ctx, events.TopicProposalApproved, audit.Record{
		Type:       audit.TypeProposalApproved,
		Actor:      actor,
		ProjectID:  cfg.ProjectID,
		ConfigID:   cfg.ID,
		VariantID:  p.VariantID,
		ProposalID: p.ID,
	}, events.ProposalApproved{Proposal: p, NewVersion: newVersion})

	if p.ProposedDelete {
		s.recordAndPublish(ctx, events.TopicConfigDeleted, audit.Record{
			Type:      audit.TypeConfigDeleted,
			Actor:     actor,
			ProjectID: cfg.ProjectID,
			ConfigID:  cfg.ID,
		}, events.ConfigDeleted{ConfigID: cfg.ID, ProjectID: cfg.ProjectID, Name: cfg.Name})
	} else if variant != nil {
		s.recordAndPublish(ctx, events.TopicVariantUpdated, audit.Record{
			Type:      audit.TypeVariantUpdated,
			Actor:     actor,
			ProjectID: cfg.ProjectID,
			ConfigID:  cfg.ID,
			VariantID: variant.ID,
		}, events.VariantUpdated{Variant: variant, Changes: changesMap(p.ChangeSet())})
	} else {
		s.recordAndPublish(ctx, events.TopicConfigUpdated, audit.Record{
			Type:      audit.TypeConfigUpdated,
			Actor:     actor,
			ProjectID: cfg.ProjectID,
			ConfigID:  cfg.ID,
		}, events.ConfigUpdated{Config: cfg, Changes: changesMap(p.ChangeSet())})
	}
	s.publishCascades(ctx, actor, cfg.ProjectID, cascaded)

	return p, nil
}

// applyProposal writes the proposed change through the version store. The
// version checks already passed, so a conflict here means a concurrent
// writer won the race and the whole approval rolls back.
func applyProposal(ctx context.Context, tx store.Store, p *model.Proposal, cfg *model.Config, variant *model.Variant) error {
	if p.ProposedDelete {
		return tx.DeleteConfig(ctx, cfg.ID)
	}

	switch {
	case variant != nil:
		if p.ProposedValue != nil {
			variant.Value = p.ProposedValue
		}
		if p.ProposedSchema != nil {
			variant.Schema = p.ProposedSchema
		}
		if p.RemoveSchema {
			variant.Schema = nil
		}
		if p.ProposedOverrides != nil {
			variant.Overrides = p.ProposedOverrides
		}
		return tx.UpdateVariant(ctx, variant, p.BaseVersion)
	case p.Scope == model.ScopeVariant:
		// Default-variant proposal: the base config row carries the value.
		if p.ProposedValue != nil {
			cfg.Value = p.ProposedValue
		}
		if p.ProposedSchema != nil {
			cfg.Schema = p.ProposedSchema
		}
		if p.RemoveSchema {
			cfg.Schema = nil
		}
		if p.ProposedOverrides != nil {
			cfg.Overrides = p.ProposedOverrides
		}
		return tx.UpdateConfig(ctx, cfg, p.BaseVersion)
	default:
		if p.ProposedDescription != nil {
			cfg.Description = *p.ProposedDescription
		}
		if p.ProposedMembers != nil {
			cfg.Members = p.ProposedMembers
		}
		return tx.UpdateConfig(ctx, cfg, p.BaseVersion)
	}
}

// rejectAllPending rejects every pending proposal on a config regardless of
// scope. Used when the config itself is going away.
func rejectAllPending(ctx context.Context, tx store.Store, configID string, res model.Resolution) ([]*model.Proposal, error) {
	pending, err := tx.ListPendingProposals(ctx, configID, "", "")
	if err != nil {
		return nil, err
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

// rejectProposal explicitly rejects a pending proposal. Any project member
// may reject, including the proposer withdrawing their own change.
func (s *ConfigServer) rejectProposal(ctx context.Context, id, actor string) (*model.Proposal, error) {
	p, err := s.store.GetProposal(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, inputError("proposal not found")
	}
	if err != nil {
		return nil, err
	}
	if p.Terminal() {
		return nil, inputError("proposal is already " + string(p.Status()))
	}

	now := time.Now().UTC()
	if err := s.store.ResolveProposal(ctx, p.ID, model.Resolution{
		Reviewer: model.NormalizeEmail(actor),
		Reason:   model.RejectedExplicitly,
		At:       now,
	}); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return nil, inputError("proposal was resolved concurrently")
		}
		return nil, err
	}

	p.RejectedAt = &now
	p.Reviewer = model.NormalizeEmail(actor)
	p.RejectionReason = model.RejectedExplicitly

	s.recordAndPublish(ctx, events.TopicProposalRejected, audit.Record{
		Type:       audit.TypeProposalRejected,
		Actor:      actor,
		ProjectID:  p.ProjectID,
		ConfigID:   p.ConfigID,
		VariantID:  p.VariantID,
		ProposalID: p.ID,
	}, events.ProposalRejected{Proposal: p, Reason: model.RejectedExplicitly})

	return p, nil
}
