package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/groblegark/kconfig/internal/audit"
	"github.com/groblegark/kconfig/internal/events"
	"github.com/groblegark/kconfig/internal/idgen"
	"github.com/groblegark/kconfig/internal/model"
	"github.com/groblegark/kconfig/internal/store"
)

// createVariantInput holds transport-agnostic parameters for creating an
// environment variant of a config.
type createVariantInput struct {
	EnvironmentID string           `json:"environment_id"`
	Value         json.RawMessage  `json:"value"`
	Schema        json.RawMessage  `json:"schema,omitempty"`
	UseBaseSchema bool             `json:"use_base_schema,omitempty"`
	Overrides     []model.Override `json:"overrides,omitempty"`
}

func (s *ConfigServer) createVariant(ctx context.Context, actor, projectID, name string, in createVariantInput) (*model.Variant, error) {
	cfg, err := s.store.GetConfigByName(ctx, projectID, name)
	if err != nil {
		return nil, err
	}

	id, err := idgen.Generate(idgen.PrefixVariant)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	v := &model.Variant{
		ID:            id,
		ConfigID:      cfg.ID,
		EnvironmentID: in.EnvironmentID,
		Version:       1,
		Value:         in.Value,
		Schema:        in.Schema,
		UseBaseSchema: in.UseBaseSchema,
		Overrides:     in.Overrides,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := model.ValidateVariant(v); err != nil {
		return nil, inputError("invalid variant: " + err.Error())
	}
	if err := model.ValidateOverrideReferences(cfg.ProjectID, v.Overrides); err != nil {
		return nil, inputError(err.Error())
	}

	cs := model.ChangeSet{Value: true, Schema: in.Schema != nil}
	if err := s.requireDirectMutation(ctx, cfg, actor, cs); err != nil {
		return nil, err
	}

	if err := s.store.CreateVariant(ctx, v); err != nil {
		return nil, err
	}

	s.recordAndPublish(ctx, events.TopicVariantCreated, audit.Record{
		Type:      audit.TypeVariantCreated,
		Actor:     actor,
		ProjectID: cfg.ProjectID,
		ConfigID:  cfg.ID,
		VariantID: v.ID,
	}, events.VariantCreated{Variant: v})

	return v, nil
}

// updateVariantInput holds optional parameters for directly patching a
// variant. Nil fields mean "don't change".
type updateVariantInput struct {
	ExpectedVersion int64            `json:"expected_version"`
	Value           json.RawMessage  `json:"value,omitempty"`
	Schema          json.RawMessage  `json:"schema,omitempty"`
	RemoveSchema    bool             `json:"remove_schema,omitempty"`
	UseBaseSchema   *bool            `json:"use_base_schema,omitempty"`
	Overrides       []model.Override `json:"overrides,omitempty"`
	overridesSet    bool
}

func (in updateVariantInput) changeSet() model.ChangeSet {
	return model.ChangeSet{
		Value:  in.Value != nil || in.overridesSet,
		Schema: in.Schema != nil || in.RemoveSchema || in.UseBaseSchema != nil,
	}
}

// updateVariant applies a direct patch to a variant under optimistic
// concurrency, auto-rejecting pending proposals against that variant inside
// the same transaction.
func (s *ConfigServer) updateVariant(ctx context.Context, actor, projectID, name, environmentID string, in updateVariantInput) (*model.Variant, error) {
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
	v, err := s.store.GetVariantByEnvironment(ctx, cfg.ID, environmentID)
	if err != nil {
		return nil, err
	}

	if in.Value != nil {
		v.Value = in.Value
	}
	if in.Schema != nil {
		v.Schema = in.Schema
	}
	if in.RemoveSchema {
		v.Schema = nil
	}
	if in.UseBaseSchema != nil {
		v.UseBaseSchema = *in.UseBaseSchema
	}
	if in.overridesSet {
		v.Overrides = in.Overrides
	}

	if err := model.ValidateVariant(v); err != nil {
		return nil, inputError("invalid variant: " + err.Error())
	}
	if err := model.ValidateOverrideReferences(cfg.ProjectID, v.Overrides); err != nil {
		return nil, inputError(err.Error())
	}
	if err := s.requireDirectMutation(ctx, cfg, actor, cs); err != nil {
		return nil, err
	}

	var cascaded []*model.Proposal
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		cascaded, err = rejectPendingForRow(ctx, tx, cfg.ID, v.ID, model.Resolution{
			Reviewer: actor,
			Reason:   model.RejectedConfigEdited,
			At:       time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		return tx.UpdateVariant(ctx, v, in.ExpectedVersion)
	})
	if err != nil {
		return nil, err
	}

	s.recordAndPublish(ctx, events.TopicVariantUpdated, audit.Record{
		Type:      audit.TypeVariantUpdated,
		Actor:     actor,
		ProjectID: cfg.ProjectID,
		ConfigID:  cfg.ID,
		VariantID: v.ID,
	}, events.VariantUpdated{Variant: v, Changes: changesMap(cs)})
	s.publishCascades(ctx, actor, cfg.ProjectID, cascaded)

	return v, nil
}

// deleteVariant removes one environment variant, auto-rejecting its pending
// proposals inside the same transaction. The base config is untouched.
func (s *ConfigServer) deleteVariant(ctx context.Context, actor, projectID, name, environmentID string) error {
	cfg, err := s.store.GetConfigByName(ctx, projectID, name)
	if err != nil {
		return err
	}
	v, err := s.store.GetVariantByEnvironment(ctx, cfg.ID, environmentID)
	if err != nil {
		return err
	}
	if err := s.requireDirectMutation(ctx, cfg, actor, model.ChangeSet{Delete: true}); err != nil {
		return err
	}

	var cascaded []*model.Proposal
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		cascaded, err = rejectPendingForRow(ctx, tx, cfg.ID, v.ID, model.Resolution{
			Reviewer: actor,
			Reason:   model.RejectedConfigDeleted,
			At:       time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		return tx.DeleteVariant(ctx, v.ID)
	})
	if err != nil {
		return err
	}

	s.recordAndPublish(ctx, events.TopicVariantDeleted, audit.Record{
		Type:      audit.TypeVariantDeleted,
		Actor:     actor,
		ProjectID: cfg.ProjectID,
		ConfigID:  cfg.ID,
		VariantID: v.ID,
	}, events.VariantDeleted{VariantID: v.ID, ConfigID: cfg.ID, EnvironmentID: v.EnvironmentID})
	s.publishCascades(ctx, actor, cfg.ProjectID, cascaded)

	return nil
}
