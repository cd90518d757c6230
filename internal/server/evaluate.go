package server

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/groblegark/kconfig/internal/eval"
	"github.com/groblegark/kconfig/internal/store"
)

// storeResolver resolves reference operands against the currently stored
// base value of the target config. Proposals and drafts are never used as
// reference targets.
type storeResolver struct {
	store store.Store
}

func (r storeResolver) Resolve(ctx context.Context, projectID, configName string) (json.RawMessage, error) {
	cfg, err := r.store.GetConfigByName(ctx, projectID, configName)
	if err != nil {
		return nil, err
	}
	return cfg.Value, nil
}

// evaluatedValue is the response for a value read: the effective value after
// override evaluation, plus which entity and rule produced it.
type evaluatedValue struct {
	Value         json.RawMessage `json:"value"`
	Version       int64           `json:"version"`
	EnvironmentID string          `json:"environment_id,omitempty"`
	Override      string          `json:"override,omitempty"`
}

// evaluateValue resolves the effective value of a config for the given
// environment and evaluation context. When the environment has a variant its
// value and overrides apply; otherwise the base config's do.
func (s *ConfigServer) evaluateValue(ctx context.Context, projectID, name, environmentID string, evalCtx map[string]any) (*evaluatedValue, error) {
	cfg, err := s.store.GetConfigByName(ctx, projectID, name)
	if err != nil {
		return nil, err
	}

	value := cfg.Value
	overrides := cfg.Overrides
	version := cfg.Version
	usedEnv := ""

	if environmentID != "" {
		v, err := s.store.GetVariantByEnvironment(ctx, cfg.ID, environmentID)
		switch {
		case err == nil:
			value = v.Value
			overrides = v.Overrides
			version = v.Version
			usedEnv = v.EnvironmentID
		case errors.Is(err, store.ErrNotFound):
			// No variant for this environment; the base config serves.
		default:
			return nil, err
		}
	}

	out := &evaluatedValue{
		Value:         value,
		Version:       version,
		EnvironmentID: usedEnv,
	}
	res := eval.Evaluate(ctx, overrides, evalCtx, storeResolver{store: s.store})
	if res.Matched {
		out.Value = res.Value
		out.Override = res.Override
	}
	return out, nil
}
