package sync

import (
	"context"
	"fmt"
	"sort"

	"github.com/groblegark/kconfig/internal/model"
	"github.com/groblegark/kconfig/internal/store"
)

// mockStore is a minimal in-memory store.Store for sync tests. Only the read
// paths the exporter touches are meaningful; mutations exist to satisfy the
// interface.
type mockStore struct {
	configs   map[string]*model.Config
	variants  map[string]*model.Variant
	proposals map[string]*model.Proposal
}

func newMockStore() *mockStore {
	return &mockStore{
		configs:   make(map[string]*model.Config),
		variants:  make(map[string]*model.Variant),
		proposals: make(map[string]*model.Proposal),
	}
}

func (m *mockStore) CreateConfig(_ context.Context, c *model.Config) error {
	m.configs[c.ID] = c
	return nil
}

func (m *mockStore) GetConfig(_ context.Context, id string) (*model.Config, error) {
	c, ok := m.configs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return c, nil
}

func (m *mockStore) GetConfigByName(_ context.Context, projectID, name string) (*model.Config, error) {
	for _, c := range m.configs {
		if c.ProjectID == projectID && c.Name == name {
			return c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockStore) ListConfigs(_ context.Context, filter model.ConfigFilter) ([]*model.Config, int, error) {
	var out []*model.Config
	for _, c := range m.configs {
		if filter.ProjectID != "" && c.ProjectID != filter.ProjectID {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *mockStore) UpdateConfig(_ context.Context, c *model.Config, _ int64) error {
	m.configs[c.ID] = c
	return nil
}

func (m *mockStore) DeleteConfig(_ context.Context, id string) error {
	delete(m.configs, id)
	return nil
}

func (m *mockStore) CreateVariant(_ context.Context, v *model.Variant) error {
	m.variants[v.ID] = v
	return nil
}

func (m *mockStore) GetVariant(_ context.Context, id string) (*model.Variant, error) {
	v, ok := m.variants[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return v, nil
}

func (m *mockStore) GetVariantByEnvironment(_ context.Context, configID, environmentID string) (*model.Variant, error) {
	for _, v := range m.variants {
		if v.ConfigID == configID && v.EnvironmentID == environmentID {
			return v, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockStore) ListVariants(_ context.Context, configID string) ([]*model.Variant, error) {
	var out []*model.Variant
	for _, v := range m.variants {
		if v.ConfigID == configID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) UpdateVariant(_ context.Context, v *model.Variant, _ int64) error {
	m.variants[v.ID] = v
	return nil
}

func (m *mockStore) DeleteVariant(_ context.Context, id string) error {
	delete(m.variants, id)
	return nil
}

func (m *mockStore) CreateProposal(_ context.Context, p *model.Proposal) error {
	m.proposals[p.ID] = p
	return nil
}

func (m *mockStore) GetProposal(_ context.Context, id string) (*model.Proposal, error) {
	p, ok := m.proposals[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (m *mockStore) ListProposals(_ context.Context, _ model.ProposalFilter) ([]*model.Proposal, error) {
	var out []*model.Proposal
	for _, p := range m.proposals {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) ListPendingProposals(_ context.Context, configID string, scope model.ProposalScope, variantID string) ([]*model.Proposal, error) {
	var out []*model.Proposal
	for _, p := range m.proposals {
		if p.ConfigID == configID && !p.Terminal() {
			out = append(out, p)
		}
	}
	_ = scope
	_ = variantID
	return out, nil
}

func (m *mockStore) ResolveProposal(_ context.Context, id string, res model.Resolution) error {
	p, ok := m.proposals[id]
	if !ok {
		return store.ErrNotFound
	}
	if p.Terminal() {
		return fmt.Errorf("proposal %s: %w", id, store.ErrVersionConflict)
	}
	at := res.At
	if res.Approved {
		p.ApprovedAt = &at
	} else {
		p.RejectedAt = &at
	}
	return nil
}

func (m *mockStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(m)
}

func (m *mockStore) Close() error { return nil }
