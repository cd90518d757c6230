package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/groblegark/kconfig/internal/model"
	"github.com/groblegark/kconfig/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version       string    `json:"version"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	ConfigCount   int       `json:"config_count"`
	ProposalCount int       `json:"proposal_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// configExport pairs a config with its variants so a restore can rebuild
// both from one line.
type configExport struct {
	Config   *model.Config    `json:"config"`
	Variants []*model.Variant `json:"variants,omitempty"`
}

// ExportJSONL writes every config (with its variants) and every proposal,
// terminal ones included, from the store as JSONL to w. Configs are sorted
// by project and name for stable diffs between exports.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	configs, _, err := s.ListConfigs(ctx, model.ConfigFilter{})
	if err != nil {
		return fmt.Errorf("list configs: %w", err)
	}
	sort.Slice(configs, func(i, j int) bool {
		if configs[i].ProjectID != configs[j].ProjectID {
			return configs[i].ProjectID < configs[j].ProjectID
		}
		return configs[i].Name < configs[j].Name
	})

	entries := make([]configExport, 0, len(configs))
	for _, cfg := range configs {
		variants, err := s.ListVariants(ctx, cfg.ID)
		if err != nil {
			return fmt.Errorf("list variants for %s: %w", cfg.ID, err)
		}
		entries = append(entries, configExport{Config: cfg, Variants: variants})
	}

	proposals, err := s.ListProposals(ctx, model.ProposalFilter{})
	if err != nil {
		return fmt.Errorf("list proposals: %w", err)
	}
	sort.Slice(proposals, func(i, j int) bool { return proposals[i].ID < proposals[j].ID })

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:       "1",
		Type:          "header",
		Timestamp:     time.Now().UTC(),
		ConfigCount:   len(entries),
		ProposalCount: len(proposals),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, e := range entries {
		if err := enc.Encode(record{Type: "config", Data: e}); err != nil {
			return fmt.Errorf("encode config %s: %w", e.Config.ID, err)
		}
	}
	for _, p := range proposals {
		if err := enc.Encode(record{Type: "proposal", Data: p}); err != nil {
			return fmt.Errorf("encode proposal %s: %w", p.ID, err)
		}
	}

	return nil
}
