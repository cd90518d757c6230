package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/groblegark/kconfig/internal/model"
)

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func TestExportJSONL(t *testing.T) {
	ms := newMockStore()
	now := time.Now().UTC()
	ms.configs["c1"] = &model.Config{
		ID: "c1", ProjectID: "proj-a", Name: "flags", Version: 2,
		Value: json.RawMessage(`{"count":1}`), CreatedAt: now, UpdatedAt: now,
	}
	ms.configs["c2"] = &model.Config{
		ID: "c2", ProjectID: "proj-a", Name: "limits", Version: 1,
		Value: json.RawMessage(`{"rps":10}`), CreatedAt: now, UpdatedAt: now,
	}
	ms.variants["cv-1"] = &model.Variant{
		ID: "cv-1", ConfigID: "c1", EnvironmentID: "prod", Version: 1,
		Value: json.RawMessage(`{"count":5}`), CreatedAt: now, UpdatedAt: now,
	}
	ms.proposals["pr-1"] = &model.Proposal{
		ID: "pr-1", Scope: model.ScopeVariant, ConfigID: "c1", ProjectID: "proj-a",
		Proposer: "bob@example.com", BaseVersion: 2,
		ProposedValue: json.RawMessage(`{"count":9}`), CreatedAt: now,
	}

	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), ms, &buf); err != nil {
		t.Fatalf("ExportJSONL() error = %v", err)
	}

	lines := nonEmptyLines(buf.String())
	// 1 header + 2 configs + 1 proposal
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), buf.String())
	}

	var hdr header
	if err := json.Unmarshal([]byte(lines[0]), &hdr); err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if hdr.Type != "header" || hdr.ConfigCount != 2 || hdr.ProposalCount != 1 {
		t.Errorf("header = %+v", hdr)
	}

	// First config line is c1 (project+name order) and embeds its variant.
	var rec struct {
		Type string       `json:"type"`
		Data configExport `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatalf("decode config line: %v", err)
	}
	if rec.Type != "config" || rec.Data.Config.ID != "c1" {
		t.Errorf("first config line = %+v", rec)
	}
	if len(rec.Data.Variants) != 1 || rec.Data.Variants[0].EnvironmentID != "prod" {
		t.Errorf("variants = %+v", rec.Data.Variants)
	}

	var prec struct {
		Type string          `json:"type"`
		Data *model.Proposal `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[3]), &prec); err != nil {
		t.Fatalf("decode proposal line: %v", err)
	}
	if prec.Type != "proposal" || prec.Data.ID != "pr-1" {
		t.Errorf("proposal line = %+v", prec)
	}
}

func TestExportJSONLEmptyStore(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), newMockStore(), &buf); err != nil {
		t.Fatalf("ExportJSONL() error = %v", err)
	}
	lines := nonEmptyLines(buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected header only, got %d lines", len(lines))
	}
	var hdr header
	if err := json.Unmarshal([]byte(lines[0]), &hdr); err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if hdr.ConfigCount != 0 || hdr.ProposalCount != 0 {
		t.Errorf("header = %+v", hdr)
	}
}
