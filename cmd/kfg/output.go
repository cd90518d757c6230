package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/groblegark/kconfig/internal/model"
)

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printConfigTable(cfg *model.Config) {
	fmt.Printf("ID:          %s\n", cfg.ID)
	fmt.Printf("Project:     %s\n", cfg.ProjectID)
	fmt.Printf("Name:        %s\n", cfg.Name)
	fmt.Printf("Version:     %d\n", cfg.Version)
	if cfg.Description != "" {
		fmt.Printf("Description: %s\n", cfg.Description)
	}
	fmt.Printf("Value:       %s\n", compactJSON(cfg.Value))
	if cfg.Schema != nil {
		fmt.Printf("Schema:      %s\n", compactJSON(cfg.Schema))
	}
	if len(cfg.Overrides) > 0 {
		fmt.Printf("Overrides:   %d rule(s)\n", len(cfg.Overrides))
		for _, o := range cfg.Overrides {
			fmt.Printf("  - %s -> %s\n", o.Name, compactJSON(o.Value))
		}
	}
	if len(cfg.Members) > 0 {
		fmt.Printf("Members:\n")
		for _, m := range cfg.Members {
			fmt.Printf("  - %s (%s)\n", m.Email, m.Role)
		}
	}
	fmt.Printf("Created By:  %s\n", cfg.CreatedBy)
	if !cfg.CreatedAt.IsZero() {
		fmt.Printf("Created At:  %s\n", cfg.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if !cfg.UpdatedAt.IsZero() {
		fmt.Printf("Updated At:  %s\n", cfg.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
}

func printConfigListTable(configs []*model.Config, total int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tOVERRIDES\tDESCRIPTION")
	for _, c := range configs {
		desc := c.Description
		if len(desc) > 50 {
			desc = desc[:47] + "..."
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", c.Name, c.Version, len(c.Overrides), desc)
	}
	w.Flush()
	if total > len(configs) {
		fmt.Printf("(%d of %d)\n", len(configs), total)
	}
}

func printVariantTable(v *model.Variant) {
	fmt.Printf("ID:           %s\n", v.ID)
	fmt.Printf("Config:       %s\n", v.ConfigID)
	fmt.Printf("Environment:  %s\n", v.EnvironmentID)
	fmt.Printf("Version:      %d\n", v.Version)
	fmt.Printf("Value:        %s\n", compactJSON(v.Value))
	if v.Schema != nil {
		fmt.Printf("Schema:       %s\n", compactJSON(v.Schema))
	}
	if v.UseBaseSchema {
		fmt.Printf("Schema:       (inherits base)\n")
	}
	if len(v.Overrides) > 0 {
		fmt.Printf("Overrides:    %d rule(s)\n", len(v.Overrides))
	}
}

func printVariantListTable(variants []*model.Variant) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ENVIRONMENT\tVERSION\tOVERRIDES\tVALUE")
	for _, v := range variants {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", v.EnvironmentID, v.Version, len(v.Overrides), truncate(compactJSON(v.Value), 60))
	}
	w.Flush()
}

func printProposalTable(p *model.Proposal) {
	fmt.Printf("ID:           %s\n", p.ID)
	fmt.Printf("Scope:        %s\n", p.Scope)
	fmt.Printf("Config:       %s\n", p.ConfigID)
	if p.VariantID != "" {
		fmt.Printf("Variant:      %s\n", p.VariantID)
	}
	fmt.Printf("Status:       %s\n", p.Status())
	fmt.Printf("Proposer:     %s\n", p.Proposer)
	fmt.Printf("Base Version: %d\n", p.BaseVersion)
	if p.Message != "" {
		fmt.Printf("Message:      %s\n", p.Message)
	}
	if p.ProposedDelete {
		fmt.Printf("Change:       delete config\n")
	}
	if p.ProposedValue != nil {
		fmt.Printf("Value:        %s\n", compactJSON(p.ProposedValue))
	}
	if p.ProposedDescription != nil {
		fmt.Printf("Description:  %s\n", *p.ProposedDescription)
	}
	if p.Reviewer != "" {
		fmt.Printf("Reviewer:     %s\n", p.Reviewer)
	}
	if p.RejectionReason != "" {
		fmt.Printf("Rejected:     %s\n", p.RejectionReason)
		if p.RejectedInFavorOf != "" {
			fmt.Printf("In Favor Of:  %s\n", p.RejectedInFavorOf)
		}
	}
}

func printProposalListTable(proposals []*model.Proposal) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCOPE\tSTATUS\tCONFIG\tPROPOSER\tMESSAGE")
	for _, p := range proposals {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.Scope, p.Status(), p.ConfigID, p.Proposer, truncate(p.Message, 40))
	}
	w.Flush()
}

func compactJSON(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	return string(raw)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
