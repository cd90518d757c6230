package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groblegark/kconfig/internal/client"
)

var updateCmd = &cobra.Command{
	Use:     "update <name>",
	Short:   "Directly update a config (requires --expected-version)",
	GroupID: "configs",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireProject(); err != nil {
			return err
		}

		req := &client.UpdateConfigRequest{}
		req.ExpectedVersion, _ = cmd.Flags().GetInt64("expected-version")
		if req.ExpectedVersion <= 0 {
			return fmt.Errorf("--expected-version is required")
		}

		var err error
		if valueArg, _ := cmd.Flags().GetString("value"); valueArg != "" {
			if req.Value, err = readJSONArg(valueArg); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("description") {
			desc, _ := cmd.Flags().GetString("description")
			req.Description = &desc
		}
		if schemaArg, _ := cmd.Flags().GetString("schema"); schemaArg != "" {
			if req.Schema, err = readJSONArg(schemaArg); err != nil {
				return err
			}
		}
		req.RemoveSchema, _ = cmd.Flags().GetBool("remove-schema")
		if cmd.Flags().Changed("member") {
			memberSpecs, _ := cmd.Flags().GetStringArray("member")
			if req.Members, err = parseMembers(memberSpecs); err != nil {
				return err
			}
		}

		cfg, err := kfgClient.UpdateConfig(context.Background(), projectID, args[0], req)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(cfg)
		} else {
			fmt.Printf("Updated %s to version %d\n", cfg.Name, cfg.Version)
		}
		return nil
	},
}

func init() {
	updateCmd.Flags().Int64("expected-version", 0, "version the update is based on")
	updateCmd.Flags().String("value", "", "new value (inline JSON, @file, or -)")
	updateCmd.Flags().String("description", "", "new description")
	updateCmd.Flags().String("schema", "", "new JSON schema (inline, @file, or -)")
	updateCmd.Flags().Bool("remove-schema", false, "remove the schema")
	updateCmd.Flags().StringArray("member", nil, "replace members with email:role entries")
}
