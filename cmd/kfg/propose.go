package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groblegark/kconfig/internal/client"
	"github.com/groblegark/kconfig/internal/model"
)

var proposeCmd = &cobra.Command{
	Use:     "propose",
	Short:   "Propose a change to a config or variant",
	GroupID: "proposals",
	RunE: func(cmd *cobra.Command, args []string) error {
		configID, _ := cmd.Flags().GetString("config-id")
		if configID == "" {
			return fmt.Errorf("--config-id is required")
		}
		baseVersion, _ := cmd.Flags().GetInt64("base-version")
		if baseVersion <= 0 {
			return fmt.Errorf("--base-version is required")
		}
		scope, _ := cmd.Flags().GetString("scope")
		env, _ := cmd.Flags().GetString("env")
		message, _ := cmd.Flags().GetString("message")

		req := &client.CreateProposalRequest{
			Scope:         model.ProposalScope(scope),
			ConfigID:      configID,
			EnvironmentID: env,
			Message:       message,
			BaseVersion:   baseVersion,
		}

		var err error
		req.ProposedDelete, _ = cmd.Flags().GetBool("delete")
		if cmd.Flags().Changed("description") {
			desc, _ := cmd.Flags().GetString("description")
			req.ProposedDescription = &desc
		}
		if members, _ := cmd.Flags().GetStringArray("member"); len(members) > 0 {
			if req.ProposedMembers, err = parseMembers(members); err != nil {
				return err
			}
		}
		if value, _ := cmd.Flags().GetString("value"); value != "" {
			if req.ProposedValue, err = readJSONArg(value); err != nil {
				return err
			}
		}
		if schema, _ := cmd.Flags().GetString("schema"); schema != "" {
			if req.ProposedSchema, err = readJSONArg(schema); err != nil {
				return err
			}
		}
		req.RemoveSchema, _ = cmd.Flags().GetBool("remove-schema")

		p, err := kfgClient.CreateProposal(context.Background(), req)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(p)
			return nil
		}
		printProposalTable(p)
		return nil
	},
}

func init() {
	proposeCmd.Flags().String("scope", "config", "proposal scope: config or variant")
	proposeCmd.Flags().String("config-id", "", "ID of the target config (required)")
	proposeCmd.Flags().String("env", "", "environment ID for variant-scoped proposals")
	proposeCmd.Flags().Int64("base-version", 0, "version of the target row the proposal is based on (required)")
	proposeCmd.Flags().String("message", "", "message describing the proposed change")
	proposeCmd.Flags().Bool("delete", false, "propose deleting the target")
	proposeCmd.Flags().String("description", "", "proposed description (config scope)")
	proposeCmd.Flags().StringArray("member", nil, "proposed member as email:role (repeatable, config scope)")
	proposeCmd.Flags().String("value", "", "proposed JSON value (inline, @file, or - for stdin)")
	proposeCmd.Flags().String("schema", "", "proposed JSON schema")
	proposeCmd.Flags().Bool("remove-schema", false, "propose removing the schema")
}
