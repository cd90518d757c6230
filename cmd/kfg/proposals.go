package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/groblegark/kconfig/internal/client"
	"github.com/groblegark/kconfig/internal/model"
)

var proposalsCmd = &cobra.Command{
	Use:     "proposals",
	Short:   "List proposals",
	GroupID: "proposals",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &client.ListProposalsRequest{}
		req.ConfigID, _ = cmd.Flags().GetString("config-id")
		if req.ConfigID == "" {
			req.ProjectID = projectID
		}
		if status, _ := cmd.Flags().GetString("status"); status != "" {
			req.Status = model.ProposalStatus(status)
		}
		if scope, _ := cmd.Flags().GetString("scope"); scope != "" {
			req.Scope = model.ProposalScope(scope)
		}
		req.Limit, _ = cmd.Flags().GetInt("limit")
		req.Offset, _ = cmd.Flags().GetInt("offset")

		proposals, err := kfgClient.ListProposals(context.Background(), req)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(proposals)
			return nil
		}
		printProposalListTable(proposals)
		return nil
	},
}

var proposalShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := kfgClient.GetProposal(context.Background(), args[0])
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

var approveCmd = &cobra.Command{
	Use:     "approve <id>",
	Short:   "Approve a pending proposal and apply its change",
	GroupID: "proposals",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := kfgClient.ApproveProposal(context.Background(), args[0])
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

var rejectCmd = &cobra.Command{
	Use:     "reject <id>",
	Short:   "Reject a pending proposal",
	GroupID: "proposals",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := kfgClient.RejectProposal(context.Background(), args[0])
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
	proposalsCmd.Flags().String("config-id", "", "only proposals targeting this config")
	proposalsCmd.Flags().String("status", "", "filter by status: pending, approved, rejected")
	proposalsCmd.Flags().String("scope", "", "filter by scope: config or variant")
	proposalsCmd.Flags().Int("limit", 0, "maximum number of proposals to return")
	proposalsCmd.Flags().Int("offset", 0, "number of proposals to skip")

	proposalsCmd.AddCommand(proposalShowCmd)
}
