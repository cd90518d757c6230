package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/groblegark/kconfig/internal/client"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List configs in a project",
	GroupID: "configs",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireProject(); err != nil {
			return err
		}
		req := &client.ListConfigsRequest{}
		req.Search, _ = cmd.Flags().GetString("search")
		req.Limit, _ = cmd.Flags().GetInt("limit")
		req.Offset, _ = cmd.Flags().GetInt("offset")

		resp, err := kfgClient.ListConfigs(context.Background(), projectID, req)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(resp)
		} else {
			printConfigListTable(resp.Configs, resp.Total)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().String("search", "", "filter by name or description substring")
	listCmd.Flags().Int("limit", 0, "maximum configs to return")
	listCmd.Flags().Int("offset", 0, "offset into the result set")
}
