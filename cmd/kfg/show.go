package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:     "show <name>",
	Short:   "Show a config and its variants",
	GroupID: "configs",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireProject(); err != nil {
			return err
		}
		cfg, err := kfgClient.GetConfig(context.Background(), projectID, args[0])
		if err != nil {
			return err
		}
		variants, err := kfgClient.ListVariants(context.Background(), projectID, args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			printJSON(map[string]any{"config": cfg, "variants": variants})
			return nil
		}
		printConfigTable(cfg)
		if len(variants) > 0 {
			fmt.Println()
			printVariantListTable(variants)
		}
		return nil
	},
}
