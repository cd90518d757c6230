package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check connectivity to the kconfig server",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := kfgClient.Health(context.Background())
		if err != nil {
			return fmt.Errorf("server unreachable at %s: %w", httpURL, err)
		}
		fmt.Printf("%s (%s)\n", status, httpURL)
		return nil
	},
}
