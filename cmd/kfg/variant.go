package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groblegark/kconfig/internal/client"
)

var variantCmd = &cobra.Command{
	Use:     "variant",
	Short:   "Manage environment variants of a config",
	GroupID: "configs",
}

var variantCreateCmd = &cobra.Command{
	Use:   "create <name> <env> <value>",
	Short: "Create an environment variant",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireProject(); err != nil {
			return err
		}
		value, err := readJSONArg(args[2])
		if err != nil {
			return err
		}
		req := &client.CreateVariantRequest{
			EnvironmentID: args[1],
			Value:         value,
		}
		if schema, _ := cmd.Flags().GetString("schema"); schema != "" {
			if req.Schema, err = readJSONArg(schema); err != nil {
				return err
			}
		}
		req.UseBaseSchema, _ = cmd.Flags().GetBool("use-base-schema")

		v, err := kfgClient.CreateVariant(context.Background(), projectID, args[0], req)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(v)
			return nil
		}
		printVariantTable(v)
		return nil
	},
}

var variantShowCmd = &cobra.Command{
	Use:   "show <name> <env>",
	Short: "Show an environment variant",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireProject(); err != nil {
			return err
		}
		v, err := kfgClient.GetVariant(context.Background(), projectID, args[0], args[1])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(v)
			return nil
		}
		printVariantTable(v)
		return nil
	},
}

var variantListCmd = &cobra.Command{
	Use:   "list <name>",
	Short: "List the environment variants of a config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireProject(); err != nil {
			return err
		}
		variants, err := kfgClient.ListVariants(context.Background(), projectID, args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(variants)
			return nil
		}
		printVariantListTable(variants)
		return nil
	},
}

var variantUpdateCmd = &cobra.Command{
	Use:   "update <name> <env>",
	Short: "Directly update an environment variant",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireProject(); err != nil {
			return err
		}
		expected, _ := cmd.Flags().GetInt64("expected-version")
		if expected <= 0 {
			return fmt.Errorf("--expected-version is required")
		}
		req := &client.UpdateVariantRequest{ExpectedVersion: expected}

		var err error
		if value, _ := cmd.Flags().GetString("value"); value != "" {
			if req.Value, err = readJSONArg(value); err != nil {
				return err
			}
		}
		if schema, _ := cmd.Flags().GetString("schema"); schema != "" {
			if req.Schema, err = readJSONArg(schema); err != nil {
				return err
			}
		}
		req.RemoveSchema, _ = cmd.Flags().GetBool("remove-schema")
		if cmd.Flags().Changed("use-base-schema") {
			useBase, _ := cmd.Flags().GetBool("use-base-schema")
			req.UseBaseSchema = &useBase
		}

		v, err := kfgClient.UpdateVariant(context.Background(), projectID, args[0], args[1], req)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(v)
			return nil
		}
		printVariantTable(v)
		return nil
	},
}

var variantDeleteCmd = &cobra.Command{
	Use:   "delete <name> <env>",
	Short: "Delete an environment variant",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireProject(); err != nil {
			return err
		}
		if err := kfgClient.DeleteVariant(context.Background(), projectID, args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s variant %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	variantCreateCmd.Flags().String("schema", "", "JSON schema for the variant (inline, @file, or - for stdin)")
	variantCreateCmd.Flags().Bool("use-base-schema", false, "validate against the base config schema")

	variantUpdateCmd.Flags().Int64("expected-version", 0, "version the update is based on (required)")
	variantUpdateCmd.Flags().String("value", "", "new JSON value (inline, @file, or - for stdin)")
	variantUpdateCmd.Flags().String("schema", "", "new JSON schema")
	variantUpdateCmd.Flags().Bool("remove-schema", false, "remove the variant schema")
	variantUpdateCmd.Flags().Bool("use-base-schema", false, "validate against the base config schema")

	variantCmd.AddCommand(variantCreateCmd)
	variantCmd.AddCommand(variantShowCmd)
	variantCmd.AddCommand(variantListCmd)
	variantCmd.AddCommand(variantUpdateCmd)
	variantCmd.AddCommand(variantDeleteCmd)
}
