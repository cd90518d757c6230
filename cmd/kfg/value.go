package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// parseEvalContext builds the evaluation context from repeated key=value
// flags. Values that parse as JSON are kept typed; everything else is a
// string.
func parseEvalContext(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	ctx := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, val, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("context %q must be key=value", pair)
		}
		var typed any
		if err := json.Unmarshal([]byte(val), &typed); err == nil {
			ctx[key] = typed
		} else {
			ctx[key] = val
		}
	}
	return ctx, nil
}

var valueCmd = &cobra.Command{
	Use:     "value <name>",
	Short:   "Evaluate the effective value of a config",
	GroupID: "configs",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireProject(); err != nil {
			return err
		}
		env, _ := cmd.Flags().GetString("env")
		pairs, _ := cmd.Flags().GetStringArray("context")
		evalCtx, err := parseEvalContext(pairs)
		if err != nil {
			return err
		}

		out, err := kfgClient.EvaluateValue(context.Background(), projectID, args[0], env, evalCtx)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(out)
			return nil
		}
		fmt.Println(compactJSON(out.Value))
		if out.Override != "" {
			fmt.Printf("(matched override %q)\n", out.Override)
		}
		if out.EnvironmentID != "" {
			fmt.Printf("(environment %s, version %d)\n", out.EnvironmentID, out.Version)
		} else {
			fmt.Printf("(base config, version %d)\n", out.Version)
		}
		return nil
	},
}

func init() {
	valueCmd.Flags().String("env", "", "environment ID to evaluate for")
	valueCmd.Flags().StringArray("context", nil, "evaluation context entry as key=value (repeatable)")
}
