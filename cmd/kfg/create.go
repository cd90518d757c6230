package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/groblegark/kconfig/internal/client"
	"github.com/groblegark/kconfig/internal/model"
)

// readJSONArg reads a JSON value from an argument: inline JSON, or @path to
// read a file, or "-" for stdin.
func readJSONArg(arg string) (json.RawMessage, error) {
	var data []byte
	switch {
	case arg == "-":
		var err error
		data, err = os.ReadFile("/dev/stdin")
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	case strings.HasPrefix(arg, "@"):
		var err error
		data, err = os.ReadFile(strings.TrimPrefix(arg, "@"))
		if err != nil {
			return nil, err
		}
	default:
		data = []byte(arg)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("not valid JSON: %s", truncate(string(data), 60))
	}
	return json.RawMessage(data), nil
}

// parseMembers parses repeated "email:role" flags.
func parseMembers(specs []string) ([]model.Member, error) {
	var members []model.Member
	for _, spec := range specs {
		email, role, ok := strings.Cut(spec, ":")
		if !ok {
			return nil, fmt.Errorf("member %q must be email:role", spec)
		}
		members = append(members, model.Member{
			Email: model.NormalizeEmail(email),
			Role:  model.MemberRole(role),
		})
	}
	return members, nil
}

func requireProject() error {
	if projectID == "" {
		return fmt.Errorf("--project is required (or set KCONFIG_PROJECT)")
	}
	return nil
}

var createCmd = &cobra.Command{
	Use:     "create <name> <value>",
	Short:   "Create a config",
	GroupID: "configs",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireProject(); err != nil {
			return err
		}
		value, err := readJSONArg(args[1])
		if err != nil {
			return err
		}

		req := &client.CreateConfigRequest{Name: args[0], Value: value}
		req.Description, _ = cmd.Flags().GetString("description")

		if schemaArg, _ := cmd.Flags().GetString("schema"); schemaArg != "" {
			if req.Schema, err = readJSONArg(schemaArg); err != nil {
				return err
			}
		}
		memberSpecs, _ := cmd.Flags().GetStringArray("member")
		if req.Members, err = parseMembers(memberSpecs); err != nil {
			return err
		}

		cfg, err := kfgClient.CreateConfig(context.Background(), projectID, req)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(cfg)
		} else {
			fmt.Printf("Created %s (version %d)\n", cfg.Name, cfg.Version)
		}
		return nil
	},
}

func init() {
	createCmd.Flags().String("description", "", "config description")
	createCmd.Flags().String("schema", "", "JSON schema (inline, @file, or -)")
	createCmd.Flags().StringArray("member", nil, "config member as email:role (repeatable)")
}
