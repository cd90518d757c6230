package main

import (
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/groblegark/kconfig/internal/client"
)

var (
	httpURL    string
	authToken  string
	actor      string
	projectID  string
	jsonOutput bool

	kfgClient client.ConfigClient
)

// defaultActor resolves the acting user's email: flag > KCONFIG_ACTOR >
// git config user.email.
func defaultActor() string {
	if a := os.Getenv("KCONFIG_ACTOR"); a != "" {
		return a
	}
	out, err := exec.Command("git", "config", "user.email").Output()
	if err == nil {
		email := strings.TrimSpace(string(out))
		if email != "" {
			return email
		}
	}
	return ""
}

func defaultHTTPURL() string {
	if s := os.Getenv("KCONFIG_HTTP_URL"); s != "" {
		return s
	}
	if u := activeRemoteURL(); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultToken() string {
	if t := os.Getenv("KCONFIG_AUTH_TOKEN"); t != "" {
		return t
	}
	return activeRemoteToken()
}

func defaultProject() string {
	if p := os.Getenv("KCONFIG_PROJECT"); p != "" {
		return p
	}
	loadActiveRemoteOnce()
	return cachedProjectName
}

var rootCmd = &cobra.Command{
	Use:   "kfg <command>",
	Short: "CLI client for the kconfig governance service",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		kfgClient = client.NewHTTPClient(httpURL, authToken, actor)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if kfgClient != nil {
			kfgClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token for the server")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", defaultActor(), "acting user email for mutations")
	rootCmd.PersistentFlags().StringVarP(&projectID, "project", "p", defaultProject(), "project ID")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "configs", Title: "Configs:"},
		&cobra.Group{ID: "proposals", Title: "Proposals:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)
	cobra.EnableCommandSorting = false

	// Configs
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(valueCmd)
	rootCmd.AddCommand(variantCmd)

	// Proposals
	rootCmd.AddCommand(proposeCmd)
	rootCmd.AddCommand(proposalsCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(rejectCmd)

	// System
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
