package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (agent startup or run failure).
	ExitCodeError = 1
)

// rootCmd represents the base command for the node agent binary. It is the
// entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "podhost-agent",
	Short: "Run pod objects as systemd services on this node",
	Long: `podhost-agent adopts Kubernetes-style pod objects assigned to this node and
runs their containers as systemd services: it downloads the referenced
package, materializes its configuration maps, synthesizes a unit file, and
supervises it through the host service manager.`,
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from main to
// inject the build-time version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application. It is called by
// main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "podhost-agent version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
