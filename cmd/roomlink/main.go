package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roomlink/bridge-client/internal/commands"
)

var (
	// Version and Build are set at build time via
	// -ldflags "-X main.Version=X.Y.Z -X main.Build=NNN"
	Version = "0.0.0-dev"
	Build   = "dev"
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "roomlink",
	Short: "Roomlink - room control gateway",
	Long: `Roomlink keeps a persistent connection to the room's control bridge and
exposes the room's components for monitoring and control.

Quick Start:
  roomlink                   Launch interactive dashboard (default)
  roomlink start             Run headless (for scripts/automation)
  roomlink set display PowerState true

Commands:
  start              Run the gateway headless
  status             Show configuration, --probe to test the bridge
  state              Print the room's semantic state as JSON
  set <t> <c> <v>    Send one control command and wait for its ack
  tui                Launch the dashboard explicitly

Config: ~/.roomlink/config.yaml`,
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return commands.RunTUIDefault()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(commands.TUICmd)
	rootCmd.AddCommand(commands.StartCmd)
	rootCmd.AddCommand(commands.StatusCmd)
	rootCmd.AddCommand(commands.StateCmd)
	rootCmd.AddCommand(commands.SetCmd)
}

func main() {
	commands.AppVersion = Version
	commands.AppBuild = Build
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
