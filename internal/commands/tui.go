package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roomlink/bridge-client/internal/config"
	"github.com/roomlink/bridge-client/internal/logging"
	"github.com/roomlink/bridge-client/internal/tui"
)

var TUICmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive dashboard",
	Long:  `Opens the full-screen dashboard showing connection health, discovered components, and live room state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunTUIDefault()
	},
}

// RunTUIDefault launches the dashboard, used both by the tui subcommand
// and as the default action when no subcommand is given.
func RunTUIDefault() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// The dashboard owns the terminal; log output would tear it up.
	m := newManager(cfg, logging.Silent())
	defer m.Close()

	return tui.Run(m)
}
