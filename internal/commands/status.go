package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roomlink/bridge-client/internal/config"
	"github.com/roomlink/bridge-client/internal/logging"
)

var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gateway configuration and bridge reachability",
	Long:  `Display the configured bridge endpoint and, with --probe, dial it once and report what was discovered.`,
	RunE:  runStatus,
}

func init() {
	StatusCmd.Flags().Bool("probe", false, "Dial the bridge and report discovery results")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println("Roomlink Gateway Status")
	fmt.Println()
	fmt.Printf("Bridge:      %s\n", cfg.BridgeURL)
	fmt.Printf("Controller:  %s\n", cfg.ControllerID)
	fmt.Printf("Device name: %s\n", cfg.DeviceName)
	fmt.Printf("Config file: %s\n", config.GetConfigPath())

	probe, _ := cmd.Flags().GetBool("probe")
	if !probe {
		fmt.Println()
		fmt.Println("Run with --probe to test the connection.")
		return nil
	}

	fmt.Println()
	fmt.Println("Probing bridge...")

	m := newManager(cfg, logging.Silent())
	defer m.Close()

	if err := m.Connect(); err != nil {
		fmt.Printf("Connection: FAILED (%v)\n", err)
		return nil
	}

	fmt.Printf("Connection: %s\n", m.State())
	if id := m.Identity(); id != nil {
		fmt.Printf("Session:    %s\n", id.SessionID)
		fmt.Printf("Client ID:  %s\n", id.ClientID)
		fmt.Printf("Transport:  %s\n", id.Transport)
	}

	comps := m.Components()
	fmt.Printf("Components: %d discovered\n", len(comps))
	for _, c := range comps {
		fmt.Printf("  - %s (%s, %d controls)\n", c.DisplayName, c.ID, len(c.Controls))
	}

	roles := m.Roles()
	if len(roles) > 0 {
		fmt.Println("Roles:")
		for role, id := range roles {
			fmt.Printf("  - %s -> %s\n", role, id)
		}
	}
	return nil
}
