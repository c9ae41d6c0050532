package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roomlink/bridge-client/internal/config"
	"github.com/roomlink/bridge-client/internal/logging"
)

var StateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the room's current semantic state as JSON",
	Long: `Connects to the bridge, waits for discovery, and prints the semantic
state snapshot (power, input, volume, mute, light level, scene,
connected sources) as JSON.`,
	RunE: runState,
}

func runState(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	log := logging.New(verbose || cfg.Verbose)

	m := newManager(cfg, log)
	defer m.Close()

	if err := m.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	snap := m.GetState()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
