package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roomlink/bridge-client/internal/config"
	"github.com/roomlink/bridge-client/internal/logging"
)

var SetCmd = &cobra.Command{
	Use:   "set <target> <control> <value>",
	Short: "Send one control command and wait for its acknowledgement",
	Long: `Connects to the bridge, sends a single control command, waits for the
acknowledgement, and exits.

Target is a role alias (display, decoder, lighting, audio, shades), a
display-name fragment, or a fully-qualified component id.

Values are parsed as bool or number when possible, otherwise sent as a
string.

Examples:
  roomlink set display PowerState true
  roomlink set lighting LightLevel 75
  roomlink set "Main Display" ActiveInput hdmi2`,
	Args: cobra.ExactArgs(3),
	RunE: runSet,
}

func runSet(cmd *cobra.Command, args []string) error {
	target, controlID, raw := args[0], args[1], args[2]

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

	txID, err := m.SendControl(target, controlID, parseValue(raw))
	if err != nil {
		return fmt.Errorf("command failed: %w", err)
	}

	fmt.Printf("OK (transaction %s)\n", txID)
	return nil
}

// parseValue keeps the wire value typed: bools and numbers stay bools
// and numbers, everything else goes out as a string.
func parseValue(raw string) any {
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}
