package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roomlink/bridge-client/internal/bridge"
	"github.com/roomlink/bridge-client/internal/config"
	"github.com/roomlink/bridge-client/internal/logging"
)

var StartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway and connect to the bridge",
	Long: `Connects to the control bridge, discovers the room's components, and
keeps the connection alive in the foreground. Lost connections are
re-established automatically with backoff.`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	log := logging.New(verbose || cfg.Verbose)

	log.WithField("config", config.GetConfigPath()).Info("starting roomlink gateway")
	log.WithField("bridge", cfg.BridgeURL).Info("bridge endpoint")

	m := newManager(cfg, log)
	defer m.Close()

	m.OnStatusChange(func(s bridge.ConnectionState) {
		log.WithField("state", s.String()).Info("connection status")
	})

	if err := m.ConnectWithRetry(m.ReconnectPolicy()); err != nil {
		return fmt.Errorf("failed to reach bridge: %w", err)
	}

	if id := m.Identity(); id != nil {
		log.WithField("session", id.SessionID).Info("session established")
	}
	for _, comp := range m.Components() {
		log.WithField("id", comp.ID).Info("component: " + comp.DisplayName)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")
	return nil
}
