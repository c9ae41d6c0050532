// Package commands implements the roomlink CLI subcommands.
package commands

import (
	"github.com/sirupsen/logrus"

	"github.com/roomlink/bridge-client/internal/backoff"
	"github.com/roomlink/bridge-client/internal/bridge"
	"github.com/roomlink/bridge-client/internal/config"
	"github.com/roomlink/bridge-client/internal/wire"
)

// AppVersion and AppBuild are set from main at startup
var (
	AppVersion = "0.0.0-dev"
	AppBuild   = "dev"
)

// identifyMetadata assembles the client metadata sent in the identify
// handshake.
func identifyMetadata(cfg *config.Config) wire.IdentifyRequest {
	return wire.IdentifyRequest{
		Platform:    config.Platform(),
		Device:      "gateway",
		OSVersion:   config.OSVersion(),
		AppVersion:  AppVersion,
		BuildNumber: AppBuild,
		DeviceName:  cfg.DeviceName,
	}
}

// newManager builds a bridge manager from the loaded configuration.
func newManager(cfg *config.Config, log *logrus.Logger) *bridge.Manager {
	return bridge.New(bridge.Options{
		URL:          cfg.BridgeURL,
		ControllerID: cfg.ControllerID,
		Identify:     identifyMetadata(cfg),

		IdentifyTimeout:    cfg.Timeouts.Identify(),
		DiscoveryTimeout:   cfg.Timeouts.Discovery(),
		SystemReadyTimeout: cfg.Timeouts.SystemReady(),
		CommandTimeout:     cfg.Timeouts.Command(),
		SubscribeTimeout:   cfg.Timeouts.Subscribe(),
		StateTTL:           cfg.Timeouts.StateTTL(),
		RefreshGrace:       cfg.Timeouts.RefreshGrace(),

		PingInterval:   cfg.Heartbeat.PingInterval(),
		CheckInterval:  cfg.Heartbeat.CheckInterval(),
		PongTimeout:    cfg.Heartbeat.PongTimeout(),
		MaxMissedPongs: cfg.Heartbeat.MaxMissedPongs,

		Reconnect: backoff.Policy{
			Base:        cfg.Reconnect.Base(),
			Cap:         cfg.Reconnect.Cap(),
			JitterFrac:  cfg.Reconnect.Jitter,
			MaxAttempts: cfg.Reconnect.MaxAttempts,
		},

		Logger: log,
	})
}
