// Package config loads and persists the gateway configuration at
// ~/.roomlink/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultBridgeURL is the default WebSocket URL for the control bridge.
// Override at build time with: go build -ldflags "-X github.com/roomlink/bridge-client/internal/config.DefaultBridgeURL=ws://localhost:8090/bridge"
var DefaultBridgeURL = "ws://roomlink-bridge.local:8090/bridge"

// Config represents the application configuration
type Config struct {
	BridgeURL    string `yaml:"bridge_url" mapstructure:"bridge_url"`
	ControllerID string `yaml:"controller_id" mapstructure:"controller_id"`
	DeviceName   string `yaml:"device_name" mapstructure:"device_name"`

	Timeouts  TimeoutConfig   `yaml:"timeouts" mapstructure:"timeouts"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat" mapstructure:"heartbeat"`
	Reconnect ReconnectConfig `yaml:"reconnect" mapstructure:"reconnect"`

	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// TimeoutConfig bounds the individual protocol steps.
type TimeoutConfig struct {
	IdentifySeconds    int `yaml:"identify_seconds" mapstructure:"identify_seconds"`
	DiscoverySeconds   int `yaml:"discovery_seconds" mapstructure:"discovery_seconds"`
	SystemReadySeconds int `yaml:"system_ready_seconds" mapstructure:"system_ready_seconds"`
	CommandSeconds     int `yaml:"command_seconds" mapstructure:"command_seconds"`
	SubscribeSeconds   int `yaml:"subscribe_seconds" mapstructure:"subscribe_seconds"`
	StateTTLSeconds    int `yaml:"state_ttl_seconds" mapstructure:"state_ttl_seconds"`
	RefreshGraceMillis int `yaml:"refresh_grace_millis" mapstructure:"refresh_grace_millis"`
}

// HeartbeatConfig tunes the keep-alive and liveness loops.
type HeartbeatConfig struct {
	PingIntervalSeconds  int `yaml:"ping_interval_seconds" mapstructure:"ping_interval_seconds"`
	CheckIntervalSeconds int `yaml:"check_interval_seconds" mapstructure:"check_interval_seconds"`
	PongTimeoutSeconds   int `yaml:"pong_timeout_seconds" mapstructure:"pong_timeout_seconds"`
	MaxMissedPongs       int `yaml:"max_missed_pongs" mapstructure:"max_missed_pongs"`
}

// ReconnectConfig shapes the exponential backoff between attempts.
type ReconnectConfig struct {
	BaseSeconds int     `yaml:"base_seconds" mapstructure:"base_seconds"`
	CapSeconds  int     `yaml:"cap_seconds" mapstructure:"cap_seconds"`
	Jitter      float64 `yaml:"jitter" mapstructure:"jitter"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

var (
	configPath string
	configDir  string
)

func init() {
	home, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Sprintf("failed to get home directory: %v", err))
	}
	configDir = filepath.Join(home, ".roomlink")
	configPath = filepath.Join(configDir, "config.yaml")
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	return configPath
}

// GetConfigDir returns the config directory
func GetConfigDir() string {
	return configDir
}

// Default returns a config populated with shipping defaults.
func Default() *Config {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "roomlink-gateway"
	}
	return &Config{
		BridgeURL:    DefaultBridgeURL,
		ControllerID: "main",
		DeviceName:   hostname,
		Timeouts: TimeoutConfig{
			IdentifySeconds:    10,
			DiscoverySeconds:   10,
			SystemReadySeconds: 30,
			CommandSeconds:     5,
			SubscribeSeconds:   5,
			StateTTLSeconds:    5,
			RefreshGraceMillis: 100,
		},
		Heartbeat: HeartbeatConfig{
			PingIntervalSeconds:  30,
			CheckIntervalSeconds: 45,
			PongTimeoutSeconds:   10,
			MaxMissedPongs:       3,
		},
		Reconnect: ReconnectConfig{
			BaseSeconds: 1,
			CapSeconds:  60,
			Jitter:      0.25,
			MaxAttempts: 10,
		},
	}
}

// Load loads the configuration from file, creating a default one on
// first run.
func Load() (*Config, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := Default()
		if err := Save(cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to file
func Save(cfg *Config) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Platform reports the identify metadata for this host.
func Platform() string {
	return runtime.GOOS
}

// OSVersion reports a best-effort host OS release string, falling back
// to the bare platform name where the kernel does not expose one.
func OSVersion() string {
	if b, err := os.ReadFile("/proc/sys/kernel/osrelease"); err == nil {
		if v := strings.TrimSpace(string(b)); v != "" {
			return v
		}
	}
	return runtime.GOOS
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (t TimeoutConfig) Identify() time.Duration    { return seconds(t.IdentifySeconds) }
func (t TimeoutConfig) Discovery() time.Duration   { return seconds(t.DiscoverySeconds) }
func (t TimeoutConfig) SystemReady() time.Duration { return seconds(t.SystemReadySeconds) }
func (t TimeoutConfig) Command() time.Duration     { return seconds(t.CommandSeconds) }
func (t TimeoutConfig) Subscribe() time.Duration   { return seconds(t.SubscribeSeconds) }
func (t TimeoutConfig) StateTTL() time.Duration    { return seconds(t.StateTTLSeconds) }
func (t TimeoutConfig) RefreshGrace() time.Duration {
	return time.Duration(t.RefreshGraceMillis) * time.Millisecond
}

func (h HeartbeatConfig) PingInterval() time.Duration  { return seconds(h.PingIntervalSeconds) }
func (h HeartbeatConfig) CheckInterval() time.Duration { return seconds(h.CheckIntervalSeconds) }
func (h HeartbeatConfig) PongTimeout() time.Duration   { return seconds(h.PongTimeoutSeconds) }

func (r ReconnectConfig) Base() time.Duration { return seconds(r.BaseSeconds) }
func (r ReconnectConfig) Cap() time.Duration  { return seconds(r.CapSeconds) }
