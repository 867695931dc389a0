// Package config loads the client's YAML configuration file the way the
// rest of the pack loads its agent/controller configs: a defaulted struct
// overlaid with whatever the file on disk supplies.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ClientConfig controls connection, storage, and logging behavior for a
// running flic2 client.
type ClientConfig struct {
	CredentialDatabase string        `yaml:"credential_database"`
	LogLevel           string        `yaml:"log_level"`
	LogFile            string        `yaml:"log_file"`
	Connection         ConnectionConfig `yaml:"connection"`
}

// ConnectionConfig tunes the timeouts the session engine uses.
type ConnectionConfig struct {
	PairingTimeoutSeconds    int `yaml:"pairing_timeout_seconds"`
	InitEventsTimeoutSeconds int `yaml:"init_events_timeout_seconds"`
	PingIntervalSeconds      int `yaml:"ping_interval_seconds"`
	AutoDisconnectSeconds    int `yaml:"auto_disconnect_seconds"`
	MaxQueuedPackets         int `yaml:"max_queued_packets"`
}

// Default returns a ClientConfig with sensible defaults, matching the
// protocol's own default subscription parameters.
func Default() *ClientConfig {
	return &ClientConfig{
		CredentialDatabase: "./flic2-credentials.db",
		LogLevel:           "info",
		Connection: ConnectionConfig{
			PairingTimeoutSeconds:    15,
			InitEventsTimeoutSeconds: 10,
			PingIntervalSeconds:      30,
			AutoDisconnectSeconds:    511,
			MaxQueuedPackets:         31,
		},
	}
}

// Load reads path and overlays it onto Default().
func Load(path string) (*ClientConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	return cfg, nil
}
