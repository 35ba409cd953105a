// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Tosu    TosuConfig    `toml:"tosu"`
	Osu     OsuConfig     `toml:"osu"`
	Overlay OverlayConfig `toml:"overlay"`
	Events  EventsConfig  `toml:"events"`
}

// TosuConfig maps telemetry connection settings.
type TosuConfig struct {
	URL               *string `toml:"url"`
	AutoReconnect     *bool   `toml:"auto-reconnect"`
	ReconnectInterval *string `toml:"reconnect-interval"`
}

// OsuConfig maps osu! API settings. Credentials come from the environment.
type OsuConfig struct {
	PlayerID        *string `toml:"player-id"`
	APIURL          *string `toml:"api-url"`
	MirrorURL       *string `toml:"mirror-url"`
	RefreshInterval *string `toml:"refresh-interval"`
	LookupTimeout   *string `toml:"lookup-timeout"`
}

// OverlayConfig maps presentation settings.
type OverlayConfig struct {
	Listen   *string `toml:"listen"`
	Headless *bool   `toml:"headless"`
}

// EventsConfig maps the optional Kafka event stream.
type EventsConfig struct {
	Brokers []string `toml:"brokers"`
	Topic   *string  `toml:"topic"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
