package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg.Tosu.URL != nil || cfg.Osu.PlayerID != nil {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
}

func TestLoadConfigSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[tosu]
url = "ws://localhost:1234/websocket/v2"
auto-reconnect = false
reconnect-interval = "2s"

[osu]
player-id = "42"
refresh-interval = "10m"

[events]
brokers = ["a:9092", "b:9092"]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Tosu.URL == nil || *cfg.Tosu.URL != "ws://localhost:1234/websocket/v2" {
		t.Fatalf("unexpected tosu url: %v", cfg.Tosu.URL)
	}
	if cfg.Tosu.AutoReconnect == nil || *cfg.Tosu.AutoReconnect {
		t.Fatalf("expected auto-reconnect=false")
	}
	if cfg.Osu.PlayerID == nil || *cfg.Osu.PlayerID != "42" {
		t.Fatalf("unexpected player id: %v", cfg.Osu.PlayerID)
	}
	if len(cfg.Events.Brokers) != 2 {
		t.Fatalf("expected 2 brokers, got %d", len(cfg.Events.Brokers))
	}
	if cfg.Overlay.Listen != nil {
		t.Fatalf("expected unset listen address")
	}
}

func TestLoadConfigDecodeError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[tosu\nurl = 1"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to decode config") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv("OSU_CLIENT_ID", "id")
	t.Setenv("OSU_CLIENT_SECRET", "secret")
	t.Setenv("OSU_PLAYER_ID", "")

	creds, err := LoadCredentials()
	if err != nil {
		t.Fatalf("load credentials: %v", err)
	}
	if creds.ClientID != "id" || creds.ClientSecret != "secret" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
	if creds.PlayerID != "" {
		t.Fatalf("expected empty player id, got %q", creds.PlayerID)
	}
}

func TestDefaultPathsUseXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/cfg")
	t.Setenv("XDG_DATA_HOME", "/tmp/data")
	if got := DefaultConfigPath(); got != filepath.Join("/tmp/cfg", "osutrack", "config.toml") {
		t.Fatalf("unexpected config path: %s", got)
	}
	if got := DefaultLogPath(); got != filepath.Join("/tmp/data", "osutrack", "osutrack.log") {
		t.Fatalf("unexpected log path: %s", got)
	}
}
