package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Credentials holds osu! API secrets, which are never read from the config file.
type Credentials struct {
	ClientID     string `env:"OSU_CLIENT_ID"`
	ClientSecret string `env:"OSU_CLIENT_SECRET"`
	PlayerID     string `env:"OSU_PLAYER_ID"`
}

// LoadCredentials reads osu! API credentials from the environment.
func LoadCredentials() (Credentials, error) {
	var creds Credentials
	if err := env.Parse(&creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to parse env: %w", err)
	}
	return creds, nil
}
