package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds runtime settings for the poolctl CLI.
type Config struct {
	ServerEndpointAddr string        `env:"POOL_ENDPOINT"`
	KeyFile            string        `env:"POOL_KEY_FILE"`
	RequestTimeout     time.Duration `env:"POOL_TIMEOUT"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.KeyFile = defaultKeyFile()
	c.RequestTimeout = 15 * time.Second
}

func defaultKeyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "gophpool-key.json"
	}
	return filepath.Join(home, ".gophpool", "key.json")
}

// Load applies defaults, then the JSON file at path (if any), then the
// environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if path != "" {
		if err := applyJSON(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
