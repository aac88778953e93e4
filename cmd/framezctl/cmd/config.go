package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigEnv overrides the config file location.
const ConfigEnv = "FRAMEZ_CONFIG"

const defaultBaseURL = "http://localhost:8080"

// Config is the framezctl configuration file.
type Config struct {
	BaseURL     string `yaml:"base_url"`
	SessionFile string `yaml:"session_file"`
	ClientInfo  string `yaml:"client_info,omitempty"`
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "framez")
}

// DefaultConfigPath returns $FRAMEZ_CONFIG or ~/.config/framez/config.yaml.
func DefaultConfigPath() string {
	if path := strings.TrimSpace(os.Getenv(ConfigEnv)); path != "" {
		return path
	}
	return filepath.Join(configDir(), "config.yaml")
}

// LoadConfig reads path. A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := Config{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.SessionFile == "" {
		cfg.SessionFile = filepath.Join(configDir(), "session.json")
	}
	cfg.SessionFile = expandHome(cfg.SessionFile)
	return cfg, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
