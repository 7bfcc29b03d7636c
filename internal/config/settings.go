// Package config loads application settings. Settings live in a single
// optional YAML file under the config directory; anything absent falls back
// to a default.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultDirName is the config directory under the user's home.
const DefaultDirName = ".deskmux"

// Settings represents the complete configuration.
type Settings struct {
	// ScrollbackBytes caps per-session terminal scrollback.
	ScrollbackBytes int `yaml:"scrollbackBytes,omitempty"`

	// Commands overrides the command spawned per CLI provider,
	// e.g. claude-cli: ["claude", "--continue"].
	Commands map[string][]string `yaml:"commands,omitempty"`

	// Model overrides the default model per API provider.
	Model map[string]string `yaml:"model,omitempty"`
}

// Dir resolves the config directory, honoring DESKMUX_CONFIG_DIR.
func Dir() (string, error) {
	if dir := os.Getenv("DESKMUX_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, DefaultDirName), nil
}

// Load reads settings.yaml from dir. A missing file yields defaults.
func Load(dir string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(filepath.Join(dir, "settings.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	return s, nil
}
