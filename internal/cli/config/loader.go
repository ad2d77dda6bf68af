package config

import (
	"os"
	"path/filepath"

	"github.com/lumidex/lumidex-go/internal/infra/confloader"
)

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".lumidex", "cli.yaml")
}

func defaultDataDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".lumidex", "data")
}

// Load loads CLI configuration: defaults, then the YAML file (if it
// exists), then LUMIDEX_* environment variables.
func Load(path string) (*CLIConfig, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath()
		// The default path is optional; an explicit one is not.
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = ""
		}
	}

	opts := []confloader.Option{}
	if path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}

	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
