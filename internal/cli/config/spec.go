// Package config defines the CLI configuration structure.
package config

// CLIConfig is the configuration for the lumidex CLI.
type CLIConfig struct {
	Storage StorageConfig `koanf:"storage"`
	Log     LogConfig     `koanf:"log"`
}

// StorageConfig configures the index storage environment.
type StorageConfig struct {
	// DataDir is the directory indexes live under.
	DataDir string `koanf:"data_dir"`

	// MapSize is the per-index storage arena bound in bytes.
	MapSize int64 `koanf:"map_size"`
}

// LogConfig configures CLI logging.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
			MapSize: 10 << 30,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
