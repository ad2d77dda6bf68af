// Package command provides CLI command definitions for the lumidex
// CLI: index snapshots (dump, restore, inspect) and search.
package command

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/lumidex/lumidex-go/internal/cli/config"
	"github.com/lumidex/lumidex-go/internal/infra/buildinfo"
	"github.com/lumidex/lumidex-go/internal/telemetry/logger"
	"github.com/lumidex/lumidex-go/internal/telemetry/metric"
)

// App creates the CLI application.
func App() *cli.App {
	app := &cli.App{
		Name:    "lumidex",
		Usage:   "Lumidex index management tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			DumpCommand(),
			RestoreCommand(),
			InspectCommand(),
			SearchCommand(),
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			if c.IsSet("data-dir") {
				cfg.Storage.DataDir = c.String("data-dir")
			}
			if c.IsSet("map-size") {
				cfg.Storage.MapSize = c.Int64("map-size")
			}
			if c.IsSet("log-level") {
				cfg.Log.Level = c.String("log-level")
			}
			if c.IsSet("log-format") {
				cfg.Log.Format = c.String("log-format")
			}

			log, err := logger.New(logger.Config{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
			})
			if err != nil {
				return err
			}
			logger.SetDefault(log)

			// Every invocation carries its own registry; commands
			// that open an index feed it instruments and gauges.
			reg := prometheus.NewRegistry()
			c.App.Metadata["config"] = cfg
			c.App.Metadata["registry"] = reg
			c.App.Metadata["metrics"] = metric.New(reg)
			return nil
		},
	}

	return app
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the CLI config file",
			EnvVars: []string{"LUMIDEX_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Aliases: []string{"d"},
			Usage:   "Directory indexes live under",
			EnvVars: []string{"LUMIDEX_DATA_DIR"},
		},
		&cli.Int64Flag{
			Name:    "map-size",
			Usage:   "Per-index storage arena bound in bytes",
			EnvVars: []string{"LUMIDEX_MAP_SIZE"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level: debug, info, warn, error",
			EnvVars: []string{"LUMIDEX_LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format: json, text",
			EnvVars: []string{"LUMIDEX_LOG_FORMAT"},
		},
	}
}

// GetConfig retrieves the loaded configuration from context.
func GetConfig(c *cli.Context) *config.CLIConfig {
	if cfg, ok := c.App.Metadata["config"].(*config.CLIConfig); ok {
		return cfg
	}
	return config.Default()
}

// GetMetrics retrieves the invocation's metric instruments, nil when
// the Before hook has not run.
func GetMetrics(c *cli.Context) *metric.Metrics {
	m, _ := c.App.Metadata["metrics"].(*metric.Metrics)
	return m
}

// GetRegistry retrieves the invocation's metric registry, nil when the
// Before hook has not run.
func GetRegistry(c *cli.Context) *prometheus.Registry {
	r, _ := c.App.Metadata["registry"].(*prometheus.Registry)
	return r
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
