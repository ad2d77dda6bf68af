package command

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/lumidex/lumidex-go/internal/index"
)

// DumpCommand returns the dump command.
func DumpCommand() *cli.Command {
	return &cli.Command{
		Name:      "dump",
		Usage:     "Write a point-in-time snapshot of an index",
		ArgsUsage: "INDEX",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Snapshot root directory",
				Value:   "./dump",
			},
		},
		Action: runDump,
	}
}

func runDump(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: lumidex dump INDEX", 2)
	}
	name := c.Args().First()
	cfg := GetConfig(c)

	idx, err := index.Open(index.Config{
		Path:     filepath.Join(cfg.Storage.DataDir, name),
		MapSize:  cfg.Storage.MapSize,
		Metrics:  GetMetrics(c),
		Registry: GetRegistry(c),
	})
	if err != nil {
		return err
	}
	defer idx.Close()

	out := c.String("out")
	if err := idx.Dump(c.Context, out); err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "snapshot written to %s\n",
		filepath.Join(out, "indexes", idx.UID()))
	return nil
}
