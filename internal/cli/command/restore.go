package command

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/lumidex/lumidex-go/internal/cli/output"
	"github.com/lumidex/lumidex-go/internal/core/service"
	"github.com/lumidex/lumidex-go/internal/index"
)

// RestoreCommand returns the restore command.
func RestoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Rebuild an index from a snapshot directory",
		ArgsUsage: "SNAPSHOT_DIR [INDEX]",
		Action:    runRestore,
	}
}

func runRestore(c *cli.Context) error {
	if c.NArg() < 1 || c.NArg() > 2 {
		return cli.Exit("usage: lumidex restore SNAPSHOT_DIR [INDEX]", 2)
	}
	src := c.Args().Get(0)
	name := filepath.Base(src)
	if c.NArg() == 2 {
		name = c.Args().Get(1)
	}
	cfg := GetConfig(c)

	if _, err := os.Stat(filepath.Join(cfg.Storage.DataDir, name)); err == nil {
		return fmt.Errorf("index %s already exists", name)
	}
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return err
	}

	// The snapshot restores into a staging root under the data dir and
	// swaps in under the requested name once the environment is fully
	// closed. A failed restore never leaves a half-built index where
	// the other commands look for one.
	staging, err := os.MkdirTemp(cfg.Storage.DataDir, ".restore-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(staging)

	bar := output.NewProgressBar(c.App.Writer, "restoring")
	progress := func(p service.Progress) {
		if p.Phase == service.PhaseDocuments {
			bar.Update(int64(p.Processed), int64(p.Total))
		}
	}

	err = index.LoadDump(c.Context, src, index.Config{
		Path:     staging,
		UID:      name,
		MapSize:  cfg.Storage.MapSize,
		Metrics:  GetMetrics(c),
		Registry: GetRegistry(c),
	}, progress)
	if err != nil {
		return err
	}
	bar.Finish()

	restored := filepath.Join(staging, filepath.Base(src))
	if err := os.Rename(restored, filepath.Join(cfg.Storage.DataDir, name)); err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "index %s restored from %s\n", name, src)
	return nil
}
