package command

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/lumidex/lumidex-go/internal/cli/output"
	"github.com/lumidex/lumidex-go/internal/core/domain"
	"github.com/lumidex/lumidex-go/internal/index"
)

// InspectCommand returns the inspect command.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Describe a snapshot directory without restoring it",
		ArgsUsage: "SNAPSHOT_DIR",
		Action:    runInspect,
	}
}

// snapshotSummary is the inspect command's output shape.
type snapshotSummary struct {
	UID        string          `json:"uid"`
	PrimaryKey *string         `json:"primaryKey"`
	Documents  int             `json:"documents"`
	Settings   domain.Settings `json:"settings"`
}

func runInspect(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: lumidex inspect SNAPSHOT_DIR", 2)
	}
	src := c.Args().First()

	payload, err := os.ReadFile(filepath.Join(src, "meta.json"))
	if err != nil {
		return domain.ErrInvalidMeta.WithCause(err)
	}
	var meta index.DumpMeta
	if err := json.Unmarshal(payload, &meta); err != nil {
		return domain.ErrInvalidMeta.WithCause(err)
	}

	count, err := countDocuments(filepath.Join(src, "documents.jsonl"))
	if err != nil {
		return err
	}

	summary := snapshotSummary{
		UID:        filepath.Base(src),
		PrimaryKey: meta.PrimaryKey,
		Documents:  count,
		Settings:   meta.Settings,
	}
	formatter := &output.JSONFormatter{}
	return formatter.Format(c.App.Writer, summary)
}

func countDocuments(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, domain.ErrIndexIO.WithCause(err)
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64<<10), 64<<20)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, domain.ErrIndexIO.WithCause(err)
	}
	return count, nil
}
