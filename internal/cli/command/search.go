package command

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/lumidex/lumidex-go/internal/index"
)

// SearchCommand returns the search command.
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Query an index",
		ArgsUsage: "INDEX QUERY...",
		Action:    runSearch,
	}
}

func runSearch(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.Exit("usage: lumidex search INDEX QUERY...", 2)
	}
	name := c.Args().First()
	query := strings.Join(c.Args().Slice()[1:], " ")
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

	hits, err := idx.Search(query)
	if err != nil {
		return err
	}
	for _, hit := range hits {
		fmt.Fprintf(c.App.Writer, "%s\n", hit)
	}
	fmt.Fprintf(c.App.Writer, "%d hit(s)\n", len(hits))
	return nil
}
