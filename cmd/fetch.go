package cmd

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/threadrank/internal/config"
	"github.com/threadrank/internal/service"
)

// FetchCommand downloads and ranks a live discussion.
func FetchCommand() *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetch a Hacker News discussion and rank its comments",
		ArgsUsage: "POST_ID",
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:  "save",
				Usage: "Store the ranked discussion in the database",
			},
			&cli.BoolFlag{
				Name:  "refresh",
				Usage: "Ignore cached responses and read both sources again",
			},
		}, outputFlags()...),
		Action: runFetch,
	}
}

func parsePostIDArg(c *cli.Context) (int64, error) {
	if c.NArg() < 1 {
		return 0, fmt.Errorf("missing required argument: POST_ID")
	}
	id, err := strconv.ParseInt(c.Args().Get(0), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid post id %q", c.Args().Get(0))
	}
	return id, nil
}

func runFetch(c *cli.Context) error {
	postID, err := parsePostIDArg(c)
	if err != nil {
		return err
	}

	save := c.Bool("save")
	var features []config.Feature
	if save {
		features = append(features, config.FeatureDatabase)
	}
	cfg, err := loadConfig(c, features...)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(c.Context)
	defer cancel()

	built, err := service.Build(ctx, cfg, service.BuildOptions{Store: save})
	if err != nil {
		return err
	}
	defer built.Close()

	fetch := built.Service.FetchAndSave
	if c.Bool("refresh") {
		fetch = built.Service.Refresh
	}
	p, err := fetch(ctx, postID)
	if err != nil {
		return err
	}
	return writeResult(c, p.Post, p.Result)
}
