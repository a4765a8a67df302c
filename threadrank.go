package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/threadrank/cmd"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "threadrank",
		Usage:   "Reconcile, rank and summarize Hacker News comment threads",
		Version: version,
		Flags:   cmd.GlobalFlags(),
		Commands: []*cli.Command{
			cmd.ProcessCommand(),
			cmd.FetchCommand(),
			cmd.SummarizeCommand(),
			cmd.ServeCommand(),
			cmd.WorkerCommand(),
			cmd.EnqueueCommand(),
			cmd.MigrateCommand(),
			cmd.ConfigCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
