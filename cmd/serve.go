package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/threadrank/internal/api"
	"github.com/threadrank/internal/config"
	"github.com/threadrank/internal/jobqueue"
	"github.com/threadrank/internal/service"
)

// ServeCommand returns the CLI command for starting the API server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the threadrank API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (default: api.port)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c, config.FeatureAPI)
	if err != nil {
		return err
	}
	if port := c.Int("port"); port > 0 {
		cfg.API.Port = port
	}

	ctx, cancel := signalContext(c.Context)
	defer cancel()

	// Without a database the server still ranks discussions on demand, it
	// just cannot store them or accept jobs.
	withStore := cfg.Database.URL != ""
	built, err := service.Build(ctx, cfg, service.BuildOptions{Store: withStore})
	if err != nil {
		return err
	}
	defer built.Close()

	var queue api.Enqueuer
	if withStore {
		jq, err := jobqueue.NewJobQueue(built.Store.Pool(), nil, jobqueue.FromConfig(cfg))
		if err != nil {
			return err
		}
		queue = jq
	} else {
		log.Warn().Msg("database.url not set: discussions are not stored and jobs are disabled")
	}

	return api.NewServer(cfg.API.Port, built.Service, queue).Start(ctx)
}
