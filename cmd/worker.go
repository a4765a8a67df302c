package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/threadrank/internal/config"
	"github.com/threadrank/internal/jobqueue"
	"github.com/threadrank/internal/service"
	"github.com/threadrank/internal/store"
)

// WorkerCommand runs River workers that process queued discussions.
func WorkerCommand() *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Process queued discussions",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Override queue.max_workers",
			},
		},
		Action: runWorker,
	}
}

// EnqueueCommand queues discussions for the workers.
func EnqueueCommand() *cli.Command {
	return &cli.Command{
		Name:      "enqueue",
		Usage:     "Queue discussions for background processing",
		ArgsUsage: "POST_ID...",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "summarize",
				Usage: "Also summarize each discussion",
			},
		},
		Action: runEnqueue,
	}
}

// MigrateCommand creates the discussion tables and River's schema.
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:   "migrate",
		Usage:  "Create or upgrade the database schema",
		Action: runMigrate,
	}
}

func runWorker(c *cli.Context) error {
	cfg, err := loadConfig(c, config.FeatureDatabase)
	if err != nil {
		return err
	}
	if n := c.Int("workers"); n > 0 {
		cfg.Queue.MaxWorkers = n
	}

	ctx, cancel := signalContext(c.Context)
	defer cancel()

	// Summaries are optional for the worker: jobs that ask for one are
	// completed without it when no AI provider is configured.
	withAI := config.Validate(cfg, config.FeatureAI) == nil
	if !withAI {
		log.Warn().Msg("AI provider not configured, summary requests will be skipped")
	}

	built, err := service.Build(ctx, cfg, service.BuildOptions{Store: true, Summarizer: withAI})
	if err != nil {
		return err
	}
	defer built.Close()

	qc := jobqueue.FromConfig(cfg)
	jq, err := jobqueue.NewJobQueue(built.Store.Pool(), built.Service, qc)
	if err != nil {
		return err
	}
	if err := jq.Start(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	log.Info().Str("profile", cfg.Queue.Profile).Int("workers", qc.MaxWorkers).Msg("Workers started")

	<-ctx.Done()

	stopCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	log.Info().Msg("Stopping workers")
	return jq.Stop(stopCtx)
}

func runEnqueue(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: POST_ID")
	}
	ids := make([]int64, 0, c.NArg())
	for _, arg := range c.Args().Slice() {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid post id %q", arg)
		}
		ids = append(ids, id)
	}

	cfg, err := loadConfig(c, config.FeatureDatabase)
	if err != nil {
		return err
	}

	st, err := store.New(c.Context, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer st.Close()

	jq, err := jobqueue.NewJobQueue(st.Pool(), nil, jobqueue.FromConfig(cfg))
	if err != nil {
		return err
	}

	summarize := c.Bool("summarize")
	for _, id := range ids {
		jobID, err := jq.Enqueue(c.Context, id, summarize)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Queued post %d as job %d\n", id, jobID)
	}
	return nil
}

func runMigrate(c *cli.Context) error {
	cfg, err := loadConfig(c, config.FeatureDatabase)
	if err != nil {
		return err
	}

	st, err := store.New(c.Context, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(c.Context); err != nil {
		return err
	}
	if err := jobqueue.Migrate(c.Context, st.Pool()); err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, "Database schema is up to date")
	return nil
}
