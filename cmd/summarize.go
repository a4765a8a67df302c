package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/threadrank/internal/config"
	"github.com/threadrank/internal/export"
	"github.com/threadrank/internal/logging"
	"github.com/threadrank/internal/service"
)

// SummarizeCommand summarizes a discussion with the configured LLM.
func SummarizeCommand() *cli.Command {
	return &cli.Command{
		Name:      "summarize",
		Usage:     "Summarize a Hacker News discussion with an LLM",
		ArgsUsage: "[POST_ID]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "ai",
				Aliases: []string{"a"},
				Usage:   "Override the AI provider to use",
			},
			&cli.BoolFlag{
				Name:  "save",
				Usage: "Store the discussion and its summary in the database",
			},
			&cli.BoolFlag{
				Name:  "stored",
				Usage: "Summarize the stored copy instead of fetching",
			},
			&cli.StringFlag{
				Name:    "document",
				Aliases: []string{"d"},
				Usage:   "Summarize a `FILE` written by process or fetch --output instead of fetching",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the summary to `FILE` instead of stdout",
			},
		},
		Action: runSummarize,
	}
}

func runSummarize(c *cli.Context) error {
	docPath := c.String("document")
	useStore := c.Bool("save") || c.Bool("stored")

	var postID int64
	var doc *export.Document
	var err error
	if docPath != "" {
		if useStore {
			return fmt.Errorf("--document cannot be combined with --save or --stored")
		}
		if doc, err = export.ReadDocument(docPath); err != nil {
			return err
		}
	} else if postID, err = parsePostIDArg(c); err != nil {
		return err
	}

	var features []config.Feature
	if useStore {
		features = append(features, config.FeatureDatabase)
	}
	cfg, err := loadConfig(c, features...)
	if err != nil {
		return err
	}
	if provider := c.String("ai"); provider != "" {
		cfg.AI.Provider = provider
	}
	if err := config.Validate(cfg, config.FeatureAI); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	runLog, err := logging.StartRun(cfg.General.OutputDir, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Run log unavailable, continuing without it")
	}
	defer runLog.Close()

	ctx, cancel := signalContext(c.Context)
	defer cancel()

	built, err := service.Build(ctx, cfg, service.BuildOptions{
		Store:      useStore,
		Summarizer: true,
		RunLog:     runLog,
	})
	if err != nil {
		runLog.LogError("setup", err)
		return err
	}
	defer built.Close()

	var p *service.Processed
	switch {
	case doc != nil:
		p = &service.Processed{Post: doc.Post, Result: doc.Result()}
	case c.Bool("stored"):
		p, err = built.Service.Load(ctx, postID)
	default:
		p, err = built.Service.FetchAndSave(ctx, postID)
	}
	if err != nil {
		runLog.LogError("fetch", err)
		return err
	}

	summary, err := built.Service.Summarize(ctx, p)
	if err != nil {
		runLog.LogError("summarize", err)
		return err
	}

	if path := c.String("output"); path != "" {
		if err := export.WriteJSONPretty(path, summary); err != nil {
			return err
		}
		log.Info().Str("path", path).Str("run_log", runLog.Path()).Msg("Summary written")
		return nil
	}
	return export.EncodePretty(c.App.Writer, summary)
}
