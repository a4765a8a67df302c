package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/threadrank/internal/config"
	"github.com/threadrank/internal/discussion"
	"github.com/threadrank/internal/export"
	"github.com/threadrank/internal/logging"
	"github.com/threadrank/pkg/models"
)

// GlobalFlags are the flags every command understands.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Load configuration from `FILE` (default: ./threadrank.toml, then ~/.threadrank.toml)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Override general.log_level (trace, debug, info, warn, error)",
		},
		&cli.BoolFlag{
			Name:  "json-logs",
			Usage: "Log JSON lines instead of console output",
		},
	}
}

// setupLogging configures the global logger from flags, falling back to cfg.
func setupLogging(c *cli.Context, cfg *config.Config) error {
	opts := logging.Options{Level: "info", Pretty: true}
	if cfg != nil {
		opts.Level = cfg.General.LogLevel
		opts.Pretty = cfg.General.PrettyLogs
	}
	if level := c.String("log-level"); level != "" {
		opts.Level = level
	}
	if c.Bool("json-logs") {
		opts.Pretty = false
	}
	if _, err := logging.Setup(opts); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// loadConfig loads and validates the configuration, then sets up logging.
func loadConfig(c *cli.Context, features ...config.Feature) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := setupLogging(c, cfg); err != nil {
		return nil, err
	}
	if err := config.Validate(cfg, features...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write the result to `FILE` instead of stdout",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: json, jsonl or lines",
			Value:   "json",
		},
	}
}

// writeResult writes a processed discussion in the requested format.
func writeResult(c *cli.Context, post *models.Post, res *discussion.Result) error {
	format := c.String("format")
	switch format {
	case "json", "jsonl", "lines":
	default:
		return fmt.Errorf("unsupported format %q (use json, jsonl or lines)", format)
	}

	out := c.App.Writer
	if path := c.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch format {
	case "jsonl":
		return export.WriteJSONL(out, post.ID, res.Comments)
	case "lines":
		return discussion.WriteLines(out, res.Comments)
	default:
		return export.EncodePretty(out, export.BuildDocument(post, res))
	}
}
