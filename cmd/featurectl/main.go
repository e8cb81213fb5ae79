// Command featurectl runs an end-to-end smoke check against a running
// feature registry.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/okian/featreg/internal/smoke"
	"github.com/okian/featreg/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand(os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "featurectl:", err)
		stop()
		os.Exit(1)
	}
}

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "featurectl",
		Usage: "Smoke-test a feature registry over its HTTP API",
		Description: `Registers a range of feature ids, verifies health and data, checks the
listing order, degrades every feature, deletes them and confirms that
health reports unknown and data returns 404 afterwards.

# Examples

Run against a local service:
  featurectl --url http://localhost:8080

Exercise 500 ids starting at 10000 with 32 requests in flight:
  featurectl --start 10000 --count 500 --workers 32`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Value: smoke.DefaultBaseURL,
				Usage: "Base URL of the service",
			},
			&cli.Int64Flag{
				Name:  "start",
				Value: smoke.DefaultStart,
				Usage: "First feature id to exercise",
			},
			&cli.IntFlag{
				Name:  "count",
				Value: smoke.DefaultCount,
				Usage: "Number of consecutive feature ids",
			},
			&cli.IntFlag{
				Name:  "workers",
				Value: smoke.DefaultWorkers,
				Usage: "Concurrent requests in flight",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: smoke.DefaultTimeout,
				Usage: "Per-request timeout",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log every request outcome",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := smoke.Config{
				BaseURL: cmd.String("url"),
				Start:   cmd.Int64("start"),
				Count:   cmd.Int("count"),
				Workers: cmd.Int("workers"),
				Timeout: cmd.Duration("timeout"),
				Verbose: cmd.Bool("verbose"),
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if err := logger.InitWithWriter(out, "text"); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			log := logger.Get()
			if cfg.Verbose {
				_ = logger.SetLevelString("debug")
			}
			defer func() { _ = logger.Sync() }()

			client := smoke.NewHTTPClient(cfg.BaseURL, cfg.Timeout)
			stats, err := smoke.Run(ctx, client, cfg, log)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "PASS: %d features, %d requests in %s\n",
				stats.Registered, stats.Requests, stats.Duration.Round(time.Millisecond))
			return nil
		},
	}
}
