package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/urfave/cli/v2"

	"PaperDigest/internal/app"
	"PaperDigest/internal/config"
	"PaperDigest/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCLI(os.Stdout).RunContext(ctx, os.Args); err != nil {
		slog.Error("paperdigest stopped", "error", err)
		stop()
		os.Exit(1)
	}
}

func newCLI(stdout io.Writer) *cli.App {
	return &cli.App{
		Name:  "paperdigest",
		Usage: "summarise new arXiv papers and publish them as a static site",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file", EnvVars: []string{"PAPERDIGEST_CONFIG"}},
			&cli.StringFlag{Name: "env-file", Usage: "dotenv file with credentials (default .env when present)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		},
		Writer:   stdout,
		Commands: []*cli.Command{
			{
				Name:  "fetch",
				Usage: "summarise at most one new paper into the day's output file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "date", Usage: "reference day YYYY-MM-DD (default today)"},
				},
				Action: func(c *cli.Context) error {
					return withApp(c, func(a *app.Application, cfg config.Config) error {
						day, err := parseDay(c.String("date"), cfg.Scheduler.Location(), time.Now())
						if err != nil {
							return err
						}
						out, err := a.Fetch(c.Context, day)
						if err != nil {
							return err
						}
						if !out.Found {
							fmt.Fprintln(stdout, "no new papers found")
							return nil
						}
						fmt.Fprintf(stdout, "summary written to %s\n", out.Path)
						return nil
					})
				},
			},
			{
				Name:   "build",
				Usage:  "render every output file into the static site",
				Action: func(c *cli.Context) error {
					return withApp(c, func(a *app.Application, _ config.Config) error {
						res, err := a.Build(c.Context)
						if err != nil {
							return err
						}
						if res.Pages == 0 {
							fmt.Fprintln(stdout, "nothing to render")
							return nil
						}
						fmt.Fprintf(stdout, "site index updated: %s (%d pages)\n", res.Index, res.Pages)
						return nil
					})
				},
			},
			{
				Name:  "watch",
				Usage: "fetch and build on a fixed interval until interrupted",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "interval", Usage: "time between runs (default scheduler.interval)"},
				},
				Action: func(c *cli.Context) error {
					return withApp(c, func(a *app.Application, _ config.Config) error {
						return a.Watch(c.Context, c.Duration("interval"))
					})
				},
			},
		},
	}
}

func withApp(c *cli.Context, fn func(*app.Application, config.Config) error) error {
	if err := config.LoadEnvFile(c.String("env-file")); err != nil {
		return err
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	application, err := app.New(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	return fn(application, cfg)
}

// parseDay resolves the --date flag; empty means now.
func parseDay(raw string, loc *time.Location, now time.Time) (time.Time, error) {
	if raw == "" {
		return now.In(loc), nil
	}
	day, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: %w", raw, err)
	}
	return day, nil
}
