package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"ShortsIntel/internal/app"
	"ShortsIntel/internal/config"
	"ShortsIntel/internal/logging"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "shortsintel:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "shortsintel",
		Usage: "quota-aware brand intelligence over YouTube Shorts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a YAML config file",
				EnvVars: []string{config.EnvConfigPath},
			},
			&cli.StringFlag{
				Name:    "output",
				Usage:   "directory for run artifacts",
				EnvVars: []string{config.EnvOutputDir},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "execute one collection and analysis run",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "brand",
						Aliases: []string{"b"},
						Usage:   "run a single configured brand instead of all",
					},
				},
				Action: runAction,
			},
			{
				Name:   "schedule",
				Usage:  "run every brand on the configured cron expression until interrupted",
				Action: scheduleAction,
			},
			{
				Name:   "brands",
				Usage:  "list the configured brands",
				Action: brandsAction,
			},
		},
	}
}

func loadConfig(c *cli.Context) config.Config {
	if v := c.String("config"); v != "" {
		os.Setenv(config.EnvConfigPath, v)
	}
	if v := c.String("output"); v != "" {
		os.Setenv(config.EnvOutputDir, v)
	}
	return config.Load()
}

func runAction(c *cli.Context) error {
	cfg := loadConfig(c)
	logger := logging.New(cfg.Logging.Level)
	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if brand := c.String("brand"); brand != "" {
		return application.RunOnce(ctx, brand)
	}
	return application.RunAll(ctx)
}

func scheduleAction(c *cli.Context) error {
	cfg := loadConfig(c)
	logger := logging.New(cfg.Logging.Level)
	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return application.Schedule(ctx)
}

func brandsAction(c *cli.Context) error {
	cfg := loadConfig(c)
	for _, brand := range cfg.Brands {
		fmt.Printf("%s (%s): %d keywords, %d competitors, %dd lookback\n",
			brand.Name, brand.Category, len(brand.AllKeywords()), len(brand.Competitors), brand.LookbackDays)
	}
	return nil
}
