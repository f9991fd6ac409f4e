package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ignatzorin/freelance-escrow/internal/app"
	"github.com/ignatzorin/freelance-escrow/internal/config"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
)

var (
	// verbosityFlag переопределяет LOG_LEVEL.
	verbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity (trace, debug, info, warn, error)",
	}

	logFormatFlag = &cli.StringFlag{
		Name:  "log-format",
		Usage: "Log format: text or json",
		Value: "json",
	}

	intervalFlag = &cli.DurationFlag{
		Name:  "interval",
		Usage: "Sweep interval for the run command; defaults to SWEEP_INTERVAL",
	}
)

func main() {
	cliApp := &cli.App{
		Name:  "escrow-reconciler",
		Usage: "reconciles payments stuck between the ledger and the payment gateway",
		Flags: []cli.Flag{verbosityFlag, logFormatFlag},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			level := cfg.LogLevel
			if v := c.String(verbosityFlag.Name); v != "" {
				level = v
			}
			logger.Init(level)
			if c.String(logFormatFlag.Name) == "text" {
				logger.SetTextFormatter()
			}
			c.App.Metadata = map[string]any{"config": cfg}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "sweep",
				Usage:  "run one reconciliation pass and print the report",
				Action: sweepOnce,
			},
			{
				Name:   "run",
				Usage:  "run reconciliation passes until interrupted",
				Flags:  []cli.Flag{intervalFlag},
				Action: runLoop,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		logger.Log.WithError(err).Fatal("reconciler: завершение с ошибкой")
	}
}

func configFrom(c *cli.Context) *config.Config {
	return c.App.Metadata["config"].(*config.Config)
}

func sweepOnce(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.Build(ctx, configFrom(c))
	if err != nil {
		return err
	}
	defer application.Close()

	report, err := application.Escrow.Sweep(ctx)
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(report)
}

func runLoop(c *cli.Context) error {
	cfg := configFrom(c)
	interval := c.Duration(intervalFlag.Name)
	if interval <= 0 {
		interval = cfg.SweepInterval
	}
	if interval <= 0 {
		interval = time.Minute
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	logger.Log.WithField("interval", interval.String()).Info("reconciler: запуск")
	application.Escrow.Run(ctx, interval)
	return nil
}
