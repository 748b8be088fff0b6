package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotcanvas/internal/canvas"
	"github.com/desertthunder/spotcanvas/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	configPath := os.Getenv("SPOTCANVAS_CONFIG")
	if configPath == "" {
		configPath = "config.toml"
	}

	config, err := shared.LoadOrDefault(configPath)
	if err != nil {
		logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		config = shared.DefaultConfig()
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:    "spotcanvas",
		Usage:   "Fetch Spotify canvas videos for tracks",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("verbose") {
				shared.SetLogLevel(logger, log.DebugLevel)
			}
			return ctx, nil
		},
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err = app.Run(ctx, os.Args)
	stop()
	runner.Close()

	if err == nil {
		return
	}

	switch {
	case errors.Is(err, canvas.ErrRateLimited):
		var cerr *canvas.Error
		if errors.As(err, &cerr) {
			if ms, ok := cerr.RetryAfterMs(); ok {
				logger.Warn("rate limited by Spotify, try again later", "retry_after_ms", ms)
				os.Exit(2)
			}
		}
		logger.Warn("rate limited by Spotify, try again later")
		os.Exit(2)
	case errors.Is(err, canvas.ErrHashOutdated):
		logger.Error("canvas query hash is outdated, update canvas.query_hash in config", "error", err)
		os.Exit(1)
	case errors.Is(err, shared.ErrNotImplemented):
		logger.Warn("not implemented", "error", err)
		os.Exit(0)
	default:
		logger.Fatalf("application error: %v", err)
	}
}
