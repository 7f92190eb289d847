package main

import (
	"context"
	"errors"
	"os"

	"github.com/Magniswerfer/Podhaven-sub000/internal/services"
	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	if level, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		shared.SetLogLevel(logger, level)
	}
	for _, arg := range os.Args[1:] {
		if arg == "--verbose" {
			shared.SetLogLevel(logger, log.DebugLevel)
			break
		}
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	apiService := services.NewAPIService(config.Remote.BaseURL, nil)

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: "config.toml",
		API:        apiService,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:    "podhaven",
		Usage:   "Sync podcast subscriptions & listening progress with gpodder.net or Podhaven",
		Version: "0.5.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		err_ := errors.Unwrap(err)
		if errors.Is(err_, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}
