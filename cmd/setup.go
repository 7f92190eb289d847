package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Magniswerfer/Podhaven-sub000/internal/models"
	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
	"github.com/Magniswerfer/Podhaven-sub000/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Setup initializes the config file and database, runs migrations, and
// seeds the backend record from the config's [remote] section.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}

	if err := config.Validate(); err != nil {
		return err
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if config.Remote.Backend != "" {
		store := tasks.NewStore(db)
		serverConfig, err := store.Config.GetOrCreate()
		if err != nil {
			return fmt.Errorf("failed to load backend record: %w", err)
		}
		if serverConfig.Backend() == "" {
			serverConfig.SetBackend(models.Backend(config.Remote.Backend))
			serverConfig.SetBaseURL(config.Remote.BaseURL)
			serverConfig.SetDeviceID(config.Remote.Device)
			if err := store.Config.Save(serverConfig); err != nil {
				return fmt.Errorf("failed to save backend record: %w", err)
			}
			r.logger.Info("backend configured", "backend", config.Remote.Backend, "base_url", config.Remote.BaseURL)
		}
	}

	r.config = config
	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return nil
}

// setupCommand handles initial configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize config file, database, and sync backend record",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}
