package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/desertthunder/coverx/internal/shared"
	"github.com/urfave/cli/v3"
)

// loadSetupConfig loads configPath, creating it from the embedded template when it does not exist.
// Any failure falls back to the defaults with a warning.
func (r *Runner) loadSetupConfig(configPath string) *shared.Config {
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

	config.ApplyEnv()
	return config
}

func (r *Runner) openSetupDatabase(cmd *cli.Command) (*sql.DB, *shared.Config, error) {
	config := r.loadSetupConfig(cmd.String("config"))

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database: %w", err)
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
	return db, config, nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	db, config, err := r.openSetupDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Info("running database migrations", "path", config.Database.Path)
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)

	return r.writePlain("%s Database ready at %s\n", r.palette.OK("✓"), config.Database.Path)
}

// SetupStatus reports which embedded migrations have been applied.
func (r *Runner) SetupStatus(ctx context.Context, cmd *cli.Command) error {
	db, config, err := r.openSetupDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	status, err := shared.Status(db)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"database": config.Database.Path,
			"applied":  status.Applied,
			"pending":  status.Pending,
		}, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Migrations")
	r.writePlain("Database: %s\n", config.Database.Path)
	r.writePlain("Applied:  %v\n", status.Applied)
	if len(status.Pending) == 0 {
		return r.writePlain("Pending:  %s\n", r.palette.OK("none"))
	}
	r.writePlain("Pending:  %s\n", r.palette.Warn(fmt.Sprint(status.Pending)))
	return r.writePlain("%s\n", r.palette.Help("Run 'coverx setup database' to apply them."))
}

// SetupRollback reverts the most recently applied migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db, config, err := r.openSetupDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Warn("rolling back latest migration", "path", config.Database.Path)
	if err := shared.RollbackMigration(db); err != nil {
		return err
	}
	return r.writePlain("%s Rolled back latest migration\n", r.palette.OK("✓"))
}
