package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/playdeck/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase creates the config file from the template when missing, then initializes the database and runs migrations.
//
// --rollback N and --status work on the configured database as-is and never create a config file.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	switch {
	case cmd.IsSet("rollback"):
		return r.rollbackDatabase(ctx, cmd.Int("rollback"))
	case cmd.Bool("status"):
		return r.databaseStatus(ctx)
	}

	configPath := r.configPath
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			r.logger.Info("config file not found, creating from template", "path", configPath)
			if err := shared.CreateConfigFile(configPath); err != nil {
				r.logger.Warn("failed to create config file, using defaults", "error", err)
			} else if config, err := shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
			} else {
				r.config = config
				r.writePlain("✓ Config file created at %s\n", configPath)
			}
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	if _, err := r.database(); err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writePlain("✓ Database ready at %s\n", r.config.Database.Path)
}

// rollbackDatabase reverts the latest steps migrations without first migrating up.
func (r *Runner) rollbackDatabase(ctx context.Context, steps int) error {
	migrator, err := r.migrator()
	if err != nil {
		return err
	}

	reverted, err := migrator.Down(ctx, steps)
	r.migrated = false
	for _, m := range reverted {
		r.writePlain("✓ Rolled back %04d_%s\n", m.Version, m.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	if len(reverted) == 0 {
		return r.writePlain("No applied migrations to roll back\n")
	}
	return nil
}

// databaseStatus prints each migration with its applied time, or pending.
func (r *Runner) databaseStatus(ctx context.Context) error {
	migrator, err := r.migrator()
	if err != nil {
		return err
	}

	statuses, err := migrator.Status(ctx)
	if err != nil {
		return err
	}
	for _, st := range statuses {
		state := "pending"
		if st.Applied() {
			state = "applied " + st.AppliedAt.Local().Format(time.DateTime)
		}
		r.writePlain("%04d_%-24s %s\n", st.Version, st.Name, state)
	}
	return nil
}

func (r *Runner) migrator() (*shared.Migrator, error) {
	db, err := r.openDatabase()
	if err != nil {
		return nil, err
	}
	return shared.NewMigrator(db, r.logger)
}
