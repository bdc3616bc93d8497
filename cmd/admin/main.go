// Command admin manages the AgentDesk database: migrations, seed data and resets.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"

	"agentdesk-backend/shared/config"
	"agentdesk-backend/shared/database"
	applogger "agentdesk-backend/shared/logger"
	"agentdesk-backend/shared/repository"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flush func()

	root := &cobra.Command{
		Use:          "admin",
		Short:        "AgentDesk database administration",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadConfig()
			flush = applogger.Init("admin")
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if flush != nil {
				flush()
			}
		},
	}

	root.AddCommand(newMigrateCmd(), newSeedCmd(), newResetCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update every table",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Open(config.GetConfig(), logger.Warn)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}

			if err := database.Migrate(db); err != nil {
				return err
			}
			zap.L().Info("migrations applied", zap.Int("models", len(database.Models())))
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the platform organization, super admin and global agents",
		Long: "Seeding is idempotent: existing organizations, users and agents are left untouched.\n" +
			"Agent presets come from the embedded defaults unless --file points at another YAML file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := loadSeedData(file)
			if err != nil {
				return err
			}

			if err := database.InitDatabase(); err != nil {
				return err
			}
			defer database.CloseDatabase()

			cfg := config.GetConfig()
			seeder := database.NewSeeder(repository.NewGorm(database.GetDB()), zap.L())
			result, err := seeder.Seed(cmd.Context(), data, cfg.SuperAdminEmail, cfg.SuperAdminPassword)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "organization created: %t\nsuper admin created: %t\nagents created: %d\n",
				result.OrganizationCreated, result.AdminCreated, result.AgentsCreated)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with the organization and agent presets")
	return cmd
}

func loadSeedData(file string) (*database.SeedData, error) {
	if file == "" {
		return database.DefaultSeedData()
	}
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return database.ParseSeedData(raw)
}

func newResetCmd() *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "reset-db",
		Short: "Drop every AgentDesk table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return errors.New("refusing to drop tables without --yes")
			}

			db, err := database.Open(config.GetConfig(), logger.Warn)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}

			if err := database.DropAll(db); err != nil {
				return err
			}
			zap.L().Info("database reset completed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm that all data will be deleted")
	return cmd
}
