// Command gradebook-admin runs maintenance tasks against the gradebook
// database: schema setup, seeding, final grade recalculation and recap
// printing.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-gradebook-api/internal/app"
	"github.com/noah-isme/sma-gradebook-api/pkg/config"
	"github.com/noah-isme/sma-gradebook-api/pkg/database"
	"github.com/noah-isme/sma-gradebook-api/pkg/logger"
)

var (
	termSemester string
	termYear     string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "gradebook-admin",
		Short:        "Gradebook maintenance commands",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&termSemester, "semester", "", "semester (1 or 2, default from config)")
	rootCmd.PersistentFlags().StringVar(&termYear, "year", "", "academic year such as 2024/2025 (default from config)")

	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newSeedCmd())
	rootCmd.AddCommand(newRecalculateCmd())
	rootCmd.AddCommand(newRecapCmd())
	rootCmd.AddCommand(newGradeCmd())
	rootCmd.AddCommand(newWeightsCmd())
	return rootCmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the gradebook tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			db, err := database.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to open db: %w", err)
			}
			defer db.Close()
			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema applied (%s)\n", cfg.Database.Driver)
			return nil
		},
	}
}

// withApp loads configuration and runs fn against a fully wired gradebook.
func withApp(ctx context.Context, fn func(*app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Recap.WarmOnWrite = false
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	gradebook, err := app.New(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := gradebook.Close(); cerr != nil {
			logr.Warn("failed to close gradebook", zap.Error(cerr))
		}
	}()
	return fn(gradebook)
}
