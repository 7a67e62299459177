package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/ayush/secrets-app/backend/internal/config"
	"github.com/ayush/secrets-app/backend/internal/logutil"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the credential store schema",
		Long: `Create the credentials table on PostgreSQL or the unique indexes
on MongoDB. Safe to run repeatedly.`,
		RunE: runMigrate,
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	log := logutil.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	ctx, stop := signalContext(cmd)
	defer stop()

	_, mig, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	cmd.Println("Running migrations...")
	if err := mig.migrate(ctx); err != nil {
		return oops.Code("MIGRATION_FAILED").With("driver", cfg.Store.Driver).Wrap(err)
	}
	cmd.Println("Migrations completed successfully")
	return nil
}
