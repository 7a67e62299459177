package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/ayush/secrets-app/backend/internal/auth"
	"github.com/ayush/secrets-app/backend/internal/config"
	"github.com/ayush/secrets-app/backend/internal/logutil"
	"github.com/ayush/secrets-app/backend/internal/observability"
	"github.com/ayush/secrets-app/backend/internal/server"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long: `Start the web server. The credential store schema is brought up
to date before the listener opens.`,
		RunE: runServe,
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	log := logutil.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	ctx, stop := signalContext(cmd)
	defer stop()
	ctx = logutil.WithLogger(ctx, log)
	log.Info().Str("config", cfg.String()).Msg("Starting secrets server")

	st, mig, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Credential store unavailable")
		return err
	}
	defer closeStore()
	if err := mig.migrate(ctx); err != nil {
		log.Error().Err(err).Msg("Schema migration failed")
		return oops.Code("MIGRATION_FAILED").With("driver", cfg.Store.Driver).Wrap(err)
	}

	sessions, closeSessions, err := openSessions(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Session backend unavailable")
		return err
	}
	defer closeSessions()

	assets, err := openAssets(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Asset store unavailable")
		return err
	}

	registry := observability.NewRegistry()
	provider := googleProvider(cfg)
	if provider == nil {
		log.Info().Msg("Google login disabled")
	}

	handler, err := server.NewRouter(server.Deps{
		Store:          st,
		Sessions:       sessions,
		Hasher:         auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Provider:       provider,
		Assets:         assets,
		Registry:       registry,
		Metrics:        observability.NewMetrics(registry),
		Logger:         log,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})
	if err != nil {
		return oops.Code("STARTUP_FAILED").Wrap(err)
	}

	return server.Serve(ctx, cfg.HTTP.Addr, handler)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
