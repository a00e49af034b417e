package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/shortlink/internal/api"
	"github.com/jon4hz/shortlink/internal/cache"
	"github.com/jon4hz/shortlink/internal/config"
	"github.com/jon4hz/shortlink/internal/database"
	"github.com/jon4hz/shortlink/internal/notify/email"
	"github.com/jon4hz/shortlink/internal/scheduler"
	"github.com/jon4hz/shortlink/internal/users"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Shortlink server",
	Long:  `Start the Shortlink server with the user administration API.`,
	Example: `shortlink serve --config config.yml
shortlink serve -c /path/to/config.yml --log-level debug
`,
	RunE: startServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func startServer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	repo := users.NewRepository(db, cache.NewUserCache(cfg.Cache))
	svc := users.NewService(repo, cfg, users.WithNotifier(email.New(cfg.Email, cfg.ServerURL)))

	sched, err := scheduler.New()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	if err := sched.AddVerificationCleanup(db, cfg.VerificationCleanupSchedule); err != nil {
		return fmt.Errorf("failed to schedule verification cleanup: %w", err)
	}

	server, err := api.New(cfg, svc)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.Start()
	defer func() {
		if err := sched.Stop(); err != nil {
			log.Error("failed to stop scheduler", "error", err)
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx)
	})

	log.Info("shortlink started successfully", "listen", cfg.Listen)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shut down gracefully")
	return nil
}
