package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gitrag-ai/gitrag/internal/profile"
	"github.com/gitrag-ai/gitrag/server"
	"github.com/gitrag-ai/gitrag/store"
	"github.com/gitrag-ai/gitrag/store/db"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "gitrag",
		Short: "GitHub repository analysis backend",
	}
	rootCmd.AddCommand(serveCmd(), checkSchedulesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server, job workers and schedule poller",
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, _, err := setup()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.Start(ctx)
		},
	}
}

func checkSchedulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-schedules",
		Short: "Run one schedule poll pass and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, _, err := setup()
			if err != nil {
				return err
			}
			return srv.CheckSchedules(cmd.Context())
		},
	}
}

func setup() (*server.Server, *store.Store, error) {
	p := profile.FromEnv(version)
	if err := p.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level := slog.LevelInfo
	if p.IsDev() {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	driver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create db driver: %w", err)
	}
	st := store.New(driver, p)
	if err := st.Migrate(context.Background()); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	srv, err := server.New(p, st)
	if err != nil {
		return nil, nil, err
	}
	return srv, st, nil
}
