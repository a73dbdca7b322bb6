package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/semmidev/sqlkeep/internal/app"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run scheduled backups and off-site cleanup until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return a.Run(ctx)
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API alongside the scheduler",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return a.Serve(ctx)
		})
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete off-site copies older than backup.retention_days",
	Long: `Delete off-site copies older than backup.retention_days. The local backup
directory is never pruned.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Cleanup().Execute(ctx); err != nil {
				return err
			}
			okColor.Println("✓ Cleanup completed")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd, serveCmd, cleanupCmd)
}
