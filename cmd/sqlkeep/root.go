package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/semmidev/sqlkeep/internal/app"
	"github.com/semmidev/sqlkeep/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "sqlkeep",
	Short: "Back up, restore and import MySQL databases",
	Long: `sqlkeep writes plain SQL dumps of a MySQL database, restores them statement by
statement, and imports SQL, CSV or JSON payloads into existing tables.

Backups land in the configured backup directory and can be copied off-site to
S3, Google Drive, Telegram or a local mirror.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
	dimColor  = color.New(color.Faint)
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to config file")
}

// withApp loads the configuration, wires the application and hands it to fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := cmd.Context()
	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer application.Shutdown()

	return fn(ctx, application)
}
