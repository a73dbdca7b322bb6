package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/semmidev/sqlkeep/internal/app"
	"github.com/semmidev/sqlkeep/internal/domain"
)

var (
	restoreUpload       string
	restoreIgnoreErrors bool
	restoreSafety       bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore [server-path]",
	Short: "Restore a dump into the database",
	Long: `Replay a .sql or .sql.gz dump statement by statement.

The server path is relative to the project root and must lie inside the backup
or uploads directory. --file restores an arbitrary local dump instead.

Examples:
  sqlkeep restore backups/backup_2026-10-18_03-00-00.sql
  sqlkeep restore --file ./shop.sql.gz --ignore-errors`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := domain.RestoreRequest{
			IgnoreErrors:     restoreIgnoreErrors,
			PreRestoreBackup: restoreSafety,
		}
		if len(args) == 1 {
			req.ServerPath = args[0]
		}
		if restoreUpload != "" {
			req.UploadPath = restoreUpload
			req.UploadName = filepath.Base(restoreUpload)
		}

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			result, err := a.Restore().Execute(ctx, req)
			if err != nil {
				return err
			}

			okColor.Println("✓ Restore completed")
			fmt.Printf("  tables: %d, records: %d, statements: %d, time: %.2fs\n",
				result.TablesRestored, result.RecordsRestored, result.StatementsExecuted, result.ExecutionSeconds)
			if result.SafetyBackup != "" {
				dimColor.Printf("  safety backup: %s\n", result.SafetyBackup)
			}
			if result.Warnings != "" {
				warnColor.Printf("  %s\n", result.Warnings)
				for _, detail := range result.ErrorDetails {
					warnColor.Printf("    %s\n", detail)
				}
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().StringVarP(&restoreUpload, "file", "f", "", "restore from this local dump file")
	restoreCmd.Flags().BoolVar(&restoreIgnoreErrors, "ignore-errors", false, "keep going when a statement fails")
	restoreCmd.Flags().BoolVar(&restoreSafety, "safety-backup", false, "create a backup before restoring")
}
