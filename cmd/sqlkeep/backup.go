package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/semmidev/sqlkeep/internal/app"
	"github.com/semmidev/sqlkeep/internal/usecase"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create a backup now",
	Long: `Dump every table into a new backup_<timestamp>.sql file in the backup directory
and copy it to the enabled off-site targets.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			file, err := a.Backup().Create(ctx)
			if err != nil {
				return err
			}
			okColor.Printf("✓ Backup created: %s\n", file.Filename)
			fmt.Printf("  tables: %d, size: %s\n", file.Tables, usecase.FormatBytes(file.Size))
			dimColor.Printf("  %s\n", file.Path)
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			backups, err := a.List().Execute(ctx)
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				warnColor.Println("No backups found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FILENAME\tSIZE\tCREATED\tAGE")
			for _, b := range backups {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.Filename, b.Size, b.Created, b.Age)
			}
			return w.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(listCmd)
}
