package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/semmidev/sqlkeep/internal/app"
)

var dropConfirm bool

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show tables with row counts, sizes and columns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			tables, err := a.Schema().Info(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TABLE\tROWS\tSIZE (MB)\tCOLUMNS")
			for _, t := range tables {
				fmt.Fprintf(w, "%s\t%d\t%.2f\t%s\n", t.Name, t.Rows, t.SizeMB, strings.Join(t.Columns, ", "))
			}
			return w.Flush()
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the database connection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			status, err := a.Schema().Status(ctx)
			if err != nil {
				return err
			}
			okColor.Printf("✓ Connected to %s\n", status.Database)
			fmt.Printf("  server: MySQL %s\n  tables: %d\n  size: %.2f MB\n", status.Version, status.Tables, status.SizeMB)
			return nil
		})
	},
}

var dropTablesCmd = &cobra.Command{
	Use:   "drop-tables",
	Short: "Drop every table in the database",
	Long: `Drop every table with foreign key checks suspended. This cannot be undone;
take a backup first. Requires --yes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !dropConfirm {
			return fmt.Errorf("refusing to drop tables without --yes")
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			result, err := a.Schema().DropAllTables(ctx)
			if err != nil {
				return err
			}
			warnColor.Printf("Dropped %d table(s)\n", result.TablesDropped)
			for _, t := range result.Tables {
				dimColor.Printf("  %s\n", t)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd, statusCmd, dropTablesCmd)
	dropTablesCmd.Flags().BoolVar(&dropConfirm, "yes", false, "confirm dropping all tables")
}
